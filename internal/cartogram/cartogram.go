// Package cartogram deforms country polygons so that each polygon's area
// approaches a per-polygon target weight, producing a continuous area
// cartogram.
package cartogram

import (
	"github.com/ctessum/geom"
)

// Deformer displaces polygon boundaries so each polygon's area approaches
// its weight. Implementations must be deterministic given identical inputs
// and must preserve polygon identity and ordering: result[i] is the
// deformed input[i].
type Deformer interface {
	Deform(polys []geom.Polygonal, weights []float64) ([]geom.Polygonal, error)
}
