package geo

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// WeightedPolygon is a country polygon joined with one scalar indicator
// value and reprojected to the planar working projection. Value carries the
// raw indicator (used for coloring); Weight starts equal to Value and is
// replaced by RankScale before deformation.
type WeightedPolygon struct {
	ISO3   string
	Name   string
	Geom   geom.Polygonal
	Value  float64
	Weight float64
}

// JoinIndicator left-joins an indicator value table onto the world layer by
// ISO3 code, drops countries lacking a value, and reprojects the survivors
// into the target projection. Dropping is the pipeline's sole
// data-exclusion mechanism and is applied independently per indicator.
func JoinIndicator(wm *WorldMap, values map[string]float64, target *proj.SR) ([]WeightedPolygon, error) {
	ct, err := wm.SR.NewTransform(target)
	if err != nil {
		return nil, fmt.Errorf("build projection transform: %w", err)
	}

	var out []WeightedPolygon
	for _, c := range wm.Countries {
		v, ok := values[c.ISO3]
		if !ok {
			continue
		}
		g, err := c.Geom.Transform(ct)
		if err != nil {
			return nil, fmt.Errorf("reproject %s: %w", c.ISO3, err)
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("reproject %s: geometry is no longer polygonal", c.ISO3)
		}
		out = append(out, WeightedPolygon{
			ISO3:   c.ISO3,
			Name:   c.Name,
			Geom:   poly,
			Value:  v,
			Weight: v,
		})
	}
	return out, nil
}
