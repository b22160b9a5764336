package cartogram

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Dougenik implements the Dougenik–Chrisman–Niemeyer rubber-sheet algorithm
// ("An Algorithm to Construct Continuous Area Cartograms", The Professional
// Geographer, 1985). Each pass computes, per polygon, a circular force field
// centered on its centroid whose strength is proportional to the gap between
// current and target area, then displaces every vertex in the layer by the
// summed forces.
type Dougenik struct {
	// MaxIterations caps the number of passes. A single pass trades
	// convergence for speed and geometric stability.
	MaxIterations int

	// MaxSizeError stops iteration early once the mean relative area error
	// falls below it.
	MaxSizeError float64
}

// NewDougenik returns a Dougenik deformer with the given iteration cap and
// size-error tolerance.
func NewDougenik(maxIterations int, maxSizeError float64) *Dougenik {
	return &Dougenik{MaxIterations: maxIterations, MaxSizeError: maxSizeError}
}

type region struct {
	centroid geom.Point
	radius   float64
	mass     float64
}

// Deform runs up to MaxIterations passes over the layer. Target areas are
// the weights rescaled so their sum matches the layer's current total area;
// callers that rank-scale weights beforehand make this rescaling a near
// no-op.
func (d *Dougenik) Deform(polys []geom.Polygonal, weights []float64) ([]geom.Polygonal, error) {
	if len(polys) == 0 {
		return nil, fmt.Errorf("cartogram: empty polygon layer")
	}
	if len(weights) != len(polys) {
		return nil, fmt.Errorf("cartogram: %d polygons but %d weights", len(polys), len(weights))
	}
	for i, w := range weights {
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("cartogram: polygon %d has non-positive weight %v", i, w)
		}
	}
	iterations := d.MaxIterations
	if iterations < 1 {
		iterations = 1
	}

	out := make([]geom.Polygonal, len(polys))
	copy(out, polys)

	for iter := 0; iter < iterations; iter++ {
		regions, meanError, err := buildRegions(out, weights)
		if err != nil {
			return nil, err
		}
		if meanError-1 < d.MaxSizeError {
			break
		}
		// Dougenik's damping term: the worse the overall fit, the gentler
		// each individual displacement.
		reduction := 1 / (1 + meanError)
		for i, p := range out {
			out[i] = displace(p, regions, reduction)
		}
	}
	return out, nil
}

// buildRegions computes each polygon's force-field parameters and the
// layer's mean relative size error (max(area,target)/min(area,target),
// averaged; 1 means a perfect fit).
func buildRegions(polys []geom.Polygonal, weights []float64) ([]region, float64, error) {
	totalArea := 0.0
	totalWeight := 0.0
	areas := make([]float64, len(polys))
	for i, p := range polys {
		areas[i] = p.Area()
		totalArea += areas[i]
		totalWeight += weights[i]
	}
	if totalArea <= 0 {
		return nil, 0, fmt.Errorf("cartogram: layer has non-positive total area")
	}

	regions := make([]region, len(polys))
	errSum := 0.0
	for i, p := range polys {
		target := weights[i] / totalWeight * totalArea
		regions[i] = region{
			centroid: p.Centroid(),
			radius:   math.Sqrt(areas[i] / math.Pi),
			mass:     math.Sqrt(target/math.Pi) - math.Sqrt(areas[i]/math.Pi),
		}
		errSum += math.Max(areas[i], target) / math.Min(areas[i], target)
	}
	return regions, errSum / float64(len(polys)), nil
}

// displace moves every vertex of p by the summed force of all regions,
// preserving ring and part structure.
func displace(p geom.Polygonal, regions []region, reduction float64) geom.Polygonal {
	parts := p.Polygons()
	moved := make(geom.MultiPolygon, len(parts))
	for pi, part := range parts {
		newPart := make(geom.Polygon, len(part))
		for ri, ring := range part {
			newRing := make([]geom.Point, len(ring))
			for vi, pt := range ring {
				newRing[vi] = displacePoint(pt, regions, reduction)
			}
			newPart[ri] = newRing
		}
		moved[pi] = newPart
	}
	if len(moved) == 1 {
		return moved[0]
	}
	return moved
}

func displacePoint(pt geom.Point, regions []region, reduction float64) geom.Point {
	dx, dy := 0.0, 0.0
	for _, r := range regions {
		vx := pt.X - r.centroid.X
		vy := pt.Y - r.centroid.Y
		dist := math.Hypot(vx, vy)
		if dist == 0 || r.radius == 0 {
			continue
		}
		var force float64
		if dist > r.radius {
			force = r.mass * r.radius / dist
		} else {
			ratio := dist / r.radius
			force = r.mass * ratio * ratio * (4 - 3*ratio)
		}
		force *= reduction
		dx += vx / dist * force
		dy += vy / dist * force
	}
	return geom.Point{X: pt.X + dx, Y: pt.Y + dy}
}
