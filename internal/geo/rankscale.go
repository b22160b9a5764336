package geo

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RankScale replaces each polygon's weight with its rank among all weights
// in the layer (ties averaged), rescaled so the mean weight equals the mean
// polygon area. Raw indicator magnitudes are highly skewed; feeding ranks
// instead keeps the deformation numerically stable, and centering them on
// mean area keeps total displayed area roughly conserved.
//
// The input slice is not modified; a new slice is returned. An empty layer
// is returned as-is.
func RankScale(polys []WeightedPolygon) []WeightedPolygon {
	if len(polys) == 0 {
		return polys
	}

	weights := make([]float64, len(polys))
	areas := make([]float64, len(polys))
	for i, p := range polys {
		weights[i] = p.Weight
		areas[i] = p.Geom.Area()
	}

	ranks := averageRanks(weights)
	meanArea := stat.Mean(areas, nil)
	meanRank := stat.Mean(ranks, nil)

	out := make([]WeightedPolygon, len(polys))
	copy(out, polys)
	for i := range out {
		out[i].Weight = ranks[i] / meanRank * meanArea
	}
	return out
}

// averageRanks assigns 1-based statistical ranks, giving tied values the
// mean of the ranks they occupy: [5, 5, 10] ranks as [1.5, 1.5, 3].
func averageRanks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, len(values))
	for lo := 0; lo < len(idx); {
		hi := lo
		for hi+1 < len(idx) && values[idx[hi+1]] == values[idx[lo]] {
			hi++
		}
		// Ranks lo+1..hi+1 are tied; everyone in the run gets their mean.
		mean := float64(lo+1+hi+1) / 2
		for i := lo; i <= hi; i++ {
			ranks[idx[i]] = mean
		}
		lo = hi + 1
	}
	return ranks
}
