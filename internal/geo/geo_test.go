package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// square returns a CCW square polygon of the given side length anchored at
// (x, y).
func square(x, y, side float64) geom.Polygon {
	return geom.Polygon{{
		{X: x, Y: y},
		{X: x + side, Y: y},
		{X: x + side, Y: y + side},
		{X: x, Y: y + side},
	}}
}

func TestAverageRanks(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []float64
	}{
		{"distinct", []float64{30, 10, 20}, []float64{3, 1, 2}},
		{"tied lowest pair", []float64{5, 5, 10}, []float64{1.5, 1.5, 3}},
		{"all tied", []float64{7, 7, 7}, []float64{2, 2, 2}},
		{"single", []float64{42}, []float64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := averageRanks(tt.values)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d ranks, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("rank[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRankScaleMeanEqualsMeanArea(t *testing.T) {
	polys := []WeightedPolygon{
		{ISO3: "AAA", Geom: square(0, 0, 1), Weight: 0.3},
		{ISO3: "BBB", Geom: square(2, 0, 2), Weight: 812.5},
		{ISO3: "CCC", Geom: square(5, 0, 3), Weight: 0.3},
		{ISO3: "DDD", Geom: square(9, 0, 4), Weight: 12},
	}
	meanArea := (1.0 + 4 + 9 + 16) / 4

	out := RankScale(polys)
	sum := 0.0
	for _, p := range out {
		sum += p.Weight
	}
	if got := sum / float64(len(out)); math.Abs(got-meanArea) > 1e-9 {
		t.Errorf("mean weight = %v, want mean area %v", got, meanArea)
	}

	// Input must be untouched.
	if polys[0].Weight != 0.3 {
		t.Errorf("RankScale mutated its input: %v", polys[0].Weight)
	}

	// Tied raw weights must come out with identical scaled weights.
	if out[0].Weight != out[2].Weight {
		t.Errorf("tied weights diverged: %v vs %v", out[0].Weight, out[2].Weight)
	}
}

func TestRankScaleOrderInvariant(t *testing.T) {
	base := []WeightedPolygon{
		{ISO3: "AAA", Geom: square(0, 0, 1), Weight: 4},
		{ISO3: "BBB", Geom: square(2, 0, 2), Weight: 1},
		{ISO3: "CCC", Geom: square(5, 0, 3), Weight: 9},
		{ISO3: "DDD", Geom: square(9, 0, 4), Weight: 1},
	}

	want := make(map[string]float64)
	for _, p := range RankScale(base) {
		want[p.ISO3] = p.Weight
	}

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]WeightedPolygon, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		for _, p := range RankScale(shuffled) {
			if math.Abs(p.Weight-want[p.ISO3]) > 1e-9 {
				t.Fatalf("trial %d: %s weight = %v, want %v", trial, p.ISO3, p.Weight, want[p.ISO3])
			}
		}
	}
}

func TestRankScaleEmpty(t *testing.T) {
	if out := RankScale(nil); len(out) != 0 {
		t.Errorf("got %d polygons, want 0", len(out))
	}
}

func TestJoinIndicator(t *testing.T) {
	longlat, err := proj.Parse("+proj=longlat +datum=WGS84 +no_defs")
	if err != nil {
		t.Fatalf("parse longlat: %v", err)
	}

	wm := &WorldMap{
		SR: longlat,
		Countries: []CountryPolygon{
			{ISO3: "AAA", Geom: square(0, 0, 1)},
			{ISO3: "BBB", Geom: square(2, 0, 1)},
			{ISO3: "CCC", Geom: square(4, 0, 1)},
		},
	}
	values := map[string]float64{"AAA": 10, "CCC": 30}

	out, err := JoinIndicator(wm, values, longlat)
	if err != nil {
		t.Fatalf("JoinIndicator: %v", err)
	}

	// Countries lacking a value are dropped; the output can never exceed
	// the input layer.
	if len(out) != 2 {
		t.Fatalf("got %d polygons, want 2", len(out))
	}
	if len(out) > len(wm.Countries) {
		t.Fatalf("output larger than input layer")
	}
	if out[0].ISO3 != "AAA" || out[1].ISO3 != "CCC" {
		t.Errorf("got %s, %s; want AAA, CCC", out[0].ISO3, out[1].ISO3)
	}
	if out[0].Value != 10 || out[0].Weight != 10 {
		t.Errorf("AAA value/weight = %v/%v, want 10/10", out[0].Value, out[0].Weight)
	}
}

func TestWebMercatorParses(t *testing.T) {
	if _, err := proj.Parse(WebMercator); err != nil {
		t.Fatalf("parse Web Mercator definition: %v", err)
	}
}

func TestNormalizeISO3(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"fra", "FRA"},
		{" NOR ", "NOR"},
		{"-99", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeISO3(tt.in); got != tt.want {
			t.Errorf("normalizeISO3(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
