package pipeline

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/ctessum/geom"

	"github.com/hmgu-urban/covid19-cartograms/internal/config"
	"github.com/hmgu-urban/covid19-cartograms/internal/geo"
	"github.com/hmgu-urban/covid19-cartograms/internal/indicator"
)

func optFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func square(x, y, side float64) geom.Polygon {
	return geom.Polygon{{
		{X: x, Y: y},
		{X: x + side, Y: y},
		{X: x + side, Y: y + side},
		{X: x, Y: y + side},
	}}
}

func TestIndicatorValues(t *testing.T) {
	rows := []indicator.Row{
		{ISO3: "AAA", Coverage: optFloat(50), InfectionRate: optFloat(10), FatalityRate: optFloat(5)},
		{ISO3: "BBB", FatalityRate: optFloat(20)}, // no vaccination join
		{ISO3: "", Coverage: optFloat(99)},        // no geometry key
	}

	tests := []struct {
		indicator string
		want      map[string]float64
	}{
		{"coverage", map[string]float64{"AAA": 50}},
		{"infection", map[string]float64{"AAA": 10}},
		{"mortality", map[string]float64{}},
		{"fatality", map[string]float64{"AAA": 5, "BBB": 20}},
	}
	for _, tt := range tests {
		t.Run(tt.indicator, func(t *testing.T) {
			got := indicatorValues(rows, tt.indicator)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

// stubDeformer scales nothing; it returns its input and records the call.
type stubDeformer struct {
	calls int
	err   error
}

func (s *stubDeformer) Deform(polys []geom.Polygonal, weights []float64) ([]geom.Polygonal, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return polys, nil
}

func TestDeformAllInjectsEngine(t *testing.T) {
	layer := []geo.WeightedPolygon{
		{ISO3: "AAA", Geom: square(0, 0, 1), Value: 1, Weight: 1},
		{ISO3: "BBB", Geom: square(2, 0, 1), Value: 2, Weight: 1},
	}
	stub := &stubDeformer{}
	p := New(Params{
		Workers: 2,
		Plots:   config.DefaultPlots(),
	}, stub)

	layers := [][]geo.WeightedPolygon{layer, layer, layer, layer}
	out, err := p.deformAll(layers)
	if err != nil {
		t.Fatalf("deformAll: %v", err)
	}
	if stub.calls != 4 {
		t.Errorf("deformer called %d times, want 4", stub.calls)
	}
	if len(out) != 4 {
		t.Fatalf("got %d layers, want 4", len(out))
	}
	for i := range out {
		if len(out[i]) != len(layer) {
			t.Errorf("layer %d: got %d polygons, want %d", i, len(out[i]), len(layer))
		}
		if out[i][0].ISO3 != "AAA" || out[i][0].Value != 1 {
			t.Errorf("layer %d lost its attributes: %+v", i, out[i][0])
		}
	}
}

func TestDeformAllPropagatesEngineFailure(t *testing.T) {
	boom := errors.New("did not converge")
	stub := &stubDeformer{err: boom}
	p := New(Params{Workers: 2, Plots: config.DefaultPlots()}, stub)

	layer := []geo.WeightedPolygon{{ISO3: "AAA", Geom: square(0, 0, 1), Weight: 1}}
	if _, err := p.deformAll([][]geo.WeightedPolygon{layer}); !errors.Is(err, boom) {
		t.Fatalf("got %v, want engine failure", err)
	}
}

func TestMeanSizeError(t *testing.T) {
	layer := []geo.WeightedPolygon{
		{Geom: square(0, 0, 1), Weight: 1}, // perfect fit
		{Geom: square(2, 0, 1), Weight: 2}, // off by 2x
	}
	if got := meanSizeError(layer); got != 1.5 {
		t.Errorf("meanSizeError = %v, want 1.5", got)
	}
	if got := meanSizeError(nil); got != 0 {
		t.Errorf("meanSizeError(nil) = %v, want 0", got)
	}
}
