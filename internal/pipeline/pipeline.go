// Package pipeline composes the full load → derive → join → normalize →
// deform → render run.
package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"

	"github.com/hmgu-urban/covid19-cartograms/internal/cartogram"
	"github.com/hmgu-urban/covid19-cartograms/internal/config"
	"github.com/hmgu-urban/covid19-cartograms/internal/geo"
	"github.com/hmgu-urban/covid19-cartograms/internal/indicator"
	"github.com/hmgu-urban/covid19-cartograms/internal/metrics"
	"github.com/hmgu-urban/covid19-cartograms/internal/render"
	"github.com/hmgu-urban/covid19-cartograms/internal/who"
)

// Params are the resolved run parameters.
type Params struct {
	CasesPath        string
	VaccinationsPath string
	ShapefilePath    string

	Cutoff    time.Time
	DateMatch indicator.DateMatch

	Workers int

	OutDir   string
	PNGWidth int

	Plots []config.Plot
}

// Pipeline runs the whole analysis once. The deformer is injected so tests
// can substitute the cartogram engine.
type Pipeline struct {
	params   Params
	deformer cartogram.Deformer
}

func New(params Params, deformer cartogram.Deformer) *Pipeline {
	return &Pipeline{params: params, deformer: deformer}
}

// Run executes the pipeline. Any stage error aborts the run; there is no
// partial output.
func (p *Pipeline) Run() error {
	rows, worldMap, err := p.loadAndDerive()
	if err != nil {
		return err
	}

	target, err := proj.Parse(geo.WebMercator)
	if err != nil {
		return fmt.Errorf("parse target projection: %w", err)
	}

	// Prepare one weighted layer per plot; the per-indicator join is the
	// pipeline's sole data-exclusion mechanism.
	layers := make([][]geo.WeightedPolygon, len(p.params.Plots))
	for i, plot := range p.params.Plots {
		start := time.Now()
		values := indicatorValues(rows, plot.Indicator)
		layer, err := geo.JoinIndicator(worldMap, values, target)
		if err != nil {
			return fmt.Errorf("join %s: %w", plot.Indicator, err)
		}
		if len(layer) == 0 {
			return fmt.Errorf("join %s: no countries carry this indicator", plot.Indicator)
		}
		metrics.PolygonsJoined.WithLabelValues(plot.Indicator).Add(float64(len(layer)))
		metrics.PolygonsDropped.WithLabelValues(plot.Indicator).Add(float64(len(worldMap.Countries) - len(layer)))

		layers[i] = geo.RankScale(layer)
		metrics.StageDuration.WithLabelValues("join").Observe(time.Since(start).Seconds())
		log.Printf("%s: %d of %d countries joined", plot.Indicator, len(layer), len(worldMap.Countries))
	}

	deformed, err := p.deformAll(layers)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(p.params.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for i, plot := range p.params.Plots {
		start := time.Now()
		out := filepath.Join(p.params.OutDir, plot.OutFile)
		opts := render.Options{
			Legend: plot.Legend,
			Scale:  render.Scale(plot.Scale),
			Width:  p.params.PNGWidth,
		}
		if opts.Scale == "" {
			opts.Scale = render.ScaleLinear
		}
		if err := render.WriteMap(out, deformed[i], opts); err != nil {
			return fmt.Errorf("render %s: %w", plot.Indicator, err)
		}
		metrics.StageDuration.WithLabelValues("render").Observe(time.Since(start).Seconds())
		log.Printf("%s: wrote %s", plot.Indicator, out)
	}
	return nil
}

func (p *Pipeline) loadAndDerive() ([]indicator.Row, *geo.WorldMap, error) {
	start := time.Now()
	cases, err := who.LoadCases(p.params.CasesPath)
	if err != nil {
		return nil, nil, err
	}
	metrics.RowsLoaded.WithLabelValues("cases").Add(float64(len(cases)))

	vaxRecords, err := who.LoadVaccinations(p.params.VaccinationsPath)
	if err != nil {
		return nil, nil, err
	}
	metrics.RowsLoaded.WithLabelValues("vaccinations").Add(float64(len(vaxRecords)))
	metrics.StageDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	log.Printf("loaded %d case rows, %d vaccination rows", len(cases), len(vaxRecords))

	start = time.Now()
	vax := indicator.CleanVaccination(vaxRecords)
	metrics.RowsDropped.WithLabelValues("vaccinations", "unusable").Add(float64(len(vaxRecords) - len(vax)))

	snapshot := indicator.FilterLatest(cases, p.params.Cutoff, p.params.DateMatch)
	metrics.RowsDropped.WithLabelValues("cases", "outside_cutoff").Add(float64(len(cases) - len(snapshot)))
	if len(snapshot) == 0 {
		return nil, nil, fmt.Errorf("no case rows at cutoff %s (date match %q)",
			p.params.Cutoff.Format("2006-01-02"), p.params.DateMatch)
	}

	rows := indicator.Derive(snapshot, vax)
	metrics.StageDuration.WithLabelValues("derive").Observe(time.Since(start).Seconds())
	log.Printf("derived indicators for %d countries (%d vaccination rows usable)", len(rows), len(vax))

	start = time.Now()
	worldMap, err := geo.LoadShapefile(p.params.ShapefilePath)
	if err != nil {
		return nil, nil, err
	}
	metrics.StageDuration.WithLabelValues("geometry").Observe(time.Since(start).Seconds())
	log.Printf("loaded %d country polygons", len(worldMap.Countries))

	return rows, worldMap, nil
}

// deformAll dispatches one cartogram job per layer across the worker pool
// and collects results in input order.
func (p *Pipeline) deformAll(layers [][]geo.WeightedPolygon) ([][]geo.WeightedPolygon, error) {
	start := time.Now()
	jobs := make([]func() ([]geo.WeightedPolygon, error), len(layers))
	for i := range layers {
		layer := layers[i]
		name := p.params.Plots[i].Indicator
		jobs[i] = func() ([]geo.WeightedPolygon, error) {
			polys := make([]geom.Polygonal, len(layer))
			weights := make([]float64, len(layer))
			for j, wp := range layer {
				polys[j] = wp.Geom
				weights[j] = wp.Weight
			}
			deformed, err := p.deformer.Deform(polys, weights)
			if err != nil {
				return nil, fmt.Errorf("cartogram %s: %w", name, err)
			}
			out := make([]geo.WeightedPolygon, len(layer))
			copy(out, layer)
			for j := range out {
				out[j].Geom = deformed[j]
			}
			metrics.CartogramSizeError.WithLabelValues(name).Set(meanSizeError(out))
			return out, nil
		}
	}

	deformed, err := Dispatch(p.params.Workers, jobs)
	if err != nil {
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("deform").Observe(time.Since(start).Seconds())
	log.Printf("deformed %d layers with %d workers", len(layers), p.params.Workers)
	return deformed, nil
}

// indicatorValues projects the indicator table to an ISO3 → value map,
// skipping countries where the indicator is undefined.
func indicatorValues(rows []indicator.Row, name string) map[string]float64 {
	values := make(map[string]float64, len(rows))
	for _, r := range rows {
		if r.ISO3 == "" {
			continue
		}
		var v float64
		var ok bool
		switch name {
		case "coverage":
			v, ok = r.Coverage.Float64, r.Coverage.Valid
		case "infection":
			v, ok = r.InfectionRate.Float64, r.InfectionRate.Valid
		case "mortality":
			v, ok = r.MortalityRate.Float64, r.MortalityRate.Valid
		case "fatality":
			v, ok = r.FatalityRate.Float64, r.FatalityRate.Valid
		}
		if ok {
			values[r.ISO3] = v
		}
	}
	return values
}

// meanSizeError reports how far each polygon's deformed area is from its
// target weight: max(area, weight)/min(area, weight), averaged over the
// layer. 1 is a perfect fit.
func meanSizeError(layer []geo.WeightedPolygon) float64 {
	if len(layer) == 0 {
		return 0
	}
	sum := 0.0
	for _, wp := range layer {
		area := wp.Geom.Area()
		hi, lo := area, wp.Weight
		if lo > hi {
			hi, lo = lo, hi
		}
		if lo <= 0 {
			continue
		}
		sum += hi / lo
	}
	return sum / float64(len(layer))
}
