package metrics

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

var (
	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartograms_rows_loaded_total",
			Help: "Rows loaded per source dataset",
		},
		[]string{"dataset"},
	)

	RowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartograms_rows_dropped_total",
			Help: "Rows dropped during cleaning and filtering, per dataset",
		},
		[]string{"dataset", "reason"},
	)

	PolygonsJoined = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartograms_polygons_joined_total",
			Help: "Country polygons surviving the indicator join, per indicator",
		},
		[]string{"indicator"},
	)

	PolygonsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartograms_polygons_dropped_total",
			Help: "Country polygons dropped for lack of an indicator value",
		},
		[]string{"indicator"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cartograms_stage_duration_seconds",
			Help:    "Wall-clock duration of each pipeline stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	CartogramSizeError = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cartograms_mean_size_error",
			Help: "Mean relative area error of the deformed layer, per indicator",
		},
		[]string{"indicator"},
	)
)

// WriteTextfile dumps all registered metrics to path in the Prometheus text
// exposition format, for collection by node_exporter's textfile collector.
// The program is a one-shot batch job, so there is no listener to scrape.
func WriteTextfile(path string) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close metrics file: %w", err)
	}
	// Rename so the collector never reads a half-written file.
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish metrics file: %w", err)
	}
	return nil
}
