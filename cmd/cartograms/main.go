// Command cartograms renders four COVID-19 country cartograms from the
// public WHO datasets: vaccination coverage, infection rate, mortality rate
// and case fatality rate.
package main

import (
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/hmgu-urban/covid19-cartograms/internal/cartogram"
	"github.com/hmgu-urban/covid19-cartograms/internal/config"
	"github.com/hmgu-urban/covid19-cartograms/internal/indicator"
	"github.com/hmgu-urban/covid19-cartograms/internal/metrics"
	"github.com/hmgu-urban/covid19-cartograms/internal/pipeline"
	"github.com/hmgu-urban/covid19-cartograms/internal/who"
)

var resolutionScales = map[string]string{
	"low":    "110m",
	"medium": "50m",
	"high":   "10m",
}

type runCmd struct {
	Cases        string `help:"WHO case/death CSV." default:"data/WHO-COVID-19-global-data.csv" type:"existingfile"`
	Vaccinations string `help:"WHO vaccination CSV." default:"data/vaccination-data.csv" type:"existingfile"`
	Shapefile    string `help:"Natural Earth admin-0 countries shapefile." default:"data/ne_50m_admin_0_countries.shp" type:"existingfile"`

	Cutoff    string `help:"Reporting snapshot date (YYYY-MM-DD)." default:"2023-12-31"`
	DateMatch string `help:"Cutoff matching: strict keeps only exact-date rows, nearest keeps each country's latest report at or before the cutoff." enum:"strict,nearest" default:"strict"`

	Iterations   int     `help:"Cartogram iteration cap." default:"1"`
	MaxSizeError float64 `help:"Cartogram size-error tolerance." default:"0.01"`
	Workers      int     `help:"Worker count; 0 means CPU cores minus one." default:"0"`

	OutDir      string `help:"Output directory for rendered maps." default:"out"`
	PNGWidth    int    `help:"Resample rendered maps to this pixel width (0 keeps native size)." default:"0"`
	Plots       string `help:"TOML file overriding the four plot definitions." optional:"" type:"existingfile"`
	MetricsFile string `help:"Write Prometheus textfile-collector metrics here." optional:""`
}

func (c *runCmd) Run() error {
	cutoff, err := time.Parse("2006-01-02", c.Cutoff)
	if err != nil {
		return fmt.Errorf("parse --cutoff: %w", err)
	}

	plots := config.DefaultPlots()
	if c.Plots != "" {
		if plots, err = config.LoadPlots(c.Plots); err != nil {
			return err
		}
	}

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
		if workers < 1 {
			workers = 1
		}
	}

	params := pipeline.Params{
		CasesPath:        c.Cases,
		VaccinationsPath: c.Vaccinations,
		ShapefilePath:    c.Shapefile,
		Cutoff:           cutoff,
		DateMatch:        indicator.DateMatch(c.DateMatch),
		Workers:          workers,
		OutDir:           c.OutDir,
		PNGWidth:         c.PNGWidth,
		Plots:            plots,
	}
	deformer := cartogram.NewDougenik(c.Iterations, c.MaxSizeError)

	start := time.Now()
	if err := pipeline.New(params, deformer).Run(); err != nil {
		return err
	}
	log.Printf("finished in %s", time.Since(start).Round(time.Millisecond))

	if c.MetricsFile != "" {
		if err := metrics.WriteTextfile(c.MetricsFile); err != nil {
			return err
		}
	}
	return nil
}

type fetchCmd struct {
	DataDir    string `help:"Directory to download datasets into." default:"data"`
	Resolution string `help:"Natural Earth resolution tier." enum:"low,medium,high" default:"medium"`
}

func (c *fetchCmd) Run() error {
	f := who.NewFetcher()

	log.Printf("downloading %s", who.CasesURL)
	if err := f.Download(who.CasesURL, c.DataDir+"/WHO-COVID-19-global-data.csv"); err != nil {
		return err
	}
	log.Printf("downloading %s", who.VaccinationsURL)
	if err := f.Download(who.VaccinationsURL, c.DataDir+"/vaccination-data.csv"); err != nil {
		return err
	}

	scale := resolutionScales[c.Resolution]
	log.Printf("downloading %s", who.NaturalEarthURL(scale))
	shpPath, err := f.DownloadNaturalEarth(scale, c.DataDir)
	if err != nil {
		return err
	}
	log.Printf("extracted %s", shpPath)
	return nil
}

var cli struct {
	Run   runCmd   `cmd:"" default:"withargs" help:"Run the full cartogram pipeline."`
	Fetch fetchCmd `cmd:"" help:"Download the WHO datasets and the Natural Earth country layer."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("cartograms"),
		kong.Description("COVID-19 continuous-area cartograms from WHO data."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
