// Package config holds the run parameters that are not wired as CLI flags:
// the definitions of the four rendered plots.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Plot defines one rendered cartogram: which indicator drives it, how it is
// colored and where it is written.
type Plot struct {
	// Indicator is one of "coverage", "infection", "mortality", "fatality".
	Indicator string `toml:"indicator"`
	Legend    string `toml:"legend"`
	// Scale is "linear" or "lincutoff".
	Scale   string `toml:"scale"`
	OutFile string `toml:"outfile"`
}

// Indicators recognized in plot definitions.
var Indicators = []string{"coverage", "infection", "mortality", "fatality"}

// DefaultPlots returns the four standard plots in their fixed job order.
func DefaultPlots() []Plot {
	return []Plot{
		{Indicator: "coverage", Legend: "Vaccination doses per 100 people", Scale: "linear", OutFile: "vaccination_coverage.png"},
		{Indicator: "infection", Legend: "Infection rate (% of population)", Scale: "lincutoff", OutFile: "infection_rate.png"},
		{Indicator: "mortality", Legend: "Mortality rate (% of population)", Scale: "lincutoff", OutFile: "mortality_rate.png"},
		{Indicator: "fatality", Legend: "Case fatality rate (% of cases)", Scale: "lincutoff", OutFile: "case_fatality_rate.png"},
	}
}

type plotsFile struct {
	Plot []Plot `toml:"plot"`
}

// LoadPlots reads plot definitions from a TOML file. The file replaces the
// default set wholesale.
func LoadPlots(path string) ([]Plot, error) {
	var pf plotsFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, fmt.Errorf("decode plots file: %w", err)
	}
	if len(pf.Plot) == 0 {
		return nil, fmt.Errorf("plots file %s defines no plots", path)
	}
	for i, p := range pf.Plot {
		if err := validatePlot(p); err != nil {
			return nil, fmt.Errorf("plots file %s, plot %d: %w", path, i+1, err)
		}
	}
	return pf.Plot, nil
}

func validatePlot(p Plot) error {
	ok := false
	for _, ind := range Indicators {
		if p.Indicator == ind {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("unknown indicator %q", p.Indicator)
	}
	if p.Scale != "" && p.Scale != "linear" && p.Scale != "lincutoff" {
		return fmt.Errorf("unknown scale %q", p.Scale)
	}
	if p.OutFile == "" {
		return fmt.Errorf("outfile is required")
	}
	return nil
}
