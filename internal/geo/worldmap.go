// Package geo supplies the world country-polygon layer and the joins and
// weight transforms that prepare it for cartogram deformation.
package geo

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
)

// WebMercator is the proj4 definition of EPSG:3857, the fixed planar
// projection all area computations run in.
const WebMercator = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 " +
	"+x_0=0 +y_0=0 +k=1 +units=m +no_defs"

// CountryPolygon is one country of the base layer: a (multi)polygon tagged
// with its ISO3 code. The layer is read-only reference data for the run.
type CountryPolygon struct {
	ISO3 string
	Name string
	Geom geom.Polygonal
}

// WorldMap is the country base layer together with its source spatial
// reference, as decoded from the shapefile's .prj sidecar.
type WorldMap struct {
	Countries []CountryPolygon
	SR        *proj.SR
}

// Natural Earth attribute columns. ISO_A3 is the canonical code but is set
// to -99 for a handful of territories (France, Norway, Kosovo); ADM0_A3 is
// always populated and serves as the fallback.
var neColumns = []string{"ISO_A3", "ADM0_A3", "NAME"}

// LoadShapefile reads a Natural Earth admin-0 countries shapefile into a
// WorldMap. Rows without polygonal geometry or without any usable ISO3 code
// are skipped.
func LoadShapefile(path string) (*WorldMap, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	sr, err := dec.SR()
	if err != nil {
		return nil, fmt.Errorf("read shapefile projection: %w", err)
	}

	wm := &WorldMap{SR: sr}
	for {
		g, fields, more := dec.DecodeRowFields(neColumns...)
		if !more {
			break
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			continue
		}
		iso3 := normalizeISO3(fields["ISO_A3"])
		if iso3 == "" {
			iso3 = normalizeISO3(fields["ADM0_A3"])
		}
		if iso3 == "" {
			continue
		}
		wm.Countries = append(wm.Countries, CountryPolygon{
			ISO3: iso3,
			Name: strings.TrimSpace(fields["NAME"]),
			Geom: poly,
		})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("decode shapefile: %w", err)
	}
	if len(wm.Countries) == 0 {
		return nil, fmt.Errorf("shapefile %s: no country polygons decoded", path)
	}
	return wm, nil
}

func normalizeISO3(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "-99" {
		return ""
	}
	return s
}
