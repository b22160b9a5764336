// Package render draws deformed country layers as filled maps with a
// continuous color scale and a horizontal legend strip.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/ctessum/geom/carto"
	"golang.org/x/image/draw"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/hmgu-urban/covid19-cartograms/internal/geo"
)

// Scale selects the color-mapping behavior of a plot.
type Scale string

const (
	// ScaleLinear maps values linearly onto the ramp.
	ScaleLinear Scale = "linear"
	// ScaleLinCutoff is linear but cuts extreme outliers off at a high
	// percentile, which suits the heavily skewed rate indicators.
	ScaleLinCutoff Scale = "lincutoff"
)

// Options configure one rendered map.
type Options struct {
	Legend string // legend title drawn under the map
	Scale  Scale
	// Width resamples the final image to this pixel width when > 0,
	// preserving aspect ratio.
	Width int
}

const (
	figWidth     = 7 * vg.Inch
	figHeight    = 4.3 * vg.Inch
	legendHeight = 0.3 * vg.Inch
)

var outlineGray = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

// Map renders a deformed polygon layer as a PNG. Fill color is bound to
// each polygon's raw indicator value; boundaries get a thin neutral-gray
// outline.
func Map(polys []geo.WeightedPolygon, opts Options) ([]byte, error) {
	if len(polys) == 0 {
		return nil, fmt.Errorf("render: empty polygon layer")
	}

	values := make([]float64, len(polys))
	for i, p := range polys {
		values[i] = p.Value
	}

	cmap := carto.NewColorMap(colorMapType(opts.Scale))
	cmap.AddArray(values)
	cmap.Set()

	ic := vgimg.New(figWidth, figHeight)
	dc := vgdraw.New(ic)
	legendc := vgdraw.Crop(dc, 0, 0, 0, legendHeight-figHeight)
	plotc := vgdraw.Crop(dc, 0, 0, legendHeight, 0)

	if err := cmap.Legend(&legendc, opts.Legend); err != nil {
		return nil, fmt.Errorf("render legend: %w", err)
	}

	n, s, e, w := layerBounds(polys)
	canvas := carto.NewCanvas(n, s, e, w, plotc)

	outline := vgdraw.LineStyle{
		Color: outlineGray,
		Width: 0.1 * vg.Millimeter,
	}
	for i, p := range polys {
		fill := cmap.GetColor(values[i])
		if err := canvas.DrawVector(p.Geom, fill, outline, vgdraw.GlyphStyle{}); err != nil {
			return nil, fmt.Errorf("render draw %s: %w", p.ISO3, err)
		}
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: ic}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render encode: %w", err)
	}
	if opts.Width > 0 {
		return resample(buf.Bytes(), opts.Width)
	}
	return buf.Bytes(), nil
}

// WriteMap renders the layer and writes it to path.
func WriteMap(path string, polys []geo.WeightedPolygon, opts Options) error {
	img, err := Map(polys, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func colorMapType(s Scale) carto.ColorMapType {
	if s == ScaleLinCutoff {
		return carto.LinCutoff
	}
	return carto.Linear
}

// layerBounds returns the layer's extent as N, S, E, W with a 2% margin so
// deformed boundaries never touch the canvas edge.
func layerBounds(polys []geo.WeightedPolygon) (n, s, e, w float64) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range polys {
		b := p.Geom.Bounds()
		minX = math.Min(minX, b.Min.X)
		minY = math.Min(minY, b.Min.Y)
		maxX = math.Max(maxX, b.Max.X)
		maxY = math.Max(maxY, b.Max.Y)
	}
	marginX := (maxX - minX) * 0.02
	marginY := (maxY - minY) * 0.02
	return maxY + marginY, minY - marginY, maxX + marginX, minX - marginX
}

// resample scales a rendered PNG to the requested width using Catmull-Rom
// interpolation.
func resample(img []byte, width int) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("render resample decode: %w", err)
	}
	sb := src.Bounds()
	height := int(math.Round(float64(width) * float64(sb.Dy()) / float64(sb.Dx())))
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("render resample encode: %w", err)
	}
	return buf.Bytes(), nil
}
