package render

import (
	"image/color"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/wildfire-lab/firetour/internal/density"
	"github.com/wildfire-lab/firetour/internal/modis"
)

// ContourOptions controls Contour.
type ContourOptions struct {
	Title string
	// Extent is the plotted lon/lat window. Zero uses lon -10..0, lat 41..44.5.
	Extent modis.BBox
	// Levels is the number of filled colour steps and contour lines.
	Levels int
	// MaxAlpha is the opacity of the densest colour step.
	MaxAlpha float64
	// Width and Height of the image. Zero gives 10x5 inches.
	Width, Height vg.Length
	// Overlay draws these points on top, e.g. raw fire detections.
	Overlay []density.Point
}

// DefaultExtent is the plotted window of the static map.
var DefaultExtent = modis.BBox{MinLon: -10, MinLat: 41, MaxLon: 0, MaxLat: 44.5}

func (o ContourOptions) withDefaults() ContourOptions {
	if o.Extent.IsZero() {
		o.Extent = DefaultExtent
	}
	if o.Levels <= 0 {
		o.Levels = 20
	}
	if o.MaxAlpha <= 0 {
		o.MaxAlpha = 0.9
	}
	if o.Width == 0 {
		o.Width = 10 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 5 * vg.Inch
	}
	return o
}

// alphaRamp is a palette whose opacity rises linearly from transparent to
// maxAlpha, so that low densities leave the background visible.
type alphaRamp []color.Color

func (a alphaRamp) Colors() []color.Color { return a }

// AlphaRamp returns n colours of the heat palette with opacity ramped
// from 0 to maxAlpha.
func AlphaRamp(n int, maxAlpha float64) palette.Palette {
	base := palette.Heat(n, 1).Colors()
	out := make(alphaRamp, len(base))
	for i, c := range base {
		nc := color.NRGBAModel.Convert(c).(color.NRGBA)
		frac := 0.0
		if len(base) > 1 {
			frac = float64(i) / float64(len(base)-1)
		}
		nc.A = uint8(math.Round(255 * maxAlpha * frac))
		out[i] = nc
	}
	return out
}

// Levels returns n contour levels evenly spaced inside (0, max).
func Levels(peak float64, n int) []float64 {
	levels := make([]float64, n)
	for i := range levels {
		levels[i] = peak * float64(i+1) / float64(n+1)
	}
	return levels
}

// Contour saves a density surface as a filled heat map with contour
// lines and lon/lat gridlines. The format follows the extension of path
// (.png, .svg, .pdf, .jpg).
func Contour(path string, s density.Surface, opts ContourOptions) error {
	opts = opts.withDefaults()
	if len(s.Values) == 0 {
		return eris.New("render: empty density surface")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	p.X.Min, p.X.Max = opts.Extent.MinLon, opts.Extent.MaxLon
	p.Y.Min, p.Y.Max = opts.Extent.MinLat, opts.Extent.MaxLat
	p.Add(plotter.NewGrid())

	heat := plotter.NewHeatMap(s, AlphaRamp(opts.Levels, opts.MaxAlpha))
	heat.Min = 0
	heat.Max = s.Max()
	p.Add(heat)

	if peak := s.Max(); peak > 0 {
		lines := plotter.NewContour(s, Levels(peak, opts.Levels), palette.Heat(opts.Levels, 1))
		lines.LineStyles = []draw.LineStyle{{Width: vg.Points(0.5)}}
		p.Add(lines)
	}

	if len(opts.Overlay) > 0 {
		xys := make(plotter.XYs, len(opts.Overlay))
		for i, pt := range opts.Overlay {
			xys[i].X, xys[i].Y = pt.Lon, pt.Lat
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return eris.Wrap(err, "render: overlay points")
		}
		sc.GlyphStyle.Radius = vg.Points(1)
		sc.GlyphStyle.Color = color.Black
		p.Add(sc)
	}

	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return eris.Wrapf(err, "render: save %s", path)
	}
	return nil
}
