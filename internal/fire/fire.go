// Package fire extracts fire pixels from MODIS thermal anomaly layers
// (MOD14A1/MYD14A1 FireMask) as point detections.
package fire

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/wildfire-lab/firetour/internal/modis"
	"github.com/wildfire-lab/firetour/internal/raster"
)

// DefaultThreshold is the lowest FireMask class that is a fire pixel.
const DefaultThreshold = 7

// Confidence is the detection confidence encoded in the FireMask class.
type Confidence string

const (
	ConfidenceLow     Confidence = "low"
	ConfidenceNominal Confidence = "nominal"
	ConfidenceHigh    Confidence = "high"
	ConfidenceUnknown Confidence = ""
)

// ConfidenceOf maps a FireMask class to its confidence.
func ConfidenceOf(class int) Confidence {
	switch class {
	case 7:
		return ConfidenceLow
	case 8:
		return ConfidenceNominal
	case 9:
		return ConfidenceHigh
	default:
		return ConfidenceUnknown
	}
}

// Detection is one fire pixel on one day.
type Detection struct {
	Lat        float64
	Lon        float64
	Value      int
	Date       time.Time
	Confidence Confidence
	Tile       modis.Tile
	Satellite  string
	Source     string
}

// Options controls which pixels become detections.
type Options struct {
	// Threshold is the lowest class kept. Zero means DefaultThreshold.
	Threshold int
	// BBox drops detections outside it. The zero box keeps everything.
	BBox modis.BBox
}

func (o Options) threshold() int {
	if o.Threshold == 0 {
		return DefaultThreshold
	}
	return o.Threshold
}

// FromLayer returns the fire pixels of every date in layer, ordered by
// date then row-major pixel order. A layer without fires yields an empty,
// non-nil slice.
func FromLayer(layer raster.Layer, opts Options) ([]Detection, error) {
	dates, err := layer.Dates()
	if err != nil {
		return nil, eris.Wrap(err, "fire: layer dates")
	}
	if n := layer.BandCount(); n != len(dates) {
		return nil, eris.Errorf("fire: layer has %d bands for %d dates", n, len(dates))
	}
	gt, err := layer.GeoTransform()
	if err != nil {
		return nil, eris.Wrap(err, "fire: layer geotransform")
	}
	width, _ := layer.Size()
	threshold := opts.threshold()

	out := []Detection{}
	for i, date := range dates {
		band, err := layer.Band(i)
		if err != nil {
			return nil, eris.Wrapf(err, "fire: read band for %s", date.Format(time.DateOnly))
		}
		for idx, v := range band {
			class := int(v)
			if class < threshold {
				continue
			}
			row, col := idx/width, idx%width
			lat, lon := PixelLatLon(gt, row, col)
			if !opts.BBox.IsZero() && !opts.BBox.Contains(lat, lon) {
				continue
			}
			out = append(out, Detection{
				Lat:        lat,
				Lon:        lon,
				Value:      class,
				Date:       date,
				Confidence: ConfidenceOf(class),
			})
		}
	}
	return out, nil
}

// PixelLatLon returns the lat/lon in degrees of the centre of pixel
// (row, col) of a sinusoidal raster with geotransform gt.
func PixelLatLon(gt [6]float64, row, col int) (lat, lon float64) {
	c, r := float64(col)+0.5, float64(row)+0.5
	x := gt[0] + c*gt[1] + r*gt[2]
	y := gt[3] + c*gt[4] + r*gt[5]
	return modis.SinusoidalToDegrees(x, y)
}
