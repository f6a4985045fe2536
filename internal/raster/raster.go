// Package raster reads HDF4 and GeoTIFF layers through GDAL.
package raster

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
)

// DatesKey is the metadata item that lists the acquisition date of each
// band of a multi-day MODIS layer.
const DatesKey = "Dates"

// Layer is a single raster grid with one band per date.
type Layer interface {
	// Size returns the grid width and height in pixels.
	Size() (width, height int)
	// GeoTransform maps pixel (col,row) to projected coordinates.
	GeoTransform() ([6]float64, error)
	// Dates returns the date of each band, in band order.
	Dates() ([]time.Time, error)
	// BandCount returns the number of bands.
	BandCount() int
	// Band reads band i (zero-based) row-major.
	Band(i int) ([]float64, error)
	Close() error
}

var registerOnce sync.Once

func register() {
	registerOnce.Do(godal.RegisterAll)
}

// Dataset is a Layer backed by a GDAL dataset.
type Dataset struct {
	ds   *godal.Dataset
	name string
}

// Open opens a raster file or subdataset name for reading.
func Open(name string) (*Dataset, error) {
	register()
	ds, err := godal.Open(name)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", name)
	}
	return &Dataset{ds: ds, name: name}, nil
}

// Name returns the name the dataset was opened with.
func (d *Dataset) Name() string { return d.name }

// Size returns the grid width and height in pixels.
func (d *Dataset) Size() (int, int) {
	st := d.ds.Structure()
	return st.SizeX, st.SizeY
}

// BandCount returns the number of bands.
func (d *Dataset) BandCount() int {
	return d.ds.Structure().NBands
}

// GeoTransform returns the affine pixel to projected coordinate transform.
func (d *Dataset) GeoTransform() ([6]float64, error) {
	gt, err := d.ds.GeoTransform()
	if err != nil {
		return gt, eris.Wrapf(err, "raster: geotransform of %s", d.name)
	}
	return gt, nil
}

// Dates parses the Dates metadata item.
func (d *Dataset) Dates() ([]time.Time, error) {
	raw := d.ds.Metadata(DatesKey)
	if raw == "" {
		return nil, eris.Errorf("raster: %s has no %s metadata", d.name, DatesKey)
	}
	return ParseDates(raw)
}

// Band reads band i into a row-major slice.
func (d *Dataset) Band(i int) ([]float64, error) {
	bands := d.ds.Bands()
	if i < 0 || i >= len(bands) {
		return nil, eris.Errorf("raster: band %d out of range [0,%d)", i, len(bands))
	}
	w, h := d.Size()
	buf := make([]float64, w*h)
	if err := bands[i].Read(0, 0, buf, w, h); err != nil {
		return nil, eris.Wrapf(err, "raster: read band %d of %s", i, d.name)
	}
	return buf, nil
}

// Close releases the GDAL handle.
func (d *Dataset) Close() error {
	return eris.Wrap(d.ds.Close(), "raster: close")
}

// ParseDates parses a space separated list of YYYY-MM-DD dates.
func ParseDates(raw string) ([]time.Time, error) {
	fields := strings.Fields(raw)
	dates := make([]time.Time, len(fields))
	for i, f := range fields {
		t, err := time.Parse(time.DateOnly, f)
		if err != nil {
			return nil, eris.Wrapf(err, "raster: parse date %q", f)
		}
		dates[i] = t
	}
	return dates, nil
}

// Subdatasets lists the subdataset names of a container file such as an
// HDF4 granule, in file order.
func Subdatasets(path string) ([]string, error) {
	register()
	ds, err := godal.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer ds.Close() //nolint:errcheck

	return subdatasetNames(ds.Metadatas(godal.Domain("SUBDATASETS"))), nil
}

// Subdataset returns the name of the i-th (zero-based) subdataset of path.
func Subdataset(path string, i int) (string, error) {
	names, err := Subdatasets(path)
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(names) {
		return "", eris.Errorf("raster: %s has %d subdatasets, want index %d", path, len(names), i)
	}
	return names[i], nil
}

func subdatasetNames(md map[string]string) []string {
	var names []string
	for n := 1; ; n++ {
		name, ok := md[fmt.Sprintf("SUBDATASET_%d_NAME", n)]
		if !ok {
			return names
		}
		names = append(names, name)
	}
}

// OpenFireMask opens the first subdataset of a MODIS fire granule, which
// holds the FireMask layer.
func OpenFireMask(path string) (Layer, error) {
	name, err := Subdataset(path, 0)
	if err != nil {
		return nil, err
	}
	return Open(name)
}
