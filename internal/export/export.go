// Package export writes fire detections and tourism POIs to CSV, GeoJSON,
// ESRI shapefile and XLSX.
package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/wildfire-lab/firetour/internal/fire"
	"github.com/wildfire-lab/firetour/internal/tourism"
)

// Format is an output file format.
type Format string

const (
	CSV       Format = "csv"
	GeoJSON   Format = "geojson"
	Shapefile Format = "shp"
	XLSX      Format = "xlsx"
)

// Formats lists the supported formats.
var Formats = []Format{CSV, GeoJSON, Shapefile, XLSX}

// FormatFor picks a format from the extension of path.
func FormatFor(path string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "csv":
		return CSV, nil
	case "geojson", "json":
		return GeoJSON, nil
	case "shp":
		return Shapefile, nil
	case "xlsx":
		return XLSX, nil
	}
	return "", eris.Errorf("export: unsupported extension %q", filepath.Ext(path))
}

// Fires writes detections to path in the format its extension names.
func Fires(path string, fires []fire.Detection) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	if format == Shapefile {
		return FiresShapefile(path, fires)
	}
	return create(path, func(f *os.File) error {
		switch format {
		case CSV:
			return FiresCSV(f, fires)
		case GeoJSON:
			return FiresGeoJSON(f, fires)
		default:
			if fires == nil {
				fires = []fire.Detection{}
			}
			return Workbook(f, fires, nil)
		}
	})
}

// POIs writes tourism points to path in the format its extension names.
func POIs(path string, pois []tourism.POI) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	if format == Shapefile {
		return POIsShapefile(path, pois)
	}
	return create(path, func(f *os.File) error {
		switch format {
		case CSV:
			return POIsCSV(f, pois)
		case GeoJSON:
			return POIsGeoJSON(f, pois)
		default:
			if pois == nil {
				pois = []tourism.POI{}
			}
			return Workbook(f, nil, pois)
		}
	})
}

func create(path string, write func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
