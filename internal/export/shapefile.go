package export

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/wildfire-lab/firetour/internal/fire"
	"github.com/wildfire-lab/firetour/internal/tourism"
)

// dBase field names are limited to 10 characters.
var (
	fireFields = []shp.Field{
		shp.NumberField("FIRE_VAL", 2),
		shp.StringField("DATE", 10),
		shp.StringField("CONF", 8),
		shp.StringField("TILE", 6),
		shp.StringField("SAT", 3),
	}
	poiFields = []shp.Field{
		shp.StringField("OSM_ID", 24),
		shp.StringField("TYPE", 8),
		shp.StringField("KIND", 32),
		shp.StringField("NAME", 120),
	}
)

// FiresShapefile writes detections as a point shapefile (.shp, .shx, .dbf)
// in WGS84 lon/lat.
func FiresShapefile(path string, fires []fire.Detection) error {
	rows := make([][]any, len(fires))
	pts := make([]shp.Point, len(fires))
	for i, d := range fires {
		pts[i] = shp.Point{X: d.Lon, Y: d.Lat}
		rows[i] = []any{d.Value, d.Date.Format(time.DateOnly), string(d.Confidence), d.Tile.String(), d.Satellite}
	}
	return writePoints(path, fireFields, pts, rows)
}

// POIsShapefile writes POIs as a point shapefile in WGS84 lon/lat.
func POIsShapefile(path string, pois []tourism.POI) error {
	rows := make([][]any, len(pois))
	pts := make([]shp.Point, len(pois))
	for i, p := range pois {
		pts[i] = shp.Point{X: p.Lon, Y: p.Lat}
		rows[i] = []any{p.ID, p.Type, p.Kind, p.Name}
	}
	return writePoints(path, poiFields, pts, rows)
}

// writePoints writes a point shapefile. String attributes are clipped to
// their field width in bytes. On failure no partial files are left behind.
func writePoints(path string, fields []shp.Field, pts []shp.Point, rows [][]any) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", path)
	}
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer func() {
		w.Close()
		if err != nil {
			removeShapefile(path)
		}
	}()

	if err := w.SetFields(fields); err != nil {
		return eris.Wrapf(err, "export: set fields of %s", path)
	}
	for i := range pts {
		n := int(w.Write(&pts[i]))
		for j, v := range rows[i] {
			if s, ok := v.(string); ok {
				v = clipBytes(s, int(fields[j].Size))
			}
			if err := w.WriteAttribute(n, j, v); err != nil {
				return eris.Wrapf(err, "export: write attribute %d of record %d", j, n)
			}
		}
	}
	return nil
}

func removeShapefile(path string) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		_ = os.Remove(base + ext)
	}
}

// clipBytes shortens s to at most n bytes without splitting a UTF-8
// sequence.
func clipBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
