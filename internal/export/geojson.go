package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/wildfire-lab/firetour/internal/fire"
	"github.com/wildfire-lab/firetour/internal/tourism"
)

// FireFeatures converts detections to a GeoJSON feature collection.
func FireFeatures(fires []fire.Detection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, d := range fires {
		f := geojson.NewFeature(orb.Point{d.Lon, d.Lat})
		f.Properties["fire_val"] = d.Value
		f.Properties["date"] = d.Date.Format(time.DateOnly)
		if d.Confidence != fire.ConfidenceUnknown {
			f.Properties["confidence"] = string(d.Confidence)
		}
		if d.Satellite != "" {
			f.Properties["satellite"] = d.Satellite
			f.Properties["tile"] = d.Tile.String()
		}
		fc.Append(f)
	}
	return fc
}

// POIFeatures converts POIs to a GeoJSON feature collection.
func POIFeatures(pois []tourism.POI) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range pois {
		f := geojson.NewFeature(p.Point())
		f.ID = p.ID
		f.Properties["type"] = p.Type
		f.Properties["kind"] = p.Kind
		if p.Name != "" {
			f.Properties["name"] = p.Name
		}
		fc.Append(f)
	}
	return fc
}

// FiresGeoJSON writes detections as a FeatureCollection of points.
func FiresGeoJSON(w io.Writer, fires []fire.Detection) error {
	return writeCollection(w, FireFeatures(fires))
}

// POIsGeoJSON writes POIs as a FeatureCollection of points.
func POIsGeoJSON(w io.Writer, pois []tourism.POI) error {
	return writeCollection(w, POIFeatures(pois))
}

func writeCollection(w io.Writer, fc *geojson.FeatureCollection) error {
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	return nil
}
