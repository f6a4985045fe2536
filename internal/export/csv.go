package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wildfire-lab/firetour/internal/fire"
	"github.com/wildfire-lab/firetour/internal/tourism"
)

var (
	fireHeader = []string{"lat", "lon", "fire_val", "date"}
	poiHeader  = []string{"lat", "lon", "type", "kind", "name"}
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FiresCSV writes one row per detection under a lat,lon,fire_val,date header.
func FiresCSV(w io.Writer, fires []fire.Detection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fireHeader); err != nil {
		return eris.Wrap(err, "export: write fire header")
	}
	for _, d := range fires {
		rec := []string{formatFloat(d.Lat), formatFloat(d.Lon), strconv.Itoa(d.Value), d.Date.Format(time.DateOnly)}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "export: write fire row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush fires csv")
}

// POIsCSV writes one row per POI under a lat,lon,type,kind,name header.
func POIsCSV(w io.Writer, pois []tourism.POI) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(poiHeader); err != nil {
		return eris.Wrap(err, "export: write poi header")
	}
	for _, p := range pois {
		rec := []string{formatFloat(p.Lat), formatFloat(p.Lon), p.Type, p.Kind, p.Name}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "export: write poi row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush pois csv")
}
