package density

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/uber/h3-go/v4"
	"gonum.org/v1/gonum/stat"
)

// DefaultResolution is the H3 resolution used for binning (~36 km² cells).
const DefaultResolution = 6

// HexBin counts points per H3 cell.
func HexBin(points []Point, resolution int) (map[h3.Cell]int, error) {
	counts := make(map[h3.Cell]int)
	for _, p := range points {
		c, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), resolution)
		if err != nil {
			return nil, eris.Wrapf(err, "density: h3 cell for (%f, %f)", p.Lat, p.Lon)
		}
		counts[c]++
	}
	return counts, nil
}

// CellCount is one row of the correlation table.
type CellCount struct {
	Cell  string  `json:"cell"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Fires int     `json:"fires"`
	POIs  int     `json:"pois"`
}

// Correlation is the result of Correlate.
type Correlation struct {
	// R is the Pearson correlation of per-cell fire and POI counts.
	R          float64     `json:"r"`
	Resolution int         `json:"resolution"`
	Cells      []CellCount `json:"cells"`
}

// Table bins fires and pois into H3 cells and returns one row per cell that
// holds at least one of either, sorted by cell index.
func Table(fires, pois []Point, resolution int) ([]CellCount, error) {
	fc, err := HexBin(fires, resolution)
	if err != nil {
		return nil, err
	}
	pc, err := HexBin(pois, resolution)
	if err != nil {
		return nil, err
	}

	union := make(map[h3.Cell]struct{}, len(fc)+len(pc))
	for c := range fc {
		union[c] = struct{}{}
	}
	for c := range pc {
		union[c] = struct{}{}
	}

	cells := make([]CellCount, 0, len(union))
	for c := range union {
		ll, err := c.LatLng()
		if err != nil {
			return nil, eris.Wrap(err, "density: cell centre")
		}
		cells = append(cells, CellCount{
			Cell:  c.String(),
			Lat:   ll.Lat,
			Lon:   ll.Lng,
			Fires: fc[c],
			POIs:  pc[c],
		})
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Cell < cells[j].Cell })
	return cells, nil
}

// Correlate correlates per-cell fire and POI counts over every cell of
// Table.
func Correlate(fires, pois []Point, resolution int) (Correlation, error) {
	cells, err := Table(fires, pois, resolution)
	if err != nil {
		return Correlation{}, err
	}
	if len(cells) < 2 {
		return Correlation{}, eris.Errorf("density: need at least 2 occupied cells, got %d", len(cells))
	}

	x := make([]float64, len(cells))
	y := make([]float64, len(cells))
	for i, cc := range cells {
		x[i], y[i] = float64(cc.Fires), float64(cc.POIs)
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return Correlation{}, eris.New("density: correlation undefined, fire or POI counts are constant")
	}
	return Correlation{
		R:          r,
		Resolution: resolution,
		Cells:      cells,
	}, nil
}
