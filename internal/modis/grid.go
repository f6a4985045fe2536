// Package modis implements the MODIS sinusoidal tile grid and the naming
// conventions of MODIS HDF products.
package modis

import (
	"math"

	"github.com/rotisserie/eris"
)

// Grid constants from the MODIS Collection 6 active fire user guide.
const (
	// EarthRadius is the radius in metres of the sphere the grid is defined on.
	EarthRadius = 6371007.181
	// TileSize is the height and width of a tile in the projection plane, in metres.
	TileSize = 1111950.0
	// XMin is the western limit of the projection plane.
	XMin = -20015109.0
	// YMax is the northern limit of the projection plane.
	YMax = 10007555.0
	// CellSize is the size of a nominal 1-km cell (TileSize/1200).
	CellSize = 926.62543305

	// MaxV and MaxH are the largest vertical and horizontal tile indices.
	MaxV = 17
	MaxH = 35
)

// Resolution is the product resolution factor: cells per 1-km cell edge.
type Resolution int

const (
	Res1km  Resolution = 1
	Res500m Resolution = 2
	Res250m Resolution = 4
)

// Valid reports whether r is one of the MODIS resolutions.
func (r Resolution) Valid() bool {
	return r == Res1km || r == Res500m || r == Res250m
}

// CellSize returns the cell edge length in metres.
func (r Resolution) CellSize() float64 {
	return CellSize / float64(r)
}

// CellsPerTile returns the number of rows (and columns) in a tile.
func (r Resolution) CellsPerTile() int {
	return 1200 * int(r)
}

// ErrInvalidResolution is returned for resolutions other than 1, 2 or 4.
var ErrInvalidResolution = eris.New("modis: resolution must be 1, 2 or 4")

// GridCell addresses one cell of the grid.
type GridCell struct {
	V   int `json:"v"`
	H   int `json:"h"`
	Row int `json:"row"`
	Col int `json:"col"`
}

// Forward maps a location given in radians to its tile and cell.
func Forward(lat, lon float64, res Resolution) (GridCell, error) {
	if !res.Valid() {
		return GridCell{}, ErrInvalidResolution
	}
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return GridCell{}, eris.New("modis: forward: NaN coordinate")
	}
	if math.Abs(lat) > math.Pi/2 || math.Abs(lon) > math.Pi {
		return GridCell{}, eris.Errorf("modis: forward: coordinate out of range (lat=%g, lon=%g)", lat, lon)
	}

	w := res.CellSize()
	x, y := LatLonToSinusoidal(lat, lon)

	h := int(math.Floor((x - XMin) / TileSize))
	v := int(math.Floor((YMax - y) / TileSize))

	i := int(math.Floor(floorMod(YMax-y, TileSize)/w - 0.5))
	j := int(math.Floor(floorMod(x-XMin, TileSize)/w - 0.5))

	return GridCell{V: v, H: h, Row: i, Col: j}, nil
}

// ForwardDegrees is Forward for coordinates given in degrees.
func ForwardDegrees(latDeg, lonDeg float64, res Resolution) (GridCell, error) {
	return Forward(deg2rad(latDeg), deg2rad(lonDeg), res)
}

// Inverse returns the latitude and longitude, in degrees, of the centre of a cell.
func Inverse(c GridCell, res Resolution) (lat, lon float64, err error) {
	if err := validateCell(c, res); err != nil {
		return 0, 0, err
	}
	lat, lon = inverse(c, res)
	return lat, lon, nil
}

func inverse(c GridCell, res Resolution) (float64, float64) {
	w := res.CellSize()
	x := (float64(c.Col)+0.5)*w + float64(c.H)*TileSize + XMin
	y := YMax - (float64(c.Row)+0.5)*w - float64(c.V)*TileSize
	latRad, lonRad := SinusoidalToLatLon(x, y)
	return rad2deg(latRad), rad2deg(lonRad)
}

// InverseMany maps parallel slices of tile and cell indices. Each slice has
// either the common length n or length one, in which case its single value
// is used for every element.
func InverseMany(vs, hs, rows, cols []int, res Resolution) (lats, lons []float64, err error) {
	n, err := broadcastLen(len(vs), len(hs), len(rows), len(cols))
	if err != nil {
		return nil, nil, err
	}
	if !res.Valid() {
		return nil, nil, ErrInvalidResolution
	}

	at := func(s []int, i int) int {
		if len(s) == 1 {
			return s[0]
		}
		return s[i]
	}

	lats = make([]float64, n)
	lons = make([]float64, n)
	for i := range n {
		c := GridCell{V: at(vs, i), H: at(hs, i), Row: at(rows, i), Col: at(cols, i)}
		if err := validateCell(c, res); err != nil {
			return nil, nil, eris.Wrapf(err, "modis: inverse element %d", i)
		}
		lats[i], lons[i] = inverse(c, res)
	}
	return lats, lons, nil
}

// LatLonToSinusoidal projects radians onto the sinusoidal plane in metres.
func LatLonToSinusoidal(lat, lon float64) (x, y float64) {
	return EarthRadius * lon * math.Cos(lat), EarthRadius * lat
}

// SinusoidalToLatLon is the inverse of LatLonToSinusoidal. Results are in radians.
func SinusoidalToLatLon(x, y float64) (lat, lon float64) {
	lat = y / EarthRadius
	return lat, x / (EarthRadius * math.Cos(lat))
}

// SinusoidalToDegrees is SinusoidalToLatLon with results in degrees.
func SinusoidalToDegrees(x, y float64) (latDeg, lonDeg float64) {
	lat, lon := SinusoidalToLatLon(x, y)
	return rad2deg(lat), rad2deg(lon)
}

func validateCell(c GridCell, res Resolution) error {
	if !res.Valid() {
		return ErrInvalidResolution
	}
	if c.V < 0 || c.V > MaxV {
		return eris.Errorf("modis: tile v %d out of range [0, %d]", c.V, MaxV)
	}
	if c.H < 0 || c.H > MaxH {
		return eris.Errorf("modis: tile h %d out of range [0, %d]", c.H, MaxH)
	}
	n := res.CellsPerTile()
	if c.Row < 0 || c.Row >= n {
		return eris.Errorf("modis: row %d out of range [0, %d)", c.Row, n)
	}
	if c.Col < 0 || c.Col >= n {
		return eris.Errorf("modis: col %d out of range [0, %d)", c.Col, n)
	}
	return nil
}

func broadcastLen(lens ...int) (int, error) {
	n := 1
	for _, l := range lens {
		if l == 0 {
			return 0, eris.New("modis: empty input slice")
		}
		if l > n {
			n = l
		}
	}
	for _, l := range lens {
		if l != 1 && l != n {
			return 0, eris.Errorf("modis: slice lengths must be 1 or %d, got %d", n, l)
		}
	}
	return n, nil
}

// floorMod is the modulo with the sign of the divisor.
func floorMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m < 0 {
		m += b
	}
	return m
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
