// Package density estimates point densities for fire detections and
// tourism points: Gaussian KDE surfaces, H3 hexagon counts and the
// correlation between the two layers.
package density

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// Point is a location in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Grid is a regular lon/lat grid of NX columns and NY rows spanning the
// box. Cell centres sit on the box edges.
type Grid struct {
	MinLon, MaxLon float64
	MinLat, MaxLat float64
	NX, NY         int
}

// DefaultGrid covers Galicia and its surroundings.
func DefaultGrid() Grid {
	return Grid{MinLon: -10, MaxLon: 0, MinLat: 41, MaxLat: 44.5, NX: 200, NY: 70}
}

// Validate reports an empty or inverted grid.
func (g Grid) Validate() error {
	if g.NX < 2 || g.NY < 2 {
		return eris.Errorf("density: grid needs at least 2x2 cells, got %dx%d", g.NX, g.NY)
	}
	if g.MinLon >= g.MaxLon || g.MinLat >= g.MaxLat {
		return eris.New("density: grid extent is empty")
	}
	return nil
}

// Lon returns the longitude of column i.
func (g Grid) Lon(i int) float64 {
	return g.MinLon + float64(i)*(g.MaxLon-g.MinLon)/float64(g.NX-1)
}

// Lat returns the latitude of row j.
func (g Grid) Lat(j int) float64 {
	return g.MinLat + float64(j)*(g.MaxLat-g.MinLat)/float64(g.NY-1)
}

// Surface holds one value per grid node, row-major from the southern row.
// It satisfies gonum plotter.GridXYZ.
type Surface struct {
	Grid   Grid
	Values []float64
}

// Dims returns the number of columns and rows.
func (s Surface) Dims() (c, r int) { return s.Grid.NX, s.Grid.NY }

// Z returns the value at column c, row r.
func (s Surface) Z(c, r int) float64 { return s.Values[r*s.Grid.NX+c] }

// X returns the longitude of column c.
func (s Surface) X(c int) float64 { return s.Grid.Lon(c) }

// Y returns the latitude of row r.
func (s Surface) Y(r int) float64 { return s.Grid.Lat(r) }

// Max returns the largest value.
func (s Surface) Max() float64 {
	m := 0.0
	for _, v := range s.Values {
		m = math.Max(m, v)
	}
	return m
}

// ScottBandwidth is Scott's rule for a two-dimensional Gaussian kernel:
// sigma * n^(-1/6).
func ScottBandwidth(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	return stat.StdDev(values, nil) * math.Pow(n, -1.0/6)
}

// KDE evaluates a Gaussian kernel density of points on g. A non-positive
// bandwidth (degrees) picks one per axis with Scott's rule. The surface
// integrates to one over the plane.
func KDE(points []Point, g Grid, bandwidth float64) (Surface, error) {
	if err := g.Validate(); err != nil {
		return Surface{}, err
	}
	if len(points) == 0 {
		return Surface{}, eris.New("density: no points")
	}

	hx, hy := bandwidth, bandwidth
	if bandwidth <= 0 {
		lons := make([]float64, len(points))
		lats := make([]float64, len(points))
		for i, p := range points {
			lons[i], lats[i] = p.Lon, p.Lat
		}
		hx, hy = ScottBandwidth(lons), ScottBandwidth(lats)
		if hx == 0 || hy == 0 {
			return Surface{}, eris.New("density: cannot pick a bandwidth for coincident points")
		}
	}

	norm := 1 / (2 * math.Pi * hx * hy * float64(len(points)))
	s := Surface{Grid: g, Values: make([]float64, g.NX*g.NY)}
	for j := range g.NY {
		lat := g.Lat(j)
		for i := range g.NX {
			lon := g.Lon(i)
			sum := 0.0
			for _, p := range points {
				dx := (lon - p.Lon) / hx
				dy := (lat - p.Lat) / hy
				sum += math.Exp(-0.5 * (dx*dx + dy*dy))
			}
			s.Values[j*g.NX+i] = sum * norm
		}
	}
	return s, nil
}
