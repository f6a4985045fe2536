package modis

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
)

// BBox is a latitude/longitude box in degrees.
type BBox struct {
	MinLon float64 `json:"min_lon" mapstructure:"min_lon" yaml:"min_lon"`
	MinLat float64 `json:"min_lat" mapstructure:"min_lat" yaml:"min_lat"`
	MaxLon float64 `json:"max_lon" mapstructure:"max_lon" yaml:"max_lon"`
	MaxLat float64 `json:"max_lat" mapstructure:"max_lat" yaml:"max_lat"`
}

// IsZero reports whether no box was set.
func (b BBox) IsZero() bool {
	return b == BBox{}
}

// Validate checks ordering and range of the box.
func (b BBox) Validate() error {
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return eris.Errorf("modis: bbox min exceeds max (%+v)", b)
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
		return eris.Errorf("modis: bbox out of range (%+v)", b)
	}
	return nil
}

// Contains reports whether the point lies inside the box, edges included.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Tile identifies a MODIS tile.
type Tile struct {
	H int `json:"h"`
	V int `json:"v"`
}

// String formats the tile as in NASA file names, e.g. h17v04.
func (t Tile) String() string { return fmt.Sprintf("h%02dv%02d", t.H, t.V) }

// TileSet is a set of tiles.
type TileSet map[Tile]struct{}

// Has reports whether the set contains h/v. A nil set contains every tile.
func (s TileSet) Has(h, v int) bool {
	if s == nil {
		return true
	}
	_, ok := s[Tile{H: h, V: v}]
	return ok
}

// Sorted returns the tiles ordered by v then h.
func (s TileSet) Sorted() []Tile {
	out := make([]Tile, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].V != out[j].V {
			return out[i].V < out[j].V
		}
		return out[i].H < out[j].H
	})
	return out
}

// bboxSamples is the number of samples per box edge. Sinusoidal tile edges
// are curved in lat/lon, so corners alone miss tiles on wide boxes.
const bboxSamples = 64

// TilesForBBox returns the tiles that intersect a latitude/longitude box.
func TilesForBBox(b BBox) (TileSet, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	set := make(TileSet)
	for i := 0; i <= bboxSamples; i++ {
		lat := b.MinLat + (b.MaxLat-b.MinLat)*float64(i)/bboxSamples
		for j := 0; j <= bboxSamples; j++ {
			lon := b.MinLon + (b.MaxLon-b.MinLon)*float64(j)/bboxSamples
			c, err := ForwardDegrees(lat, lon, Res1km)
			if err != nil {
				return nil, err
			}
			c.H = min(max(c.H, 0), MaxH)
			c.V = min(max(c.V, 0), MaxV)
			set[Tile{H: c.H, V: c.V}] = struct{}{}
		}
	}
	return set, nil
}
