// Package tourism extracts tourism points of interest from OpenStreetMap
// extracts and measures tourist activity around a location.
package tourism

import (
	"context"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
	"go.uber.org/zap"
)

// Tag is the OSM key that marks tourism features.
const Tag = "tourism"

// DefaultRadiusKm is the search radius of Activity.
const DefaultRadiusKm = 5.0

// POI is a tourism feature reduced to a point. Ways are placed at the mean
// of their node locations.
type POI struct {
	ID   string
	Type string
	Lat  float64
	Lon  float64
	Kind string
	Name string
}

// Point returns the POI location as an orb point (lon, lat).
func (p POI) Point() orb.Point { return orb.Point{p.Lon, p.Lat} }

// Result is the outcome of Load.
type Result struct {
	Points []POI
	// Uncounted is the number of tourism relations, and of tourism ways
	// whose nodes could not be located.
	Uncounted int
	// Kinds counts every tourism value seen, including filtered ones.
	Kinds map[string]int
}

// SortedKinds returns the tourism values seen, alphabetically.
func (r Result) SortedKinds() []string {
	kinds := make([]string, 0, len(r.Kinds))
	for k := range r.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Options filters Load.
type Options struct {
	// Kinds keeps only these tourism values. Empty keeps all.
	Kinds []string
	// SkipWays ignores tourism ways, which avoids the second pass.
	SkipWays bool
}

// collector is the first pass: tourism nodes become points, tourism ways
// are remembered until their node locations are known.
type collector struct {
	kinds   map[string]bool
	skipWay bool
	res     Result
	ways    []*osm.Way
	need    map[osm.NodeID]orb.Point
}

func newCollector(opts Options) *collector {
	c := &collector{
		skipWay: opts.SkipWays,
		res:     Result{Points: []POI{}, Kinds: make(map[string]int)},
		need:    make(map[osm.NodeID]orb.Point),
	}
	if len(opts.Kinds) > 0 {
		c.kinds = make(map[string]bool, len(opts.Kinds))
		for _, k := range opts.Kinds {
			c.kinds[k] = true
		}
	}
	return c
}

// accept records kind and reports whether it passes the filter.
func (c *collector) accept(kind string) bool {
	if kind == "" {
		return false
	}
	c.res.Kinds[kind]++
	return c.kinds == nil || c.kinds[kind]
}

func (c *collector) HandleNode(n *osm.Node) error {
	kind := n.Tags.Find(Tag)
	if !c.accept(kind) {
		return nil
	}
	c.res.Points = append(c.res.Points, POI{
		ID:   fmt.Sprintf("node/%d", n.ID),
		Type: "node",
		Lat:  n.Lat,
		Lon:  n.Lon,
		Kind: kind,
		Name: n.Tags.Find("name"),
	})
	return nil
}

func (c *collector) HandleWay(w *osm.Way) error {
	kind := w.Tags.Find(Tag)
	if !c.accept(kind) {
		return nil
	}
	if c.skipWay {
		c.res.Uncounted++
		return nil
	}
	c.ways = append(c.ways, w)
	for _, wn := range w.Nodes {
		if wn.Lat == 0 && wn.Lon == 0 {
			c.need[wn.ID] = orb.Point{}
		}
	}
	return nil
}

func (c *collector) HandleRelation(r *osm.Relation) error {
	if c.accept(r.Tags.Find(Tag)) {
		c.res.Uncounted++
	}
	return nil
}

// locator is the second pass: it fills in the locations of way nodes.
type locator struct {
	need  map[osm.NodeID]orb.Point
	found map[osm.NodeID]bool
}

func (l *locator) HandleNode(n *osm.Node) error {
	if _, ok := l.need[n.ID]; ok {
		l.need[n.ID] = orb.Point{n.Lon, n.Lat}
		l.found[n.ID] = true
	}
	return nil
}

func (l *locator) HandleWay(*osm.Way) error           { return nil }
func (l *locator) HandleRelation(*osm.Relation) error { return nil }

// Load reads the tourism features of an OSM file. Tourism ways whose node
// locations are not embedded in the file cost a second pass over its nodes.
func Load(ctx context.Context, path string, opts Options) (Result, error) {
	log := zap.L().With(zap.String("component", "tourism"), zap.String("file", path))

	c := newCollector(opts)
	if err := Scan(ctx, path, c); err != nil {
		return Result{}, err
	}

	found := make(map[osm.NodeID]bool, len(c.need))
	if len(c.need) > 0 {
		log.Debug("tourism: locating way nodes", zap.Int("nodes", len(c.need)))
		l := &locator{need: c.need, found: found}
		if err := scan(ctx, path, scanFilter{skipWays: true, skipRelations: true}, l); err != nil {
			return Result{}, err
		}
	}

	for _, w := range c.ways {
		pt, ok := wayCentroid(w, c.need, found)
		if !ok {
			c.res.Uncounted++
			continue
		}
		c.res.Points = append(c.res.Points, POI{
			ID:   fmt.Sprintf("way/%d", w.ID),
			Type: "way",
			Lat:  pt.Lat(),
			Lon:  pt.Lon(),
			Kind: w.Tags.Find(Tag),
			Name: w.Tags.Find("name"),
		})
	}

	log.Info("tourism: loaded points",
		zap.Int("points", len(c.res.Points)),
		zap.Int("uncounted", c.res.Uncounted),
		zap.Int("kinds", len(c.res.Kinds)),
	)
	return c.res, nil
}

// wayCentroid averages the distinct node locations of w. A closed way
// repeats its first node, which is counted once.
func wayCentroid(w *osm.Way, located map[osm.NodeID]orb.Point, found map[osm.NodeID]bool) (orb.Point, bool) {
	nodes := w.Nodes
	if n := len(nodes); n > 1 && nodes[0].ID == nodes[n-1].ID {
		nodes = nodes[:n-1]
	}
	var sumLon, sumLat float64
	count := 0
	for _, wn := range nodes {
		pt := orb.Point{wn.Lon, wn.Lat}
		if wn.Lat == 0 && wn.Lon == 0 {
			if !found[wn.ID] {
				return orb.Point{}, false
			}
			pt = located[wn.ID]
		}
		sumLon += pt.Lon()
		sumLat += pt.Lat()
		count++
	}
	if count == 0 {
		return orb.Point{}, false
	}
	return orb.Point{sumLon / float64(count), sumLat / float64(count)}, true
}

// Activity counts the points within radiusKm (great-circle) of lat, lon.
// A non-positive radius uses DefaultRadiusKm.
func Activity(points []POI, lat, lon, radiusKm float64) int {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	center := orb.Point{lon, lat}
	limit := radiusKm * 1000
	n := 0
	for _, p := range points {
		if geo.DistanceHaversine(center, p.Point()) <= limit {
			n++
		}
	}
	return n
}
