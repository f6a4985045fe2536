package tourism

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/rotisserie/eris"
)

// Handler receives the objects of an OSM file in file order.
type Handler interface {
	HandleNode(node *osm.Node) error
	HandleWay(way *osm.Way) error
	HandleRelation(relation *osm.Relation) error
}

// scanFilter skips object kinds a pass does not need. The PBF decoder
// honours it natively; for XML it is applied after decoding.
type scanFilter struct {
	skipNodes, skipWays, skipRelations bool
}

// Scan feeds every object of an .osm.pbf, .pbf, .osm or .xml file to h.
func Scan(ctx context.Context, path string, h Handler) error {
	return scan(ctx, path, scanFilter{}, h)
}

func scan(ctx context.Context, path string, filter scanFilter, h Handler) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrap(err, "tourism: open osm file")
	}
	defer f.Close() //nolint:errcheck

	var scanner osm.Scanner
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pbf":
		s := osmpbf.New(ctx, f, runtime.GOMAXPROCS(0))
		s.SkipNodes = filter.skipNodes
		s.SkipWays = filter.skipWays
		s.SkipRelations = filter.skipRelations
		scanner = s
	case ".osm", ".xml":
		scanner = osmxml.New(ctx, f)
	default:
		return eris.Errorf("tourism: unsupported osm file extension %q", ext)
	}
	defer scanner.Close() //nolint:errcheck

	for scanner.Scan() {
		var err error
		switch o := scanner.Object().(type) {
		case *osm.Node:
			if !filter.skipNodes {
				err = h.HandleNode(o)
			}
		case *osm.Way:
			if !filter.skipWays {
				err = h.HandleWay(o)
			}
		case *osm.Relation:
			if !filter.skipRelations {
				err = h.HandleRelation(o)
			}
		}
		if err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return eris.Wrapf(err, "tourism: scan %s", path)
	}
	return nil
}
