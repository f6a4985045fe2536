package tourism

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

type pbfNode struct {
	id       int64
	lat, lon float64
	tags     []string // key, value, key, value...
}

type pbfWay struct {
	id   int64
	refs []int64
	tags []string
}

// writePBF encodes nodes and ways as an uncompressed .osm.pbf with one
// header block and one data block. Nodes are dense; ways carry only refs.
func writePBF(t *testing.T, nodes []pbfNode, ways []pbfWay) string {
	t.Helper()

	strs := []string{""}
	index := map[string]uint64{"": 0}
	intern := func(s string) uint64 {
		if i, ok := index[s]; ok {
			return i
		}
		index[s] = uint64(len(strs))
		strs = append(strs, s)
		return index[s]
	}

	var ids, lats, lons, keyvals []byte
	var prevID, prevLat, prevLon int64
	for _, n := range nodes {
		// default granularity is 100 nanodegrees
		lat := int64(math.Round(n.lat * 1e7))
		lon := int64(math.Round(n.lon * 1e7))
		ids = protowire.AppendVarint(ids, protowire.EncodeZigZag(n.id-prevID))
		lats = protowire.AppendVarint(lats, protowire.EncodeZigZag(lat-prevLat))
		lons = protowire.AppendVarint(lons, protowire.EncodeZigZag(lon-prevLon))
		prevID, prevLat, prevLon = n.id, lat, lon
		for i := 0; i+1 < len(n.tags); i += 2 {
			keyvals = protowire.AppendVarint(keyvals, intern(n.tags[i]))
			keyvals = protowire.AppendVarint(keyvals, intern(n.tags[i+1]))
		}
		keyvals = protowire.AppendVarint(keyvals, 0)
	}
	var dense []byte
	dense = appendField(dense, 1, ids)
	dense = appendField(dense, 8, lats)
	dense = appendField(dense, 9, lons)
	dense = appendField(dense, 10, keyvals)

	var wayGroup []byte
	for _, w := range ways {
		var keys, vals, refs, msg []byte
		for i := 0; i+1 < len(w.tags); i += 2 {
			keys = protowire.AppendVarint(keys, intern(w.tags[i]))
			vals = protowire.AppendVarint(vals, intern(w.tags[i+1]))
		}
		var prev int64
		for _, r := range w.refs {
			refs = protowire.AppendVarint(refs, protowire.EncodeZigZag(r-prev))
			prev = r
		}
		msg = protowire.AppendTag(msg, 1, protowire.VarintType)
		msg = protowire.AppendVarint(msg, uint64(w.id))
		msg = appendField(msg, 2, keys)
		msg = appendField(msg, 3, vals)
		msg = appendField(msg, 8, refs)
		wayGroup = appendField(wayGroup, 3, msg)
	}

	var table []byte
	for _, s := range strs {
		table = appendField(table, 1, []byte(s))
	}
	var block []byte
	block = appendField(block, 1, table)
	block = appendField(block, 2, appendField(nil, 2, dense))
	if len(wayGroup) > 0 {
		block = appendField(block, 2, wayGroup)
	}

	var header []byte
	header = appendField(header, 4, []byte("OsmSchema-V0.6"))
	header = appendField(header, 4, []byte("DenseNodes"))

	var file []byte
	file = appendFileBlock(file, "OSMHeader", header)
	file = appendFileBlock(file, "OSMData", block)

	path := filepath.Join(t.TempDir(), "galicia.osm.pbf")
	require.NoError(t, os.WriteFile(path, file, 0o644))
	return path
}

func appendField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendFileBlock(file []byte, kind string, data []byte) []byte {
	var blob []byte
	blob = appendField(blob, 1, data)
	blob = protowire.AppendTag(blob, 2, protowire.VarintType)
	blob = protowire.AppendVarint(blob, uint64(len(data)))

	var hdr []byte
	hdr = appendField(hdr, 1, []byte(kind))
	hdr = protowire.AppendTag(hdr, 3, protowire.VarintType)
	hdr = protowire.AppendVarint(hdr, uint64(len(blob)))

	file = binary.BigEndian.AppendUint32(file, uint32(len(hdr)))
	file = append(file, hdr...)
	return append(file, blob...)
}

func galiciaPBF(t *testing.T) string {
	return writePBF(t,
		[]pbfNode{
			{id: 1, lat: 42.88, lon: -8.545, tags: []string{"tourism", "museum", "name", "Museo do Pobo Galego"}},
			{id: 10, lat: 42.0, lon: -8.0},
			{id: 11, lat: 42.0, lon: -7.9},
			{id: 12, lat: 42.1, lon: -7.9},
			{id: 13, lat: 42.1, lon: -8.0},
		},
		[]pbfWay{
			{id: 100, refs: []int64{10, 11, 12, 13, 10}, tags: []string{"tourism", "camp_site", "name", "Camping"}},
			{id: 102, refs: []int64{11, 12}, tags: []string{"highway", "path"}},
		},
	)
}

func TestLoad_PBF(t *testing.T) {
	res, err := Load(context.Background(), galiciaPBF(t), Options{})
	require.NoError(t, err)

	require.Len(t, res.Points, 2)
	node := res.Points[0]
	assert.Equal(t, "node/1", node.ID)
	assert.Equal(t, "museum", node.Kind)
	assert.Equal(t, "Museo do Pobo Galego", node.Name)
	assert.InDelta(t, 42.88, node.Lat, 1e-7)
	assert.InDelta(t, -8.545, node.Lon, 1e-7)

	// PBF ways carry no node locations, so this one is placed by the
	// second pass over the nodes.
	way := res.Points[1]
	assert.Equal(t, "way/100", way.ID)
	assert.Equal(t, "camp_site", way.Kind)
	assert.InDelta(t, 42.05, way.Lat, 1e-7)
	assert.InDelta(t, -7.95, way.Lon, 1e-7)
	assert.Zero(t, res.Uncounted)
}

func TestScan_PBF(t *testing.T) {
	path := galiciaPBF(t)

	h := &countingHandler{}
	require.NoError(t, Scan(context.Background(), path, h))
	assert.Equal(t, 5, h.nodes)
	assert.Equal(t, 2, h.ways)

	h = &countingHandler{}
	require.NoError(t, scan(context.Background(), path, scanFilter{skipWays: true, skipRelations: true}, h))
	assert.Equal(t, 5, h.nodes)
	assert.Zero(t, h.ways)
}

func TestScan_XMLFilter(t *testing.T) {
	h := &countingHandler{}
	require.NoError(t, scan(context.Background(), writeFixture(t), scanFilter{skipNodes: true}, h))
	assert.Zero(t, h.nodes)
	assert.Equal(t, 3, h.ways)
	assert.Equal(t, 1, h.relations)
}
