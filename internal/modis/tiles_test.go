package modis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTilesForBBox_Galicia(t *testing.T) {
	set, err := TilesForBBox(BBox{MinLon: -10, MinLat: 41, MaxLon: 0, MaxLat: 44.5})
	require.NoError(t, err)
	assert.Equal(t, []Tile{{H: 17, V: 4}, {H: 18, V: 4}}, set.Sorted())
	assert.True(t, set.Has(17, 4))
	assert.False(t, set.Has(17, 5))
}

func TestTilesForBBox_Invalid(t *testing.T) {
	_, err := TilesForBBox(BBox{MinLon: 10, MaxLon: 0, MinLat: 0, MaxLat: 1})
	assert.Error(t, err)

	_, err = TilesForBBox(BBox{MinLon: 0, MaxLon: 1, MinLat: -95, MaxLat: 1})
	assert.Error(t, err)
}

func TestTilesForBBox_WorldStaysInGrid(t *testing.T) {
	set, err := TilesForBBox(BBox{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: 90})
	require.NoError(t, err)
	for tile := range set {
		assert.GreaterOrEqual(t, tile.H, 0)
		assert.LessOrEqual(t, tile.H, MaxH)
		assert.GreaterOrEqual(t, tile.V, 0)
		assert.LessOrEqual(t, tile.V, MaxV)
	}
	assert.True(t, set.Has(0, 8) || set.Has(0, 9))
}

func TestTileSet_NilHasAll(t *testing.T) {
	var s TileSet
	assert.True(t, s.Has(3, 9))
}

func TestBBox_Contains(t *testing.T) {
	b := BBox{MinLon: -10, MinLat: 41, MaxLon: 0, MaxLat: 44.5}
	assert.True(t, b.Contains(42, -5))
	assert.True(t, b.Contains(41, -10))
	assert.False(t, b.Contains(45, -5))
	assert.False(t, BBox{}.Contains(1, 1))
	assert.True(t, BBox{}.IsZero())
}

func TestTile_String(t *testing.T) {
	assert.Equal(t, "h17v04", Tile{H: 17, V: 4}.String())
}
