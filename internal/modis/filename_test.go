package modis

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Meta
	}{
		{
			name: "bare name",
			in:   "MOD14A1.A2019257.h11v12.006.2019269172641.hdf",
			want: Meta{
				FileName:   "MOD14A1.A2019257.h11v12.006.2019269172641.hdf",
				Product:    "MOD14A1",
				Satellite:  "MOD",
				Date:       time.Date(2019, 9, 14, 0, 0, 0, 0, time.UTC),
				H:          11,
				V:          12,
				Collection: "006",
			},
		},
		{
			name: "url",
			in:   "https://e4ftl01.cr.usgs.gov/MOLA/MYD14A2.006/2020.01.01/MYD14A2.A2020001.h17v04.006.2020010043013.hdf",
			want: Meta{
				FileName:   "MYD14A2.A2020001.h17v04.006.2020010043013.hdf",
				Product:    "MYD14A2",
				Satellite:  "MYD",
				Date:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
				H:          17,
				V:          4,
				Collection: "006",
			},
		},
		{
			name: "windows path",
			in:   `C:\data\MCD12Q1.A2001001.h00v08.006.2018142182903.hdf`,
			want: Meta{
				FileName:   "MCD12Q1.A2001001.h00v08.006.2018142182903.hdf",
				Product:    "MCD12Q1",
				Satellite:  "MCD",
				Date:       time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
				H:          0,
				V:          8,
				Collection: "006",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilename(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, Tile{H: tt.want.H, V: tt.want.V}, got.Tile())
		})
	}
}

func TestParseFilename_Invalid(t *testing.T) {
	for _, in := range []string{"", "readme.txt", "MOD14A1.2019257.h11v12.006.hdf", "MOD14A1.A2019400.h11v12.006.x.hdf"} {
		_, err := ParseFilename(in)
		assert.Error(t, err, in)
	}
}

func TestProductName(t *testing.T) {
	assert.Equal(t, "MOD14A1", ProductName("/a/b/MOD14A1.A2019257.h11v12.006.2019269172641.hdf"))
	assert.Equal(t, "noext", ProductName("noext"))
}

func TestTargetPath(t *testing.T) {
	url := "https://e4ftl01.cr.usgs.gov/MOTA/MCD12Q1.006/2001.01.01/MCD12Q1.A2001001.h00v08.006.2018142182903.hdf"
	got, err := TargetPath(url, "/home/user/data/")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/home/user/data/MCD12Q1.006/2001.01.01/MCD12Q1.A2001001.h00v08.006.2018142182903.hdf"), got)
}

func TestTargetPath_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := TargetPath("https://host/MOLT/MOD14A1.006/2019.09.14/MOD14A1.A2019257.h11v12.006.2019269172641.hdf", "~/modis")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "modis", "MOD14A1.006", "2019.09.14", "MOD14A1.A2019257.h11v12.006.2019269172641.hdf"), got)
}

func TestTargetPath_NoDirectory(t *testing.T) {
	_, err := TargetPath("MOD14A1.A2019257.h11v12.006.2019269172641.hdf", "/data")
	assert.Error(t, err)
}

func TestBuildIndex(t *testing.T) {
	paths := []string{
		"https://host/MOLT/MOD14A1.006/2019.09.14/MOD14A1.A2019257.h17v04.006.2019269172641.hdf",
		"https://host/MOLA/MYD14A1.006/2019.09.06/MYD14A1.A2019249.h18v04.006.2019269172641.hdf",
	}
	idx, err := BuildIndex(paths)
	require.NoError(t, err)
	require.Len(t, idx, 2)
	assert.Equal(t, paths[0], idx[0].URL)
	assert.Equal(t, "MOD", idx[0].Satellite)
	assert.Equal(t, 18, idx[1].H)

	SortByDate(idx)
	assert.Equal(t, "MYD", idx[0].Satellite)

	filtered := FilterTiles(idx, TileSet{{H: 17, V: 4}: {}})
	require.Len(t, filtered, 1)
	assert.Equal(t, 17, filtered[0].H)
}

func TestBuildIndex_ReportsBadNames(t *testing.T) {
	idx, err := BuildIndex([]string{"MOD14A1.A2019257.h17v04.006.2019269172641.hdf", "junk.hdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "junk.hdf")
	assert.Len(t, idx, 1)
}
