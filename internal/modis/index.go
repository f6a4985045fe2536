package modis

import (
	"sort"

	"github.com/rotisserie/eris"
)

// IndexEntry is one row of an HDF file index.
type IndexEntry struct {
	URL string `json:"url"`
	Meta
}

// BuildIndex parses the file names of paths or URLs into an index that keeps
// the input order. Every malformed name is reported in the returned error.
func BuildIndex(paths []string) ([]IndexEntry, error) {
	entries := make([]IndexEntry, 0, len(paths))
	var bad []string
	for _, p := range paths {
		m, err := ParseFilename(p)
		if err != nil {
			bad = append(bad, p)
			continue
		}
		entries = append(entries, IndexEntry{URL: p, Meta: m})
	}
	if len(bad) > 0 {
		return entries, eris.Errorf("modis: %d unparseable file names (first: %q)", len(bad), bad[0])
	}
	return entries, nil
}

// FilterTiles keeps entries whose tile is in set.
func FilterTiles(entries []IndexEntry, set TileSet) []IndexEntry {
	var out []IndexEntry
	for _, e := range entries {
		if set.Has(e.H, e.V) {
			out = append(out, e)
		}
	}
	return out
}

// SortByDate orders entries by acquisition date, then tile.
func SortByDate(entries []IndexEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.V != b.V {
			return a.V < b.V
		}
		return a.H < b.H
	})
}
