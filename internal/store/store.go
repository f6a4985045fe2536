// Package store persists fire detections, tourism POIs and the download
// log in SQLite or PostgreSQL/PostGIS.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wildfire-lab/firetour/internal/db"
	"github.com/wildfire-lab/firetour/internal/fire"
	"github.com/wildfire-lab/firetour/internal/modis"
	"github.com/wildfire-lab/firetour/internal/tourism"
)

// defaultLimit caps ListDownloads when no limit is given.
const defaultLimit = 100

// DetectionFilter selects stored detections. Zero fields do not filter.
type DetectionFilter struct {
	From      time.Time  `json:"from,omitempty"`
	To        time.Time  `json:"to,omitempty"` // inclusive
	BBox      modis.BBox `json:"bbox,omitempty"`
	MinValue  int        `json:"min_value,omitempty"`
	Satellite string     `json:"satellite,omitempty"`
	// Limit caps the result. Zero returns every match.
	Limit int `json:"limit,omitempty"`
}

// POIFilter selects stored POIs.
type POIFilter struct {
	Kind string     `json:"kind,omitempty"`
	BBox modis.BBox `json:"bbox,omitempty"`
	// Limit caps the result. Zero returns every match.
	Limit int `json:"limit,omitempty"`
}

// Download is one entry of the download log.
type Download struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Target    string    `json:"target"`
	OK        bool      `json:"ok"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence interface.
type Store interface {
	// Detections are keyed by (date, satellite, lat, lon); duplicates are
	// skipped. Returns the number of new rows.
	SaveDetections(ctx context.Context, fires []fire.Detection) (int64, error)
	ListDetections(ctx context.Context, filter DetectionFilter) ([]fire.Detection, error)

	// POIs are keyed by OSM id; saving again updates them.
	SavePOIs(ctx context.Context, pois []tourism.POI) (int64, error)
	ListPOIs(ctx context.Context, filter POIFilter) ([]tourism.POI, error)

	RecordDownload(ctx context.Context, d Download) error
	ListDownloads(ctx context.Context, limit int) ([]Download, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a store driver.
type Config struct {
	Driver string        `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DSN    string        `yaml:"dsn" mapstructure:"dsn"`
	Pool   db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open opens the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "firetour.db"
		}
		return NewSQLite(dsn)
	case "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, eris.New("store: postgres requires a dsn")
		}
		return NewPostgres(ctx, cfg.DSN, cfg.Pool)
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

func dayOf(t time.Time) string { return t.UTC().Format(time.DateOnly) }
