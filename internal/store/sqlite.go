package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/wildfire-lab/firetour/internal/fire"
	"github.com/wildfire-lab/firetour/internal/tourism"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS fire_detections (
	id         TEXT PRIMARY KEY,
	date       TEXT NOT NULL,
	satellite  TEXT NOT NULL DEFAULT '',
	lat        REAL NOT NULL,
	lon        REAL NOT NULL,
	fire_val   INTEGER NOT NULL,
	confidence TEXT NOT NULL DEFAULT '',
	tile_h     INTEGER NOT NULL DEFAULT 0,
	tile_v     INTEGER NOT NULL DEFAULT 0,
	source     TEXT NOT NULL DEFAULT '',
	UNIQUE (date, satellite, lat, lon)
);

CREATE TABLE IF NOT EXISTS pois (
	id   TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	lat  REAL NOT NULL,
	lon  REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS downloads (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	target     TEXT NOT NULL,
	ok         INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_fire_detections_date ON fire_detections(date);
CREATE INDEX IF NOT EXISTS idx_pois_kind ON pois(kind);
CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDetections(ctx context.Context, fires []fire.Detection) (int64, error) {
	if len(fires) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO fire_detections
		(id, date, satellite, lat, lon, fire_val, confidence, tile_h, tile_v, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert detection")
	}
	defer stmt.Close()

	var inserted int64
	for _, d := range fires {
		res, err := stmt.ExecContext(ctx, uuid.New().String(), dayOf(d.Date), d.Satellite, d.Lat, d.Lon,
			d.Value, string(d.Confidence), d.Tile.H, d.Tile.V, d.Source)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert detection")
		}
		n, _ := res.RowsAffected()
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit detections")
	}
	return inserted, nil
}

func (s *SQLiteStore) ListDetections(ctx context.Context, filter DetectionFilter) ([]fire.Detection, error) {
	query := `SELECT date, satellite, lat, lon, fire_val, confidence, tile_h, tile_v, source FROM fire_detections WHERE 1=1`
	var args []any

	if !filter.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, dayOf(filter.From))
	}
	if !filter.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, dayOf(filter.To))
	}
	if !filter.BBox.IsZero() {
		query += ` AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`
		args = append(args, filter.BBox.MinLat, filter.BBox.MaxLat, filter.BBox.MinLon, filter.BBox.MaxLon)
	}
	if filter.MinValue > 0 {
		query += ` AND fire_val >= ?`
		args = append(args, filter.MinValue)
	}
	if filter.Satellite != "" {
		query += ` AND satellite = ?`
		args = append(args, filter.Satellite)
	}
	query += ` ORDER BY date, lat, lon`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list detections")
	}
	defer rows.Close()

	fires := []fire.Detection{}
	for rows.Next() {
		var d fire.Detection
		var date, conf string
		if err := rows.Scan(&date, &d.Satellite, &d.Lat, &d.Lon, &d.Value, &conf, &d.Tile.H, &d.Tile.V, &d.Source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan detection")
		}
		if d.Date, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse date %q", date)
		}
		d.Confidence = fire.Confidence(conf)
		fires = append(fires, d)
	}
	return fires, eris.Wrap(rows.Err(), "sqlite: list detections iterate")
}

func (s *SQLiteStore) SavePOIs(ctx context.Context, pois []tourism.POI) (int64, error) {
	if len(pois) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pois (id, type, kind, name, lat, lon) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET type = excluded.type, kind = excluded.kind, name = excluded.name,
		lat = excluded.lat, lon = excluded.lon`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert poi")
	}
	defer stmt.Close()

	var n int64
	for _, p := range pois {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Type, p.Kind, p.Name, p.Lat, p.Lon); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert poi %s", p.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit pois")
	}
	return n, nil
}

func (s *SQLiteStore) ListPOIs(ctx context.Context, filter POIFilter) ([]tourism.POI, error) {
	query := `SELECT id, type, kind, name, lat, lon FROM pois WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if !filter.BBox.IsZero() {
		query += ` AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`
		args = append(args, filter.BBox.MinLat, filter.BBox.MaxLat, filter.BBox.MinLon, filter.BBox.MaxLon)
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pois")
	}
	defer rows.Close()

	pois := []tourism.POI{}
	for rows.Next() {
		var p tourism.POI
		if err := rows.Scan(&p.ID, &p.Type, &p.Kind, &p.Name, &p.Lat, &p.Lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan poi")
		}
		pois = append(pois, p)
	}
	return pois, eris.Wrap(rows.Err(), "sqlite: list pois iterate")
}

func (s *SQLiteStore) RecordDownload(ctx context.Context, d Download) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (id, url, target, ok, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.URL, d.Target, d.OK, d.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: record download")
}

func (s *SQLiteStore) ListDownloads(ctx context.Context, limit int) ([]Download, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, target, ok, created_at FROM downloads ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list downloads")
	}
	defer rows.Close()

	out := []Download{}
	for rows.Next() {
		var d Download
		if err := rows.Scan(&d.ID, &d.URL, &d.Target, &d.OK, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan download")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list downloads iterate")
}

var _ Store = (*SQLiteStore)(nil)
