package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/wildfire-lab/firetour/internal/db"
	"github.com/wildfire-lab/firetour/internal/fire"
	"github.com/wildfire-lab/firetour/internal/tourism"
)

// SRID of stored geometries (WGS84 lon/lat).
const SRID = 4326

// PostgresStore implements Store on PostgreSQL with PostGIS point geometries.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS fire_detections (
	id         TEXT PRIMARY KEY,
	date       DATE NOT NULL,
	satellite  TEXT NOT NULL DEFAULT '',
	lat        DOUBLE PRECISION NOT NULL,
	lon        DOUBLE PRECISION NOT NULL,
	fire_val   SMALLINT NOT NULL,
	confidence TEXT NOT NULL DEFAULT '',
	tile_h     SMALLINT NOT NULL DEFAULT 0,
	tile_v     SMALLINT NOT NULL DEFAULT 0,
	source     TEXT NOT NULL DEFAULT '',
	geom       geometry(Point, 4326) NOT NULL,
	UNIQUE (date, satellite, lat, lon)
);

CREATE TABLE IF NOT EXISTS pois (
	id   TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	geom geometry(Point, 4326) NOT NULL
);

CREATE TABLE IF NOT EXISTS downloads (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	url        TEXT NOT NULL,
	target     TEXT NOT NULL,
	ok         BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_fire_detections_date ON fire_detections(date);
CREATE INDEX IF NOT EXISTS idx_fire_detections_geom ON fire_detections USING GIST (geom);
CREATE INDEX IF NOT EXISTS idx_pois_kind ON pois(kind);
CREATE INDEX IF NOT EXISTS idx_pois_geom ON pois USING GIST (geom);
CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// EncodePoint returns the EWKB of a lon/lat point with SRID 4326.
func EncodePoint(lon, lat float64) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(SRID)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode point")
	}
	return data, nil
}

// DecodePoint parses an EWKB point into lon/lat.
func DecodePoint(data []byte) (lon, lat float64, err error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: decode point")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, eris.Errorf("postgres: expected point geometry, got %T", g)
	}
	return p.X(), p.Y(), nil
}

var detectionColumns = []string{"id", "date", "satellite", "lat", "lon", "fire_val", "confidence", "tile_h", "tile_v", "source", "geom"}

func (s *PostgresStore) SaveDetections(ctx context.Context, fires []fire.Detection) (int64, error) {
	rows := make([][]any, 0, len(fires))
	for _, d := range fires {
		g, err := EncodePoint(d.Lon, d.Lat)
		if err != nil {
			return 0, err
		}
		date := time.Date(d.Date.Year(), d.Date.Month(), d.Date.Day(), 0, 0, 0, 0, time.UTC)
		rows = append(rows, []any{
			uuid.New().String(), date, d.Satellite, d.Lat, d.Lon, int16(d.Value),
			string(d.Confidence), int16(d.Tile.H), int16(d.Tile.V), d.Source, g,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "fire_detections",
		Columns:      detectionColumns,
		ConflictKeys: []string{"date", "satellite", "lat", "lon"},
		DoNothing:    true,
	}, rows)
	return n, eris.Wrap(err, "postgres: save detections")
}

func (s *PostgresStore) ListDetections(ctx context.Context, filter DetectionFilter) ([]fire.Detection, error) {
	query := `SELECT date, satellite, lat, lon, fire_val, confidence, tile_h, tile_v, source FROM fire_detections WHERE true`
	args := []any{}
	argIdx := 1

	if !filter.From.IsZero() {
		query += fmt.Sprintf(` AND date >= $%d`, argIdx)
		args = append(args, dayOf(filter.From))
		argIdx++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(` AND date <= $%d`, argIdx)
		args = append(args, dayOf(filter.To))
		argIdx++
	}
	if !filter.BBox.IsZero() {
		query += fmt.Sprintf(` AND geom && ST_MakeEnvelope($%d, $%d, $%d, $%d, 4326)`, argIdx, argIdx+1, argIdx+2, argIdx+3)
		args = append(args, filter.BBox.MinLon, filter.BBox.MinLat, filter.BBox.MaxLon, filter.BBox.MaxLat)
		argIdx += 4
	}
	if filter.MinValue > 0 {
		query += fmt.Sprintf(` AND fire_val >= $%d`, argIdx)
		args = append(args, filter.MinValue)
		argIdx++
	}
	if filter.Satellite != "" {
		query += fmt.Sprintf(` AND satellite = $%d`, argIdx)
		args = append(args, filter.Satellite)
		argIdx++
	}
	query += ` ORDER BY date, lat, lon`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list detections")
	}
	defer rows.Close()

	fires := []fire.Detection{}
	for rows.Next() {
		var d fire.Detection
		var value, h, v int16
		var conf string
		if err := rows.Scan(&d.Date, &d.Satellite, &d.Lat, &d.Lon, &value, &conf, &h, &v, &d.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan detection")
		}
		d.Value, d.Tile.H, d.Tile.V = int(value), int(h), int(v)
		d.Confidence = fire.Confidence(conf)
		fires = append(fires, d)
	}
	return fires, eris.Wrap(rows.Err(), "postgres: list detections iterate")
}

var poiColumns = []string{"id", "type", "kind", "name", "geom"}

func (s *PostgresStore) SavePOIs(ctx context.Context, pois []tourism.POI) (int64, error) {
	rows := make([][]any, 0, len(pois))
	for _, p := range pois {
		g, err := EncodePoint(p.Lon, p.Lat)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{p.ID, p.Type, p.Kind, p.Name, g})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "pois",
		Columns:      poiColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: save pois")
}

func (s *PostgresStore) ListPOIs(ctx context.Context, filter POIFilter) ([]tourism.POI, error) {
	query := `SELECT id, type, kind, name, ST_AsEWKB(geom) FROM pois WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}
	if !filter.BBox.IsZero() {
		query += fmt.Sprintf(` AND geom && ST_MakeEnvelope($%d, $%d, $%d, $%d, 4326)`, argIdx, argIdx+1, argIdx+2, argIdx+3)
		args = append(args, filter.BBox.MinLon, filter.BBox.MinLat, filter.BBox.MaxLon, filter.BBox.MaxLat)
		argIdx += 4
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pois")
	}
	defer rows.Close()

	pois := []tourism.POI{}
	for rows.Next() {
		var p tourism.POI
		var g []byte
		if err := rows.Scan(&p.ID, &p.Type, &p.Kind, &p.Name, &g); err != nil {
			return nil, eris.Wrap(err, "postgres: scan poi")
		}
		if p.Lon, p.Lat, err = DecodePoint(g); err != nil {
			return nil, eris.Wrapf(err, "postgres: poi %s", p.ID)
		}
		pois = append(pois, p)
	}
	return pois, eris.Wrap(rows.Err(), "postgres: list pois iterate")
}

func (s *PostgresStore) RecordDownload(ctx context.Context, d Download) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO downloads (id, url, target, ok, created_at) VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.URL, d.Target, d.OK, d.CreatedAt,
	)
	return eris.Wrap(err, "postgres: record download")
}

func (s *PostgresStore) ListDownloads(ctx context.Context, limit int) ([]Download, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, target, ok, created_at FROM downloads ORDER BY created_at DESC LIMIT $1`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list downloads")
	}
	defer rows.Close()

	out := []Download{}
	for rows.Next() {
		var d Download
		if err := rows.Scan(&d.ID, &d.URL, &d.Target, &d.OK, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan download")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list downloads iterate")
}

var _ Store = (*PostgresStore)(nil)
