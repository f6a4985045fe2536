package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildfire-lab/firetour/internal/fire"
	"github.com/wildfire-lab/firetour/internal/modis"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestEncodeDecodePoint(t *testing.T) {
	data, err := EncodePoint(-8.54, 42.88)
	require.NoError(t, err)
	lon, lat, err := DecodePoint(data)
	require.NoError(t, err)
	assert.Equal(t, -8.54, lon)
	assert.Equal(t, 42.88, lat)

	_, _, err = DecodePoint([]byte{0x01})
	assert.Error(t, err)
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS postgis`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDetections(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_fire_detections"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_fire_detections"}, detectionColumns).WillReturnResult(3)
	mock.ExpectExec(`INSERT INTO "fire_detections" .* ON CONFLICT \("date", "satellite", "lat", "lon"\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 3))
	mock.ExpectCommit()

	n, err := s.SaveDetections(context.Background(), sampleFires)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePOIs_BeginFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := s.SavePOIs(context.Background(), samplePOIs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save pois")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDetections(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"date", "satellite", "lat", "lon", "fire_val", "confidence", "tile_h", "tile_v", "source"}).
		AddRow(day1, "MOD", 42.25, -7.5, int16(7), "low", int16(17), int16(4), "a.hdf")
	mock.ExpectQuery(`SELECT date, satellite, lat, lon, fire_val, confidence, tile_h, tile_v, source FROM fire_detections WHERE true AND date >= \$1 AND geom && ST_MakeEnvelope\(\$2, \$3, \$4, \$5, 4326\) ORDER BY date, lat, lon$`).
		WithArgs("2019-09-14", -10.0, 41.0, 0.0, 44.5).
		WillReturnRows(rows)

	got, err := s.ListDetections(context.Background(), DetectionFilter{
		From: day1,
		BBox: modis.BBox{MinLon: -10, MinLat: 41, MaxLon: 0, MaxLat: 44.5},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sampleFires[0], got[0])
	assert.Equal(t, fire.ConfidenceLow, got[0].Confidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPOIs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	g, err := EncodePoint(-8.54, 42.88)
	require.NoError(t, err)
	rows := pgxmock.NewRows([]string{"id", "type", "kind", "name", "geom"}).
		AddRow("node/1", "node", "hotel", "Parador", g)
	mock.ExpectQuery(`SELECT id, type, kind, name, ST_AsEWKB\(geom\) FROM pois WHERE true AND kind = \$1 ORDER BY id LIMIT \$2`).
		WithArgs("hotel", 5).
		WillReturnRows(rows)

	got, err := s.ListPOIs(context.Background(), POIFilter{Kind: "hotel", Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, samplePOIs[0], got[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordDownload(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO downloads`).
		WithArgs("id-1", "https://host/a.hdf", "/data/a.hdf", true, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordDownload(context.Background(), Download{ID: "id-1", URL: "https://host/a.hdf", Target: "/data/a.hdf", OK: true, CreatedAt: at})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDownloads_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT id, url, target, ok, created_at FROM downloads`).
		WithArgs(10).
		WillReturnError(errors.New("relation does not exist"))

	_, err := s.ListDownloads(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list downloads")
	assert.NoError(t, mock.ExpectationsWereMet())
}
