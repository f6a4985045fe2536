package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildfire-lab/firetour/internal/density"
	"github.com/wildfire-lab/firetour/internal/render"
	"github.com/wildfire-lab/firetour/internal/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	st, err := store.NewSQLite(seedStore(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return buildRouter(&api{store: st, style: render.DefaultStyle(), resolution: 5}, []string{"https://maps.example.org"})
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	rr := get(newTestRouter(t), "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_Fires(t *testing.T) {
	h := newTestRouter(t)

	rr := get(h, "/api/fires")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	fc, err := geojson.UnmarshalFeatureCollection(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 3)

	rr = get(h, "/api/fires?satellite=MYD&min_value=7")
	fc, err = geojson.UnmarshalFeatureCollection(rr.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "2019-09-15", fc.Features[0].Properties["date"])

	rr = get(h, "/api/fires?bbox=-9,42,-8,43")
	fc, err = geojson.UnmarshalFeatureCollection(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestBuildRouter_FiresLimit(t *testing.T) {
	rr := get(newTestRouter(t), "/api/fires?limit=1")
	require.Equal(t, http.StatusOK, rr.Code)
	fc, err := geojson.UnmarshalFeatureCollection(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)
}

func TestBuildRouter_BadQuery(t *testing.T) {
	h := newTestRouter(t)
	for _, target := range []string{
		"/api/fires?bbox=1,2",
		"/api/fires?from=yesterday",
		"/api/fires?limit=many",
		"/api/pois?bbox=a,b,c,d",
		"/api/downloads?limit=x",
		"/api/correlation?res=high",
	} {
		rr := get(h, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestBuildRouter_POIs(t *testing.T) {
	rr := get(newTestRouter(t), "/api/pois?kind=hotel")
	require.Equal(t, http.StatusOK, rr.Code)
	fc, err := geojson.UnmarshalFeatureCollection(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
	for _, f := range fc.Features {
		assert.Equal(t, "hotel", f.Properties["kind"])
	}
}

func TestBuildRouter_Correlation(t *testing.T) {
	h := newTestRouter(t)

	rr := get(h, "/api/correlation")
	require.Equal(t, http.StatusOK, rr.Code)
	var corr density.Correlation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &corr))
	assert.Equal(t, 5, corr.Resolution)
	assert.Len(t, corr.Cells, 3)

	// One POI and no fires leaves a single cell.
	rr = get(h, "/api/correlation?kind=viewpoint&bbox=-7.9,42.3,-7.8,42.4")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestBuildRouter_Downloads_Empty(t *testing.T) {
	rr := get(newTestRouter(t), "/api/downloads")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestBuildRouter_Map(t *testing.T) {
	rr := get(newTestRouter(t), "/map")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "Forest Fires")
}

func TestBuildRouter_CORS(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://maps.example.org")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://maps.example.org", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildRouter_NotFound(t *testing.T) {
	rr := get(newTestRouter(t), "/api/roads")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
