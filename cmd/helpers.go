package main

import (
	"context"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wildfire-lab/firetour/internal/config"
	"github.com/wildfire-lab/firetour/internal/db"
	"github.com/wildfire-lab/firetour/internal/density"
	"github.com/wildfire-lab/firetour/internal/fetcher"
	"github.com/wildfire-lab/firetour/internal/fire"
	"github.com/wildfire-lab/firetour/internal/modis"
	"github.com/wildfire-lab/firetour/internal/resilience"
	"github.com/wildfire-lab/firetour/internal/store"
	"github.com/wildfire-lab/firetour/internal/tourism"
)

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func storeConfig(c config.StoreConfig) store.Config {
	return store.Config{
		Driver: c.Driver,
		DSN:    c.DSN,
		Pool:   db.PoolConfig{MaxConns: c.MaxConns, MinConns: c.MinConns},
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, storeConfig(cfg.Store))
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newFetcher builds the HTTP+FTP fetcher. Earthdata credentials come from
// the configured netrc when it has an entry; downloads work anonymously
// otherwise.
func newFetcher() *fetcher.Multi {
	opts := fetcher.HTTPOptions{
		UserAgent:    cfg.Download.UserAgent,
		Timeout:      time.Duration(cfg.Download.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Download.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
		AuthHosts:    []string{fetcher.EarthdataHost},
	}
	if cfg.LPDAAC.Netrc != "" {
		creds, err := fetcher.AuthFromNetrc(cfg.LPDAAC.NetrcMachine, cfg.LPDAAC.Netrc)
		if err != nil {
			zap.L().Debug("netrc: no credentials", zap.String("machine", cfg.LPDAAC.NetrcMachine), zap.Error(err))
		} else {
			opts.Auth = creds
		}
	}
	return &fetcher.Multi{
		HTTP: fetcher.NewHTTPFetcher(opts),
		FTP: fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Retry: resilience.RetryConfig{MaxAttempts: cfg.Download.MaxRetries},
		}),
	}
}

// parseBBox parses "minLon,minLat,maxLon,maxLat". Empty returns the
// configured region.
func parseBBox(s string) (modis.BBox, error) {
	if s == "" {
		return cfg.Region, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return modis.BBox{}, eris.Errorf("bbox: want minLon,minLat,maxLon,maxLat, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return modis.BBox{}, eris.Wrapf(err, "bbox: parse %q", p)
		}
		v[i] = f
	}
	return modis.BBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	return t, eris.Wrapf(err, "parse date %q", s)
}

func firePoints(fires []fire.Detection) []density.Point {
	pts := make([]density.Point, len(fires))
	for i, d := range fires {
		pts[i] = density.Point{Lat: d.Lat, Lon: d.Lon}
	}
	return pts
}

func poiPoints(pois []tourism.POI) []density.Point {
	pts := make([]density.Point, len(pois))
	for i, p := range pois {
		pts[i] = density.Point{Lat: p.Lat, Lon: p.Lon}
	}
	return pts
}

// densityGrid is the configured KDE grid over bbox.
func densityGrid(bbox modis.BBox) density.Grid {
	return density.Grid{
		MinLon: bbox.MinLon, MaxLon: bbox.MaxLon,
		MinLat: bbox.MinLat, MaxLat: bbox.MaxLat,
		NX: cfg.Density.NX, NY: cfg.Density.NY,
	}
}
