package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wildfire-lab/firetour/internal/density"
	"github.com/wildfire-lab/firetour/internal/export"
	"github.com/wildfire-lab/firetour/internal/modis"
	"github.com/wildfire-lab/firetour/internal/render"
	"github.com/wildfire-lab/firetour/internal/store"
)

var servePort int

// listLimit caps /api/fires and /api/pois when the request gives no limit.
const listLimit = 10000

// api serves stored detections and POIs.
type api struct {
	store      store.Store
	style      render.Style
	resolution int
}

func buildRouter(a *api, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/map", a.handleMap)
	r.Route("/api", func(r chi.Router) {
		r.Get("/fires", a.handleFires)
		r.Get("/pois", a.handlePOIs)
		r.Get("/correlation", a.handleCorrelation)
		r.Get("/downloads", a.handleDownloads)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("serve: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("serve: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// queryBBox reads ?bbox=minLon,minLat,maxLon,maxLat. Absent means no
// spatial filter.
func queryBBox(r *http.Request) (modis.BBox, error) {
	s := r.URL.Query().Get("bbox")
	if s == "" {
		return modis.BBox{}, nil
	}
	return parseBBox(s)
}

func queryInt(r *http.Request, key string) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	return n, eris.Wrapf(err, "query %s", key)
}

func detectionFilter(r *http.Request) (store.DetectionFilter, error) {
	var f store.DetectionFilter
	var err error
	q := r.URL.Query()
	if f.BBox, err = queryBBox(r); err != nil {
		return f, err
	}
	if f.From, err = parseDate(q.Get("from")); err != nil {
		return f, err
	}
	if f.To, err = parseDate(q.Get("to")); err != nil {
		return f, err
	}
	if f.MinValue, err = queryInt(r, "min_value"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	f.Satellite = q.Get("satellite")
	return f, nil
}

func poiFilter(r *http.Request) (store.POIFilter, error) {
	var f store.POIFilter
	var err error
	if f.BBox, err = queryBBox(r); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	f.Kind = r.URL.Query().Get("kind")
	return f, nil
}

func (a *api) handleFires(w http.ResponseWriter, r *http.Request) {
	f, err := detectionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if f.Limit <= 0 {
		f.Limit = listLimit
	}
	fires, err := a.store.ListDetections(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_ = export.FiresGeoJSON(w, fires)
}

func (a *api) handlePOIs(w http.ResponseWriter, r *http.Request) {
	f, err := poiFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if f.Limit <= 0 {
		f.Limit = listLimit
	}
	pois, err := a.store.ListPOIs(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_ = export.POIsGeoJSON(w, pois)
}

func (a *api) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	df, err := detectionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pf, err := poiFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := queryInt(r, "res")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if res <= 0 {
		res = a.resolution
	}

	fires, err := a.store.ListDetections(r.Context(), df)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	pois, err := a.store.ListPOIs(r.Context(), pf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	corr, err := density.Correlate(firePoints(fires), poiPoints(pois), res)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, corr)
}

func (a *api) handleDownloads(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	downloads, err := a.store.ListDownloads(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if downloads == nil {
		downloads = []store.Download{}
	}
	writeJSON(w, http.StatusOK, downloads)
}

func (a *api) handleMap(w http.ResponseWriter, r *http.Request) {
	df, err := detectionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pf, err := poiFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fires, err := a.store.ListDetections(r.Context(), df)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	pois, err := a.store.ListPOIs(r.Context(), pf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.Leaflet(w, render.Map{Style: a.style, Fires: firePoints(fires), Tourism: poiPoints(pois)}); err != nil {
		zap.L().Error("serve: render map", zap.Error(err))
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored fires and POIs as GeoJSON and a live heat map",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		style, err := loadStyle("")
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		handler := buildRouter(&api{store: st, style: style, resolution: cfg.Density.Resolution}, cfg.Server.AllowedOrigins)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
