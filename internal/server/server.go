// Package server exposes amenity lookups and listing scoring over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/listing"
	"github.com/sells-group/homescore/internal/model"
	"github.com/sells-group/homescore/internal/monitoring"
	"github.com/sells-group/homescore/internal/pipeline"
)

// maxBodyBytes caps request bodies on POST /score.
const maxBodyBytes = 8 << 20

// Resolver resolves amenities around one coordinate.
type Resolver interface {
	Resolve(ctx context.Context, coord geo.Coordinate) ([]model.Amenity, error)
	Summarize(ctx context.Context, coord geo.Coordinate) model.AmenitySummary
}

// Scorer scores a batch of listings.
type Scorer interface {
	Run(ctx context.Context, listings []model.Listing) (*pipeline.Result, error)
}

// Server wires the HTTP routes.
type Server struct {
	resolver  Resolver
	scorer    Scorer
	collector *monitoring.Collector
	gatherer  prometheus.Gatherer
	timeout   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithCollector enables GET /status.
func WithCollector(c *monitoring.Collector) Option {
	return func(s *Server) { s.collector = c }
}

// WithGatherer enables GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithRequestTimeout bounds each request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a Server.
func New(resolver Resolver, scorer Scorer, opts ...Option) *Server {
	s := &Server{resolver: resolver, scorer: scorer, timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.collector != nil {
		r.Get("/status", s.handleStatus)
	}

	r.Group(func(r chi.Router) {
		if s.timeout > 0 {
			r.Use(middleware.Timeout(s.timeout))
		}
		r.Get("/amenities", s.handleAmenities)
		r.Post("/score", s.handleScore)
	})
	return r
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	case <-ctx.Done():
	}

	zap.L().Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Collect())
}

type amenitiesResponse struct {
	Coordinate geo.Coordinate       `json:"coordinate"`
	Key        string               `json:"cache_key"`
	Amenities  []model.Amenity      `json:"amenities"`
	Summary    model.AmenitySummary `json:"summary"`
}

func (s *Server) handleAmenities(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoordinate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amenities, err := s.resolver.Resolve(r.Context(), coord)
	if err != nil {
		zap.L().Warn("server: amenity lookup failed", zap.Stringer("key", geo.RoundKey(coord)), zap.Error(err))
		writeError(w, http.StatusBadGateway, "amenity lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, amenitiesResponse{
		Coordinate: coord,
		Key:        geo.RoundKey(coord).String(),
		Amenities:  amenities,
		Summary:    s.resolver.Summarize(r.Context(), coord),
	})
}

type scoreRequest struct {
	Listings []model.Listing `json:"listings"`
	Limit    int             `json:"limit"`
}

type scoreResponse struct {
	RunID         string                `json:"run_id"`
	Considered    int                   `json:"considered"`
	Scored        int                   `json:"scored"`
	Dropped       int                   `json:"dropped"`
	FetchFailures int                   `json:"fetch_failures"`
	Features      []string              `json:"features"`
	Results       []model.ScoredListing `json:"results"`
}

// handleScore accepts either a JSON body {"listings": [...]} or a CSV
// listing table (Content-Type text/csv).
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req scoreRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/csv":
		rows, err := listing.ReadCSV(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Listings = rows
		if v := r.URL.Query().Get("limit"); v != "" {
			req.Limit, _ = strconv.Atoi(v)
		}
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if len(req.Listings) == 0 {
		writeError(w, http.StatusBadRequest, "listings are required")
		return
	}
	for i, l := range req.Listings {
		if !l.Coordinate.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("listing %d has an invalid coordinate", i))
			return
		}
	}

	res, err := s.scorer.Run(r.Context(), req.Listings)
	if err != nil {
		zap.L().Error("server: scoring failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scoring failed")
		return
	}

	results := res.Ranked
	if req.Limit > 0 && req.Limit < len(results) {
		results = results[:req.Limit]
	}
	if results == nil {
		results = []model.ScoredListing{}
	}
	writeJSON(w, http.StatusOK, scoreResponse{
		RunID:         res.RunID,
		Considered:    res.Considered,
		Scored:        len(res.Ranked),
		Dropped:       res.Dropped,
		FetchFailures: res.FetchFailures,
		Features:      res.Features,
		Results:       results,
	})
}

func parseCoordinate(r *http.Request) (geo.Coordinate, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return geo.Coordinate{}, eris.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return geo.Coordinate{}, eris.New("lon must be a number")
	}
	c := geo.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return geo.Coordinate{}, eris.New("coordinate out of range")
	}
	return c, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
