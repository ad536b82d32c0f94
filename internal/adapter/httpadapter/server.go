// Package httpadapter exposes the aggregate over HTTP: renderer feeds
// (markers, heatmap, stats, hotspots), the filter and retry controls, and the
// usual health, readiness, and metrics endpoints.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DEMONNN69/hmpi-map-engine/internal/aggregate"
	"github.com/DEMONNN69/hmpi-map-engine/internal/domain"
)

// AggregateSource is the slice of the Aggregator the server reads and drives.
type AggregateSource interface {
	Snapshot() aggregate.Snapshot
	SetYear(year *int)
	Retry()
	CheckReadiness(ctx context.Context) error
}

// SampleBrowser proxies table browsing and year-batch calculation to the
// backend.
type SampleBrowser interface {
	ListSamples(ctx context.Context, q domain.SampleQuery) (domain.SampleList, error)
	CalculateByYear(ctx context.Context, req domain.YearCalculationRequest) (domain.YearCalculationResult, error)
}

// Server exposes the engine's HTTP endpoints.
type Server struct {
	httpServer *http.Server
	agg        AggregateSource
	browser    SampleBrowser
	logger     *slog.Logger
}

// NewServer creates the HTTP server. browser may be nil, which disables the
// /samples and /calculations routes.
func NewServer(addr string, agg AggregateSource, browser SampleBrowser, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		agg:     agg,
		browser: browser,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /markers", s.handleMarkers)
	mux.HandleFunc("GET /heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /hotspots", s.handleHotspots)
	mux.HandleFunc("POST /filter/year", s.handleSetYear)
	mux.HandleFunc("POST /retry", s.handleRetry)

	if browser != nil {
		mux.HandleFunc("GET /samples", s.handleSamples)
		mux.HandleFunc("POST /calculations/year", s.handleCalculateByYear)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.agg.CheckReadiness(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type paginationState struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalRecords int `json:"total_records"`
}

type statsResponse struct {
	AvailableYears       []int            `json:"available_years"`
	SelectedYear         *int             `json:"selected_year"`
	Status               aggregate.Status `json:"status"`
	Pagination           paginationState  `json:"pagination"`
	WithYear             int              `json:"with_year"`
	SkippedInvalid       int              `json:"skipped_invalid"`
	FailedClassification int              `json:"failed_classification"`
	Warning              string           `json:"warning,omitempty"`
	Stats                domain.MapStats  `json:"stats"`
}

type snapshotResponse struct {
	Points []domain.SamplePoint `json:"points"`
	statsResponse
}

func toStatsResponse(snap aggregate.Snapshot) statsResponse {
	years := snap.AvailableYears
	if years == nil {
		years = []int{}
	}
	return statsResponse{
		AvailableYears: years,
		SelectedYear:   snap.SelectedYear,
		Status:         snap.Status,
		Pagination: paginationState{
			CurrentPage:  snap.CurrentPage,
			TotalPages:   snap.TotalPages,
			TotalRecords: snap.TotalRecords,
		},
		WithYear:             snap.WithYear,
		SkippedInvalid:       snap.SkippedInvalid,
		FailedClassification: snap.FailedClassification,
		Warning:              snap.Warning,
		Stats:                snap.Stats,
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.agg.Snapshot()
	points := snap.Points
	if points == nil {
		points = []domain.SamplePoint{}
	}
	s.writeJSON(w, http.StatusOK, snapshotResponse{
		Points:        points,
		statsResponse: toStatsResponse(snap),
	})
}

func (s *Server) handleMarkers(w http.ResponseWriter, _ *http.Request) {
	snap := s.agg.Snapshot()
	if snap.Points == nil {
		snap.Points = []domain.SamplePoint{}
	}
	s.writeJSON(w, http.StatusOK, snap.Points)
}

// handleHeatmap serves [lat, lon, intensity] triples, the shape heat layers
// consume directly.
func (s *Server) handleHeatmap(w http.ResponseWriter, _ *http.Request) {
	snap := s.agg.Snapshot()
	triples := make([][3]float64, 0, len(snap.Points))
	for _, p := range snap.Points {
		triples = append(triples, [3]float64{p.Latitude, p.Longitude, p.HeatIntensity})
	}
	s.writeJSON(w, http.StatusOK, triples)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, toStatsResponse(s.agg.Snapshot()))
}

// hotspotThreshold is the score above which a point is a pollution hotspot.
const hotspotThreshold = 100.0

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	snap := s.agg.Snapshot()
	hotspots := make([]domain.SamplePoint, 0)
	for _, p := range snap.Points {
		if p.Score > hotspotThreshold {
			hotspots = append(hotspots, p)
		}
	}
	sort.SliceStable(hotspots, func(i, j int) bool {
		return hotspots[i].Score > hotspots[j].Score
	})
	if limit > 0 && len(hotspots) > limit {
		hotspots = hotspots[:limit]
	}
	s.writeJSON(w, http.StatusOK, hotspots)
}

func (s *Server) handleSetYear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year *int `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.agg.SetYear(req.Year)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRetry(w http.ResponseWriter, _ *http.Request) {
	s.agg.Retry()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	q := domain.SampleQuery{Search: r.URL.Query().Get("search")}
	if v := r.URL.Query().Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		q.Year = &year
	}
	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		q.Page = page
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			http.Error(w, "invalid page_size", http.StatusBadRequest)
			return
		}
		q.PageSize = size
	}

	list, err := s.browser.ListSamples(r.Context(), q)
	if err != nil {
		s.writeUpstreamError(w, "list samples", err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCalculateByYear(w http.ResponseWriter, r *http.Request) {
	var req domain.YearCalculationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Year == 0 {
		http.Error(w, "year is required", http.StatusBadRequest)
		return
	}

	result, err := s.browser.CalculateByYear(r.Context(), req)
	if err != nil {
		s.writeUpstreamError(w, "calculate by year", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeUpstreamError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "error", err)
	if errors.Is(err, domain.ErrAuthRequired) {
		http.Error(w, "backend authentication required", http.StatusUnauthorized)
		return
	}
	http.Error(w, "backend request failed", http.StatusBadGateway)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", "error", err)
	}
}
