// Package server exposes local retrieval indexes over HTTP so that tool
// managers configured with a tool retriever endpoint can query them.
//
// Information Hiding:
// - Routing, request decoding and error mapping
// - Request identifiers and access logging
// - Prometheus exposition of the server's own collectors
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richinex/toolhub/model"
	"github.com/richinex/toolhub/retrieval"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

// DefaultTopK is used when a request asks for top_k <= 0.
const DefaultTopK = 10

const maxBodyBytes = 4 << 20

// Config configures New.
type Config struct {
	Addr   string
	Logger *zap.Logger
	// Registry collects the server's metrics and is served on /metrics.
	// Nil uses a private registry.
	Registry *prometheus.Registry
	// DefaultTopK overrides DefaultTopK.
	DefaultTopK int
}

// Server answers POST /retrieve from per-dataset retrievers.
type Server struct {
	indexes     map[string]retrieval.Retriever
	defaultTopK int
	logger      *zap.Logger
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	handler     http.Handler
	httpServer  *http.Server
}

// New creates a server over indexes, keyed by dataset name.
func New(indexes map[string]retrieval.Retriever, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	factory := promauto.With(reg)
	s := &Server{
		indexes:     indexes,
		defaultTopK: topK,
		logger:      logger.With(zap.String("component", "tool_search_server")),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolhub",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "toolhub",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.observe)
	r.Post("/retrieve", s.handleRetrieve)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	s.handler = r

	addr := cfg.Addr
	if addr == "" {
		addr = "0.0.0.0:8001"
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Datasets lists the served dataset names in sorted order.
func (s *Server) Datasets() []string {
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("tool search server listening",
			zap.String("addr", s.httpServer.Addr),
			zap.Strings("datasets", s.Datasets()))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("tool search server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down tool search server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieval.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: query")
		return
	}

	idx, ok := s.indexes[req.DatasetName]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown dataset: %s", req.DatasetName))
		return
	}

	k := req.TopK
	if k <= 0 {
		k = s.defaultTopK
	}
	docs, err := idx.RetrieveTools(r.Context(), req.Query, k, req.ExecutableTools)
	if err != nil {
		s.logger.Error("retrieval failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("dataset", req.DatasetName),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if docs == nil {
		docs = []model.ToolDoc{}
	}
	writeJSON(w, http.StatusOK, retrieval.Response{Results: docs})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "datasets": s.Datasets()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
