// Package orchestration provides the tool manager that an agent loop drives:
// tool retrieval and tool call dispatch for one dataset.
//
// Information Hiding:
// - Backend selection by dataset, fixed once at construction
// - Local versus remote retrieval routing
// - Cache loading and persistence policy
// - Late binding of model clients and the concurrency limiter
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/richinex/toolhub/backend"
	"github.com/richinex/toolhub/config"
	"github.com/richinex/toolhub/llm"
	"github.com/richinex/toolhub/model"
	"github.com/richinex/toolhub/retrieval"
	"github.com/richinex/toolhub/storage"
	"github.com/richinex/toolhub/tools"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// MetricsNamespace prefixes every collector registered by a Manager.
const MetricsNamespace = "toolhub"

// Options configures New. Zero-valued collaborators are built from Settings.
type Options struct {
	Settings   config.Settings
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	HTTPClient *http.Client

	Embedder       llm.Embedder
	EmbeddingStore storage.EmbeddingStore
	Redis          *redis.Client

	Environment backend.Environment
	Runner      backend.FunctionRunner
	Searcher    tools.WebSearcher
	Fetcher     tools.PageFetcher
	Files       tools.FileProcessor
	Code        tools.CodeRunner

	Clients RuntimeClients
}

// RuntimeClients are collaborators that may only exist once the surrounding
// run is set up. Nil fields leave the current binding unchanged.
type RuntimeClients struct {
	HTTP     *http.Client
	Vision   llm.VisionProvider
	Video    llm.VideoProvider
	Aux      llm.Provider
	AuxModel string
	// Limiter bounds concurrent vision and video requests.
	Limiter *semaphore.Weighted
}

// Manager resolves tool retrieval and tool calls for one dataset.
// It is safe for concurrent use by many rollouts.
type Manager struct {
	settings config.Settings
	dataset  string
	runID    string
	logger   *zap.Logger
	metrics  *Metrics

	backend   backend.Backend
	builtin   *tools.Builtin
	retriever retrieval.Retriever

	searchCache *storage.Cache[[]model.SearchResult]
	urlCache    *storage.Cache[string]

	mu       sync.RWMutex
	remote   *retrieval.RemoteClient
	vision   llm.VisionProvider
	video    llm.VideoProvider
	aux      llm.Provider
	auxModel string
	limiter  *semaphore.Weighted

	closers []io.Closer
}

// New validates the settings, loads the caches and resolves the dataset's
// backend. Invalid settings are the only construction error: a backend that
// fails to initialize is logged and leaves the Manager with KindNone.
func New(ctx context.Context, opts Options) (*Manager, error) {
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	s := opts.Settings

	m := &Manager{
		settings: s,
		dataset:  s.DatasetName,
		runID:    runID,
		logger: logger.With(
			zap.String("component", "tool_manager"),
			zap.String("dataset", s.DatasetName),
			zap.String("run_id", runID),
		),
		metrics: NewMetrics(MetricsNamespace, opts.Registerer),
	}

	m.openCaches(ctx, opts)
	if s.ToolRetrieverAPIBase != "" {
		m.remote = retrieval.NewRemoteClient(s.ToolRetrieverAPIBase, m.dataset, opts.HTTPClient)
	}

	b, err := m.buildBackend(ctx, opts)
	switch {
	case err != nil:
		m.logger.Error("backend initialization failed", zap.Error(err))
	case b == nil:
		m.logger.Warn("no backend for dataset")
	default:
		m.backend = b
		m.logger.Info("backend ready", zap.Stringer("kind", b.Kind()))
	}

	m.SetRuntimeClients(opts.Clients)
	return m, nil
}

func (m *Manager) openCaches(ctx context.Context, opts Options) {
	cfg := m.settings.Cache
	client := opts.Redis
	if client == nil && cfg.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		m.closers = append(m.closers, client)
	}

	var searchP storage.Persister[[]model.SearchResult]
	var urlP storage.Persister[string]
	switch {
	case client != nil:
		searchP = storage.NewRedisPersister[[]model.SearchResult](client, cfg.RedisPrefix, "search_cache")
		urlP = storage.NewRedisPersister[string](client, cfg.RedisPrefix, "url_cache")
		if cfg.SearchCacheDir != "" || cfg.URLCacheDir != "" {
			m.logger.Info("redis cache replaces configured cache directories",
				zap.String("redis_prefix", cfg.RedisPrefix),
				zap.String("search_cache_dir", cfg.SearchCacheDir),
				zap.String("url_cache_dir", cfg.URLCacheDir))
		}
	default:
		if cfg.SearchCacheDir != "" {
			searchP = storage.NewJSONFilePersister[[]model.SearchResult](cfg.SearchCacheDir, storage.SearchCacheFile)
		}
		if cfg.URLCacheDir != "" {
			urlP = storage.NewJSONFilePersister[string](cfg.URLCacheDir, storage.URLCacheFile)
		}
	}

	m.searchCache = storage.NewCache(searchP)
	m.urlCache = storage.NewCache(urlP)

	m.loadCache(ctx, "search_cache", m.searchCache.Persistent(), m.searchCache.Location(), m.searchCache.MergeFromDisk, m.searchCache.Len)
	m.loadCache(ctx, "url_cache", m.urlCache.Persistent(), m.urlCache.Location(), m.urlCache.MergeFromDisk, m.urlCache.Len)
}

func (m *Manager) loadCache(ctx context.Context, name string, persistent bool, location string, merge func(context.Context) (int, error), size func() int) {
	if !persistent {
		return
	}
	n, err := merge(ctx)
	if err != nil {
		m.logger.Warn("failed to load cache", zap.String("cache", name), zap.String("location", location), zap.Error(err))
		return
	}
	m.logger.Info("cache loaded", zap.String("cache", name), zap.String("location", location), zap.Int("entries", n))
	m.metrics.SetCacheEntries(name, size())
}

// Dataset returns the configured dataset name.
func (m *Manager) Dataset() string { return m.dataset }

// RunID identifies this Manager in logs.
func (m *Manager) RunID() string { return m.runID }

// Backend returns the resolved backend, or nil.
func (m *Manager) Backend() backend.Backend { return m.backend }

// Kind returns the resolved backend kind.
func (m *Manager) Kind() backend.Kind {
	if m.backend == nil {
		return backend.KindNone
	}
	return m.backend.Kind()
}

// HasLocalIndex reports whether retrieval is served by a local index.
func (m *Manager) HasLocalIndex() bool { return m.retriever != nil }

// RetrieveTools returns up to k ToolDocs for query. A local index is used
// when the dataset has one; otherwise the remote endpoint is queried and
// any transport or decode failure yields an empty list. With neither
// configured it returns a configuration error. A non-positive k uses the
// configured default.
func (m *Manager) RetrieveTools(ctx context.Context, query string, k int, executable []model.ToolSpec) ([]model.ToolDoc, error) {
	if k <= 0 {
		k = m.settings.Retrieval.DefaultTopK
	}

	if m.retriever != nil {
		start := time.Now()
		docs, err := m.retriever.RetrieveTools(ctx, query, k, executable)
		m.metrics.RecordRetrieval(m.dataset, "local", err != nil, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("local retrieval failed: %w", err)
		}
		return docs, nil
	}

	m.mu.RLock()
	remote := m.remote
	m.mu.RUnlock()
	if remote == nil {
		return nil, model.NewConfigurationError("retrieval", "no local index and no tool retriever endpoint configured")
	}

	start := time.Now()
	docs, err := remote.RetrieveTools(ctx, query, k, executable)
	m.metrics.RecordRetrieval(m.dataset, "remote", err != nil, time.Since(start))
	if err != nil {
		m.logger.Warn("remote retrieval failed",
			zap.String("endpoint", remote.Endpoint()),
			zap.String("query", query),
			zap.Error(err))
		return []model.ToolDoc{}, nil
	}
	return docs, nil
}

// CallTool dispatches call to the dataset's backend. Failures the model can
// act on come back as error Results; the returned error is non-nil only
// when no backend is configured.
func (m *Manager) CallTool(ctx context.Context, call model.ToolCall, rollout *model.RolloutState) (model.Result, error) {
	if m.backend == nil {
		return model.Result{}, model.NewConfigurationError("backend", fmt.Sprintf("no backend configured for dataset %q", m.dataset))
	}

	start := time.Now()
	res := m.backend.Call(ctx, call, rollout)
	m.metrics.RecordToolCall(m.dataset, m.backend.Kind().String(), res.Failed(), time.Since(start))
	if res.Failed() {
		m.logger.Debug("tool call returned error", zap.String("tool", call.Name), zap.String("error", res.Err))
	}
	return res, nil
}

// ResetEnvironment starts a new batch of environment episodes. A
// non-positive batchSize uses the configured batch size, then the
// environment family's default.
func (m *Manager) ResetEnvironment(ctx context.Context, batchSize int) ([]string, error) {
	stepper, ok := m.backend.(*backend.Stepper)
	if !ok {
		return nil, model.NewConfigurationError("environment", fmt.Sprintf("dataset %q has no environment", m.dataset))
	}
	if batchSize <= 0 {
		batchSize = m.settings.Environment.BatchSize
	}
	return stepper.Reset(ctx, batchSize)
}

// SaveCaches flushes both caches to their persisters. Failures are logged
// and never returned.
func (m *Manager) SaveCaches(ctx context.Context) {
	m.saveCache(ctx, "search_cache", m.searchCache.Persistent(), m.searchCache.Location(), m.searchCache.FlushToDisk, m.searchCache.Len)
	m.saveCache(ctx, "url_cache", m.urlCache.Persistent(), m.urlCache.Location(), m.urlCache.FlushToDisk, m.urlCache.Len)
}

func (m *Manager) saveCache(ctx context.Context, name string, persistent bool, location string, flush func(context.Context) error, size func() int) {
	if !persistent {
		return
	}
	if err := flush(ctx); err != nil {
		m.logger.Warn("failed to save cache", zap.String("cache", name), zap.String("location", location), zap.Error(err))
		return
	}
	m.metrics.SetCacheEntries(name, size())
	m.logger.Debug("cache saved", zap.String("cache", name), zap.String("location", location))
}

// SearchCache exposes the web search cache.
func (m *Manager) SearchCache() *storage.Cache[[]model.SearchResult] { return m.searchCache }

// URLCache exposes the page text cache.
func (m *Manager) URLCache() *storage.Cache[string] { return m.urlCache }

// SetRuntimeClients binds collaborators after construction. Nil fields
// keep the current binding. The limiter, current or new, wraps the vision
// and video clients handed to the built-in tools.
func (m *Manager) SetRuntimeClients(c RuntimeClients) {
	m.mu.Lock()
	if c.Limiter != nil {
		m.limiter = c.Limiter
	}
	if c.Vision != nil {
		m.vision = c.Vision
	}
	if c.Video != nil {
		m.video = c.Video
	}
	if c.Aux != nil {
		m.aux = c.Aux
	}
	if c.AuxModel != "" {
		m.auxModel = c.AuxModel
	}
	if c.HTTP != nil && m.settings.ToolRetrieverAPIBase != "" {
		m.remote = retrieval.NewRemoteClient(m.settings.ToolRetrieverAPIBase, m.dataset, c.HTTP)
	}
	vision, video, limiter := m.vision, m.video, m.limiter
	m.mu.Unlock()

	if m.builtin == nil {
		return
	}
	if vision != nil {
		m.builtin.SetVision(llm.LimitVision(vision, limiter))
	}
	if video != nil {
		m.builtin.SetVideo(llm.LimitVideo(video, limiter))
	}
}

// AuxClient returns the auxiliary model client and its model name.
func (m *Manager) AuxClient() (llm.Provider, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.aux, m.auxModel
}

// ToolDocs lists the dataset's tools in function form. taskType selects the
// GAIA (text, mm, file) and HLE (text, mm) variants.
func (m *Manager) ToolDocs(taskType string) []model.Function {
	switch m.dataset {
	case model.DatasetGAIA:
		return tools.GAIAToolDocs(taskType)
	case model.DatasetHLE:
		return tools.HLEToolDocs(taskType)
	case model.DatasetBrowseComp:
		return tools.BrowseCompToolDocs()
	case model.DatasetTMDB, model.DatasetSpotify:
		return asFunctions(backend.RestBenchFunctions(m.dataset))
	case model.DatasetALFWorld:
		return asFunctions(backend.ALFWorldVocabulary.Actions)
	case model.DatasetWebShop:
		return asFunctions(backend.WebShopVocabulary.Actions)
	}
	if l, ok := m.backend.(backend.Lister); ok {
		return asFunctions(l.Functions())
	}
	return nil
}

func asFunctions(specs []model.ToolSpec) []model.Function {
	out := make([]model.Function, len(specs))
	for i, s := range specs {
		out[i] = s.AsFunction()
	}
	return out
}

// Close releases stores and connections opened by New.
func (m *Manager) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}
