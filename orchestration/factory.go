// Dataset Backend Factory.
//
// Information Hiding:
// - Dataset to backend mapping hidden
// - Which settings each backend family reads hidden
// - Local index construction and embedding store opening hidden

package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/richinex/toolhub/backend"
	"github.com/richinex/toolhub/llm"
	"github.com/richinex/toolhub/model"
	"github.com/richinex/toolhub/retrieval"
	"github.com/richinex/toolhub/storage"
	"github.com/richinex/toolhub/tools"
	"go.uber.org/zap"
)

// buildBackend resolves the dataset's backend. A nil backend with a nil
// error means the dataset has none.
func (m *Manager) buildBackend(ctx context.Context, opts Options) (backend.Backend, error) {
	s := m.settings
	switch m.dataset {
	case model.DatasetToolHop:
		return m.buildToolHop(ctx, opts)

	case model.DatasetALFWorld:
		return m.buildStepper(opts, backend.ALFWorldVocabulary, s.ALFWorld.ServiceURL)

	case model.DatasetWebShop:
		return m.buildStepper(opts, backend.WebShopVocabulary, s.WebShopURL())

	case model.DatasetTMDB:
		if s.RestBench.TMDBAccessToken == "" {
			return nil, errors.New("tmdb access token not configured")
		}
		return backend.NewTicketedCaller(backend.TicketedConfig{
			Dataset: m.dataset,
			BaseURL: s.RestBench.TMDBBaseURL,
			Tokens:  backend.StaticToken(s.RestBench.TMDBAccessToken),
			Client:  opts.HTTPClient,
			Logger:  m.logger,
		})

	case model.DatasetSpotify:
		rb := s.RestBench
		if rb.SpotifyClientID == "" || rb.SpotifyClientSecret == "" {
			return nil, errors.New("spotify client credentials not configured")
		}
		return backend.NewTicketedCaller(backend.TicketedConfig{
			Dataset: m.dataset,
			BaseURL: rb.SpotifyBaseURL,
			Tokens:  backend.NewClientCredentialsToken(rb.SpotifyClientID, rb.SpotifyClientSecret, rb.SpotifyTokenURL, opts.HTTPClient),
			Client:  opts.HTTPClient,
			Logger:  m.logger,
		})

	case model.DatasetGAIA, model.DatasetHLE, model.DatasetBrowseComp:
		return m.buildBuiltin(opts)

	case model.DatasetToolBench:
		return m.buildToolBench(ctx, opts)

	case model.DatasetAPIBank:
		return m.buildAPIBank(ctx, opts)
	}
	return nil, nil
}

func (m *Manager) runner(opts Options) backend.FunctionRunner {
	if opts.Runner != nil {
		return opts.Runner
	}
	return m.sandbox()
}

func (m *Manager) sandbox() *tools.PythonSandbox {
	sb := m.settings.Sandbox
	return tools.NewPythonSandbox(sb.Interpreter, sb.Timeout, sb.MaxOutputBytes)
}

func (m *Manager) buildToolHop(ctx context.Context, opts Options) (backend.Backend, error) {
	path := m.settings.Retrieval.ToolHopCorpusPath
	if path != "" {
		if cfg, ok := m.indexConfig(opts); ok {
			idx, err := retrieval.NewToolHopIndex(ctx, path, cfg)
			if err != nil {
				m.logger.Warn("failed to build toolhop index", zap.String("path", path), zap.Error(err))
			} else {
				m.retriever = idx
				m.logger.Info("toolhop index ready", zap.Int("entries", idx.Len()))
			}
		}
	}
	return backend.NewLocalDispatch(m.runner(opts), m.logger)
}

func (m *Manager) buildStepper(opts Options, vocab backend.Vocabulary, serviceURL string) (backend.Backend, error) {
	env := opts.Environment
	if env == nil {
		if serviceURL == "" {
			return nil, fmt.Errorf("%s service URL not configured", vocab.Name)
		}
		env = backend.NewHTTPEnvironment(serviceURL, opts.HTTPClient)
	}
	policy, err := backend.ParsePolicy(m.settings.Environment.Policy, m.settings.Environment.MaxSteps)
	if err != nil {
		return nil, err
	}
	return backend.NewStepper(vocab, env, policy, m.logger)
}

func (m *Manager) buildBuiltin(opts Options) (backend.Backend, error) {
	s := m.settings

	searcher := opts.Searcher
	if searcher == nil {
		searcher = tools.NewSerperSearcher(s.Search.SerperEndpoint, s.Search.FetchTimeout)
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = tools.NewHTTPFetcher(tools.FetcherConfig{
			UseJina:     s.Search.UseJina,
			JinaAPIKey:  s.Search.JinaAPIKey,
			Concurrency: s.Search.FetchConcurrency,
			Timeout:     s.Search.FetchTimeout,
		})
	}
	files := opts.Files
	if files == nil {
		files = tools.NewDocumentProcessor(s.Files.GAIAFileDir)
	}
	code := opts.Code
	if code == nil {
		code = m.sandbox()
	}

	b, err := tools.NewBuiltin(tools.BuiltinConfig{
		Dataset:     m.dataset,
		SerperKey:   s.SerperKey(),
		Searcher:    searcher,
		Fetcher:     fetcher,
		SearchCache: m.searchCache,
		URLCache:    m.urlCache,
		Files:       files,
		Code:        code,
		ImageDirs:   []string{s.Files.HLEImageDir, s.Files.GAIAFileDir},
		Logger:      m.logger,
	})
	if err != nil {
		return nil, err
	}
	m.builtin = b

	// Clients from Options take precedence and are bound by SetRuntimeClients.
	if opts.Clients.Vision == nil && s.Vision.Model != "" {
		if v, err := llm.NewVisionProvider(s.Vision.Provider, s.Vision.Model, ""); err == nil {
			m.vision = v
		} else {
			m.logger.Debug("vision client unavailable", zap.Error(err))
		}
	}
	if opts.Clients.Video == nil && s.Vision.VideoModel != "" {
		if v, err := llm.NewVideoProvider(s.Vision.VideoModel, ""); err == nil {
			m.video = v
		} else {
			m.logger.Debug("video client unavailable", zap.Error(err))
		}
	}
	return b, nil
}

func (m *Manager) buildToolBench(ctx context.Context, opts Options) (backend.Backend, error) {
	s := m.settings
	var docs []model.ToolDoc
	if path := s.Retrieval.ToolBenchCorpus; path != "" {
		loaded, err := retrieval.LoadToolBenchDocuments(path)
		if err != nil {
			return nil, err
		}
		docs = retrieval.ToolBenchToolDocs(loaded)
		m.attachIndex(ctx, opts, "toolbench", retrieval.BuildToolBenchCorpus(loaded))
	}
	return backend.NewGenericCaller(backend.GenericConfig{
		ServiceURL: s.ToolBench.ServiceURL,
		Format:     backend.PayloadToolBench,
		APIKey:     s.ToolBench.APIKey,
		Docs:       docs,
		Client:     opts.HTTPClient,
		Logger:     m.logger,
	})
}

func (m *Manager) buildAPIBank(ctx context.Context, opts Options) (backend.Backend, error) {
	s := m.settings
	var docs []model.ToolDoc
	if dir := s.APIBankDir(); dir != "" {
		apis, err := retrieval.LoadAPIBankAPIs(dir)
		if err != nil {
			return nil, err
		}
		corpus := retrieval.BuildAPIBankCorpus(apis)
		for _, content := range corpus.Entries() {
			docs = append(docs, corpus.Docs()[content])
		}
		m.attachIndex(ctx, opts, "api_bank", corpus)
	}
	return backend.NewGenericCaller(backend.GenericConfig{
		ServiceURL: s.APIBank.ServiceURL,
		Format:     backend.PayloadPlain,
		Docs:       docs,
		Client:     opts.HTTPClient,
		Logger:     m.logger,
	})
}

func (m *Manager) attachIndex(ctx context.Context, opts Options, name string, corpus *retrieval.Corpus) {
	cfg, ok := m.indexConfig(opts)
	if !ok {
		return
	}
	cfg.Corpus = corpus.Entries()
	cfg.Docs = corpus.Docs()
	idx, err := retrieval.NewIndex(ctx, cfg)
	if err != nil {
		m.logger.Warn("failed to build retrieval index", zap.String("index", name), zap.Error(err))
		return
	}
	m.retriever = idx
	m.logger.Info("retrieval index ready", zap.String("index", name), zap.Int("entries", idx.Len()))
}

// indexConfig assembles the embedder and embedding store for a local index.
// It reports false when no embedder can be built.
func (m *Manager) indexConfig(opts Options) (retrieval.IndexConfig, bool) {
	r := m.settings.Retrieval
	embedder := opts.Embedder
	if embedder == nil {
		e, err := llm.NewEmbedder(r.EmbeddingProvider, r.EmbeddingModel, r.EmbeddingAPIKey, r.EmbeddingBaseURL)
		if err != nil {
			m.logger.Info("no embedder, skipping local index", zap.Error(err))
			return retrieval.IndexConfig{}, false
		}
		embedder = e
	}

	store := opts.EmbeddingStore
	if store == nil && r.CacheDir != "" {
		db, err := storage.OpenEmbeddingCache(r.CacheDir)
		if err != nil {
			m.logger.Warn("embedding cache unavailable", zap.String("dir", r.CacheDir), zap.Error(err))
		} else {
			store = db
			m.closers = append(m.closers, db)
		}
	}

	return retrieval.IndexConfig{
		Embedder:  embedder,
		Store:     store,
		BatchSize: r.BatchSize,
		Logger:    m.logger,
	}, true
}
