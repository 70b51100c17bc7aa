// Command execution for CLI commands.
//
// Information Hiding:
// - Settings loading and command-line overrides hidden
// - Manager and tool-search server setup hidden
// - Output formatting hidden

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/richinex/toolhub/config"
	jsonutil "github.com/richinex/toolhub/internal/json"
	"github.com/richinex/toolhub/llm"
	"github.com/richinex/toolhub/model"
	"github.com/richinex/toolhub/orchestration"
	"github.com/richinex/toolhub/retrieval"
	"github.com/richinex/toolhub/server"
	"github.com/richinex/toolhub/storage"
	"github.com/richinex/toolhub/tools"
	"go.uber.org/zap"
)

// Options holds CLI execution options.
type Options struct {
	ConfigPath string
	Dataset    string
	Verbose    bool
	// AuxProvider names the chat provider bound as the auxiliary client.
	AuxProvider string
}

// DefaultServeDatasets are indexed by serve when the settings list none.
var DefaultServeDatasets = []string{model.DatasetToolHop, model.DatasetToolBench, model.DatasetAPIBank}

// LoadSettings reads settings and applies the dataset override. The result
// is validated only when validate is set.
func LoadSettings(opts Options, validate bool) (config.Settings, error) {
	s, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Settings{}, err
	}
	if opts.Dataset != "" {
		s.DatasetName = opts.Dataset
	}
	if validate {
		if err := s.Validate(); err != nil {
			return config.Settings{}, err
		}
	}
	return s, nil
}

// session bundles a manager with the logger it writes to.
type session struct {
	manager *orchestration.Manager
	logger  *zap.Logger
}

func (s *session) Close() {
	s.manager.Close()
	_ = s.logger.Sync()
}

func openSession(ctx context.Context, opts Options) (*session, error) {
	settings, err := LoadSettings(opts, true)
	if err != nil {
		return nil, err
	}
	logger, err := NewLogger(settings.Log, opts.Verbose)
	if err != nil {
		return nil, err
	}

	clients := orchestration.RuntimeClients{}
	if opts.AuxProvider != "" {
		providerType, err := llm.ParseProviderType(opts.AuxProvider)
		if err != nil {
			return nil, err
		}
		aux, err := providerType.FromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to create auxiliary client: %w", err)
		}
		clients.Aux = aux
		clients.AuxModel = aux.Model()
	}

	m, err := orchestration.New(ctx, orchestration.Options{
		Settings: settings,
		Logger:   logger,
		Clients:  clients,
	})
	if err != nil {
		return nil, err
	}
	return &session{manager: m, logger: logger}, nil
}

// Retrieve prints the top k tools for query.
func Retrieve(ctx context.Context, opts Options, query string, k int, w io.Writer) error {
	sess, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	docs, err := sess.manager.RetrieveTools(ctx, query, k, nil)
	if err != nil {
		return err
	}
	return writeIndented(w, docs)
}

// Call parses a tool call from callText, dispatches it and prints the
// result. rolloutPath optionally names a JSON RolloutState; its updated
// state is printed after the result.
func Call(ctx context.Context, opts Options, callText, rolloutPath string, w io.Writer) error {
	call, err := jsonutil.ParseToolCall(callText)
	if err != nil {
		return fmt.Errorf("failed to parse tool call: %w", err)
	}

	var rollout *model.RolloutState
	if rolloutPath != "" {
		data, err := os.ReadFile(rolloutPath)
		if err != nil {
			return fmt.Errorf("failed to read rollout: %w", err)
		}
		rollout = &model.RolloutState{}
		if err := json.Unmarshal(data, rollout); err != nil {
			return fmt.Errorf("failed to parse rollout: %w", err)
		}
	}

	sess, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.manager.CallTool(ctx, call, rollout)
	if err != nil {
		return err
	}
	sess.manager.SaveCaches(ctx)

	if err := writeIndented(w, res); err != nil {
		return err
	}
	if rollout != nil {
		return writeIndented(w, rollout)
	}
	return nil
}

// Docs lists the dataset's tools. A prefix filters research tools by name.
func Docs(ctx context.Context, opts Options, taskType, prefix string, verbose bool, w io.Writer) error {
	sess, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	var specs []model.ToolSpec
	if b, ok := sess.manager.Backend().(*tools.Builtin); ok && prefix != "" {
		specs = b.Specs(prefix)
	} else {
		for _, f := range sess.manager.ToolDocs(taskType) {
			if strings.HasPrefix(f.Function.Name, prefix) {
				specs = append(specs, f.Function)
			}
		}
	}

	fmt.Fprintf(w, "Tools for %s:\n\n", sess.manager.Dataset())
	for _, spec := range specs {
		fmt.Fprintf(w, "  %s\n", spec.Name)
		fmt.Fprintf(w, "    %s\n", spec.Description)
		if verbose && spec.Parameters != nil {
			params, err := json.MarshalIndent(spec.Parameters, "    ", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "    Parameters: %s\n", params)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// Reset starts a batch of environment episodes and prints the initial
// observations.
func Reset(ctx context.Context, opts Options, batchSize int, w io.Writer) error {
	sess, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	obs, err := sess.manager.ResetEnvironment(ctx, batchSize)
	if err != nil {
		return err
	}
	return writeIndented(w, obs)
}

// Serve runs the tool-search server until ctx is cancelled. Each listed
// dataset gets a manager; those that end up with a local index are served.
func Serve(ctx context.Context, opts Options, addr string) error {
	base, err := LoadSettings(opts, false)
	if err != nil {
		return err
	}
	logger, err := NewLogger(base.Log, opts.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	r := base.Retrieval
	embedder, err := llm.NewEmbedder(r.EmbeddingProvider, r.EmbeddingModel, r.EmbeddingAPIKey, r.EmbeddingBaseURL)
	if err != nil {
		return fmt.Errorf("tool search server requires an embedder: %w", err)
	}
	var store storage.EmbeddingStore
	if r.CacheDir != "" {
		db, err := storage.OpenEmbeddingCache(r.CacheDir)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	}

	datasets := base.Server.Datasets
	if opts.Dataset != "" {
		datasets = []string{opts.Dataset}
	}
	if len(datasets) == 0 {
		datasets = DefaultServeDatasets
	}

	indexes := make(map[string]retrieval.Retriever, len(datasets))
	for _, name := range datasets {
		s := base
		s.DatasetName = name
		// The server is the retrieval endpoint; never forward to itself.
		s.ToolRetrieverAPIBase = ""

		m, err := orchestration.New(ctx, orchestration.Options{
			Settings:       s,
			Logger:         logger,
			Embedder:       embedder,
			EmbeddingStore: store,
		})
		if err != nil {
			return fmt.Errorf("dataset %s: %w", name, err)
		}
		defer m.Close()
		if !m.HasLocalIndex() {
			logger.Warn("dataset has no local index, not served", zap.String("dataset", name))
			continue
		}
		indexes[name] = m
	}

	if addr == "" {
		addr = fmt.Sprintf("%s:%d", base.Server.Host, base.Server.Port)
	}
	srv := server.New(indexes, server.Config{
		Addr:        addr,
		Logger:      logger,
		DefaultTopK: r.DefaultTopK,
	})
	return srv.ListenAndServe(ctx)
}

func writeIndented(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
