// Built-in handler dispatch for the research datasets.
//
// Information Hiding:
// - Tool registration and name resolution hidden
// - Per-dataset tool listings hidden

package tools

import (
	"context"
	"fmt"

	"github.com/richinex/toolhub/backend"
	"github.com/richinex/toolhub/llm"
	"github.com/richinex/toolhub/model"
	"github.com/richinex/toolhub/storage"
	"go.uber.org/zap"
)

// BuiltinConfig configures NewBuiltin. Nil collaborators make their tools
// answer with an error.
type BuiltinConfig struct {
	Dataset     string
	SerperKey   string
	Searcher    WebSearcher
	Fetcher     PageFetcher
	SearchCache *storage.Cache[[]model.SearchResult]
	URLCache    *storage.Cache[string]
	Files       FileProcessor
	Code        CodeRunner
	Vision      llm.VisionProvider
	Video       llm.VideoProvider
	ImageDirs   []string
	Logger      *zap.Logger
}

// Builtin resolves calls against the registered research tools.
type Builtin struct {
	dataset  string
	registry *Registry
	vqa      *VisualQATool
	video    *YouTubeQATool
	logger   *zap.Logger
}

var (
	_ backend.Backend = (*Builtin)(nil)
	_ backend.Lister  = (*Builtin)(nil)
)

// NewBuiltin registers the six research tools.
func NewBuiltin(cfg BuiltinConfig) (*Builtin, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	searchCache := cfg.SearchCache
	if searchCache == nil {
		searchCache = storage.NewCache[[]model.SearchResult](nil)
	}
	urlCache := cfg.URLCache
	if urlCache == nil {
		urlCache = storage.NewCache[string](nil)
	}
	snippets := storage.NewCache[string](nil)

	b := &Builtin{
		dataset:  cfg.Dataset,
		registry: NewRegistry(),
		vqa:      NewVisualQATool(cfg.Vision, cfg.ImageDirs...),
		video:    NewYouTubeQATool(cfg.Video),
		logger:   logger.With(zap.String("component", "builtin"), zap.String("dataset", cfg.Dataset)),
	}

	for _, t := range []Tool{
		NewWebSearchTool(cfg.SerperKey, cfg.Searcher, searchCache, snippets, logger),
		NewBrowsePagesTool(cfg.Fetcher, urlCache, snippets, logger),
		NewProcessFileTool(cfg.Files),
		NewExecutePythonTool(cfg.Code),
		b.vqa,
		b.video,
	} {
		if err := b.registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register built-in tools: %w", err)
		}
	}
	return b, nil
}

// Kind returns KindBuiltin.
func (b *Builtin) Kind() backend.Kind { return backend.KindBuiltin }

// Functions lists every registered tool spec.
func (b *Builtin) Functions() []model.ToolSpec {
	return b.registry.Specs("")
}

// Specs lists the tool specs whose names start with prefix.
func (b *Builtin) Specs(prefix string) []model.ToolSpec {
	return b.registry.Specs(prefix)
}

// SetVision replaces the vision client used by visual_question_answering.
func (b *Builtin) SetVision(v llm.VisionProvider) { b.vqa.SetProvider(v) }

// SetVideo replaces the video client used by youtube_video_question_answering.
func (b *Builtin) SetVideo(v llm.VideoProvider) { b.video.SetProvider(v) }

// Call runs the named tool.
func (b *Builtin) Call(ctx context.Context, call model.ToolCall, _ *model.RolloutState) model.Result {
	tool, ok := b.registry.Get(call.Name)
	if !ok {
		return model.Errorf("Unknown function for dataset %s: %s", b.dataset, call.Name)
	}
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	res := tool.Execute(ctx, args)
	if res.Failed() {
		b.logger.Debug("tool returned error", zap.String("tool", call.Name), zap.String("error", res.Err))
	}
	return res
}

func functions(specs ...model.ToolSpec) []model.Function {
	out := make([]model.Function, len(specs))
	for i, s := range specs {
		out[i] = s.AsFunction()
	}
	return out
}

// GAIAToolDocs lists the GAIA tools for a task type: text, mm or file.
func GAIAToolDocs(taskType string) []model.Function {
	specs := []model.ToolSpec{
		(&WebSearchTool{}).Spec(),
		(&BrowsePagesTool{}).Spec(),
		(&ExecutePythonTool{}).Spec(),
	}
	if taskType == "file" {
		specs = append(specs, (&ProcessFileTool{}).Spec(), (&VisualQATool{}).Spec())
	}
	return functions(specs...)
}

// HLEToolDocs lists the HLE tools for a task type: text or mm.
func HLEToolDocs(taskType string) []model.Function {
	specs := []model.ToolSpec{
		(&WebSearchTool{}).Spec(),
		(&BrowsePagesTool{}).Spec(),
		(&ExecutePythonTool{}).Spec(),
	}
	if taskType == "mm" {
		specs = append(specs, (&VisualQATool{}).Spec())
	}
	return functions(specs...)
}

// BrowseCompToolDocs lists the BrowseComp tools.
func BrowseCompToolDocs() []model.Function {
	return functions((&WebSearchTool{}).Spec(), (&BrowsePagesTool{}).Spec())
}
