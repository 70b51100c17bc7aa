package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/richinex/toolhub/model"
	"go.uber.org/zap"
)

// PayloadFormat selects the request body the generic caller sends.
type PayloadFormat int

const (
	// PayloadPlain sends {"name", "arguments"}.
	PayloadPlain PayloadFormat = iota
	// PayloadToolBench sends the RapidAPI forwarding server's body.
	PayloadToolBench
)

// DefaultServiceTimeout bounds one forwarded call.
const DefaultServiceTimeout = 60 * time.Second

// GenericConfig configures NewGenericCaller.
type GenericConfig struct {
	ServiceURL string
	Format     PayloadFormat
	// APIKey is sent as toolbench_key in ToolBench payloads.
	APIKey string
	// Docs resolve function names for ToolBench payloads and are listed by
	// Functions.
	Docs   []model.ToolDoc
	Client *http.Client
	Logger *zap.Logger
}

// GenericCaller forwards calls to a configured service endpoint.
type GenericCaller struct {
	serviceURL string
	format     PayloadFormat
	apiKey     string
	docs       []model.ToolDoc
	byFunction map[string]model.ToolDoc
	client     *http.Client
	logger     *zap.Logger
}

var (
	_ Backend = (*GenericCaller)(nil)
	_ Lister  = (*GenericCaller)(nil)
)

type toolBenchPayload struct {
	Category     string `json:"category"`
	ToolName     string `json:"tool_name"`
	APIName      string `json:"api_name"`
	ToolInput    string `json:"tool_input"`
	Strip        string `json:"strip"`
	ToolBenchKey string `json:"toolbench_key"`
}

type plainPayload struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// NewGenericCaller creates a generic caller. A service URL is required.
func NewGenericCaller(cfg GenericConfig) (*GenericCaller, error) {
	if cfg.ServiceURL == "" {
		return nil, errors.New("generic caller requires a service URL")
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultServiceTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	byFunction := make(map[string]model.ToolDoc, len(cfg.Docs))
	for _, d := range cfg.Docs {
		byFunction[d.CallSpec.Name] = d
	}

	return &GenericCaller{
		serviceURL: cfg.ServiceURL,
		format:     cfg.Format,
		apiKey:     cfg.APIKey,
		docs:       cfg.Docs,
		byFunction: byFunction,
		client:     client,
		logger:     logger.With(zap.String("component", "generic_caller")),
	}, nil
}

// Kind returns KindGeneric.
func (g *GenericCaller) Kind() Kind { return KindGeneric }

// Functions lists the loaded tool specs.
func (g *GenericCaller) Functions() []model.ToolSpec {
	specs := make([]model.ToolSpec, len(g.docs))
	for i, d := range g.docs {
		specs[i] = d.CallSpec
	}
	return specs
}

// Call forwards the call and returns the decoded response.
func (g *GenericCaller) Call(ctx context.Context, call model.ToolCall, _ *model.RolloutState) model.Result {
	body, err := g.payload(call)
	if err != nil {
		return model.ErrorResult(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.serviceURL, bytes.NewReader(body))
	if err != nil {
		return model.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("service call failed", zap.String("tool", call.Name), zap.Error(err))
		return model.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	v, err := readJSON(resp)
	if err != nil {
		return model.ErrorResult(err)
	}
	return model.OK(v)
}

func (g *GenericCaller) payload(call model.ToolCall) ([]byte, error) {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	if g.format == PayloadPlain {
		return json.Marshal(plainPayload{Name: call.Name, Arguments: args})
	}

	doc, ok := g.byFunction[call.Name]
	if !ok {
		return nil, fmt.Errorf("Unknown function: %s", call.Name)
	}
	input, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return json.Marshal(toolBenchPayload{
		Category:     doc.CategoryName,
		ToolName:     doc.ToolName,
		APIName:      doc.APIName,
		ToolInput:    string(input),
		Strip:        "truncate",
		ToolBenchKey: g.apiKey,
	})
}
