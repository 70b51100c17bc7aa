package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/richinex/toolhub/model"
	"go.uber.org/zap"
)

// StepResult is an environment's response to one action.
type StepResult struct {
	Observation string  `json:"observation"`
	Done        bool    `json:"done"`
	Won         bool    `json:"won"`
	Reward      float64 `json:"reward"`
}

// Environment executes actions in a batched embodied environment.
type Environment interface {
	Step(ctx context.Context, envIndex int, action string, args map[string]any) (StepResult, error)
	Reset(ctx context.Context, batchSize int) ([]string, error)
}

// HTTPEnvironment talks to an environment server over JSON/HTTP.
type HTTPEnvironment struct {
	baseURL string
	client  *http.Client
}

// NewHTTPEnvironment creates an environment client rooted at baseURL.
func NewHTTPEnvironment(baseURL string, client *http.Client) *HTTPEnvironment {
	if client == nil {
		client = &http.Client{Timeout: DefaultServiceTimeout}
	}
	return &HTTPEnvironment{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type stepRequest struct {
	EnvIndex  int            `json:"env_index"`
	Action    string         `json:"action"`
	Arguments map[string]any `json:"arguments"`
}

type resetRequest struct {
	BatchSize int `json:"batch_size"`
}

type resetResponse struct {
	Observations []string `json:"observations"`
}

// Step posts one action to /step.
func (e *HTTPEnvironment) Step(ctx context.Context, envIndex int, action string, args map[string]any) (StepResult, error) {
	var out StepResult
	err := e.post(ctx, "/step", stepRequest{EnvIndex: envIndex, Action: action, Arguments: args}, &out)
	return out, err
}

// Reset posts to /reset and returns the initial observations.
func (e *HTTPEnvironment) Reset(ctx context.Context, batchSize int) ([]string, error) {
	var out resetResponse
	if err := e.post(ctx, "/reset", resetRequest{BatchSize: batchSize}, &out); err != nil {
		return nil, err
	}
	return out.Observations, nil
}

func (e *HTTPEnvironment) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("environment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("environment returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode environment response: %w", err)
	}
	return nil
}

// Vocabulary is the action set of an environment family.
type Vocabulary struct {
	Name             string
	DefaultBatchSize int
	Actions          []model.ToolSpec
}

func (v Vocabulary) action(name string) (model.ToolSpec, bool) {
	for _, a := range v.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return model.ToolSpec{}, false
}

// ALFWorldVocabulary is the household task action set.
var ALFWorldVocabulary = Vocabulary{
	Name:             "ALFWorld",
	DefaultBatchSize: 134,
	Actions: []model.ToolSpec{
		{Name: "goto", Description: "Go to a location", Parameters: objectSchema([]string{"location"}, [2]string{"location", "Target location"})},
		{Name: "take", Description: "Take an object", Parameters: objectSchema([]string{"object"}, [2]string{"object", "Object to take"})},
		{Name: "put", Description: "Put an object in/on a location", Parameters: objectSchema(
			[]string{"object", "location"},
			[2]string{"object", "Object to put"},
			[2]string{"location", "Target location"},
		)},
		{Name: "look", Description: "Look around", Parameters: objectSchema(nil)},
		{Name: "open", Description: "Open a container", Parameters: objectSchema([]string{"container"}, [2]string{"container", "Container to open"})},
		{Name: "close", Description: "Close a container", Parameters: objectSchema([]string{"container"}, [2]string{"container", "Container to close"})},
	},
}

// WebShopVocabulary is the online shopping action set.
var WebShopVocabulary = Vocabulary{
	Name:             "WebShop",
	DefaultBatchSize: 500,
	Actions: []model.ToolSpec{
		{Name: "search", Description: "Search for products", Parameters: objectSchema([]string{"query"}, [2]string{"query", "Search query"})},
		{Name: "click", Description: "Click on an element", Parameters: objectSchema([]string{"target"}, [2]string{"target", "Element to click"})},
		{Name: "buy", Description: "Buy a product", Parameters: objectSchema([]string{"product_id"}, [2]string{"product_id", "Product to buy"})},
	},
}

// EpisodePolicy applies the effect of a successful step to a rollout.
type EpisodePolicy interface {
	Apply(state *model.RolloutState, step StepResult)
}

// PlaceholderPolicy completes the episode on the first successful action.
type PlaceholderPolicy struct{}

// Apply finishes the rollout with success and reward 1.
func (PlaceholderPolicy) Apply(state *model.RolloutState, _ StepResult) {
	state.Finish(model.OutcomeSuccess, 1.0)
}

// FeedbackPolicy follows the environment's done/won/reward signals.
// A positive MaxSteps truncates episodes that run longer.
type FeedbackPolicy struct {
	MaxSteps int
}

// Apply finishes the rollout when the environment reports done, or when the
// step budget is spent.
func (p FeedbackPolicy) Apply(state *model.RolloutState, step StepResult) {
	switch {
	case step.Done:
		outcome := model.OutcomeFailure
		if step.Won || step.Reward >= 1 {
			outcome = model.OutcomeSuccess
		}
		state.Finish(outcome, step.Reward)
	case p.MaxSteps > 0 && state.Steps >= p.MaxSteps:
		state.Finish(model.OutcomeTruncated, step.Reward)
	default:
		state.Reward = step.Reward
	}
}

// ParsePolicy maps a policy name to an EpisodePolicy.
func ParsePolicy(name string, maxSteps int) (EpisodePolicy, error) {
	switch strings.ToLower(name) {
	case "", "placeholder":
		return PlaceholderPolicy{}, nil
	case "feedback":
		return FeedbackPolicy{MaxSteps: maxSteps}, nil
	default:
		return nil, fmt.Errorf("unknown episode policy: %s", name)
	}
}

// Stepper validates actions against a vocabulary and forwards them to an
// Environment.
type Stepper struct {
	vocab  Vocabulary
	env    Environment
	policy EpisodePolicy
	logger *zap.Logger
}

var (
	_ Backend = (*Stepper)(nil)
	_ Lister  = (*Stepper)(nil)
)

// NewStepper creates a stepper. A nil policy uses PlaceholderPolicy.
func NewStepper(vocab Vocabulary, env Environment, policy EpisodePolicy, logger *zap.Logger) (*Stepper, error) {
	if env == nil {
		return nil, errors.New("stepper requires an environment")
	}
	if policy == nil {
		policy = PlaceholderPolicy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stepper{
		vocab:  vocab,
		env:    env,
		policy: policy,
		logger: logger.With(zap.String("component", "stepper"), zap.String("env", vocab.Name)),
	}, nil
}

// Kind returns KindStepper.
func (s *Stepper) Kind() Kind { return KindStepper }

// Functions lists the vocabulary's actions.
func (s *Stepper) Functions() []model.ToolSpec {
	return append([]model.ToolSpec(nil), s.vocab.Actions...)
}

// Reset starts a new batch of episodes. A non-positive size uses the
// vocabulary's default.
func (s *Stepper) Reset(ctx context.Context, batchSize int) ([]string, error) {
	if batchSize <= 0 {
		batchSize = s.vocab.DefaultBatchSize
	}
	return s.env.Reset(ctx, batchSize)
}

// Call performs one step for the rollout's environment slot.
func (s *Stepper) Call(ctx context.Context, call model.ToolCall, rollout *model.RolloutState) model.Result {
	if rollout == nil {
		return model.Errorf("%s action requires a rollout state", s.vocab.Name)
	}
	if rollout.Terminal() {
		return model.Errorf("Episode already finished for rollout %d", rollout.ID)
	}

	spec, ok := s.vocab.action(call.Name)
	if !ok {
		return model.Errorf("Unknown %s action: %s", s.vocab.Name, call.Name)
	}
	if missing := missingRequired(spec, call.Arguments); missing != "" {
		return model.Errorf("Missing required parameter: %s", missing)
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	step, err := s.env.Step(ctx, rollout.EnvIndex(), call.Name, args)
	if err != nil {
		s.logger.Warn("environment step failed",
			zap.Int("env_index", rollout.EnvIndex()),
			zap.String("action", call.Name),
			zap.Error(err))
		return model.Errorf("Error executing %s action %s: %v", s.vocab.Name, call.Name, err)
	}

	rollout.Begin()
	s.policy.Apply(rollout, step)
	return model.OK(step.Observation)
}
