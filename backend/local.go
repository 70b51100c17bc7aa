package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/richinex/toolhub/model"
	"go.uber.org/zap"
)

// FunctionRunner executes a function bound to a rollout. sources holds the
// rollout's function definitions, in which spec.Name is resolved.
type FunctionRunner interface {
	RunFunction(ctx context.Context, spec model.ToolSpec, sources []string, args map[string]any) (any, error)
}

// Func is a function bound in Go.
type Func func(ctx context.Context, args map[string]any) (any, error)

// FunctionMap runs functions bound by name in Go, ignoring sources.
type FunctionMap map[string]Func

// RunFunction calls the function registered under spec.Name.
func (m FunctionMap) RunFunction(ctx context.Context, spec model.ToolSpec, _ []string, args map[string]any) (any, error) {
	fn, ok := m[spec.Name]
	if !ok {
		return nil, fmt.Errorf("function %s is not defined", spec.Name)
	}
	return fn(ctx, args)
}

// LocalDispatch runs the functions listed in a rollout's AvailableTools.
type LocalDispatch struct {
	runner FunctionRunner
	logger *zap.Logger
}

var _ Backend = (*LocalDispatch)(nil)

// NewLocalDispatch creates a dispatcher over runner.
func NewLocalDispatch(runner FunctionRunner, logger *zap.Logger) (*LocalDispatch, error) {
	if runner == nil {
		return nil, errors.New("local dispatch requires a function runner")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalDispatch{runner: runner, logger: logger.With(zap.String("component", "local_dispatch"))}, nil
}

// Kind returns KindLocalDispatch.
func (d *LocalDispatch) Kind() Kind { return KindLocalDispatch }

// Call resolves call.Name against the rollout's tools. Later entries shadow
// earlier ones.
func (d *LocalDispatch) Call(ctx context.Context, call model.ToolCall, rollout *model.RolloutState) model.Result {
	spec, ok := lookupLast(rollout, call.Name)
	if !ok {
		return model.Errorf("Tool '%s' not found in available tools.", call.Name)
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	v, err := d.runner.RunFunction(ctx, spec, rollout.Functions, args)
	if err != nil {
		d.logger.Debug("local function failed", zap.String("tool", call.Name), zap.Error(err))
		return model.Errorf("Error executing tool %s: %v", call.Name, err)
	}
	return model.OK(map[string]any{"response": v})
}

func lookupLast(rollout *model.RolloutState, name string) (model.ToolSpec, bool) {
	if rollout == nil {
		return model.ToolSpec{}, false
	}
	for i := len(rollout.AvailableTools) - 1; i >= 0; i-- {
		if rollout.AvailableTools[i].Name == name {
			return rollout.AvailableTools[i], true
		}
	}
	return model.ToolSpec{}, false
}
