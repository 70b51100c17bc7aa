// Python Code Executor.
//
// Information Hiding:
// - Interpreter invocation and timeout handling hidden
// - Output capture and truncation hidden
// - Function binding script for locally executed tools hidden

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/richinex/toolhub/backend"
	"github.com/richinex/toolhub/model"
)

// CodeRunner executes a code snippet and returns its output.
type CodeRunner interface {
	RunCode(ctx context.Context, code string) (string, error)
}

const (
	resultMarker = "__toolhub_result__:"
	argsEnv      = "TOOLHUB_ARGS"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PythonSandbox runs code in a python interpreter subprocess with a
// timeout.
type PythonSandbox struct {
	interpreter string
	timeout     time.Duration
	maxOutput   int
}

var (
	_ CodeRunner             = (*PythonSandbox)(nil)
	_ backend.FunctionRunner = (*PythonSandbox)(nil)
)

// NewPythonSandbox creates a sandbox. Zero values fall back to python3, 30s
// and 1MB of output.
func NewPythonSandbox(interpreter string, timeout time.Duration, maxOutput int) *PythonSandbox {
	if interpreter == "" {
		interpreter = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxOutput <= 0 {
		maxOutput = 1024 * 1024
	}
	return &PythonSandbox{interpreter: interpreter, timeout: timeout, maxOutput: maxOutput}
}

// RunCode executes code and returns its combined output.
func (s *PythonSandbox) RunCode(ctx context.Context, code string) (string, error) {
	stdout, stderr, err := s.run(ctx, code, nil)
	output := stdout + stderr
	if err != nil {
		return output, err
	}
	return output, nil
}

// RunFunction defines sources in a fresh interpreter, calls spec.Name with
// args as keyword arguments and decodes its JSON-encoded return value.
func (s *PythonSandbox) RunFunction(ctx context.Context, spec model.ToolSpec, sources []string, args map[string]any) (any, error) {
	if !identifier.MatchString(spec.Name) {
		return nil, fmt.Errorf("invalid function name %q", spec.Name)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no function definitions bound for %s", spec.Name)
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	var script strings.Builder
	for _, src := range sources {
		script.WriteString(src)
		script.WriteString("\n\n")
	}
	fmt.Fprintf(&script, `import json as _json, os as _os
_result = %s(**_json.loads(_os.environ[%q]))
print(%q + _json.dumps(_result, default=str))
`, spec.Name, argsEnv, resultMarker)

	stdout, stderr, err := s.run(ctx, script.String(), []string{argsEnv + "=" + string(encoded)})
	if err != nil {
		if line := lastLine(stderr); line != "" {
			return nil, fmt.Errorf("%s", line)
		}
		return nil, err
	}

	idx := strings.LastIndex(stdout, resultMarker)
	if idx < 0 {
		return strings.TrimSpace(stdout), nil
	}
	raw := strings.TrimSpace(stdout[idx+len(resultMarker):])
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw, nil
	}
	return v, nil
}

func (s *PythonSandbox) run(ctx context.Context, code string, env []string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.interpreter, "-")
	cmd.Stdin = strings.NewReader(code)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out, errOut := s.clip(stdout.String()), s.clip(stderr.String())

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, errOut, fmt.Errorf("code execution timed out after %s", s.timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, errOut, fmt.Errorf("execution failed with exit code %d", exitErr.ExitCode())
		}
		return out, errOut, fmt.Errorf("failed to start interpreter: %w", err)
	}
	return out, errOut, nil
}

func (s *PythonSandbox) clip(out string) string {
	if len(out) > s.maxOutput {
		return out[:s.maxOutput] + "\n... (output truncated)"
	}
	return out
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// ExecutePythonTool answers execute_python_code calls.
type ExecutePythonTool struct {
	runner CodeRunner
}

type executePythonArgs struct {
	Code string `json:"code" jsonschema:"required,description=Python code to execute"`
}

// NewExecutePythonTool creates the execute_python_code tool.
func NewExecutePythonTool(runner CodeRunner) *ExecutePythonTool {
	return &ExecutePythonTool{runner: runner}
}

// Spec returns the tool signature.
func (t *ExecutePythonTool) Spec() model.ToolSpec {
	return model.ToolSpec{
		Name:        "execute_python_code",
		Description: "Execute Python code and return the result",
		Parameters:  schemaFor[executePythonArgs](),
	}
}

// Execute runs the code.
func (t *ExecutePythonTool) Execute(ctx context.Context, args map[string]any) model.Result {
	var a executePythonArgs
	if err := decodeArgs(args, &a); err != nil || a.Code == "" {
		return model.Errorf("Missing required parameter: code")
	}
	if t.runner == nil {
		return model.Errorf("Code execution is not configured")
	}

	output, err := t.runner.RunCode(ctx, a.Code)
	if err != nil {
		return model.Errorf("%v\noutput: %s", err, output)
	}
	return model.OK(map[string]any{"result": output})
}
