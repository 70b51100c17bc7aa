package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultMarshalsErrorPayload(t *testing.T) {
	data, err := json.Marshal(Errorf("Missing required parameter: %s", "query"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Missing required parameter: query"}`, string(data))

	data, err = json.Marshal(OK([]string{"a"}))
	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, string(data))
}

func TestResultUnmarshalRecognisesErrorObject(t *testing.T) {
	var r Result
	require.NoError(t, json.Unmarshal([]byte(`{"error":"boom"}`), &r))
	assert.True(t, r.Failed())
	assert.Equal(t, "boom", r.Err)

	// An object that merely contains an error key alongside data is a value.
	require.NoError(t, json.Unmarshal([]byte(`{"error":"", "response":1}`), &r))
	assert.False(t, r.Failed())
}

func TestConfigurationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("call_tool: %w", NewConfigurationError("orchestrator", "no backend"))
	assert.True(t, errors.Is(err, ErrConfiguration))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "orchestrator", cfgErr.Component)
}

func TestRolloutFinishIsSticky(t *testing.T) {
	s := &RolloutState{ID: 3}
	assert.Equal(t, PhasePending, s.Phase)
	assert.Equal(t, 3, s.EnvIndex())

	s.Begin()
	assert.Equal(t, PhaseRunning, s.Phase)
	assert.Equal(t, 1, s.Steps)

	s.Finish(OutcomeSuccess, 1.0)
	s.Finish(OutcomeFailure, 0)
	assert.True(t, s.Finished)
	assert.True(t, s.Success)
	assert.Equal(t, 1.0, s.Reward)
	assert.Equal(t, OutcomeSuccess, s.Outcome)

	s.Begin()
	assert.Equal(t, 1, s.Steps)
}

func TestEnvIndexPrefersEnvID(t *testing.T) {
	env := 7
	s := &RolloutState{ID: 1, EnvID: &env}
	assert.Equal(t, 7, s.EnvIndex())
}
