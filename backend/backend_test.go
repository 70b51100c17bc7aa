package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/richinex/toolhub/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenericCallerToolBenchPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"error":"","response":"sunny"}`))
	}))
	defer srv.Close()

	caller, err := NewGenericCaller(GenericConfig{
		ServiceURL: srv.URL,
		Format:     PayloadToolBench,
		APIKey:     "tb-key",
		Docs: []model.ToolDoc{{
			ToolName:     "open_weather",
			APIName:      "current",
			CategoryName: "Weather",
			CallSpec:     model.ToolSpec{Name: "current_for_open_weather"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, KindGeneric, caller.Kind())
	assert.Len(t, caller.Functions(), 1)

	res := caller.Call(context.Background(), model.ToolCall{
		Name:      "current_for_open_weather",
		Arguments: map[string]any{"city": "Paris"},
	}, nil)
	require.False(t, res.Failed(), res.Err)
	assert.Equal(t, "sunny", res.Value.(map[string]any)["response"])

	assert.Equal(t, map[string]any{
		"category":      "Weather",
		"tool_name":     "open_weather",
		"api_name":      "current",
		"tool_input":    `{"city":"Paris"}`,
		"strip":         "truncate",
		"toolbench_key": "tb-key",
	}, got)

	res = caller.Call(context.Background(), model.ToolCall{Name: "nope"}, nil)
	assert.Equal(t, "Unknown function: nope", res.Err)
}

func TestGenericCallerPlainPayloadAndFailures(t *testing.T) {
	var got plainPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.Name == "Broken" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	caller, err := NewGenericCaller(GenericConfig{ServiceURL: srv.URL})
	require.NoError(t, err)

	res := caller.Call(context.Background(), model.ToolCall{Name: "QueryStock", Arguments: map[string]any{"symbol": "X"}}, nil)
	require.False(t, res.Failed())
	assert.Equal(t, "plain text", res.Value)
	assert.Equal(t, "QueryStock", got.Name)

	res = caller.Call(context.Background(), model.ToolCall{Name: "Broken"}, nil)
	assert.Contains(t, res.Err, "HTTP error: 502")

	_, err = NewGenericCaller(GenericConfig{})
	assert.Error(t, err)

	down, err := NewGenericCaller(GenericConfig{ServiceURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	res = down.Call(context.Background(), model.ToolCall{Name: "x"}, nil)
	assert.Contains(t, res.Err, "request failed")
}

func TestCachedTokenReuseAndExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var fetches atomic.Int32
	tok := NewCachedToken(func(context.Context) (string, time.Time, error) {
		n := fetches.Add(1)
		return "tok-" + string(rune('0'+n)), now.Add(time.Hour), nil
	}, func() time.Time { return now })

	ctx := context.Background()
	first, err := tok.Token(ctx)
	require.NoError(t, err)
	again, err := tok.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", first)
	assert.Equal(t, first, again)
	assert.EqualValues(t, 1, fetches.Load())

	now = now.Add(time.Hour)
	renewed, err := tok.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", renewed)
	assert.EqualValues(t, 2, fetches.Load())
}

func TestCachedTokenFetchError(t *testing.T) {
	tok := NewCachedToken(func(context.Context) (string, time.Time, error) {
		return "", time.Time{}, errors.New("denied")
	}, nil)
	_, err := tok.Token(context.Background())
	assert.ErrorContains(t, err, "denied")
}

func TestClientCredentialsToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"spotify-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	tok := NewClientCredentialsToken("id", "secret", srv.URL, srv.Client())
	for range 3 {
		got, err := tok.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "spotify-token", got)
	}
	assert.EqualValues(t, 1, calls.Load())

	_, err := NewClientCredentialsToken("", "", srv.URL, nil).Token(context.Background())
	assert.Error(t, err)
}

func TestTicketedCallerRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tmdb-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/movie/550":
			w.Write([]byte(`{"title":"Fight Club"}`))
		case "/search/movie":
			w.Write([]byte(`{"query":"` + r.URL.Query().Get("query") + `"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	caller, err := NewTicketedCaller(TicketedConfig{Dataset: model.DatasetTMDB, BaseURL: srv.URL, Tokens: StaticToken("tmdb-token")})
	require.NoError(t, err)
	assert.Equal(t, KindTicketed, caller.Kind())
	assert.Equal(t, []string{
		"tmdb_get_movie_details: Get details about a movie",
		"tmdb_search_movies: Search for movies",
	}, caller.EndpointsSummary())

	ctx := context.Background()
	res := caller.Call(ctx, model.ToolCall{Name: "tmdb_get_movie_details", Arguments: map[string]any{"movie_id": float64(550)}}, nil)
	require.False(t, res.Failed(), res.Err)
	assert.Equal(t, "Fight Club", res.Value.(map[string]any)["title"])

	res = caller.Call(ctx, model.ToolCall{Name: "tmdb_search_movies", Arguments: map[string]any{"query": "heat"}}, nil)
	assert.Equal(t, "heat", res.Value.(map[string]any)["query"])

	res = caller.Call(ctx, model.ToolCall{Name: "tmdb_search_movies"}, nil)
	assert.Equal(t, "Missing required parameter: query", res.Err)

	res = caller.Call(ctx, model.ToolCall{Name: "tmdb_delete"}, nil)
	assert.Equal(t, "Unknown TMDB tool: tmdb_delete", res.Err)
}

func TestTicketedCallerFailuresBecomeResults(t *testing.T) {
	caller, err := NewTicketedCaller(TicketedConfig{Dataset: model.DatasetSpotify, BaseURL: "http://127.0.0.1:1", Tokens: StaticToken("t")})
	require.NoError(t, err)

	res := caller.Call(context.Background(), model.ToolCall{Name: "spotify_get_artist", Arguments: map[string]any{"artist_id": "abc"}}, nil)
	assert.Contains(t, res.Err, "Failed to get artist")

	noToken, err := NewTicketedCaller(TicketedConfig{Dataset: model.DatasetSpotify, BaseURL: "http://127.0.0.1:1", Tokens: StaticToken("")})
	require.NoError(t, err)
	res = noToken.Call(context.Background(), model.ToolCall{Name: "spotify_search_tracks", Arguments: map[string]any{"query": "q"}}, nil)
	assert.Contains(t, res.Err, "Failed to search tracks")

	_, err = NewTicketedCaller(TicketedConfig{Dataset: "gaia", BaseURL: "x", Tokens: StaticToken("t")})
	assert.Error(t, err)
}

func TestSpotifySearchQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "track", r.URL.Query().Get("type"))
		assert.Equal(t, "blue in green", r.URL.Query().Get("q"))
		w.Write([]byte(`{"tracks":{"items":[]}}`))
	}))
	defer srv.Close()

	caller, err := NewTicketedCaller(TicketedConfig{Dataset: model.DatasetSpotify, BaseURL: srv.URL + "/", Tokens: StaticToken("t")})
	require.NoError(t, err)
	res := caller.Call(context.Background(), model.ToolCall{Name: "spotify_search_tracks", Arguments: map[string]any{"query": "blue in green"}}, nil)
	assert.False(t, res.Failed(), res.Err)
	assert.Len(t, RestBenchFunctions(model.DatasetSpotify), 2)
}

type fakeEnv struct {
	steps  []StepResult
	err    error
	calls  []stepRequest
	resets []int
}

func (f *fakeEnv) Step(_ context.Context, envIndex int, action string, args map[string]any) (StepResult, error) {
	f.calls = append(f.calls, stepRequest{EnvIndex: envIndex, Action: action, Arguments: args})
	if f.err != nil {
		return StepResult{}, f.err
	}
	if len(f.steps) == 0 {
		return StepResult{Observation: "nothing happens"}, nil
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	return s, nil
}

func (f *fakeEnv) Reset(_ context.Context, batchSize int) ([]string, error) {
	f.resets = append(f.resets, batchSize)
	return []string{"You are in a room."}, nil
}

func TestStepperPlaceholderPolicy(t *testing.T) {
	env := &fakeEnv{}
	s, err := NewStepper(ALFWorldVocabulary, env, nil, nil)
	require.NoError(t, err)

	envID := 7
	state := &model.RolloutState{ID: 1, EnvID: &envID}
	res := s.Call(context.Background(), model.ToolCall{Name: "goto", Arguments: map[string]any{"location": "desk 1"}}, state)
	require.False(t, res.Failed(), res.Err)
	assert.Equal(t, "nothing happens", res.Value)
	assert.Equal(t, 7, env.calls[0].EnvIndex)

	assert.True(t, state.Finished)
	assert.True(t, state.Success)
	assert.Equal(t, 1.0, state.Reward)

	res = s.Call(context.Background(), model.ToolCall{Name: "look"}, state)
	assert.True(t, res.Failed())
	assert.Len(t, env.calls, 1, "terminal rollout must not reach the environment")
}

func TestStepperValidation(t *testing.T) {
	env := &fakeEnv{}
	s, err := NewStepper(WebShopVocabulary, env, nil, nil)
	require.NoError(t, err)

	state := &model.RolloutState{ID: 2}
	res := s.Call(context.Background(), model.ToolCall{Name: "goto"}, state)
	assert.Equal(t, "Unknown WebShop action: goto", res.Err)

	res = s.Call(context.Background(), model.ToolCall{Name: "buy"}, state)
	assert.Equal(t, "Missing required parameter: product_id", res.Err)
	assert.Empty(t, env.calls)
	assert.False(t, state.Finished)

	obs, err := s.Reset(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"You are in a room."}, obs)
	assert.Equal(t, []int{500}, env.resets)
}

func TestStepperEnvironmentErrorLeavesState(t *testing.T) {
	s, err := NewStepper(ALFWorldVocabulary, &fakeEnv{err: errors.New("connection refused")}, nil, nil)
	require.NoError(t, err)

	state := &model.RolloutState{ID: 3}
	res := s.Call(context.Background(), model.ToolCall{Name: "look"}, state)
	assert.Contains(t, res.Err, "connection refused")
	assert.Equal(t, model.RolloutState{ID: 3}, *state)
}

func TestFeedbackPolicy(t *testing.T) {
	env := &fakeEnv{steps: []StepResult{
		{Observation: "a"},
		{Observation: "b", Reward: 0.5},
		{Observation: "c"},
	}}
	s, err := NewStepper(ALFWorldVocabulary, env, FeedbackPolicy{MaxSteps: 3}, nil)
	require.NoError(t, err)

	state := &model.RolloutState{ID: 0}
	ctx := context.Background()
	s.Call(ctx, model.ToolCall{Name: "look"}, state)
	assert.False(t, state.Finished)
	s.Call(ctx, model.ToolCall{Name: "look"}, state)
	assert.False(t, state.Finished)
	assert.Equal(t, 0.5, state.Reward)
	s.Call(ctx, model.ToolCall{Name: "look"}, state)
	assert.True(t, state.Finished)
	assert.Equal(t, model.OutcomeTruncated, state.Outcome)
	assert.False(t, state.Success)

	won := &model.RolloutState{}
	FeedbackPolicy{}.Apply(won, StepResult{Done: true, Won: true, Reward: 1})
	assert.True(t, won.Success)

	lost := &model.RolloutState{}
	FeedbackPolicy{}.Apply(lost, StepResult{Done: true, Reward: 0.2})
	assert.Equal(t, model.OutcomeFailure, lost.Outcome)
	assert.Equal(t, 0.2, lost.Reward)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("", 0)
	require.NoError(t, err)
	assert.IsType(t, PlaceholderPolicy{}, p)

	p, err = ParsePolicy("Feedback", 30)
	require.NoError(t, err)
	assert.Equal(t, FeedbackPolicy{MaxSteps: 30}, p)

	_, err = ParsePolicy("random", 0)
	assert.Error(t, err)
}

func TestHTTPEnvironment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/step":
			var req stepRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			json.NewEncoder(w).Encode(StepResult{Observation: "took " + req.Arguments["object"].(string), Done: true, Won: true, Reward: 1})
		case "/reset":
			var req resetRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, 134, req.BatchSize)
			w.Write([]byte(`{"observations":["You are in a room."]}`))
		}
	}))
	defer srv.Close()

	env := NewHTTPEnvironment(srv.URL, nil)
	step, err := env.Step(context.Background(), 4, "take", map[string]any{"object": "apple 1"})
	require.NoError(t, err)
	assert.Equal(t, StepResult{Observation: "took apple 1", Done: true, Won: true, Reward: 1}, step)

	obs, err := env.Reset(context.Background(), 134)
	require.NoError(t, err)
	assert.Len(t, obs, 1)
}

type recordingRunner struct {
	spec    model.ToolSpec
	sources []string
	err     error
}

func (r *recordingRunner) RunFunction(_ context.Context, spec model.ToolSpec, sources []string, _ map[string]any) (any, error) {
	r.spec, r.sources = spec, sources
	if r.err != nil {
		return nil, r.err
	}
	return 42, nil
}

func TestLocalDispatchShadowing(t *testing.T) {
	runner := &recordingRunner{}
	d, err := NewLocalDispatch(runner, nil)
	require.NoError(t, err)
	assert.Equal(t, KindLocalDispatch, d.Kind())

	state := &model.RolloutState{
		AvailableTools: []model.ToolSpec{
			{Name: "add", Description: "first"},
			{Name: "mul"},
			{Name: "add", Description: "second"},
		},
		Functions: []string{"def add(a, b): return a + b"},
	}
	res := d.Call(context.Background(), model.ToolCall{Name: "add"}, state)
	require.False(t, res.Failed(), res.Err)
	assert.Equal(t, map[string]any{"response": 42}, res.Value)
	assert.Equal(t, "second", runner.spec.Description)
	assert.Equal(t, state.Functions, runner.sources)

	res = d.Call(context.Background(), model.ToolCall{Name: "sub"}, state)
	assert.Equal(t, "Tool 'sub' not found in available tools.", res.Err)

	runner.err = errors.New("division by zero")
	res = d.Call(context.Background(), model.ToolCall{Name: "mul"}, state)
	assert.Equal(t, "Error executing tool mul: division by zero", res.Err)
}

func TestFunctionMap(t *testing.T) {
	fm := FunctionMap{"echo": func(_ context.Context, args map[string]any) (any, error) { return args["x"], nil }}
	v, err := fm.RunFunction(context.Background(), model.ToolSpec{Name: "echo"}, nil, map[string]any{"x": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", v)

	_, err = fm.RunFunction(context.Background(), model.ToolSpec{Name: "missing"}, nil, nil)
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "none", KindNone.String())
	assert.Equal(t, "builtin", KindBuiltin.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
