package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/richinex/toolhub/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteClientPostsRequest(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/retrieve", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(Response{Results: []model.ToolDoc{{ToolName: "get_weather"}}})
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL+"/", model.DatasetToolHop, nil)
	assert.Equal(t, srv.URL+"/retrieve", client.Endpoint())

	exec := []model.ToolSpec{{Name: "get_weather"}}
	docs, err := client.RetrieveTools(context.Background(), "weather", 3, exec)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "get_weather", docs[0].ToolName)

	assert.Equal(t, Request{DatasetName: "toolhop", Query: "weather", TopK: 3, ExecutableTools: exec}, got)
}

func TestRemoteClientForwardsExecutableToolsForToolHopOnly(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"results":null}`))
	}))
	defer srv.Close()

	docs, err := NewRemoteClient(srv.URL, model.DatasetToolBench, nil).
		RetrieveTools(context.Background(), "q", 2, []model.ToolSpec{{Name: "x"}})
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
	assert.NotContains(t, raw, "executable_tools")
}

func TestRemoteClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewRemoteClient(srv.URL, "gaia", nil).RetrieveTools(context.Background(), "q", 1, nil)
	assert.ErrorContains(t, err, "500")

	unreachable := NewRemoteClient("http://127.0.0.1:1", "gaia", nil)
	_, err = unreachable.RetrieveTools(context.Background(), "q", 1, nil)
	assert.Error(t, err)
}
