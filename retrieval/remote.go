package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/richinex/toolhub/model"
)

// RemoteTimeout bounds one remote retrieval request.
const RemoteTimeout = 60 * time.Second

// Request is the wire body of POST /retrieve.
type Request struct {
	DatasetName     string           `json:"dataset_name"`
	Query           string           `json:"query"`
	TopK            int              `json:"top_k"`
	ExecutableTools []model.ToolSpec `json:"executable_tools,omitempty"`
}

// Response is the wire body returned by POST /retrieve.
type Response struct {
	Results []model.ToolDoc `json:"results"`
}

// RemoteClient queries a tool-search server.
type RemoteClient struct {
	endpoint string
	dataset  string
	client   *http.Client
}

var _ Retriever = (*RemoteClient)(nil)

// NewRemoteClient targets base + "/retrieve". A nil client gets the default
// timeout.
func NewRemoteClient(base, dataset string, client *http.Client) *RemoteClient {
	if client == nil {
		client = &http.Client{Timeout: RemoteTimeout}
	}
	return &RemoteClient{
		endpoint: strings.TrimRight(base, "/") + "/retrieve",
		dataset:  dataset,
		client:   client,
	}
}

// Endpoint returns the full retrieval URL.
func (c *RemoteClient) Endpoint() string {
	return c.endpoint
}

// RetrieveTools posts the query. Executable tools are forwarded for ToolHop
// only.
func (c *RemoteClient) RetrieveTools(ctx context.Context, query string, k int, executable []model.ToolSpec) ([]model.ToolDoc, error) {
	req := Request{DatasetName: c.dataset, Query: query, TopK: k}
	if c.dataset == model.DatasetToolHop && len(executable) > 0 {
		req.ExecutableTools = executable
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode retrieval request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, RemoteTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("retrieval request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("retrieval server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode retrieval response: %w", err)
	}
	if out.Results == nil {
		out.Results = []model.ToolDoc{}
	}
	return out.Results, nil
}
