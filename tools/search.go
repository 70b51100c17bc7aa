// Web Search Tool.
//
// Information Hiding:
// - Serper request and response formats hidden
// - Result caching and snippet bookkeeping hidden

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/richinex/toolhub/model"
	"github.com/richinex/toolhub/storage"
	"go.uber.org/zap"
)

// DefaultSerperEndpoint is the Serper Google search API.
const DefaultSerperEndpoint = "https://google.serper.dev/search"

// WebSearcher performs a live web search.
type WebSearcher interface {
	Search(ctx context.Context, query, apiKey string) ([]model.SearchResult, error)
}

// SerperSearcher queries the Serper API.
type SerperSearcher struct {
	endpoint string
	client   *http.Client
}

// NewSerperSearcher creates a searcher. An empty endpoint uses
// DefaultSerperEndpoint.
func NewSerperSearcher(endpoint string, timeout time.Duration) *SerperSearcher {
	if endpoint == "" {
		endpoint = DefaultSerperEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SerperSearcher{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
		Date     string `json:"date"`
	} `json:"organic"`
}

// Search posts the query and returns the organic results.
func (s *SerperSearcher) Search(ctx context.Context, query, apiKey string) ([]model.SearchResult, error) {
	body, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned %s: %s", resp.Status, strings.TrimSpace(string(text)))
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(parsed.Organic))
	for _, o := range parsed.Organic {
		results = append(results, model.SearchResult{
			Title:    o.Title,
			URL:      o.Link,
			Snippet:  o.Snippet,
			Position: o.Position,
			Date:     o.Date,
		})
	}
	return results, nil
}

// WebSearchTool answers web_search calls from the search cache or a live
// search.
type WebSearchTool struct {
	apiKey   string
	searcher WebSearcher
	cache    *storage.Cache[[]model.SearchResult]
	snippets *storage.Cache[string]
	logger   *zap.Logger
}

type webSearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query"`
}

// NewWebSearchTool creates the web_search tool. snippets receives
// url → snippet for every live result.
func NewWebSearchTool(apiKey string, searcher WebSearcher, cache *storage.Cache[[]model.SearchResult], snippets *storage.Cache[string], logger *zap.Logger) *WebSearchTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSearchTool{
		apiKey:   apiKey,
		searcher: searcher,
		cache:    cache,
		snippets: snippets,
		logger:   logger.With(zap.String("tool", "web_search")),
	}
}

// Spec returns the tool signature.
func (t *WebSearchTool) Spec() model.ToolSpec {
	return model.ToolSpec{
		Name:        "web_search",
		Description: "Search the web for information using Google",
		Parameters:  schemaFor[webSearchArgs](),
	}
}

// Execute runs the search.
func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) model.Result {
	if t.apiKey == "" {
		return model.Errorf("Missing Serper API key (serper_api_key or google_serper_api).")
	}
	var a webSearchArgs
	if err := decodeArgs(args, &a); err != nil || a.Query == "" {
		return model.Errorf("Missing required parameter: query")
	}

	if cached, ok := t.cache.Get(a.Query); ok {
		t.logger.Debug("search cache hit", zap.String("query", a.Query))
		return model.OK(cached)
	}
	if t.searcher == nil {
		return model.ErrorResult(errors.New("web search is not configured"))
	}

	results, err := t.searcher.Search(ctx, a.Query, t.apiKey)
	if err != nil {
		t.logger.Warn("search failed", zap.String("query", a.Query), zap.Error(err))
		return model.Errorf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.URL != "" && r.Snippet != "" {
			t.snippets.Put(r.URL, r.Snippet)
		}
	}
	t.cache.Put(a.Query, results)
	return model.OK(results)
}

// FormatSearchResults renders results as numbered JSON blocks for a prompt,
// stripping <b> highlight tags.
func FormatSearchResults(results []model.SearchResult) string {
	strip := strings.NewReplacer("<b>", "", "</b>", "")
	var b strings.Builder
	for i, r := range results {
		r.Title = strip.Replace(r.Title)
		r.Snippet = strip.Replace(r.Snippet)
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "***Web Page %d:***\n%s\n", i+1, data)
	}
	return b.String()
}
