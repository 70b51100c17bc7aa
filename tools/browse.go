// Page Browsing Tool.
//
// Information Hiding:
// - HTML to text extraction hidden
// - Jina reader routing hidden
// - Concurrent batch fetching hidden

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/richinex/toolhub/model"
	"github.com/richinex/toolhub/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxPageChars bounds the page text returned to the model.
const MaxPageChars = 10000

const (
	jinaReaderURL      = "https://r.jina.ai/"
	maxPageBytes       = 5 * 1024 * 1024
	defaultConcurrency = 8
)

// PageResult is the outcome of fetching one URL.
type PageResult struct {
	Text string
	Err  error
}

// PageFetcher fetches a batch of pages. The result has one entry per input
// URL.
type PageFetcher interface {
	FetchPages(ctx context.Context, urls []string) map[string]PageResult
}

// FetcherConfig configures NewHTTPFetcher.
type FetcherConfig struct {
	UseJina     bool
	JinaAPIKey  string
	Concurrency int
	Timeout     time.Duration
	// ReaderURL overrides the Jina reader prefix.
	ReaderURL string
	Client    *http.Client
}

// HTTPFetcher fetches pages directly, or through the Jina reader.
type HTTPFetcher struct {
	useJina     bool
	jinaKey     string
	readerURL   string
	concurrency int
	client      *http.Client
}

// NewHTTPFetcher creates a fetcher.
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	readerURL := cfg.ReaderURL
	if readerURL == "" {
		readerURL = jinaReaderURL
	}
	return &HTTPFetcher{
		useJina:     cfg.UseJina,
		jinaKey:     cfg.JinaAPIKey,
		readerURL:   readerURL,
		concurrency: concurrency,
		client:      client,
	}
}

// FetchPages fetches every URL, at most concurrency at a time. A failed URL
// does not affect the others.
func (f *HTTPFetcher) FetchPages(ctx context.Context, urls []string) map[string]PageResult {
	var (
		mu      sync.Mutex
		results = make(map[string]PageResult, len(urls))
		g       errgroup.Group
	)
	g.SetLimit(f.concurrency)

	for _, u := range urls {
		g.Go(func() error {
			text, err := f.fetch(ctx, u)
			mu.Lock()
			results[u] = PageResult{Text: text, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) (string, error) {
	target := url
	if f.useJina {
		target = f.readerURL + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; toolhub/1.0)")
	if f.useJina && f.jinaKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.jinaKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	if f.useJina || !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to read body: %w", err)
		}
		return string(data), nil
	}
	return htmlText(body)
}

// htmlText extracts the visible text of an HTML document, one block per
// line.
func htmlText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, iframe, svg").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(lines, "\n"), nil
}

// BrowsePagesTool answers browse_pages calls from the URL cache or a batch
// fetch.
type BrowsePagesTool struct {
	fetcher  PageFetcher
	cache    *storage.Cache[string]
	snippets *storage.Cache[string]
	logger   *zap.Logger
}

type browsePagesArgs struct {
	URLs []string `json:"urls" jsonschema:"required,description=List of URLs to browse"`
}

// NewBrowsePagesTool creates the browse_pages tool. snippets is the
// url → snippet map filled by web_search.
func NewBrowsePagesTool(fetcher PageFetcher, cache, snippets *storage.Cache[string], logger *zap.Logger) *BrowsePagesTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowsePagesTool{
		fetcher:  fetcher,
		cache:    cache,
		snippets: snippets,
		logger:   logger.With(zap.String("tool", "browse_pages")),
	}
}

// Spec returns the tool signature.
func (t *BrowsePagesTool) Spec() model.ToolSpec {
	return model.ToolSpec{
		Name:        "browse_pages",
		Description: "Browse web pages and extract their content",
		Parameters:  schemaFor[browsePagesArgs](),
	}
}

// urlList accepts only a non-empty JSON array of strings.
func urlList(v any) ([]string, bool) {
	var urls []string
	switch x := v.(type) {
	case []string:
		urls = x
	case []any:
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			urls = append(urls, s)
		}
	default:
		return nil, false
	}
	return urls, len(urls) > 0
}

// Execute returns one text entry per distinct URL.
func (t *BrowsePagesTool) Execute(ctx context.Context, args map[string]any) model.Result {
	urls, ok := urlList(args["urls"])
	if !ok {
		return model.Errorf("Missing or invalid parameter: urls (non-empty list required)")
	}

	out := make(map[string]string, len(urls))
	var uncached []string
	for _, u := range urls {
		if _, seen := out[u]; seen {
			continue
		}
		full, hit := t.cache.Get(u)
		if !hit || full == "" {
			out[u] = ""
			uncached = append(uncached, u)
			continue
		}
		if snippet, ok := t.snippets.Get(u); ok && snippet != "" {
			out[u] = snippet
		} else {
			out[u] = truncateRunes(full, MaxPageChars)
		}
	}

	if len(uncached) == 0 {
		return model.OK(out)
	}
	if t.fetcher == nil {
		return model.ErrorResult(errors.New("page fetching is not configured"))
	}

	t.logger.Debug("fetching pages", zap.Int("count", len(uncached)))
	fetched := t.fetcher.FetchPages(ctx, uncached)
	for _, u := range uncached {
		page, ok := fetched[u]
		if !ok || page.Err != nil {
			t.logger.Warn("fetch failed", zap.String("url", u), zap.Error(page.Err))
			out[u] = "Failed to fetch " + u
			continue
		}
		t.cache.Put(u, page.Text)
		out[u] = truncateRunes(page.Text, MaxPageChars)
	}
	return model.OK(out)
}
