package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/richinex/toolhub/model"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenSource yields a bearer token for a ticketed API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a long-lived bearer token.
type StaticToken string

// Token returns the token, failing when it is empty.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", errors.New("access token not configured")
	}
	return string(t), nil
}

// FetchFunc acquires a new token and its expiry. A zero expiry never expires.
type FetchFunc func(ctx context.Context) (token string, expiresAt time.Time, err error)

// CachedToken reuses a fetched token while now < expiresAt.
type CachedToken struct {
	mu        sync.Mutex
	fetch     FetchFunc
	now       func() time.Time
	token     string
	expiresAt time.Time
}

// NewCachedToken wraps fetch. A nil now uses time.Now.
func NewCachedToken(fetch FetchFunc, now func() time.Time) *CachedToken {
	if now == nil {
		now = time.Now
	}
	return &CachedToken{fetch: fetch, now: now}
}

// NewClientCredentialsToken acquires tokens with the OAuth2 client
// credentials grant.
func NewClientCredentialsToken(clientID, clientSecret, tokenURL string, client *http.Client) *CachedToken {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return NewCachedToken(func(ctx context.Context) (string, time.Time, error) {
		if clientID == "" || clientSecret == "" {
			return "", time.Time{}, errors.New("client credentials not configured")
		}
		if client != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
		}
		tok, err := cfg.Token(ctx)
		if err != nil {
			return "", time.Time{}, err
		}
		return tok.AccessToken, tok.Expiry, nil
	}, nil)
}

// Token returns the cached token or acquires a new one.
func (c *CachedToken) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && (c.expiresAt.IsZero() || c.now().Before(c.expiresAt)) {
		return c.token, nil
	}

	token, expiresAt, err := c.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire token: %w", err)
	}
	c.token, c.expiresAt = token, expiresAt
	return token, nil
}

// route maps a logical tool name to a GET request.
type route struct {
	spec   model.ToolSpec
	path   string            // may contain {arg} placeholders
	query  map[string]string // query key → argument name
	fixed  url.Values
	action string // used in failure messages
}

func (r route) build(args map[string]any) (string, url.Values, error) {
	if missing := missingRequired(r.spec, args); missing != "" {
		return "", nil, fmt.Errorf("Missing required parameter: %s", missing)
	}

	path := r.path
	for name, v := range args {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(argString(v)))
	}

	q := url.Values{}
	for key, arg := range r.query {
		q.Set(key, argString(args[arg]))
	}
	for key, vals := range r.fixed {
		q[key] = vals
	}
	return path, q, nil
}

var tmdbRoutes = []route{
	{
		spec: model.ToolSpec{
			Name:        "tmdb_get_movie_details",
			Description: "Get details about a movie",
			Parameters:  objectSchema([]string{"movie_id"}, [2]string{"movie_id", "The movie ID"}),
		},
		path:   "/movie/{movie_id}",
		action: "get movie details",
	},
	{
		spec: model.ToolSpec{
			Name:        "tmdb_search_movies",
			Description: "Search for movies",
			Parameters:  objectSchema([]string{"query"}, [2]string{"query", "Search query"}),
		},
		path:   "/search/movie",
		query:  map[string]string{"query": "query"},
		action: "search movies",
	},
}

var spotifyRoutes = []route{
	{
		spec: model.ToolSpec{
			Name:        "spotify_search_tracks",
			Description: "Search for tracks on Spotify",
			Parameters:  objectSchema([]string{"query"}, [2]string{"query", "Search query"}),
		},
		path:   "/search",
		query:  map[string]string{"q": "query"},
		fixed:  url.Values{"type": {"track"}},
		action: "search tracks",
	},
	{
		spec: model.ToolSpec{
			Name:        "spotify_get_artist",
			Description: "Get artist information",
			Parameters:  objectSchema([]string{"artist_id"}, [2]string{"artist_id", "The artist ID"}),
		},
		path:   "/artists/{artist_id}",
		action: "get artist",
	},
}

// TicketedConfig configures NewTicketedCaller.
type TicketedConfig struct {
	Dataset string // tmdb or spotify
	BaseURL string
	Tokens  TokenSource
	Client  *http.Client
	Logger  *zap.Logger
}

// TicketedCaller maps a fixed set of tool names onto bearer-authenticated
// REST calls.
type TicketedCaller struct {
	label   string
	baseURL string
	routes  []route
	tokens  TokenSource
	client  *http.Client
	logger  *zap.Logger
}

var (
	_ Backend = (*TicketedCaller)(nil)
	_ Lister  = (*TicketedCaller)(nil)
)

// NewTicketedCaller creates a caller for the dataset's fixed routes.
func NewTicketedCaller(cfg TicketedConfig) (*TicketedCaller, error) {
	var routes []route
	var label string
	switch cfg.Dataset {
	case model.DatasetTMDB:
		routes, label = tmdbRoutes, "TMDB"
	case model.DatasetSpotify:
		routes, label = spotifyRoutes, "Spotify"
	default:
		return nil, fmt.Errorf("no ticketed routes for dataset %q", cfg.Dataset)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s base URL not configured", label)
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("%s token source not configured", label)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultServiceTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TicketedCaller{
		label:   label,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		routes:  routes,
		tokens:  cfg.Tokens,
		client:  client,
		logger:  logger.With(zap.String("component", "ticketed_caller"), zap.String("api", label)),
	}, nil
}

// Kind returns KindTicketed.
func (t *TicketedCaller) Kind() Kind { return KindTicketed }

// Functions lists the dataset's tool specs.
func (t *TicketedCaller) Functions() []model.ToolSpec {
	specs := make([]model.ToolSpec, len(t.routes))
	for i, r := range t.routes {
		specs[i] = r.spec
	}
	return specs
}

// EndpointsSummary returns "name: description" lines.
func (t *TicketedCaller) EndpointsSummary() []string {
	lines := make([]string, len(t.routes))
	for i, r := range t.routes {
		lines[i] = r.spec.Name + ": " + r.spec.Description
	}
	return lines
}

func (t *TicketedCaller) route(name string) (route, bool) {
	for _, r := range t.routes {
		if r.spec.Name == name {
			return r, true
		}
	}
	return route{}, false
}

// Call performs the mapped request. Every failure becomes an error Result.
func (t *TicketedCaller) Call(ctx context.Context, call model.ToolCall, _ *model.RolloutState) model.Result {
	r, ok := t.route(call.Name)
	if !ok {
		return model.Errorf("Unknown %s tool: %s", t.label, call.Name)
	}

	path, query, err := r.build(call.Arguments)
	if err != nil {
		return model.ErrorResult(err)
	}

	token, err := t.tokens.Token(ctx)
	if err != nil {
		return model.Errorf("Failed to %s: %v", r.action, err)
	}

	target := t.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return model.Errorf("Failed to %s: %v", r.action, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("request failed", zap.String("tool", call.Name), zap.Error(err))
		return model.Errorf("Failed to %s: %v", r.action, err)
	}
	defer resp.Body.Close()

	v, err := readJSON(resp)
	if err != nil {
		return model.Errorf("Failed to %s: %v", r.action, err)
	}
	return model.OK(v)
}

// RestBenchFunctions returns the tool specs of a ticketed dataset.
func RestBenchFunctions(dataset string) []model.ToolSpec {
	var routes []route
	switch dataset {
	case model.DatasetTMDB:
		routes = tmdbRoutes
	case model.DatasetSpotify:
		routes = spotifyRoutes
	}
	specs := make([]model.ToolSpec, len(routes))
	for i, r := range routes {
		specs[i] = r.spec
	}
	return specs
}
