// Package config provides toolhub settings loaded from a YAML file and
// environment variables.
//
// Settings are created via Load() which handles:
// - Default value application
// - YAML file decoding
// - Environment fallback for every key the file leaves unset
// - Validation of enumerations, URLs and ranges

package config

import (
	"time"
)

// Settings holds all toolhub configuration for one run.
type Settings struct {
	DatasetName          string `yaml:"dataset_name" validate:"required"`
	EnableToolSearch     bool   `yaml:"enable_tool_search"`
	ToolRetrieverAPIBase string `yaml:"tool_retriever_api_base" validate:"omitempty,url"`

	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	ToolBench   ToolBenchConfig   `yaml:"toolbench"`
	APIBank     APIBankConfig     `yaml:"api_bank"`
	WebShop     WebShopConfig     `yaml:"webshop"`
	ALFWorld    ALFWorldConfig    `yaml:"alfworld"`
	Environment EnvironmentConfig `yaml:"environment"`
	RestBench   RestBenchConfig   `yaml:"restbench"`
	Search      SearchConfig      `yaml:"search"`
	Cache       CacheConfig       `yaml:"cache"`
	Files       FilesConfig       `yaml:"files"`
	Sandbox     SandboxConfig     `yaml:"sandbox"`
	Vision      VisionConfig      `yaml:"vision"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// RetrievalConfig configures local retrieval indexes and their embedder.
type RetrievalConfig struct {
	EmbeddingProvider string `yaml:"embedding_provider" validate:"omitempty,oneof=openai gemini"`
	EmbeddingModel    string `yaml:"embedding_model"`
	// EmbeddingBaseURL points the OpenAI-compatible embedder at a
	// self-hosted server (e5, bge, ...).
	EmbeddingBaseURL  string `yaml:"embedding_base_url" validate:"omitempty,url"`
	EmbeddingAPIKey   string `yaml:"embedding_api_key"`
	CacheDir          string `yaml:"cache_dir"`
	BatchSize         int    `yaml:"batch_size" validate:"min=0"`
	DefaultTopK       int    `yaml:"default_top_k" validate:"min=0"`
	ToolHopCorpusPath string `yaml:"toolhop_corpus_path"`
	ToolBenchCorpus   string `yaml:"toolbench_corpus_tsv_path"`
}

// ToolBenchConfig configures the RapidAPI forwarding service.
type ToolBenchConfig struct {
	ServiceURL string `yaml:"service_url" validate:"omitempty,url"`
	APIKey     string `yaml:"api_key"`
}

// APIBankConfig configures the API-Bank service and API description dirs.
type APIBankConfig struct {
	APIsDir     string `yaml:"apis_dir"`
	Lv3APIsDir  string `yaml:"lv3_apis_abs_dir"`
	DatabaseDir string `yaml:"database_dir"`
	ServiceURL  string `yaml:"service_url" validate:"omitempty,url"`
}

// WebShopConfig lists WebShop service replicas; URLID picks one.
type WebShopConfig struct {
	ServiceURLs []string `yaml:"service_urls" validate:"max=4,dive,url"`
	URLID       int      `yaml:"url_id" validate:"min=0,max=3"`
}

// ALFWorldConfig configures the ALFWorld environment service.
type ALFWorldConfig struct {
	ServiceURL string `yaml:"service_url" validate:"omitempty,url"`
}

// EnvironmentConfig selects how environment steps affect rollout state.
// A zero BatchSize resets with the environment family's default.
type EnvironmentConfig struct {
	Policy    string `yaml:"policy" validate:"oneof=placeholder feedback"`
	MaxSteps  int    `yaml:"max_steps" validate:"min=0"`
	BatchSize int    `yaml:"batch_size" validate:"min=0"`
}

// RestBenchConfig holds TMDB and Spotify credentials and endpoints.
type RestBenchConfig struct {
	TMDBAccessToken     string `yaml:"tmdb_access_token"`
	TMDBBaseURL         string `yaml:"tmdb_base_url" validate:"omitempty,url"`
	SpotifyClientID     string `yaml:"spotify_client_id"`
	SpotifyClientSecret string `yaml:"spotify_client_secret"`
	SpotifyBaseURL      string `yaml:"spotify_base_url" validate:"omitempty,url"`
	SpotifyTokenURL     string `yaml:"spotify_token_url" validate:"omitempty,url"`
}

// SearchConfig configures web search and page fetching.
type SearchConfig struct {
	SerperAPIKey     string        `yaml:"serper_api_key"`
	SerperEndpoint   string        `yaml:"serper_endpoint" validate:"omitempty,url"`
	UseJina          bool          `yaml:"use_jina"`
	JinaAPIKey       string        `yaml:"jina_api_key"`
	FetchConcurrency int           `yaml:"fetch_concurrency" validate:"min=0"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
}

// CacheConfig configures where the search and URL caches persist.
// A Redis address replaces the JSON files with Redis hashes.
type CacheConfig struct {
	SearchCacheDir string `yaml:"search_cache_dir"`
	URLCacheDir    string `yaml:"url_cache_dir"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db" validate:"min=0"`
	RedisPrefix    string `yaml:"redis_prefix"`
}

// FilesConfig holds dataset file locations.
type FilesConfig struct {
	GAIAFileDir string `yaml:"gaia_file_dir"`
	HLEImageDir string `yaml:"hle_image_dir"`
}

// SandboxConfig configures local python execution.
type SandboxConfig struct {
	Interpreter    string        `yaml:"interpreter"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxOutputBytes int           `yaml:"max_output_bytes" validate:"min=0"`
}

// VisionConfig selects the image and video QA models.
type VisionConfig struct {
	Provider   string `yaml:"provider" validate:"omitempty,oneof=openai anthropic gemini"`
	Model      string `yaml:"vqa_model_name"`
	VideoModel string `yaml:"video_model_name"`
}

// ServerConfig configures the tool-search server.
type ServerConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port" validate:"min=0,max=65535"`
	Datasets []string `yaml:"datasets"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// Defaults returns settings with every default applied and no dataset.
func Defaults() Settings {
	return Settings{
		Retrieval: RetrievalConfig{
			EmbeddingProvider: "openai",
			EmbeddingModel:    "text-embedding-3-small",
			CacheDir:          ".toolhub/embeddings",
			BatchSize:         64,
			DefaultTopK:       10,
		},
		Environment: EnvironmentConfig{
			Policy:   "placeholder",
			MaxSteps: 30,
		},
		RestBench: RestBenchConfig{
			TMDBBaseURL:     "https://api.themoviedb.org/3",
			SpotifyBaseURL:  "https://api.spotify.com/v1",
			SpotifyTokenURL: "https://accounts.spotify.com/api/token",
		},
		Search: SearchConfig{
			SerperEndpoint:   "https://google.serper.dev/search",
			FetchConcurrency: 8,
			FetchTimeout:     30 * time.Second,
		},
		Cache: CacheConfig{
			RedisPrefix: "toolhub",
		},
		Sandbox: SandboxConfig{
			Interpreter:    "python3",
			Timeout:        30 * time.Second,
			MaxOutputBytes: 1024 * 1024,
		},
		Vision: VisionConfig{
			Provider:   "openai",
			Model:      "gpt-4o",
			VideoModel: "gemini-2.5-flash",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8001,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SerperKey returns the configured Serper API key.
func (s Settings) SerperKey() string {
	return s.Search.SerperAPIKey
}

// WebShopURL returns the WebShop replica selected by URLID, falling back to
// the first replica, or "" when none is configured.
func (s Settings) WebShopURL() string {
	urls := s.WebShop.ServiceURLs
	if s.WebShop.URLID >= 0 && s.WebShop.URLID < len(urls) && urls[s.WebShop.URLID] != "" {
		return urls[s.WebShop.URLID]
	}
	if len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// APIBankDir returns the API description directory for this run: the lv3
// directory when tool search is enabled and it is set.
func (s Settings) APIBankDir() string {
	if s.EnableToolSearch && s.APIBank.Lv3APIsDir != "" {
		return s.APIBank.Lv3APIsDir
	}
	return s.APIBank.APIsDir
}
