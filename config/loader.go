package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load builds settings with precedence file > environment > defaults.
// An empty path skips the file. ${VAR} references inside the file are
// expanded before decoding. The result is not validated; call Validate
// after applying any command-line overrides.
func Load(path string) (Settings, error) {
	s := Defaults()
	if err := applyEnv(&s); err != nil {
		return Settings{}, err
	}

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return s, nil
}

// MustLoad loads and validates settings, panicking on failure.
// Use this only when configuration errors should be fatal.
func MustLoad(path string) Settings {
	s, err := Load(path)
	if err == nil {
		err = s.Validate()
	}
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return s
}

var validate = validator.New()

// Validate checks required fields, enumerations, URLs and ranges.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// applyEnv fills settings from environment variables. The variable names
// are the upper-cased argument names of the original tool manager.
func applyEnv(s *Settings) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"DATASET_NAME", &s.DatasetName},
		{"TOOL_RETRIEVER_API_BASE", &s.ToolRetrieverAPIBase},
		{"EMBEDDING_PROVIDER", &s.Retrieval.EmbeddingProvider},
		{"EMBEDDING_MODEL", &s.Retrieval.EmbeddingModel},
		{"EMBEDDING_BASE_URL", &s.Retrieval.EmbeddingBaseURL},
		{"EMBEDDING_API_KEY", &s.Retrieval.EmbeddingAPIKey},
		{"EMBEDDING_CACHE_DIR", &s.Retrieval.CacheDir},
		{"TOOLHOP_CORPUS_PATH", &s.Retrieval.ToolHopCorpusPath},
		{"TOOLBENCH_CORPUS_TSV_PATH", &s.Retrieval.ToolBenchCorpus},
		{"TOOLBENCH_SERVICE_URL", &s.ToolBench.ServiceURL},
		{"TOOLBENCH_API", &s.ToolBench.APIKey},
		{"API_BANK_APIS_DIR", &s.APIBank.APIsDir},
		{"API_BANK_LV3_APIS_ABS_DIR", &s.APIBank.Lv3APIsDir},
		{"API_BANK_DATABASE_DIR", &s.APIBank.DatabaseDir},
		{"API_BANK_SERVICE_URL", &s.APIBank.ServiceURL},
		{"ALFWORLD_SERVICE_URL", &s.ALFWorld.ServiceURL},
		{"ENV_POLICY", &s.Environment.Policy},
		{"TMDB_ACCESS_TOKEN", &s.RestBench.TMDBAccessToken},
		{"SPOTIFY_CLIENT_ID", &s.RestBench.SpotifyClientID},
		{"SPOTIFY_CLIENT_SECRET", &s.RestBench.SpotifyClientSecret},
		{"GOOGLE_SERPER_API", &s.Search.SerperAPIKey},
		{"SERPER_API_KEY", &s.Search.SerperAPIKey},
		{"JINA_API_KEY", &s.Search.JinaAPIKey},
		{"SEARCH_CACHE_DIR", &s.Cache.SearchCacheDir},
		{"URL_CACHE_DIR", &s.Cache.URLCacheDir},
		{"CACHE_REDIS_ADDR", &s.Cache.RedisAddr},
		{"CACHE_REDIS_PASSWORD", &s.Cache.RedisPassword},
		{"GAIA_FILE_DIR", &s.Files.GAIAFileDir},
		{"HLE_IMAGE_DIR", &s.Files.HLEImageDir},
		{"PYTHON_INTERPRETER", &s.Sandbox.Interpreter},
		{"VQA_PROVIDER", &s.Vision.Provider},
		{"VQA_MODEL_NAME", &s.Vision.Model},
		{"VIDEO_MODEL_NAME", &s.Vision.VideoModel},
		{"LOG_LEVEL", &s.Log.Level},
	}
	for _, e := range strs {
		if v := os.Getenv(e.key); v != "" {
			*e.dst = v
		}
	}

	webshop := []string{"WEBSHOP_SERVICE_URL", "WEBSHOP_SERVICE_URL1", "WEBSHOP_SERVICE_URL2", "WEBSHOP_SERVICE_URL3"}
	var urls []string
	for _, key := range webshop {
		if v := os.Getenv(key); v != "" {
			urls = append(urls, v)
		}
	}
	if len(urls) > 0 {
		s.WebShop.ServiceURLs = urls
	}

	var err error
	if s.EnableToolSearch, err = getEnvBool("ENABLE_TOOL_SEARCH", s.EnableToolSearch); err != nil {
		return err
	}
	if s.Search.UseJina, err = getEnvBool("USE_JINA", s.Search.UseJina); err != nil {
		return err
	}
	if s.WebShop.URLID, err = getEnvInt("WEBSHOP_URL_ID", s.WebShop.URLID); err != nil {
		return err
	}
	if s.Environment.MaxSteps, err = getEnvInt("ENV_MAX_STEPS", s.Environment.MaxSteps); err != nil {
		return err
	}
	if s.Search.FetchConcurrency, err = getEnvInt("FETCH_CONCURRENCY", s.Search.FetchConcurrency); err != nil {
		return err
	}
	if s.Server.Port, err = getEnvInt("TOOL_SEARCH_PORT", s.Server.Port); err != nil {
		return err
	}
	if s.Sandbox.Timeout, err = getEnvDuration("SANDBOX_TIMEOUT", s.Sandbox.Timeout); err != nil {
		return err
	}
	return nil
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
