package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toolhub.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Server.Port != 8001 {
		t.Errorf("expected default port 8001, got %d", s.Server.Port)
	}
	if s.Environment.Policy != "placeholder" {
		t.Errorf("expected placeholder policy, got %q", s.Environment.Policy)
	}
	if s.RestBench.TMDBBaseURL != "https://api.themoviedb.org/3" {
		t.Errorf("unexpected TMDB base URL %q", s.RestBench.TMDBBaseURL)
	}
}

func TestFileOverridesEnvironment(t *testing.T) {
	t.Setenv("DATASET_NAME", "webshop")
	t.Setenv("SERPER_API_KEY", "env-key")

	path := writeConfig(t, `
dataset_name: gaia
search:
  fetch_timeout: 5s
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.DatasetName != "gaia" {
		t.Errorf("expected file value 'gaia', got %q", s.DatasetName)
	}
	if s.SerperKey() != "env-key" {
		t.Errorf("expected env fallback for the serper key, got %q", s.SerperKey())
	}
	if s.Search.FetchTimeout != 5*time.Second {
		t.Errorf("expected 5s fetch timeout, got %v", s.Search.FetchTimeout)
	}
}

func TestSerperKeyAcceptsGoogleAlias(t *testing.T) {
	t.Setenv("GOOGLE_SERPER_API", "alias-key")
	s, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SerperKey() != "alias-key" {
		t.Errorf("expected alias key, got %q", s.SerperKey())
	}
}

func TestFileExpandsEnvReferences(t *testing.T) {
	t.Setenv("MY_TOKEN", "tok-123")
	path := writeConfig(t, `
dataset_name: tmdb
restbench:
  tmdb_access_token: ${MY_TOKEN}
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.RestBench.TMDBAccessToken != "tok-123" {
		t.Errorf("expected expanded token, got %q", s.RestBench.TMDBAccessToken)
	}
}

func TestInvalidEnvironmentValue(t *testing.T) {
	t.Setenv("WEBSHOP_URL_ID", "two")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric WEBSHOP_URL_ID")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid", func(s *Settings) { s.DatasetName = "gaia" }, false},
		{"missing dataset", func(s *Settings) {}, true},
		{"bad policy", func(s *Settings) {
			s.DatasetName = "alfworld"
			s.Environment.Policy = "random"
		}, true},
		{"bad retriever url", func(s *Settings) {
			s.DatasetName = "toolbench"
			s.ToolRetrieverAPIBase = "not a url"
		}, true},
		{"webshop url id out of range", func(s *Settings) {
			s.DatasetName = "webshop"
			s.WebShop.URLID = 7
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWebShopURLSelection(t *testing.T) {
	s := Defaults()
	s.WebShop.ServiceURLs = []string{"http://a", "http://b"}

	s.WebShop.URLID = 1
	if got := s.WebShopURL(); got != "http://b" {
		t.Errorf("expected replica 1, got %q", got)
	}

	s.WebShop.URLID = 3
	if got := s.WebShopURL(); got != "http://a" {
		t.Errorf("expected fallback to first replica, got %q", got)
	}
}

func TestAPIBankDirPrefersLv3WithToolSearch(t *testing.T) {
	s := Defaults()
	s.APIBank.APIsDir = "apis"
	s.APIBank.Lv3APIsDir = "lv3"
	if got := s.APIBankDir(); got != "apis" {
		t.Errorf("expected apis dir, got %q", got)
	}
	s.EnableToolSearch = true
	if got := s.APIBankDir(); got != "lv3" {
		t.Errorf("expected lv3 dir, got %q", got)
	}
}
