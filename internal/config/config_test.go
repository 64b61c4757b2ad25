package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
version: 1
generation:
  provider: openai
  model: gpt-4o
  api_key_env: OPENAI_API_KEY
  timeout_sec: 120
search:
  api_key_env: TAVILY_API_KEY
server:
  listen: ":9090"
  max_workers: 8
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generation.Provider != "openai" || cfg.Generation.Model != "gpt-4o" {
		t.Errorf("unexpected generation config: %+v", cfg.Generation)
	}
	if cfg.Generation.Timeout() != 120*time.Second {
		t.Errorf("expected 120s timeout, got %v", cfg.Generation.Timeout())
	}
	if cfg.Server.Addr() != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Server.Addr())
	}
	if cfg.Server.Workers() != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Server.Workers())
	}
}

func TestDefaults(t *testing.T) {
	var g Generation
	if g.Timeout() != 300*time.Second {
		t.Errorf("expected default 300s generation timeout, got %v", g.Timeout())
	}
	var s Search
	if s.Timeout() != 30*time.Second {
		t.Errorf("expected default 30s search timeout, got %v", s.Timeout())
	}
	var srv Server
	if srv.Addr() != ":8080" {
		t.Errorf("expected default :8080, got %s", srv.Addr())
	}
	if srv.Workers() != 4 {
		t.Errorf("expected default 4 workers, got %d", srv.Workers())
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
generation:
  provider: cohere
  api_key_env: KEY
search:
  api_key_env: KEY
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Errorf("expected unknown provider error, got %v", err)
	}
}

func TestLoadRequiresFields(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			"missing provider",
			"search:\n  api_key_env: KEY\n",
			"provider is required",
		},
		{
			"missing generation key env",
			"generation:\n  provider: openai\nsearch:\n  api_key_env: KEY\n",
			"generation: api_key_env is required",
		},
		{
			"missing search key env",
			"generation:\n  provider: openai\n  api_key_env: KEY\n",
			"search: api_key_env is required",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generation.Provider != "anthropic" {
		t.Errorf("unexpected provider %q", cfg.Generation.Provider)
	}
	if cfg.Search.APIKeyEnv != "TAVILY_API_KEY" {
		t.Errorf("unexpected search key env %q", cfg.Search.APIKeyEnv)
	}
}
