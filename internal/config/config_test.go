package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate clears every variable Load reads so the host environment does
// not leak into a test.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "CHUNK_MAX_CHARS", "CHUNK_OVERLAP", "TOP_K",
		"CONTEXT_PREVIEW_CHARS", "INDEX_METRIC", "EMBEDDER", "EMBED_DIMENSIONS",
		"EMBED_NORMALIZE", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_EMBED_MODEL",
		"EXTRACTOR", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "MAX_UPLOAD_BYTES",
		"MAX_FILES", "SESSION_TTL", "MAX_SESSIONS", "SHUTDOWN_TIMEOUT",
		"PDF_FALLBACK_PDFTOTEXT", "DOCCHAT_CONFIG",
	} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8090" || cfg.ChunkMaxChars != 800 || cfg.ChunkOverlap != 100 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.TopK != 4 || cfg.ContextPreviewChars != 1200 || cfg.IndexMetric != "ip" {
		t.Errorf("unexpected retrieval defaults: %+v", cfg)
	}
	if cfg.Embedder != EmbedderHash || cfg.EmbedDimensions != 0 || !cfg.EmbedNormalize {
		t.Errorf("unexpected embedding defaults: %+v", cfg)
	}
	if cfg.SessionTTL != time.Hour || cfg.MaxSessions != 1000 || cfg.MaxFiles != 20 {
		t.Errorf("unexpected session defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9999")
	t.Setenv("CHUNK_MAX_CHARS", "500")
	t.Setenv("CHUNK_OVERLAP", "0")
	t.Setenv("INDEX_METRIC", "l2")
	t.Setenv("EMBED_NORMALIZE", "false")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("TOP_K", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9999" || cfg.ChunkMaxChars != 500 || cfg.ChunkOverlap != 0 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.IndexMetric != "l2" || cfg.EmbedNormalize {
		t.Errorf("env not applied: metric=%s normalize=%t", cfg.IndexMetric, cfg.EmbedNormalize)
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Errorf("expected 15m ttl, got %v", cfg.SessionTTL)
	}
	if cfg.TopK != 4 {
		t.Errorf("expected invalid TOP_K to fall back to 4, got %d", cfg.TopK)
	}
}

func TestLoad_YAMLFileWithExpansion(t *testing.T) {
	isolate(t)
	t.Setenv("DOCCHAT_TEST_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "docchat.yaml")
	yaml := `
port: "7000"
chunking:
  max_chars: 300
  overlap: 0
retrieval:
  top_k: 6
  metric: l2
embedding:
  provider: openai
  normalize: false
  api_key: ${DOCCHAT_TEST_KEY}
  model: ${DOCCHAT_TEST_MODEL:-text-embedding-3-large}
sessions:
  ttl: 10m
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCCHAT_CONFIG", path)
	t.Setenv("TOP_K", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7000" || cfg.ChunkMaxChars != 300 || cfg.ChunkOverlap != 0 {
		t.Errorf("yaml not applied: %+v", cfg)
	}
	if cfg.TopK != 8 {
		t.Errorf("expected env to win over yaml, got top_k=%d", cfg.TopK)
	}
	if cfg.Embedder != EmbedderOpenAI || cfg.EmbedNormalize {
		t.Errorf("unexpected embedding config: %+v", cfg)
	}
	if cfg.OpenAIAPIKey != "sk-from-env" {
		t.Errorf("expected expanded api key, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.OpenAIEmbedModel != "text-embedding-3-large" {
		t.Errorf("expected default from expansion, got %q", cfg.OpenAIEmbedModel)
	}
	if cfg.SessionTTL != 10*time.Minute {
		t.Errorf("expected 10m ttl, got %v", cfg.SessionTTL)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	isolate(t)
	os.Unsetenv("MAX_FILES")
	if err := os.WriteFile(".env", []byte("MAX_FILES=3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("MAX_FILES") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxFiles != 3 {
		t.Errorf("expected MAX_FILES from .env, got %d", cfg.MaxFiles)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("chunking: [unclosed"), 0o600)
	t.Setenv("DOCCHAT_CONFIG", path)

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("expected parse error, got %v", err)
	}

	t.Setenv("DOCCHAT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero chunk size", func(c *Config) { c.ChunkMaxChars = 0 }, "CHUNK_MAX_CHARS"},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, "CHUNK_OVERLAP"},
		{"unknown metric", func(c *Config) { c.IndexMetric = "cosine" }, "INDEX_METRIC"},
		{"ip without normalization", func(c *Config) { c.EmbedNormalize = false }, "EMBED_NORMALIZE"},
		{"l2 without normalization", func(c *Config) { c.IndexMetric = "l2"; c.EmbedNormalize = false }, ""},
		{"openai without key", func(c *Config) { c.Embedder = EmbedderOpenAI }, "OPENAI_API_KEY"},
		{"openai with key", func(c *Config) { c.Embedder = EmbedderOpenAI; c.OpenAIAPIKey = "k" }, ""},
		{"claude without key", func(c *Config) { c.Extractor = ExtractorClaude }, "ANTHROPIC_API_KEY"},
		{"unknown embedder", func(c *Config) { c.Embedder = "bert" }, "EMBEDDER"},
		{"negative dimensions", func(c *Config) { c.EmbedDimensions = -1 }, "EMBED_DIMENSIONS"},
		{"unknown extractor", func(c *Config) { c.Extractor = "squad" }, "EXTRACTOR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError,
		"info": slog.LevelInfo, "": slog.LevelInfo, "verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (Config{LogLevel: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
