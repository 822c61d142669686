package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docchat/internal/index"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EmbedderHash   = "hash"
	EmbedderOpenAI = "openai"

	ExtractorLexical = "lexical"
	ExtractorClaude  = "claude"
)

type Config struct {
	Port     string
	LogLevel string

	// Chunking and retrieval
	ChunkMaxChars       int
	ChunkOverlap        int
	TopK                int
	ContextPreviewChars int
	IndexMetric         string

	// Embeddings
	Embedder         string
	EmbedDimensions  int
	EmbedNormalize   bool
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIEmbedModel string

	// Answer extraction
	Extractor       string
	AnthropicAPIKey string
	AnthropicModel  string

	// Upload limits
	MaxUploadBytes int64
	MaxFiles       int

	// Sessions
	SessionTTL      time.Duration
	MaxSessions     int
	ShutdownTimeout time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

// fileConfig is the YAML layout named by DOCCHAT_CONFIG. Zero values mean
// "not set"; pointers are used where zero is meaningful.
type fileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	Chunking struct {
		MaxChars int  `yaml:"max_chars"`
		Overlap  *int `yaml:"overlap"`
	} `yaml:"chunking"`

	Retrieval struct {
		TopK         int    `yaml:"top_k"`
		PreviewChars int    `yaml:"preview_chars"`
		Metric       string `yaml:"metric"`
	} `yaml:"retrieval"`

	Embedding struct {
		Provider   string `yaml:"provider"`
		Dimensions int    `yaml:"dimensions"`
		Normalize  *bool  `yaml:"normalize"`
		APIKey     string `yaml:"api_key"`
		BaseURL    string `yaml:"base_url"`
		Model      string `yaml:"model"`
	} `yaml:"embedding"`

	Extraction struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
	} `yaml:"extraction"`

	Limits struct {
		MaxUploadBytes int64 `yaml:"max_upload_bytes"`
		MaxFiles       int   `yaml:"max_files"`
	} `yaml:"limits"`

	Sessions struct {
		TTL         string `yaml:"ttl"`
		MaxSessions int    `yaml:"max_sessions"`
	} `yaml:"sessions"`
}

func defaults() Config {
	return Config{
		Port:     "8090",
		LogLevel: "info",

		ChunkMaxChars:       800,
		ChunkOverlap:        100,
		TopK:                4,
		ContextPreviewChars: 1200,
		IndexMetric:         "ip",

		Embedder:         EmbedderHash,
		EmbedDimensions:  0, // provider default; 384 for hash
		EmbedNormalize:   true,
		OpenAIEmbedModel: "text-embedding-3-small",

		Extractor:      ExtractorLexical,
		AnthropicModel: "claude-3-5-haiku-latest",

		MaxUploadBytes: 52428800, // 50MB
		MaxFiles:       20,

		SessionTTL:      1 * time.Hour,
		MaxSessions:     1000,
		ShutdownTimeout: 30 * time.Second,

		PDFFallbackPdftotext: true,
	}
}

// Load builds the configuration from defaults, an optional .env file, an
// optional YAML file named by DOCCHAT_CONFIG, and the environment, in
// increasing order of precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv("DOCCHAT_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 20
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.ContextPreviewChars <= 0 {
		cfg.ContextPreviewChars = 1200
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	data = expandEnvVars(data)

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.Port, fc.Port)
	setString(&c.LogLevel, fc.LogLevel)
	setInt(&c.ChunkMaxChars, fc.Chunking.MaxChars)
	if fc.Chunking.Overlap != nil {
		c.ChunkOverlap = *fc.Chunking.Overlap
	}
	setInt(&c.TopK, fc.Retrieval.TopK)
	setInt(&c.ContextPreviewChars, fc.Retrieval.PreviewChars)
	setString(&c.IndexMetric, fc.Retrieval.Metric)
	setString(&c.Embedder, fc.Embedding.Provider)
	setInt(&c.EmbedDimensions, fc.Embedding.Dimensions)
	if fc.Embedding.Normalize != nil {
		c.EmbedNormalize = *fc.Embedding.Normalize
	}
	setString(&c.OpenAIAPIKey, fc.Embedding.APIKey)
	setString(&c.OpenAIBaseURL, fc.Embedding.BaseURL)
	setString(&c.OpenAIEmbedModel, fc.Embedding.Model)
	setString(&c.Extractor, fc.Extraction.Provider)
	setString(&c.AnthropicAPIKey, fc.Extraction.APIKey)
	setString(&c.AnthropicModel, fc.Extraction.Model)
	if fc.Limits.MaxUploadBytes > 0 {
		c.MaxUploadBytes = fc.Limits.MaxUploadBytes
	}
	setInt(&c.MaxFiles, fc.Limits.MaxFiles)
	setInt(&c.MaxSessions, fc.Sessions.MaxSessions)
	if fc.Sessions.TTL != "" {
		d, err := time.ParseDuration(fc.Sessions.TTL)
		if err != nil {
			return fmt.Errorf("parse config %s: sessions.ttl: %w", path, err)
		}
		c.SessionTTL = d
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)

	c.ChunkMaxChars = envInt("CHUNK_MAX_CHARS", c.ChunkMaxChars)
	c.ChunkOverlap = envInt("CHUNK_OVERLAP", c.ChunkOverlap)
	c.TopK = envInt("TOP_K", c.TopK)
	c.ContextPreviewChars = envInt("CONTEXT_PREVIEW_CHARS", c.ContextPreviewChars)
	c.IndexMetric = envOr("INDEX_METRIC", c.IndexMetric)

	c.Embedder = envOr("EMBEDDER", c.Embedder)
	c.EmbedDimensions = envInt("EMBED_DIMENSIONS", c.EmbedDimensions)
	c.EmbedNormalize = envBool("EMBED_NORMALIZE", c.EmbedNormalize)
	c.OpenAIAPIKey = envOr("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = envOr("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIEmbedModel = envOr("OPENAI_EMBED_MODEL", c.OpenAIEmbedModel)

	c.Extractor = envOr("EXTRACTOR", c.Extractor)
	c.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.AnthropicModel = envOr("ANTHROPIC_MODEL", c.AnthropicModel)

	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.MaxFiles = envInt("MAX_FILES", c.MaxFiles)

	c.SessionTTL = envDuration("SESSION_TTL", c.SessionTTL)
	c.MaxSessions = envInt("MAX_SESSIONS", c.MaxSessions)
	c.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", c.PDFFallbackPdftotext)
}

func (c Config) Validate() error {
	if c.ChunkMaxChars <= 0 {
		return fmt.Errorf("CHUNK_MAX_CHARS must be positive, got %d", c.ChunkMaxChars)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("CHUNK_OVERLAP must not be negative, got %d", c.ChunkOverlap)
	}
	metric, err := index.ParseMetric(c.IndexMetric)
	if err != nil {
		return fmt.Errorf("INDEX_METRIC: %w", err)
	}
	if metric.RequiresUnitVectors() && !c.EmbedNormalize {
		return fmt.Errorf("INDEX_METRIC %q requires EMBED_NORMALIZE=true", c.IndexMetric)
	}
	if c.EmbedDimensions < 0 {
		return fmt.Errorf("EMBED_DIMENSIONS must not be negative, got %d", c.EmbedDimensions)
	}
	switch c.Embedder {
	case EmbedderHash:
	case EmbedderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDER=openai")
		}
	default:
		return fmt.Errorf("EMBEDDER must be hash or openai, got %q", c.Embedder)
	}
	switch c.Extractor {
	case ExtractorLexical:
	case ExtractorClaude:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when EXTRACTOR=claude")
		}
	default:
		return fmt.Errorf("EXTRACTOR must be lexical or claude, got %q", c.Extractor)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
