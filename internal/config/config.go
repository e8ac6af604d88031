// Package config loads runtime configuration from the environment and an
// optional YAML file. Environment variables take precedence over the file,
// which takes precedence over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"mnemo/internal/errs"
)

const (
	DefaultChatModel          = "gemini-1.5-flash"
	DefaultEmbeddingModel     = "text-embedding-004"
	DefaultBaseURL            = "https://generativelanguage.googleapis.com/v1beta"
	DefaultSummaryThreshold   = 6
	DefaultTopK               = 5
	DefaultRelevanceThreshold = 0.7
	DefaultDataDir            = "~/.mnemo"
	DefaultHTTPTimeoutSeconds = 120
)

// Config holds every tunable the memory manager reads at startup.
type Config struct {
	APIKeys            []string `yaml:"api_keys"`
	ChatModel          string   `yaml:"chat_model"`
	SummaryModel       string   `yaml:"summary_model"`
	EmbeddingModel     string   `yaml:"embedding_model"`
	BaseURL            string   `yaml:"base_url"`
	SummaryThreshold   int      `yaml:"summary_threshold"`
	TopK               int      `yaml:"top_k"`
	RelevanceThreshold float32  `yaml:"relevance_threshold"`
	DataDir            string   `yaml:"data_dir"`
	HTTPTimeoutSeconds int      `yaml:"http_timeout_seconds"`
}

// EnvLookup mirrors os.LookupEnv so tests can inject an environment.
type EnvLookup func(key string) (string, bool)

// DefaultEnvLookup reads the process environment.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

type loadOptions struct {
	envLookup  EnvLookup
	configFile string
	readFile   func(string) ([]byte, error)
}

// Option customizes Load.
type Option func(*loadOptions)

// WithEnvLookup replaces the environment source.
func WithEnvLookup(lookup EnvLookup) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// WithConfigFile points Load at a specific YAML file instead of the default
// <data dir>/config.yaml probe.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithReadFile replaces the file reader (test hook).
func WithReadFile(read func(string) ([]byte, error)) Option {
	return func(o *loadOptions) { o.readFile = read }
}

// Load assembles the runtime configuration. Missing credentials are fatal:
// the returned error wraps errs.ErrConfigurationMissing.
func Load(opts ...Option) (Config, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := Config{
		ChatModel:          DefaultChatModel,
		EmbeddingModel:     DefaultEmbeddingModel,
		BaseURL:            DefaultBaseURL,
		SummaryThreshold:   DefaultSummaryThreshold,
		TopK:               DefaultTopK,
		RelevanceThreshold: DefaultRelevanceThreshold,
		DataDir:            DefaultDataDir,
		HTTPTimeoutSeconds: DefaultHTTPTimeoutSeconds,
	}

	// Merge the config file first so env vars win.
	path := options.configFile
	if path == "" {
		path = filepath.Join(ResolvePath(DefaultDataDir), "config.yaml")
	}
	if data, err := options.readFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	env := options.envLookup
	if raw, ok := env("MNEMO_API_KEYS"); ok {
		cfg.APIKeys = SplitKeys(raw)
	}
	if v, ok := env("MNEMO_MODEL"); ok && strings.TrimSpace(v) != "" {
		cfg.ChatModel = strings.TrimSpace(v)
	}
	if v, ok := env("MNEMO_SUMMARY_MODEL"); ok && strings.TrimSpace(v) != "" {
		cfg.SummaryModel = strings.TrimSpace(v)
	}
	if v, ok := env("MNEMO_EMBEDDING_MODEL"); ok && strings.TrimSpace(v) != "" {
		cfg.EmbeddingModel = strings.TrimSpace(v)
	}
	if v, ok := env("MNEMO_BASE_URL"); ok && strings.TrimSpace(v) != "" {
		cfg.BaseURL = strings.TrimRight(strings.TrimSpace(v), "/")
	}
	if v, ok := env("MNEMO_DATA_DIR"); ok && strings.TrimSpace(v) != "" {
		cfg.DataDir = strings.TrimSpace(v)
	}
	if v, ok := env("MNEMO_SUMMARY_THRESHOLD"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.SummaryThreshold = n
		}
	}
	if v, ok := env("MNEMO_TOP_K"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.TopK = n
		}
	}
	if v, ok := env("MNEMO_RELEVANCE_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil && f >= 0 && f <= 1 {
			cfg.RelevanceThreshold = float32(f)
		}
	}

	// The summary model defaults to the chat model; the summarization call is
	// a plain generate call against a possibly cheaper model.
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = cfg.ChatModel
	}

	if len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("MNEMO_API_KEYS is not set: %w", errs.ErrConfigurationMissing)
	}

	cfg.DataDir = ResolvePath(cfg.DataDir)
	return cfg, nil
}

// SplitKeys parses a comma-separated credential list, trimming whitespace and
// dropping empty entries.
func SplitKeys(raw string) []string {
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// ContextsDir returns the directory holding per-context state files.
func (c Config) ContextsDir() string {
	return filepath.Join(c.DataDir, "contexts")
}

// VectorsDir returns the directory backing the vector store.
func (c Config) VectorsDir() string {
	return filepath.Join(c.DataDir, "vectors")
}

// ResolvePath expands a leading ~ and any environment variables in path.
func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			switch {
			case len(path) == 1:
				path = home
			case path[1] == '/':
				path = filepath.Join(home, path[2:])
			default:
				path = filepath.Join(home, path[1:])
			}
		}
	}
	return os.ExpandEnv(path)
}
