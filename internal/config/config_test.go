package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mnemo/internal/errs"
)

func envFrom(m map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadMissingKeysIsFatal(t *testing.T) {
	_, err := Load(
		WithEnvLookup(envFrom(nil)),
		WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")),
	)
	if !errors.Is(err, errs.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestLoadSplitsAndTrimsKeys(t *testing.T) {
	cfg, err := Load(
		WithEnvLookup(envFrom(map[string]string{
			"MNEMO_API_KEYS": " key-a , key-b,,key-c ",
		})),
		WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"key-a", "key-b", "key-c"}
	if len(cfg.APIKeys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), cfg.APIKeys)
	}
	for i := range want {
		if cfg.APIKeys[i] != want[i] {
			t.Errorf("key %d = %q, want %q", i, cfg.APIKeys[i], want[i])
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithEnvLookup(envFrom(map[string]string{"MNEMO_API_KEYS": "k"})),
		WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChatModel != DefaultChatModel {
		t.Errorf("ChatModel = %q", cfg.ChatModel)
	}
	if cfg.SummaryModel != DefaultChatModel {
		t.Errorf("SummaryModel should default to the chat model, got %q", cfg.SummaryModel)
	}
	if cfg.SummaryThreshold != DefaultSummaryThreshold {
		t.Errorf("SummaryThreshold = %d", cfg.SummaryThreshold)
	}
	if cfg.TopK != DefaultTopK {
		t.Errorf("TopK = %d", cfg.TopK)
	}
	if cfg.RelevanceThreshold != DefaultRelevanceThreshold {
		t.Errorf("RelevanceThreshold = %v", cfg.RelevanceThreshold)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "chat_model: from-file\nsummary_threshold: 10\napi_keys: [file-key]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(
		WithEnvLookup(envFrom(map[string]string{
			"MNEMO_MODEL": "from-env",
		})),
		WithConfigFile(path),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChatModel != "from-env" {
		t.Errorf("ChatModel = %q, env should win over file", cfg.ChatModel)
	}
	if cfg.SummaryThreshold != 10 {
		t.Errorf("SummaryThreshold = %d, file value should hold", cfg.SummaryThreshold)
	}
	if len(cfg.APIKeys) != 1 || cfg.APIKeys[0] != "file-key" {
		t.Errorf("APIKeys = %v, file keys should be accepted", cfg.APIKeys)
	}
}

func TestLoadNumericEnvValidation(t *testing.T) {
	cfg, err := Load(
		WithEnvLookup(envFrom(map[string]string{
			"MNEMO_API_KEYS":            "k",
			"MNEMO_SUMMARY_THRESHOLD":   "not-a-number",
			"MNEMO_TOP_K":               "-3",
			"MNEMO_RELEVANCE_THRESHOLD": "1.5",
		})),
		WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SummaryThreshold != DefaultSummaryThreshold {
		t.Errorf("invalid threshold should keep default, got %d", cfg.SummaryThreshold)
	}
	if cfg.TopK != DefaultTopK {
		t.Errorf("negative top_k should keep default, got %d", cfg.TopK)
	}
	if cfg.RelevanceThreshold != DefaultRelevanceThreshold {
		t.Errorf("out-of-range relevance threshold should keep default, got %v", cfg.RelevanceThreshold)
	}
}
