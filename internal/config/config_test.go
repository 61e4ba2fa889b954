package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.LLM.Provider != ProviderGroq {
		t.Errorf("expected provider 'groq', got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "llama-3.3-70b-versatile" {
		t.Errorf("expected model 'llama-3.3-70b-versatile', got %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", cfg.LLM.Temperature)
	}
	if cfg.Triage.FallbackConfidence != 92 {
		t.Errorf("expected fallback confidence 92, got %d", cfg.Triage.FallbackConfidence)
	}
	if cfg.Output.DBName != "clinical_vault.db" {
		t.Errorf("expected db name 'clinical_vault.db', got %q", cfg.Output.DBName)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
llm:
  provider: OpenAI
  model: gpt-4o-mini
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("expected provider 'openai', got %q", cfg.LLM.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.LLM.MaxTokens != 1024 {
		t.Errorf("expected default max_tokens 1024, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected default host, got %q", cfg.Server.Host)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg, _ := parse(DefaultConfigYAML)
	err := cfg.applyEnv(envMap(map[string]string{
		"NEXUSCDS_LLM_PROVIDER": "Anthropic",
		"NEXUSCDS_LLM_MODEL":    "claude-sonnet-4-20250514",
		"NEXUSCDS_DATA_DIR":     "/tmp/vault",
		"NEXUSCDS_PORT":         "9100",
		"ANTHROPIC_API_KEY":     " sk-test \n",
		"GROQ_API_KEY":          "wrong-key",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}

	if cfg.LLM.Provider != ProviderAnthropic {
		t.Errorf("expected provider 'anthropic', got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "claude-sonnet-4-20250514" {
		t.Errorf("unexpected model %q", cfg.LLM.Model)
	}
	if cfg.GetDataDir() != "/tmp/vault" {
		t.Errorf("expected data dir override, got %q", cfg.GetDataDir())
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected key from ANTHROPIC_API_KEY, got %q", cfg.LLM.APIKey)
	}
}

func TestApplyEnvBadPort(t *testing.T) {
	cfg, _ := parse(DefaultConfigYAML)
	if err := cfg.applyEnv(envMap(map[string]string{"NEXUSCDS_PORT": "http"})); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestExplicitAPIKeyEnv(t *testing.T) {
	l := LLM{Provider: ProviderGroq, APIKeyEnv: "MY_KEY"}
	if l.KeyEnv() != "MY_KEY" {
		t.Errorf("expected MY_KEY, got %q", l.KeyEnv())
	}
	if (LLM{Provider: ProviderGroq}).KeyEnv() != "GROQ_API_KEY" {
		t.Error("expected GROQ_API_KEY default")
	}
	if (LLM{Provider: ProviderOpenAI}).KeyEnv() != "OPENAI_API_KEY" {
		t.Error("expected OPENAI_API_KEY default")
	}
}

func TestEndpointDefaults(t *testing.T) {
	if got := (LLM{Provider: ProviderGroq}).Endpoint(); got != "https://api.groq.com/openai/v1" {
		t.Errorf("unexpected groq endpoint %q", got)
	}
	if got := (LLM{Provider: ProviderOllama}).Endpoint(); got != "http://localhost:11434" {
		t.Errorf("unexpected ollama endpoint %q", got)
	}
	if got := (LLM{Provider: ProviderOpenAI}).Endpoint(); got != "" {
		t.Errorf("expected library default for openai, got %q", got)
	}
	if got := (LLM{Provider: ProviderOpenAI, BaseURL: "http://proxy/v1/"}).Endpoint(); got != "http://proxy/v1" {
		t.Errorf("expected trimmed base url, got %q", got)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg, _ := parse(DefaultConfigYAML)
	cfg.LLM.Provider = "crewai"
	cfg.Triage.FallbackConfidence = 150
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"llm.provider", "fallback_confidence", "server.port"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error, got %q", want, msg)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8600\n"), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Port != 8600 {
		t.Errorf("expected port 8600, got %d", cfg.Server.Port)
	}
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.Output.DBName != "clinical_vault.db" {
		t.Errorf("unexpected db name %q", cfg.Output.DBName)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("NEXUSCDS_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("NEXUSCDS_TEST_DOTENV") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("NEXUSCDS_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{Output: Output{DBName: "clinical_vault.db"}}
	if cfg.GetDataDir() == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.DBPath() != filepath.Join("/custom/path", "clinical_vault.db") {
		t.Errorf("unexpected db path %q", cfg.DBPath())
	}
}
