package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Supported LLM providers.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

type Config struct {
	LLM     LLM     `yaml:"llm"`
	Triage  Triage  `yaml:"triage"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type LLM struct {
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`

	// APIKey is resolved from the environment at load time and never read
	// from the YAML file.
	APIKey string `yaml:"-"`
}

type Triage struct {
	FallbackConfidence int `yaml:"fallback_confidence"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
	DBName  string `yaml:"db_name"`
}

type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigDir returns the XDG config directory for nexuscds.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "nexuscds")
}

// DataDir returns the XDG data directory for nexuscds.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "nexuscds")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/nexuscds/config.yaml > ./config.yaml.
// An empty path with a nil error means no file was found and the embedded
// defaults apply.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", nil
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the process
// environment. Variables already set are left alone and missing files are
// skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a config YAML file (or the embedded defaults when path is empty),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data := DefaultConfigYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		LLM: LLM{
			Provider:       ProviderGroq,
			Model:          "llama-3.3-70b-versatile",
			MaxTokens:      1024,
			TimeoutSeconds: 120,
		},
		Triage:  Triage{FallbackConfidence: 92},
		Output:  Output{DBName: "clinical_vault.db"},
		Server:  Server{Host: "127.0.0.1", Port: 8501},
		Logging: Logging{Level: "INFO", Format: "console"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))

	return cfg, nil
}

// applyEnv overlays NEXUSCDS_* variables and resolves the provider API key.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("NEXUSCDS_LLM_PROVIDER"); ok && v != "" {
		c.LLM.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup("NEXUSCDS_LLM_MODEL"); ok && v != "" {
		c.LLM.Model = v
	}
	if v, ok := lookup("NEXUSCDS_LLM_BASE_URL"); ok && v != "" {
		c.LLM.BaseURL = v
	}
	if v, ok := lookup("NEXUSCDS_DATA_DIR"); ok && v != "" {
		c.Output.DataDir = v
	}
	if v, ok := lookup("NEXUSCDS_LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup("NEXUSCDS_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NEXUSCDS_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}

	if key, ok := lookup(c.LLM.KeyEnv()); ok {
		c.LLM.APIKey = strings.TrimSpace(key)
	}
	return nil
}

// Validate checks all configuration fields for correctness.
func (c *Config) Validate() error {
	var errs []error

	switch c.LLM.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q (groq, openai, anthropic, ollama)", c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("invalid llm.max_tokens %d (must be > 0)", c.LLM.MaxTokens))
	}
	if c.LLM.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("invalid llm.timeout_seconds %d (must be >= 0)", c.LLM.TimeoutSeconds))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("invalid llm.temperature %v (must be 0..2)", c.LLM.Temperature))
	}
	if c.Triage.FallbackConfidence < 0 || c.Triage.FallbackConfidence > 100 {
		errs = append(errs, fmt.Errorf("invalid triage.fallback_confidence %d (must be 0..100)", c.Triage.FallbackConfidence))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server.port %d (must be 1..65535)", c.Server.Port))
	}
	if c.Output.DBName == "" {
		errs = append(errs, errors.New("output.db_name is required"))
	}

	return errors.Join(errs...)
}

// KeyEnv returns the environment variable that holds the provider API key.
func (l LLM) KeyEnv() string {
	if l.APIKeyEnv != "" {
		return l.APIKeyEnv
	}
	switch l.Provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOllama:
		return "OLLAMA_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

// Endpoint returns the configured base URL or the provider default.
// An empty result means the client library default.
func (l LLM) Endpoint() string {
	if l.BaseURL != "" {
		return strings.TrimRight(l.BaseURL, "/")
	}
	switch l.Provider {
	case ProviderGroq:
		return "https://api.groq.com/openai/v1"
	case ProviderOllama:
		return "http://localhost:11434"
	default:
		return ""
	}
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the path of the audit database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), c.Output.DBName)
}

// Addr returns the host:port the dashboard listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
