package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. DEEPR_MODEL_API_KEY.
const EnvPrefix = "DEEPR"

var (
	// ErrMissingCredential is returned when a provider that needs a key has none.
	ErrMissingCredential = errors.New("missing credential")
	// ErrUnsupportedProvider is returned for an unknown search provider name.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ./config in current directory
func GetConfigDir() string {
	if !configDirInit {
		cwd, err := os.Getwd()
		if err == nil {
			configDir = filepath.Join(cwd, "config")
		}
		configDirInit = true
	}
	return configDir
}

// Config application configuration structure
type Config struct {
	Model    ModelConfig    `yaml:"model" mapstructure:"model"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Research ResearchConfig `yaml:"research" mapstructure:"research"`
	History  HistoryConfig  `yaml:"history" mapstructure:"history"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// ModelConfig LLM model configuration
type ModelConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	// StructuredOutput is "json_schema" (strict schema) or "json_object"
	// for servers without schema support.
	StructuredOutput string `yaml:"structured_output" mapstructure:"structured_output"`
	MaxRetries       int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSeconds   int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// SearchConfig web search configuration
type SearchConfig struct {
	Provider          string         `yaml:"provider" mapstructure:"provider"`
	BaseURL           string         `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string         `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSeconds    int            `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	UserAgent         string         `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerSecond float64        `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	ShareInflight     bool           `yaml:"share_inflight" mapstructure:"share_inflight"`
	Options           map[string]any `yaml:"options,omitempty" mapstructure:"options"`
}

// ResearchConfig research budget defaults
type ResearchConfig struct {
	Breadth           int    `yaml:"breadth" mapstructure:"breadth"`
	Depth             int    `yaml:"depth" mapstructure:"depth"`
	MaxConcurrency    int    `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	Output            string `yaml:"output" mapstructure:"output"`
	FollowupQuestions int    `yaml:"followup_questions" mapstructure:"followup_questions"`
	FetchPages        bool   `yaml:"fetch_pages" mapstructure:"fetch_pages"`
	MaxPageChars      int    `yaml:"max_page_chars" mapstructure:"max_page_chars"`
}

// HistoryConfig run history storage configuration
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DBPath  string `yaml:"db_path" mapstructure:"db_path"`
}

// LoggingConfig logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" mapstructure:"level"`
	MaxDays int    `yaml:"max_days" mapstructure:"max_days"`
	Console bool   `yaml:"console" mapstructure:"console"`
}

// Providers lists the supported search provider names.
var Providers = []string{"firecrawl", "tavily", "brave", "searxng", "duckduckgo"}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Model: ModelConfig{
			APIKey:           "",
			BaseURL:          "https://api.openai.com/v1",
			Model:            "o4-mini",
			Temperature:      1,
			MaxTokens:        16384,
			StructuredOutput: "json_schema",
			MaxRetries:       1,
			TimeoutSeconds:   300,
		},
		Search: SearchConfig{
			Provider:       "firecrawl",
			BaseURL:        "",
			APIKey:         "",
			TimeoutSeconds: 30,
			UserAgent:      "deepr/0.1",
		},
		Research: ResearchConfig{
			Breadth:           4,
			Depth:             2,
			MaxConcurrency:    0,
			Output:            "report",
			FollowupQuestions: 3,
			FetchPages:        false,
			MaxPageChars:      8000,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(homeDir, ".deepr", "history.db"),
		},
		Logging: LoggingConfig{
			Level:   "info",
			MaxDays: 7,
			Console: false,
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the log directory path
func LogDir() string {
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads config.yaml over the defaults, applies DEEPR_* environment
// overrides and merges secrets for unset keys. A default config file is
// written on first run.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(DefaultConfig()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize default config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to read default config: %w", err)
	}

	v.SetConfigFile(configPath)
	if err := v.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	secrets, _ := LoadSecrets()
	cfg.applySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applySecrets applies the well-known LLM_MODEL and SEARCH_PROVIDER names
// over the config file unless the DEEPR_* equivalent is set, then fills keys
// left empty by the config file and environment.
func (c *Config) applySecrets(secrets *Secrets) {
	if os.Getenv(EnvPrefix+"_MODEL_MODEL") == "" {
		c.Model.Model = secrets.GetOrDefault("LLM_MODEL", c.Model.Model)
	}
	if os.Getenv(EnvPrefix+"_SEARCH_PROVIDER") == "" {
		c.Search.Provider = secrets.GetOrDefault("SEARCH_PROVIDER", c.Search.Provider)
	}
	if c.Model.APIKey == "" {
		c.Model.APIKey = secrets.GetLLMAPIKey()
	}
	if c.Search.APIKey == "" {
		c.Search.APIKey = secrets.GetSearchAPIKey(c.Search.Provider)
	}
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	content := "# deepr configuration file\n# Environment overrides: DEEPR_<SECTION>_<KEY>, e.g. DEEPR_SEARCH_PROVIDER\n\n" + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Model,
		validation.Field(&c.Model.BaseURL, validation.Required),
		validation.Field(&c.Model.Model, validation.Required),
		validation.Field(&c.Model.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.Model.MaxTokens, validation.Required, validation.Min(1)),
		validation.Field(&c.Model.StructuredOutput, validation.In("json_schema", "json_object")),
		validation.Field(&c.Model.MaxRetries, validation.Min(0)),
		validation.Field(&c.Model.TimeoutSeconds, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("config error: model: %w", err)
	}

	providers := make([]interface{}, len(Providers))
	for i, p := range Providers {
		providers[i] = p
	}
	provider := strings.ToLower(strings.TrimSpace(c.Search.Provider))
	if err := validation.Validate(provider, validation.Required, validation.In(providers...)); err != nil {
		return fmt.Errorf("config error: search.provider %q: %w", c.Search.Provider, ErrUnsupportedProvider)
	}
	if err := validation.ValidateStruct(&c.Search,
		validation.Field(&c.Search.BaseURL, validation.When(provider == "searxng", validation.Required)),
		validation.Field(&c.Search.TimeoutSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.Search.RequestsPerSecond, validation.Min(0.0)),
	); err != nil {
		return fmt.Errorf("config error: search: %w", err)
	}

	if err := validation.ValidateStruct(&c.Research,
		validation.Field(&c.Research.Breadth, validation.Required, validation.Min(2)),
		validation.Field(&c.Research.Depth, validation.Required, validation.Min(1)),
		validation.Field(&c.Research.MaxConcurrency, validation.Min(0)),
		validation.Field(&c.Research.Output, validation.Required, validation.In("report", "answer")),
		validation.Field(&c.Research.FollowupQuestions, validation.Min(0)),
		validation.Field(&c.Research.MaxPageChars, validation.When(c.Research.FetchPages, validation.Required, validation.Min(1))),
	); err != nil {
		return fmt.Errorf("config error: research: %w", err)
	}

	if err := validation.ValidateStruct(&c.History,
		validation.Field(&c.History.DBPath, validation.When(c.History.Enabled, validation.Required)),
	); err != nil {
		return fmt.Errorf("config error: history: %w", err)
	}

	return nil
}

// IsAPIKeyConfigured checks if the LLM API key is configured
func (c *Config) IsAPIKeyConfigured() bool {
	return c.Model.APIKey != ""
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`deepr Configuration:
  Model:
    API Key: %s
    Base URL: %s
    Model: %s
    Temperature: %.1f
    Max Tokens: %d
    Structured Output: %s
    Max Retries: %d
  Search:
    Provider: %s
    Base URL: %s
    API Key: %s
    Timeout Seconds: %d
    Requests Per Second: %.2f
    Share In-flight: %v
  Research:
    Breadth: %d
    Depth: %d
    Max Concurrency: %d
    Output: %s
    Follow-up Questions: %d
    Fetch Pages: %v
  History:
    Enabled: %v
    DB Path: %s
  Logging:
    Level: %s
    Max Days: %d`,
		redactAPIKey(c.Model.APIKey),
		c.Model.BaseURL,
		c.Model.Model,
		c.Model.Temperature,
		c.Model.MaxTokens,
		c.Model.StructuredOutput,
		c.Model.MaxRetries,
		c.Search.Provider,
		c.Search.BaseURL,
		redactAPIKey(c.Search.APIKey),
		c.Search.TimeoutSeconds,
		c.Search.RequestsPerSecond,
		c.Search.ShareInflight,
		c.Research.Breadth,
		c.Research.Depth,
		c.Research.MaxConcurrency,
		c.Research.Output,
		c.Research.FollowupQuestions,
		c.Research.FetchPages,
		c.History.Enabled,
		c.History.DBPath,
		c.Logging.Level,
		c.Logging.MaxDays,
	)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..." // Only show first 8 chars
	}
	return "***"
}
