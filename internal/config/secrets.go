package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Secrets sensitive configuration loaded from the .secrets file, with the
// process environment as fallback
type Secrets struct {
	values map[string]string
}

// NewSecrets creates a new Secrets instance
func NewSecrets() *Secrets {
	return &Secrets{
		values: make(map[string]string),
	}
}

// SecretsPath returns the secrets file path
func SecretsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".secrets"), nil
}

// LoadSecrets loads secrets from the .secrets file
func LoadSecrets() (*Secrets, error) {
	secrets := NewSecrets()

	secretsPath, err := SecretsPath()
	if err != nil {
		return secrets, nil
	}

	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return secrets, nil
	}

	file, err := os.Open(secretsPath)
	if err != nil {
		return secrets, nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			secrets.values[key] = value
		}
	}

	return secrets, scanner.Err()
}

// Get returns the value for a key from the file, then the environment
func (s *Secrets) Get(key string) string {
	if s != nil && s.values != nil {
		if v := s.values[key]; v != "" {
			return v
		}
	}
	return os.Getenv(key)
}

// GetOrDefault returns the value for a key, or the default value if not found
func (s *Secrets) GetOrDefault(key, defaultValue string) string {
	if value := s.Get(key); value != "" {
		return value
	}
	return defaultValue
}

// GetLLMAPIKey returns the completion service API key
func (s *Secrets) GetLLMAPIKey() string {
	return s.Get("OPENAI_API_KEY")
}

// searchKeyNames maps providers to the secret names they accept, in order.
var searchKeyNames = map[string][]string{
	"firecrawl":  {"FIRECRAWL_KEY", "FIRECRAWL_API_KEY"},
	"tavily":     {"TAVILY_API_KEY"},
	"brave":      {"BRAVE_API_KEY"},
	"searxng":    {"SEARXNG_API_KEY"},
	"duckduckgo": nil,
}

// GetSearchAPIKey returns the API key for the given search provider
func (s *Secrets) GetSearchAPIKey(provider string) string {
	names := searchKeyNames[strings.ToLower(strings.TrimSpace(provider))]
	for _, name := range names {
		if v := s.Get(name); v != "" {
			return v
		}
	}
	return s.Get("WEB_SEARCH_API_KEY")
}
