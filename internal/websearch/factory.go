package websearch

import (
	"fmt"
	"strings"
	"time"

	"github.com/hession/deepr/internal/config"
)

// New builds the configured provider, wrapped with rate limiting and
// in-flight sharing when enabled. Configuration problems are reported
// before any search is attempted.
func New(cfg config.SearchConfig) (Provider, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))

	var p Provider
	switch name {
	case "firecrawl":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("firecrawl: %w (set FIRECRAWL_KEY or search.api_key)", config.ErrMissingCredential)
		}
		p = NewFirecrawlProvider(cfg.BaseURL, cfg.APIKey, cfg.UserAgent, timeout)
	case "tavily":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("tavily: %w (set TAVILY_API_KEY or search.api_key)", config.ErrMissingCredential)
		}
		p = NewTavilyProvider(cfg.BaseURL, cfg.APIKey, cfg.UserAgent, timeout)
	case "brave":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("brave: %w (set BRAVE_API_KEY or search.api_key)", config.ErrMissingCredential)
		}
		p = NewBraveProvider(cfg.BaseURL, cfg.APIKey, cfg.UserAgent, timeout)
	case "searxng":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("searxng: search.base_url is required")
		}
		p = NewSearXNGProvider(cfg.BaseURL, cfg.UserAgent, cfg.APIKey, timeout)
	case "duckduckgo":
		p = NewDuckDuckGoProvider(cfg.BaseURL, cfg.UserAgent, timeout)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnsupportedProvider, cfg.Provider)
	}

	if cfg.RequestsPerSecond > 0 {
		p = NewLimited(p, cfg.RequestsPerSecond)
	}
	if cfg.ShareInflight {
		p = NewShared(p)
	}
	return p, nil
}
