package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SearXNGProvider searches a self-hosted SearXNG instance.
type SearXNGProvider struct {
	baseURL   string
	userAgent string
	apiKey    string
	client    *http.Client
}

func NewSearXNGProvider(baseURL, userAgent, apiKey string, timeout time.Duration) *SearXNGProvider {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "deepr/0.1"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SearXNGProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		apiKey:    strings.TrimSpace(apiKey),
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *SearXNGProvider) Name() string {
	return "searxng"
}

type searxngResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type searxngResponse struct {
	Query   string          `json:"query"`
	Results []searxngResult `json:"results"`
}

func (p *SearXNGProvider) Search(ctx context.Context, query string, limit int, opts Options) (Response, error) {
	query, limit, err := normalize(query, limit)
	if err != nil {
		return Response{}, err
	}

	endpoint, err := url.Parse(p.baseURL)
	if err != nil {
		return Response{}, fmt.Errorf("invalid base url: %w", err)
	}
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + "/search"

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("categories", optionOr(opts, "categories", "general"))
	params.Set("language", optionOr(opts, "language", "auto"))
	params.Set("safesearch", optionOr(opts, "safesearch", "1"))
	if tr := opts.String("time_range"); tr != "" {
		params.Set("time_range", tr)
	}
	params.Set("count", fmt.Sprintf("%d", limit))
	if p.apiKey != "" {
		params.Set("apikey", p.apiKey)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	var payload searxngResponse
	if err := doJSON(p.client, req, &payload); err != nil {
		return Response{}, err
	}

	results := make([]Result, 0, limit)
	for _, res := range payload.Results {
		if len(results) >= limit {
			break
		}
		link := strings.TrimSpace(res.URL)
		if link == "" {
			continue
		}
		results = append(results, Result{
			Title:       CleanText(res.Title),
			URL:         link,
			Description: CleanText(res.Content),
			Source:      p.Name(),
		})
	}

	return Response{
		Query:    query,
		Provider: p.Name(),
		Results:  results,
	}, nil
}

func optionOr(opts Options, key, fallback string) string {
	if v := opts.String(key); v != "" {
		return v
	}
	return fallback
}
