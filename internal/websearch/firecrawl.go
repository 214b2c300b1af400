package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultFirecrawlURL = "https://api.firecrawl.dev"

// FirecrawlProvider searches through the Firecrawl /v1/search API.
type FirecrawlProvider struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
}

func NewFirecrawlProvider(baseURL, apiKey, userAgent string, timeout time.Duration) *FirecrawlProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultFirecrawlURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FirecrawlProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    strings.TrimSpace(apiKey),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *FirecrawlProvider) Name() string {
	return "firecrawl"
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
	} `json:"data"`
}

func (p *FirecrawlProvider) Search(ctx context.Context, query string, limit int, opts Options) (Response, error) {
	query, limit, err := normalize(query, limit)
	if err != nil {
		return Response{}, err
	}

	payload := map[string]any{
		"query": query,
		"limit": limit,
	}
	for _, key := range []string{"lang", "country", "location", "tbs"} {
		if v := opts.String(key); v != "" {
			payload[key] = v
		}
	}
	if ms := opts.Int("timeout"); ms > 0 {
		payload["timeout"] = ms
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	var out firecrawlResponse
	if err := doJSON(p.client, req, &out); err != nil {
		return Response{}, err
	}
	if !out.Success && out.Error != "" {
		return Response{}, fmt.Errorf("firecrawl: %s", out.Error)
	}

	results := make([]Result, 0, limit)
	for _, d := range out.Data {
		if len(results) >= limit {
			break
		}
		results = append(results, Result{
			Title:       CleanText(d.Title),
			URL:         strings.TrimSpace(d.URL),
			Description: CleanText(d.Description),
			Source:      p.Name(),
		})
	}

	return Response{
		Query:    query,
		Provider: p.Name(),
		Results:  results,
	}, nil
}
