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

const (
	defaultTavilyURL = "https://api.tavily.com"
	tavilyMaxResults = 20
)

// TavilyProvider searches through the Tavily search API.
type TavilyProvider struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
}

func NewTavilyProvider(baseURL, apiKey, userAgent string, timeout time.Duration) *TavilyProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultTavilyURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TavilyProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    strings.TrimSpace(apiKey),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *TavilyProvider) Name() string {
	return "tavily"
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (p *TavilyProvider) Search(ctx context.Context, query string, limit int, opts Options) (Response, error) {
	query, limit, err := normalize(query, limit)
	if err != nil {
		return Response{}, err
	}
	if limit > tavilyMaxResults {
		limit = tavilyMaxResults
	}

	// Tavily expects the API key in the body
	payload := map[string]any{
		"api_key":     p.apiKey,
		"query":       query,
		"max_results": limit,
	}
	if v := opts.String("search_depth"); v != "" {
		payload["search_depth"] = v
	}
	if v := opts.String("topic"); v != "" {
		payload["topic"] = v
	}
	if days := opts.Int("days"); days > 0 {
		payload["days"] = days
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	var out tavilyResponse
	if err := doJSON(p.client, req, &out); err != nil {
		return Response{}, err
	}

	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		if len(results) >= limit {
			break
		}
		results = append(results, Result{
			Title:       CleanText(r.Title),
			URL:         strings.TrimSpace(r.URL),
			Description: CleanText(r.Content),
			Source:      p.Name(),
		})
	}

	return Response{
		Query:    query,
		Provider: p.Name(),
		Results:  results,
	}, nil
}
