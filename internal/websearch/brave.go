package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBraveURL = "https://api.search.brave.com"
	braveMaxResults = 20
)

// BraveProvider searches through the Brave Search API.
type BraveProvider struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
}

func NewBraveProvider(baseURL, apiKey, userAgent string, timeout time.Duration) *BraveProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBraveURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BraveProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    strings.TrimSpace(apiKey),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *BraveProvider) Name() string {
	return "brave"
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (p *BraveProvider) Search(ctx context.Context, query string, limit int, opts Options) (Response, error) {
	query, limit, err := normalize(query, limit)
	if err != nil {
		return Response{}, err
	}
	if limit > braveMaxResults {
		limit = braveMaxResults
	}

	endpoint, err := url.Parse(p.baseURL)
	if err != nil {
		return Response{}, fmt.Errorf("invalid base url: %w", err)
	}
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + "/res/v1/web/search"

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(limit))
	for _, key := range []string{"country", "search_lang", "freshness", "safesearch"} {
		if v := opts.String(key); v != "" {
			params.Set(key, v)
		}
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", p.apiKey)
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	var out braveResponse
	if err := doJSON(p.client, req, &out); err != nil {
		return Response{}, err
	}

	results := make([]Result, 0, limit)
	for _, r := range out.Web.Results {
		if len(results) >= limit {
			break
		}
		results = append(results, Result{
			Title:       CleanText(r.Title),
			URL:         strings.TrimSpace(r.URL),
			Description: CleanText(r.Description),
			Source:      p.Name(),
		})
	}

	return Response{
		Query:    query,
		Provider: p.Name(),
		Results:  results,
	}, nil
}
