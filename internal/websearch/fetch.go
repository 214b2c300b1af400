package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"
)

const (
	defaultFetchMaxBytes = int64(2 << 20)
	defaultMaxPageChars  = 8000
)

// Page is readable content retrieved from a URL.
type Page struct {
	URL         string
	Status      int
	ContentType string
	Markdown    string
	Truncated   bool
}

// PageFetcher retrieves a URL and converts HTML into markdown.
type PageFetcher struct {
	userAgent string
	maxBytes  int64
	maxChars  int
	client    *http.Client
	policy    *bluemonday.Policy
	converter *md.Converter
}

// NewPageFetcher creates a fetcher. maxChars bounds the returned markdown.
func NewPageFetcher(userAgent string, timeout time.Duration, maxChars int) *PageFetcher {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "deepr/0.1"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxChars <= 0 {
		maxChars = defaultMaxPageChars
	}
	return &PageFetcher{
		userAgent: userAgent,
		maxBytes:  defaultFetchMaxBytes,
		maxChars:  maxChars,
		client:    &http.Client{Timeout: timeout},
		policy:    bluemonday.UGCPolicy(),
		converter: md.NewConverter("", true, nil),
	}
}

// Fetch downloads rawURL. Only http and https are allowed.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" {
		return Page{}, fmt.Errorf("invalid url: %s", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Page{}, fmt.Errorf("unsupported url scheme: %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, fmt.Errorf("fetch %s failed with status %d", parsed.String(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return Page{}, fmt.Errorf("failed to read response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	content := string(body)
	if strings.Contains(strings.ToLower(contentType), "html") {
		content, err = f.converter.ConvertString(f.policy.Sanitize(content))
		if err != nil {
			return Page{}, fmt.Errorf("failed to convert page: %w", err)
		}
	}

	content = strings.TrimSpace(content)
	content, truncated := truncateRunes(content, f.maxChars)

	return Page{
		URL:         parsed.String(),
		Status:      resp.StatusCode,
		ContentType: contentType,
		Markdown:    content,
		Truncated:   truncated,
	}, nil
}

func truncateRunes(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s, false
	}
	return string(runes[:max]), true
}
