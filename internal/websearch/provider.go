package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Result is a single search result entry.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// Response is a normalized search response.
type Response struct {
	Query    string   `json:"query"`
	Provider string   `json:"provider"`
	Results  []Result `json:"results"`
}

// URLs returns the non-empty result URLs in order.
func (r Response) URLs() []string {
	urls := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.URL != "" {
			urls = append(urls, res.URL)
		}
	}
	return urls
}

// Options carries provider-specific search parameters. Providers ignore
// keys they do not understand.
type Options map[string]any

// String returns the option as a string, or "" when absent.
func (o Options) String(key string) string {
	switch v := o[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the option as an int, or 0 when absent or not numeric.
func (o Options) Int(key string) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	default:
		return 0
	}
}

// Provider performs web searches.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int, opts Options) (Response, error)
}

const defaultLimit = 5

func normalize(query string, limit int) (string, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", 0, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return query, limit, nil
}

// doJSON executes req and decodes a 2xx JSON body into out.
func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			return fmt.Errorf("search request failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("search request failed with status %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var textPolicy = bluemonday.StrictPolicy()

// CleanText strips markup from a provider snippet and collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = textPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
