package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DuckDuckGoProvider uses the keyless DuckDuckGo instant answer API.
type DuckDuckGoProvider struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewDuckDuckGoProvider(baseURL, userAgent string, timeout time.Duration) *DuckDuckGoProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.duckduckgo.com"
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "deepr/0.1"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DuckDuckGoProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *DuckDuckGoProvider) Name() string {
	return "duckduckgo"
}

type ddgResult struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string      `json:"Heading"`
	AbstractText  string      `json:"AbstractText"`
	AbstractURL   string      `json:"AbstractURL"`
	Results       []ddgResult `json:"Results"`
	RelatedTopics []ddgTopic  `json:"RelatedTopics"`
}

func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, limit int, opts Options) (Response, error) {
	query, limit, err := normalize(query, limit)
	if err != nil {
		return Response{}, err
	}

	endpoint, err := url.Parse(p.baseURL)
	if err != nil {
		return Response{}, fmt.Errorf("invalid base url: %w", err)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")
	if region := opts.String("region"); region != "" {
		params.Set("kl", region)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	var payload ddgResponse
	if err := doJSON(p.client, req, &payload); err != nil {
		return Response{}, err
	}

	set := newResultSet(p.Name(), limit)
	if payload.AbstractText != "" {
		title := payload.Heading
		if title == "" {
			title = payload.AbstractText
		}
		set.add(title, payload.AbstractURL, payload.AbstractText)
	}
	for _, res := range payload.Results {
		set.add(res.Text, res.FirstURL, res.Text)
	}
	set.addTopics(payload.RelatedTopics)
	results := set.results

	return Response{
		Query:    query,
		Provider: p.Name(),
		Results:  results,
	}, nil
}

// resultSet collects up to limit results with distinct URLs, in the order
// instant answer, direct results, related topics.
type resultSet struct {
	source  string
	limit   int
	seen    map[string]bool
	results []Result
}

func newResultSet(source string, limit int) *resultSet {
	return &resultSet{source: source, limit: limit, seen: make(map[string]bool), results: make([]Result, 0, limit)}
}

func (s *resultSet) full() bool { return len(s.results) >= s.limit }

func (s *resultSet) add(title, link, snippet string) {
	link = strings.TrimSpace(link)
	if s.full() || link == "" || s.seen[link] {
		return
	}
	s.seen[link] = true
	s.results = append(s.results, Result{
		Title:       CleanText(title),
		URL:         link,
		Description: CleanText(snippet),
		Source:      s.source,
	})
}

// addTopics flattens nested topic groups depth first.
func (s *resultSet) addTopics(topics []ddgTopic) {
	for _, topic := range topics {
		if s.full() {
			return
		}
		if len(topic.Topics) > 0 {
			s.addTopics(topic.Topics)
			continue
		}
		s.add(topic.Text, topic.FirstURL, topic.Text)
	}
}
