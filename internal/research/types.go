package research

import (
	"context"

	"github.com/hession/deepr/internal/websearch"
)

// SerpQuery is one planned search together with the goal it serves.
type SerpQuery struct {
	Query        string `json:"query" jsonschema_description:"The SERP query"`
	ResearchGoal string `json:"researchGoal" jsonschema_description:"First talk about the goal of the research that this query is meant to accomplish, then go deeper into how to advance the research once the results are found, mention additional research directions. Be as specific as possible, especially for additional research directions."`
}

// Result is the accumulated output of a research invocation. Both slices
// are de-duplicated and keep first-seen order.
type Result struct {
	Learnings   []string `json:"learnings"`
	VisitedURLs []string `json:"visited_urls"`
}

// Completer returns a value conforming to the schema of out.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, out any) error
}

// Searcher is the search capability the orchestrator depends on.
// websearch.Provider satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, opts websearch.Options) (websearch.Response, error)
}

// PageFetcher retrieves full page content for a search result URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (websearch.Page, error)
}

// mergeUnique concatenates sets, dropping empty strings and exact duplicates.
func mergeUnique(sets ...[]string) []string {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for _, s := range sets {
		for _, v := range s {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
