package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hession/deepr/internal/config"
)

// prompter holds what every completion step needs.
type prompter struct {
	llm     Completer
	prompts config.LanguagePrompts
	now     func() time.Time
}

func (p prompter) complete(ctx context.Context, userPrompt string, out any) error {
	return p.llm.Complete(ctx, p.prompts.SystemPrompt(p.now()), userPrompt, out)
}

type serpQueryList struct {
	Queries []SerpQuery `json:"queries" jsonschema_description:"List of SERP queries, max of the requested number"`
}

// Planner turns a research query into a bounded list of search queries.
type Planner struct {
	prompter
}

// NewPlanner creates a Planner. A nil clock uses time.Now.
func NewPlanner(llm Completer, prompts config.LanguagePrompts, now func() time.Time) *Planner {
	if now == nil {
		now = time.Now
	}
	return &Planner{prompter{llm: llm, prompts: prompts, now: now}}
}

// Plan returns at most maxCount queries. Fewer is accepted as is, and a
// non-positive maxCount returns nothing without consulting the model.
func (p *Planner) Plan(ctx context.Context, query string, maxCount int, learnings []string) ([]SerpQuery, error) {
	if maxCount <= 0 {
		return nil, nil
	}

	prompt := config.Render(p.prompts.SerpQueries, map[string]string{
		"count": config.Itoa(maxCount),
		"query": query,
	})
	if len(learnings) > 0 {
		prompt += config.Render(p.prompts.PriorWork, map[string]string{
			"learnings": strings.Join(learnings, "\n"),
		})
	}

	var out serpQueryList
	if err := p.complete(ctx, prompt, &out); err != nil {
		return nil, fmt.Errorf("plan queries: %w", err)
	}

	queries := make([]SerpQuery, 0, len(out.Queries))
	for _, q := range out.Queries {
		q.Query = strings.TrimSpace(q.Query)
		if q.Query == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) == maxCount {
			break
		}
	}
	return queries, nil
}
