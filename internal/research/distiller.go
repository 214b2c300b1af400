package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hession/deepr/internal/config"
	"github.com/hession/deepr/internal/websearch"
)

// Distilled is what one search contributes to the research.
type Distilled struct {
	Learnings         []string `json:"learnings" jsonschema_description:"List of learnings, max of the requested number"`
	FollowUpQuestions []string `json:"followUpQuestions" jsonschema_description:"List of follow-up questions to research the topic further, max of the requested number"`
}

// Distiller extracts learnings and follow-up questions from search results.
type Distiller struct {
	prompter
}

// NewDistiller creates a Distiller. A nil clock uses time.Now.
func NewDistiller(llm Completer, prompts config.LanguagePrompts, now func() time.Time) *Distiller {
	if now == nil {
		now = time.Now
	}
	return &Distiller{prompter{llm: llm, prompts: prompts, now: now}}
}

// Distill returns at most maxLearnings learnings. maxFollowUps is passed to
// the model as guidance only. Results without any description contribute
// nothing, and with no evidence at all the model is not consulted.
func (d *Distiller) Distill(ctx context.Context, query string, results []websearch.Result, maxLearnings, maxFollowUps int) (Distilled, error) {
	contents := make([]string, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.Description) == "" {
			continue
		}
		contents = append(contents, fmt.Sprintf("<content>\n%s\n</content>", r.Description))
	}
	if len(contents) == 0 || maxLearnings <= 0 {
		return Distilled{}, nil
	}

	prompt := config.Render(d.prompts.Learnings, map[string]string{
		"query":     query,
		"count":     config.Itoa(maxLearnings),
		"followups": config.Itoa(maxFollowUps),
		"contents":  strings.Join(contents, "\n"),
	})

	var out Distilled
	if err := d.complete(ctx, prompt, &out); err != nil {
		return Distilled{}, fmt.Errorf("distill results for %q: %w", query, err)
	}

	out.Learnings = mergeUnique(out.Learnings)
	if len(out.Learnings) > maxLearnings {
		out.Learnings = out.Learnings[:maxLearnings]
	}
	out.FollowUpQuestions = mergeUnique(out.FollowUpQuestions)
	return out, nil
}
