package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hession/deepr/internal/config"
)

type clarifyingQuestions struct {
	Questions []string `json:"questions" jsonschema_description:"Follow up questions to clarify the research direction, max of the requested number"`
}

// Clarifier asks follow-up questions about a query before research starts.
type Clarifier struct {
	prompter
}

// NewClarifier creates a Clarifier. A nil clock uses time.Now.
func NewClarifier(llm Completer, prompts config.LanguagePrompts, now func() time.Time) *Clarifier {
	if now == nil {
		now = time.Now
	}
	return &Clarifier{prompter{llm: llm, prompts: prompts, now: now}}
}

// Questions returns at most n clarifying questions for query.
func (c *Clarifier) Questions(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	prompt := config.Render(c.prompts.Clarify, map[string]string{
		"count": config.Itoa(n),
		"query": query,
	})

	var out clarifyingQuestions
	if err := c.complete(ctx, prompt, &out); err != nil {
		return nil, fmt.Errorf("clarifying questions: %w", err)
	}

	questions := make([]string, 0, len(out.Questions))
	for _, q := range out.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) > n {
		questions = questions[:n]
	}
	return questions, nil
}

// CombineQuery folds the clarifying questions and the user's answer into the
// query that drives research. Without questions the query is returned as is.
func CombineQuery(query string, questions []string, answer string) string {
	query = strings.TrimSpace(query)
	if len(questions) == 0 {
		return query
	}

	var numbered strings.Builder
	for i, q := range questions {
		if i > 0 {
			numbered.WriteString("\n")
		}
		fmt.Fprintf(&numbered, "%d. %s", i+1, q)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "none"
	}

	sections := []string{
		"User question:\n" + query,
		"Follow-up questions:\n" + numbered.String(),
		"Follow-up answer:\n" + answer,
	}
	return strings.Join(sections, "\n\n")
}
