package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hession/deepr/internal/config"
)

type finalReport struct {
	ReportMarkdown string `json:"reportMarkdown" jsonschema_description:"Final report on the topic in Markdown"`
}

type finalAnswer struct {
	ExactAnswer string `json:"exactAnswer" jsonschema_description:"The final answer, make it short and concise, just the answer, no other text"`
}

// Synthesizer writes the final report or answer from accumulated learnings.
type Synthesizer struct {
	prompter
}

// NewSynthesizer creates a Synthesizer. A nil clock uses time.Now.
func NewSynthesizer(llm Completer, prompts config.LanguagePrompts, now func() time.Time) *Synthesizer {
	if now == nil {
		now = time.Now
	}
	return &Synthesizer{prompter{llm: llm, prompts: prompts, now: now}}
}

func formatLearnings(learnings []string) string {
	parts := make([]string, len(learnings))
	for i, l := range learnings {
		parts[i] = fmt.Sprintf("<learning>\n%s\n</learning>", l)
	}
	return strings.Join(parts, "\n")
}

// Report returns a markdown report followed by a Sources section listing
// visitedURLs.
func (s *Synthesizer) Report(ctx context.Context, prompt string, learnings, visitedURLs []string) (string, error) {
	user := config.Render(s.prompts.Report, map[string]string{
		"prompt":    prompt,
		"learnings": formatLearnings(learnings),
	})

	var out finalReport
	if err := s.complete(ctx, user, &out); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	sources := make([]string, len(visitedURLs))
	for i, u := range visitedURLs {
		sources[i] = "- " + u
	}
	return out.ReportMarkdown + "\n\n## Sources\n\n" + strings.Join(sources, "\n"), nil
}

// Answer returns a short, exact answer.
func (s *Synthesizer) Answer(ctx context.Context, prompt string, learnings []string) (string, error) {
	user := config.Render(s.prompts.Answer, map[string]string{
		"prompt":    prompt,
		"learnings": formatLearnings(learnings),
	})

	var out finalAnswer
	if err := s.complete(ctx, user, &out); err != nil {
		return "", fmt.Errorf("write answer: %w", err)
	}
	return strings.TrimSpace(out.ExactAnswer), nil
}
