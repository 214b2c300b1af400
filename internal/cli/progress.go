package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/hession/deepr/internal/research"
)

var (
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	queryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	learningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
)

// progressPrinter writes one status line per snapshot plus any new learnings.
// Nested invocations report from several goroutines, so writes are serialized.
type progressPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

// OnProgress implements research.ProgressSink
func (p *progressPrinter) OnProgress(s research.Progress) {
	line := formatProgress(s)

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, progressStyle.Render(line))
	for _, l := range s.NewLearnings {
		fmt.Fprintln(p.out, learningStyle.Render("  • "+truncateForDisplay(l, 160)))
	}
}

// formatProgress renders a snapshot as
// "Queries c/t (p%) · Depth d/D · Breadth b/B · query".
func formatProgress(s research.Progress) string {
	parts := []string{
		fmt.Sprintf("Queries %d/%d (%.0f%%)", s.CompletedQueries, s.TotalQueries, s.Ratio()*100),
		fmt.Sprintf("Depth %d/%d", s.CurrentDepth, s.TotalDepth),
		fmt.Sprintf("Breadth %d/%d", s.CurrentBreadth, s.TotalBreadth),
	}
	line := strings.Join(parts, " · ")
	if q := truncateForDisplay(s.CurrentQuery, 60); q != "" {
		line += " · " + queryStyle.Render(q)
	}
	return line
}

// truncateForDisplay flattens text to one line and cuts it at maxLen runes.
func truncateForDisplay(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
