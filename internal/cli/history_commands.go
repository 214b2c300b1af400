package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/hession/deepr/internal/history"
)

// HistoryCommands formats the run history for the history subcommands.
type HistoryCommands struct {
	store history.Store
}

// NewHistoryCommands creates a history command handler
func NewHistoryCommands(store history.Store) *HistoryCommands {
	return &HistoryCommands{store: store}
}

// List shows the newest runs.
func (c *HistoryCommands) List(limit int) (string, error) {
	entries, err := c.store.List(limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "No research history yet", nil
	}

	var builder strings.Builder
	builder.WriteString("Recent research\n\n")
	writeEntries(&builder, entries)
	return builder.String(), nil
}

// Search shows runs whose query or output contains keyword.
func (c *HistoryCommands) Search(keyword string, limit int) (string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", fmt.Errorf("search keyword is empty")
	}
	entries, err := c.store.Search(keyword, limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No research matching %q", keyword), nil
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Research matching %q\n\n", keyword))
	writeEntries(&builder, entries)
	return builder.String(), nil
}

func writeEntries(builder *strings.Builder, entries []*history.Entry) {
	for i, e := range entries {
		builder.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, shortID(e.ID), truncateForDisplay(e.Query, 70)))
		builder.WriteString(fmt.Sprintf("   %s, breadth %d, depth %d, %d learnings, %d sources, %s\n",
			e.Mode, e.Breadth, e.Depth, len(e.Learnings), len(e.VisitedURLs),
			e.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
}

// Show returns the full record of one run. id may be a unique prefix.
func (c *HistoryCommands) Show(id string) (string, error) {
	entry, err := c.resolve(id)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("ID:      %s\n", entry.ID))
	builder.WriteString(fmt.Sprintf("Query:   %s\n", entry.Query))
	builder.WriteString(fmt.Sprintf("Mode:    %s (breadth %d, depth %d)\n", entry.Mode, entry.Breadth, entry.Depth))
	builder.WriteString(fmt.Sprintf("Created: %s\n", entry.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	if entry.CombinedQuery != "" {
		builder.WriteString("\nCombined query:\n")
		builder.WriteString(entry.CombinedQuery)
		builder.WriteString("\n")
	}
	if len(entry.Learnings) > 0 {
		builder.WriteString(fmt.Sprintf("\nLearnings (%d):\n", len(entry.Learnings)))
		for _, l := range entry.Learnings {
			builder.WriteString("- " + l + "\n")
		}
	}
	builder.WriteString("\n")
	builder.WriteString(entry.Output)
	return builder.String(), nil
}

// Output returns the stored report or answer of one run.
func (c *HistoryCommands) Output(id string) (string, error) {
	entry, err := c.resolve(id)
	if err != nil {
		return "", err
	}
	return entry.Output, nil
}

// Delete removes one run. id may be a unique prefix.
func (c *HistoryCommands) Delete(id string) (string, error) {
	entry, err := c.resolve(id)
	if err != nil {
		return "", err
	}
	if err := c.store.Delete(entry.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted %s", shortID(entry.ID)), nil
}

// Clear removes every run.
func (c *HistoryCommands) Clear() (string, error) {
	if err := c.store.Clear(); err != nil {
		return "", err
	}
	return "Research history cleared", nil
}

// Export writes the history as JSON to path, or to stdout for "-".
func (c *HistoryCommands) Export(path string) (string, error) {
	if path == "" || path == "-" {
		_, err := history.Export(c.store, os.Stdout)
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	n, err := history.Export(c.store, f)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Exported %d entries to %s", n, path), nil
}

// Import loads a JSON export from path, skipping runs already present.
func (c *HistoryCommands) Import(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	n, err := history.Import(c.store, f)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Imported %d new entries", n), nil
}

// resolve finds an entry by full ID or by a unique ID prefix.
func (c *HistoryCommands) resolve(id string) (*history.Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("history ID is empty")
	}

	entry, err := c.store.Get(id)
	if err == nil {
		return entry, nil
	}

	entries, listErr := c.store.List(0)
	if listErr != nil {
		return nil, listErr
	}
	var match *history.Entry
	for _, e := range entries {
		if strings.HasPrefix(e.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("history ID prefix %q is ambiguous", id)
			}
			match = e
		}
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
