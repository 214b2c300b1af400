package history

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no entry has the requested ID.
var ErrNotFound = errors.New("history entry not found")

// Output modes recorded with each entry.
const (
	ModeReport = "report"
	ModeAnswer = "answer"
)

// Store persists finished research runs
type Store interface {
	Save(entry *Entry) error
	Get(id string) (*Entry, error)
	List(limit int) ([]*Entry, error)
	Search(keyword string, limit int) ([]*Entry, error)
	Delete(id string) error
	Clear() error

	// Close connection
	Close() error
}

// Entry is one finished research run.
type Entry struct {
	ID            string    `json:"id"`
	Query         string    `json:"query"`
	CombinedQuery string    `json:"combined_query,omitempty"`
	Mode          string    `json:"mode"`
	Breadth       int       `json:"breadth"`
	Depth         int       `json:"depth"`
	Learnings     []string  `json:"learnings"`
	VisitedURLs   []string  `json:"visited_urls"`
	Output        string    `json:"output"`
	CreatedAt     time.Time `json:"created_at"`
}
