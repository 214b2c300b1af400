package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

// ErrNoInput is returned when input is needed but none can be read.
var ErrNoInput = errors.New("no input available")

// LineReader reads one line of user input after showing a prompt.
type LineReader interface {
	ReadLine(prefix string) (string, error)
}

// NewLineReader returns an interactive reader with completion from
// suggestions when in is a terminal, or a plain line reader otherwise.
func NewLineReader(in *os.File, out io.Writer, suggestions []string) LineReader {
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		return newPromptReader(suggestions)
	}
	return NewPlainReader(in, out)
}

// promptReader reads lines with go-prompt, suggesting previous queries.
type promptReader struct {
	suggest []prompt.Suggest
	history []string
}

func newPromptReader(previous []string) *promptReader {
	r := &promptReader{}
	seen := make(map[string]bool)
	for _, q := range previous {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		r.suggest = append(r.suggest, prompt.Suggest{Text: q, Description: "previous research"})
		r.history = append(r.history, q)
	}
	return r
}

func (r *promptReader) complete(d prompt.Document) []prompt.Suggest {
	text := strings.TrimSpace(d.TextBeforeCursor())
	if text == "" {
		return nil
	}
	return prompt.FilterFuzzy(r.suggest, text, true)
}

// ReadLine implements LineReader
func (r *promptReader) ReadLine(prefix string) (string, error) {
	line := prompt.Input(prefix, r.complete,
		prompt.OptionHistory(r.history),
		prompt.OptionPrefixTextColor(prompt.Green),
		prompt.OptionMaxSuggestion(6),
	)
	return strings.TrimSpace(line), nil
}

// PlainReader reads lines from any reader without line editing.
type PlainReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewPlainReader creates a PlainReader. The prompt is written to out when
// it is not nil.
func NewPlainReader(in io.Reader, out io.Writer) *PlainReader {
	return &PlainReader{scanner: bufio.NewScanner(in), out: out}
}

// ReadLine implements LineReader
func (r *PlainReader) ReadLine(prefix string) (string, error) {
	if r.out != nil {
		fmt.Fprint(r.out, prefix)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", ErrNoInput
	}
	return strings.TrimSpace(r.scanner.Text()), nil
}
