package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hession/deepr/internal/config"
	"github.com/hession/deepr/internal/history"
	"github.com/hession/deepr/internal/llm"
	"github.com/hession/deepr/internal/logger"
	"github.com/hession/deepr/internal/report"
	"github.com/hession/deepr/internal/research"
	"github.com/hession/deepr/internal/websearch"
)

const Version = "0.1.0"

// ErrEmptyQuery is returned when no research query was given.
var ErrEmptyQuery = errors.New("research query is empty")

// Options controls a single research run.
type Options struct {
	Query     string
	Breadth   int
	Depth     int
	Mode      string // history.ModeReport or history.ModeAnswer
	Followups int    // clarifying questions to ask, 0 disables them
	Output    string // optional file path, .html/.htm writes HTML
	Raw       bool   // print markdown without terminal styling
}

// OptionsFromConfig returns run options seeded from the research defaults.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Breadth:   cfg.Research.Breadth,
		Depth:     cfg.Research.Depth,
		Mode:      cfg.Research.Output,
		Followups: cfg.Research.FollowupQuestions,
	}
}

type researcher interface {
	Run(ctx context.Context, query string, breadth, depth int, sink research.ProgressSink) (research.Result, error)
}

type clarifier interface {
	Questions(ctx context.Context, query string, n int) ([]string, error)
}

type synthesizer interface {
	Report(ctx context.Context, prompt string, learnings, visitedURLs []string) (string, error)
	Answer(ctx context.Context, prompt string, learnings []string) (string, error)
}

// Runner runs research from the command line: it asks for the query and
// clarifications, shows progress, prints the output and records history.
type Runner struct {
	Researcher  researcher
	Clarifier   clarifier
	Synthesizer synthesizer
	Store       history.Store // optional
	Input       LineReader
	Out         io.Writer // final output
	Err         io.Writer // progress and notices
	Width       int
	Log         zerolog.Logger
}

// Build wires the configured LLM, search provider, researcher and history
// store into a Runner. in is the reader for user input; when nil a reader
// over stdin is created, suggesting previous queries.
func Build(cfg *config.Config, in LineReader) (*Runner, error) {
	if !cfg.IsAPIKeyConfigured() {
		return nil, fmt.Errorf("%w: model.api_key (set OPENAI_API_KEY or %s_MODEL_API_KEY)", config.ErrMissingCredential, config.EnvPrefix)
	}

	promptCfg, err := config.LoadPromptConfig()
	if err != nil {
		return nil, err
	}
	prompts := promptCfg.GetPrompts()

	client := llm.New(
		cfg.Model.APIKey,
		cfg.Model.BaseURL,
		cfg.Model.Model,
		cfg.Model.Temperature,
		cfg.Model.MaxTokens,
		llm.WithStructuredOutput(cfg.Model.StructuredOutput),
		llm.WithMaxRetries(cfg.Model.MaxRetries),
		llm.WithTimeout(time.Duration(cfg.Model.TimeoutSeconds)*time.Second),
	)

	searcher, err := websearch.New(cfg.Search)
	if err != nil {
		return nil, err
	}

	opts := []research.Option{
		research.WithPrompts(prompts),
		research.WithLogger(logger.Component("research")),
		research.WithMaxConcurrency(cfg.Research.MaxConcurrency),
		research.WithSearchOptions(websearch.Options(cfg.Search.Options)),
	}
	if cfg.Research.FetchPages {
		timeout := time.Duration(cfg.Search.TimeoutSeconds) * time.Second
		opts = append(opts, research.WithPageFetcher(
			websearch.NewPageFetcher(cfg.Search.UserAgent, timeout, cfg.Research.MaxPageChars)))
	}

	r := &Runner{
		Researcher:  research.New(client, searcher, opts...),
		Clarifier:   research.NewClarifier(client, prompts, nil),
		Synthesizer: research.NewSynthesizer(client, prompts, nil),
		Out:         os.Stdout,
		Err:         os.Stderr,
		Log:         logger.Component("cli"),
	}

	var previous []string
	if cfg.History.Enabled {
		store, err := history.NewSQLiteStore(cfg.History.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history store: %w", err)
		}
		r.Store = store
		if entries, err := store.List(50); err == nil {
			for _, e := range entries {
				previous = append(previous, e.Query)
			}
		}
	}
	r.Input = in
	if r.Input == nil {
		r.Input = NewLineReader(os.Stdin, os.Stderr, previous)
	}

	r.Log.Info().
		Str("model", client.Model()).
		Str("provider", searcher.Name()).
		Bool("history", r.Store != nil).
		Msg("runner ready")
	return r, nil
}

// Close releases the history store.
func (r *Runner) Close() error {
	if r.Store != nil {
		return r.Store.Close()
	}
	return nil
}

// Research runs one research session end to end and returns the entry that
// was recorded.
func (r *Runner) Research(ctx context.Context, opts Options) (*history.Entry, error) {
	query, err := r.query(opts.Query)
	if err != nil {
		return nil, err
	}

	combined, err := r.clarify(ctx, query, opts.Followups)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(r.Err, headingStyle.Render("Researching..."))
	start := time.Now()
	res, err := r.Researcher.Run(ctx, combined, opts.Breadth, opts.Depth, newProgressPrinter(r.Err))
	if err != nil {
		fmt.Fprintln(r.Err, errorStyle.Render("Research failed: "+err.Error()))
		return nil, err
	}
	fmt.Fprintf(r.Err, "\n%d learnings from %d sources in %s\n\n",
		len(res.Learnings), len(res.VisitedURLs), time.Since(start).Round(time.Second))

	mode := opts.Mode
	if mode == "" {
		mode = history.ModeReport
	}

	var output string
	switch mode {
	case history.ModeAnswer:
		output, err = r.Synthesizer.Answer(ctx, combined, res.Learnings)
	case history.ModeReport:
		output, err = r.Synthesizer.Report(ctx, combined, res.Learnings, res.VisitedURLs)
	default:
		return nil, fmt.Errorf("unknown output mode %q", mode)
	}
	if err != nil {
		return nil, err
	}

	entry := &history.Entry{
		Query:       query,
		Mode:        mode,
		Breadth:     opts.Breadth,
		Depth:       opts.Depth,
		Learnings:   res.Learnings,
		VisitedURLs: res.VisitedURLs,
		Output:      output,
	}
	if combined != query {
		entry.CombinedQuery = combined
	}
	if r.Store != nil {
		if err := r.Store.Save(entry); err != nil {
			r.Log.Warn().Err(err).Msg("failed to save history entry")
			fmt.Fprintln(r.Err, errorStyle.Render("Warning: run not saved to history: "+err.Error()))
		}
	}

	if opts.Output != "" {
		if err := report.WriteFile(opts.Output, output); err != nil {
			return entry, err
		}
		fmt.Fprintf(r.Err, "Saved to %s\n", opts.Output)
	}

	if opts.Raw {
		fmt.Fprintln(r.Out, output)
	} else {
		fmt.Fprintln(r.Out, report.RenderTerminal(output, r.Width))
	}
	return entry, nil
}

// query returns q or asks for one.
func (r *Runner) query(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q != "" {
		return q, nil
	}
	if r.Input == nil {
		return "", ErrEmptyQuery
	}
	line, err := r.Input.ReadLine("What would you like to research? ")
	if err != nil {
		if errors.Is(err, ErrNoInput) {
			return "", ErrEmptyQuery
		}
		return "", err
	}
	if line = strings.TrimSpace(line); line == "" {
		return "", ErrEmptyQuery
	}
	return line, nil
}

// clarify asks up to n clarifying questions and folds the answer into the
// research query.
func (r *Runner) clarify(ctx context.Context, query string, n int) (string, error) {
	if n <= 0 || r.Clarifier == nil || r.Input == nil {
		return query, nil
	}

	questions, err := r.Clarifier.Questions(ctx, query, n)
	if err != nil {
		return "", err
	}
	if len(questions) == 0 {
		return query, nil
	}

	fmt.Fprintln(r.Err, headingStyle.Render("To better understand your research needs, please answer these follow-up questions:"))
	for i, q := range questions {
		fmt.Fprintf(r.Err, "%d. %s\n", i+1, q)
	}
	answer, err := r.Input.ReadLine("Your answer: ")
	if err != nil && !errors.Is(err, ErrNoInput) {
		return "", err
	}
	return research.CombineQuery(query, questions, answer), nil
}

// Questions prints the clarifying questions for query without researching.
func (r *Runner) Questions(ctx context.Context, query string, n int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	questions, err := r.Clarifier.Questions(ctx, query, n)
	if err != nil {
		return nil, err
	}
	for i, q := range questions {
		fmt.Fprintf(r.Out, "%d. %s\n", i+1, q)
	}
	return questions, nil
}

// EnsureAPIKey asks for the LLM API key when none is configured and saves it.
func EnsureAPIKey(cfg *config.Config, in LineReader, out io.Writer) error {
	if cfg.IsAPIKeyConfigured() {
		return nil
	}

	fmt.Fprintln(out, errorStyle.Render("API Key not configured"))
	apiKey, err := in.ReadLine("Please enter your OpenAI-compatible API Key: ")
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("%w: API Key cannot be empty", config.ErrMissingCredential)
	}

	cfg.Model.APIKey = apiKey
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintln(out, "API Key saved")
	return nil
}
