package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hession/deepr/internal/config"
	"github.com/hession/deepr/internal/websearch"
)

// ErrInvalidBudget is returned for a breadth or depth outside the accepted range.
var ErrInvalidBudget = errors.New("invalid research budget")

type queryPlanner interface {
	Plan(ctx context.Context, query string, maxCount int, learnings []string) ([]SerpQuery, error)
}

type resultDistiller interface {
	Distill(ctx context.Context, query string, results []websearch.Result, maxLearnings, maxFollowUps int) (Distilled, error)
}

// Researcher drives the recursive breadth/depth research.
type Researcher struct {
	planner    queryPlanner
	distiller  resultDistiller
	searcher   Searcher
	fetcher    PageFetcher
	searchOpts websearch.Options
	sem        *semaphore.Weighted
	log        zerolog.Logger
}

type settings struct {
	prompts        config.LanguagePrompts
	now            func() time.Time
	log            zerolog.Logger
	maxConcurrency int
	searchOpts     websearch.Options
	fetcher        PageFetcher
}

// Option configures a Researcher.
type Option func(*settings)

// WithPrompts replaces the prompt templates.
func WithPrompts(p config.LanguagePrompts) Option {
	return func(s *settings) { s.prompts = p }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithMaxConcurrency caps the number of search, fetch and completion calls
// in flight across the whole tree. Zero means unlimited.
func WithMaxConcurrency(n int) Option {
	return func(s *settings) { s.maxConcurrency = n }
}

// WithSearchOptions passes provider-specific options to every search.
func WithSearchOptions(opts websearch.Options) Option {
	return func(s *settings) { s.searchOpts = opts }
}

// WithPageFetcher makes the researcher read full pages of search results
// and use them as evidence instead of the snippets.
func WithPageFetcher(f PageFetcher) Option {
	return func(s *settings) { s.fetcher = f }
}

// WithClock sets the time source used in the system prompt.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// New creates a Researcher.
func New(llm Completer, searcher Searcher, opts ...Option) *Researcher {
	s := settings{
		prompts: config.DefaultPromptConfig().GetPrompts(),
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	r := &Researcher{
		planner:    NewPlanner(llm, s.prompts, s.now),
		distiller:  NewDistiller(llm, s.prompts, s.now),
		searcher:   searcher,
		fetcher:    s.fetcher,
		searchOpts: s.searchOpts,
		log:        s.log,
	}
	if s.maxConcurrency > 0 {
		r.sem = semaphore.NewWeighted(int64(s.maxConcurrency))
	}
	return r
}

// Run validates the caller budget (breadth >= 2, depth >= 1) and researches
// query from scratch.
func (r *Researcher) Run(ctx context.Context, query string, breadth, depth int, sink ProgressSink) (Result, error) {
	if err := validation.Validate(strings.TrimSpace(query), validation.Required); err != nil {
		return Result{}, fmt.Errorf("query: %w", err)
	}
	if err := validation.Validate(breadth, validation.Min(2)); err != nil {
		return Result{}, fmt.Errorf("%w: breadth %d: %v", ErrInvalidBudget, breadth, err)
	}
	if err := validation.Validate(depth, validation.Min(1)); err != nil {
		return Result{}, fmt.Errorf("%w: depth %d: %v", ErrInvalidBudget, depth, err)
	}

	start := time.Now()
	res, err := r.Research(ctx, query, breadth, depth, nil, nil, sink)
	if err != nil {
		r.log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("research failed")
		return Result{}, err
	}
	r.log.Info().
		Int("learnings", len(res.Learnings)).
		Int("urls", len(res.VisitedURLs)).
		Dur("elapsed", time.Since(start)).
		Msg("research finished")
	return res, nil
}

// Research plans up to breadth queries for query, runs them concurrently
// and recurses on each with half the breadth while depth remains. The
// returned sets contain learnings and visitedURLs plus everything found
// below. Any error aborts the whole tree and no partial result is returned.
func (r *Researcher) Research(ctx context.Context, query string, breadth, depth int, learnings, visitedURLs []string, sink ProgressSink) (Result, error) {
	if breadth < 0 || depth < 0 {
		return Result{}, fmt.Errorf("%w: breadth %d, depth %d", ErrInvalidBudget, breadth, depth)
	}

	progress := newTracker(depth, breadth, sink)

	var queries []SerpQuery
	err := r.withSlot(ctx, func() error {
		var err error
		queries, err = r.planner.Plan(ctx, query, breadth, learnings)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	progress.planned(queries)
	r.log.Debug().Int("depth", depth).Int("breadth", breadth).Int("queries", len(queries)).Msg("planned")

	if len(queries) == 0 {
		return Result{
			Learnings:   mergeUnique(learnings),
			VisitedURLs: mergeUnique(visitedURLs),
		}, nil
	}

	results := make([]Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			res, err := r.branch(gctx, q, breadth, depth, learnings, visitedURLs, progress, sink)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var allLearnings, allURLs [][]string
	for _, res := range results {
		allLearnings = append(allLearnings, res.Learnings)
		allURLs = append(allURLs, res.VisitedURLs)
	}
	return Result{
		Learnings:   mergeUnique(allLearnings...),
		VisitedURLs: mergeUnique(allURLs...),
	}, nil
}

// branch searches one planned query, distills it and either recurses or
// returns the branch's accumulated sets.
func (r *Researcher) branch(ctx context.Context, q SerpQuery, breadth, depth int, learnings, visitedURLs []string, progress *tracker, sink ProgressSink) (Result, error) {
	progress.started(q.Query)

	var resp websearch.Response
	err := r.withSlot(ctx, func() error {
		var err error
		resp, err = r.searcher.Search(ctx, q.Query, breadth, r.searchOpts)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("search %q: %w", q.Query, err)
	}

	evidence := r.readPages(ctx, resp.Results)

	var distilled Distilled
	err = r.withSlot(ctx, func() error {
		var err error
		distilled, err = r.distiller.Distill(ctx, q.Query, evidence, breadth, breadth/2)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	progress.learned(distilled.Learnings)

	branchLearnings := mergeUnique(learnings, distilled.Learnings)
	branchURLs := mergeUnique(visitedURLs, resp.URLs())

	r.log.Debug().
		Str("query", q.Query).
		Int("results", len(resp.Results)).
		Int("learnings", len(distilled.Learnings)).
		Int("depth", depth).
		Msg("query done")

	if depth-1 > 0 {
		nextBreadth, nextDepth := breadth/2, depth-1
		progress.descend(nextDepth, nextBreadth)
		return r.Research(ctx, followUpQuery(q, distilled.FollowUpQuestions), nextBreadth, nextDepth, branchLearnings, branchURLs, sink)
	}

	progress.leaf()
	return Result{Learnings: branchLearnings, VisitedURLs: branchURLs}, nil
}

// followUpQuery seeds the next level with the branch goal and its questions.
func followUpQuery(q SerpQuery, questions []string) string {
	lines := make([]string, len(questions))
	for i, fq := range questions {
		lines[i] = "- " + fq
	}
	return "Previous research goal: " + q.ResearchGoal + "\n" + strings.Join(lines, "\n")
}

// readPages replaces result descriptions with fetched page content when a
// fetcher is configured. Fetch failures keep the search snippet.
func (r *Researcher) readPages(ctx context.Context, results []websearch.Result) []websearch.Result {
	if r.fetcher == nil {
		return results
	}

	out := make([]websearch.Result, len(results))
	copy(out, results)
	for i := range out {
		if out[i].URL == "" {
			continue
		}
		var page websearch.Page
		err := r.withSlot(ctx, func() error {
			var err error
			page, err = r.fetcher.Fetch(ctx, out[i].URL)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return out
			}
			r.log.Debug().Err(err).Str("url", out[i].URL).Msg("page fetch failed, keeping snippet")
			continue
		}
		if strings.TrimSpace(page.Markdown) != "" {
			out[i].Description = page.Markdown
		}
	}
	return out
}

// withSlot runs fn holding one concurrency slot when a ceiling is set.
// Slots are never held across recursion.
func (r *Researcher) withSlot(ctx context.Context, fn func() error) error {
	if r.sem == nil {
		return fn()
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)
	return fn()
}
