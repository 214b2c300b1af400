package research

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hession/deepr/internal/config"
	"github.com/hession/deepr/internal/websearch"
)

// testPrompts are machine-readable templates so fakes can recover the inputs.
var testPrompts = config.LanguagePrompts{
	System:      "system now={{now}}",
	SerpQueries: "count={{count}}\nquery={{query}}",
	PriorWork:   "\nlearnings={{learnings}}",
	Learnings:   "query={{query}}\nmax={{count}}\nfollowups={{followups}}\ncontents={{contents}}",
	Report:      "prompt={{prompt}}\nlearnings={{learnings}}",
	Answer:      "prompt={{prompt}}\nlearnings={{learnings}}",
	Clarify:     "count={{count}}\nquery={{query}}",
}

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func field(prompt, key, next string) string {
	i := strings.Index(prompt, key+"=")
	if i < 0 {
		return ""
	}
	rest := prompt[i+len(key)+1:]
	if next != "" {
		if j := strings.Index(rest, "\n"+next+"="); j >= 0 {
			rest = rest[:j]
		}
	}
	return rest
}

type planCall struct {
	Query     string
	Count     int
	Learnings string
}

type distillCall struct {
	Query    string
	Max      int
	Contents string
}

// fakeLLM answers structured completions from per-schema hooks.
type fakeLLM struct {
	mu           sync.Mutex
	plan         func(query string, count int) []SerpQuery
	distill      func(query, contents string) Distilled
	report       string
	answer       string
	questions    []string
	err          error
	planCalls    []planCall
	distillCalls []distillCall
	systems      []string
	users        []string
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string, out any) error {
	f.mu.Lock()
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch o := out.(type) {
	case *serpQueryList:
		count, _ := strconv.Atoi(field(user, "count", "query"))
		query := field(user, "query", "learnings")
		f.mu.Lock()
		f.planCalls = append(f.planCalls, planCall{Query: query, Count: count, Learnings: field(user, "learnings", "")})
		f.mu.Unlock()
		if f.plan != nil {
			o.Queries = f.plan(query, count)
		}
	case *Distilled:
		query := field(user, "query", "max")
		max, _ := strconv.Atoi(field(user, "max", "followups"))
		contents := field(user, "contents", "")
		f.mu.Lock()
		f.distillCalls = append(f.distillCalls, distillCall{Query: query, Max: max, Contents: contents})
		f.mu.Unlock()
		if f.distill != nil {
			*o = f.distill(query, contents)
		}
	case *finalReport:
		o.ReportMarkdown = f.report
	case *finalAnswer:
		o.ExactAnswer = f.answer
	case *clarifyingQuestions:
		o.Questions = f.questions
	default:
		return fmt.Errorf("unexpected schema %T", out)
	}
	return nil
}

func (f *fakeLLM) planCallsSnapshot() []planCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]planCall(nil), f.planCalls...)
}

func (f *fakeLLM) distillCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.distillCalls)
}

// fakeSearcher returns one result per query unless hooked.
type fakeSearcher struct {
	mu       sync.Mutex
	search   func(ctx context.Context, query string, limit int) (websearch.Response, error)
	delay    time.Duration
	calls    []string
	limits   map[string]int
	opts     []websearch.Options
	inflight int32
	peak     int32
}

func (s *fakeSearcher) Search(ctx context.Context, query string, limit int, opts websearch.Options) (websearch.Response, error) {
	n := atomic.AddInt32(&s.inflight, 1)
	defer atomic.AddInt32(&s.inflight, -1)
	for {
		peak := atomic.LoadInt32(&s.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&s.peak, peak, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, query)
	if s.limits == nil {
		s.limits = make(map[string]int)
	}
	s.limits[query] = limit
	s.opts = append(s.opts, opts)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return websearch.Response{}, ctx.Err()
		}
	}

	if s.search != nil {
		return s.search(ctx, query, limit)
	}
	return websearch.Response{
		Query:    query,
		Provider: "fake",
		Results: []websearch.Result{{
			Title:       query,
			URL:         "https://example.com/" + slug(query),
			Description: "about " + query,
		}},
	}, nil
}

func (s *fakeSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func slug(s string) string {
	return strings.NewReplacer(" ", "-", "\n", "-", ":", "").Replace(s)
}

// recordingPlanner wraps a planner and records every max_count it receives.
type recordingPlanner struct {
	inner  queryPlanner
	mu     sync.Mutex
	counts []int
}

func (p *recordingPlanner) Plan(ctx context.Context, query string, maxCount int, learnings []string) ([]SerpQuery, error) {
	p.mu.Lock()
	p.counts = append(p.counts, maxCount)
	p.mu.Unlock()
	return p.inner.Plan(ctx, query, maxCount, learnings)
}

func (p *recordingPlanner) snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.counts...)
}

// collector is a concurrency-safe progress sink.
type collector struct {
	mu    sync.Mutex
	snaps []Progress
}

func (c *collector) OnProgress(p Progress) {
	c.mu.Lock()
	c.snaps = append(c.snaps, p)
	c.mu.Unlock()
}

func (c *collector) byTotalDepth(d int) []Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Progress
	for _, s := range c.snaps {
		if s.TotalDepth == d {
			out = append(out, s)
		}
	}
	return out
}

// fakeFetcher serves page markdown by URL.
type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (websearch.Page, error) {
	md, ok := f.pages[url]
	if !ok {
		return websearch.Page{}, errors.New("not found")
	}
	return websearch.Page{URL: url, Markdown: md}, nil
}

// queriesN returns n queries derived from parent.
func queriesN(parent string, n int) []SerpQuery {
	out := make([]SerpQuery, n)
	for i := range out {
		q := fmt.Sprintf("%s/%d", firstLine(parent), i)
		out[i] = SerpQuery{Query: q, ResearchGoal: "goal of " + q}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
