package research

import "sync"

// Progress is a point-in-time view of one research invocation.
type Progress struct {
	CurrentDepth     int      `json:"current_depth"`
	TotalDepth       int      `json:"total_depth"`
	CurrentBreadth   int      `json:"current_breadth"`
	TotalBreadth     int      `json:"total_breadth"`
	TotalQueries     int      `json:"total_queries"`
	CompletedQueries int      `json:"completed_queries"`
	CurrentQuery     string   `json:"current_query,omitempty"`
	NewLearnings     []string `json:"new_learnings,omitempty"`
}

// Ratio returns completed/total in [0, 1], or 0 before anything is planned.
func (p Progress) Ratio() float64 {
	if p.TotalQueries <= 0 {
		return 0
	}
	r := float64(p.CompletedQueries) / float64(p.TotalQueries)
	if r > 1 {
		return 1
	}
	return r
}

// ProgressSink receives progress snapshots. Nested invocations report to the
// same sink from different goroutines, so implementations must be safe for
// concurrent use and should return quickly.
type ProgressSink interface {
	OnProgress(Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(Progress)

func (f ProgressFunc) OnProgress(p Progress) { f(p) }

// tracker owns the Progress of a single invocation. Sibling branches update
// it concurrently; every emitted snapshot is a consistent copy.
type tracker struct {
	mu   sync.Mutex
	p    Progress
	sink ProgressSink
}

func newTracker(depth, breadth int, sink ProgressSink) *tracker {
	return &tracker{
		p: Progress{
			CurrentDepth:   depth,
			TotalDepth:     depth,
			CurrentBreadth: breadth,
			TotalBreadth:   breadth,
		},
		sink: sink,
	}
}

// update applies fn and emits when emit is set. The sink runs under the
// lock so snapshots of one invocation are delivered in order.
func (t *tracker) update(emit bool, fn func(p *Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.p)
	if !emit || t.sink == nil {
		return
	}
	snap := t.p
	if snap.NewLearnings != nil {
		snap.NewLearnings = append([]string(nil), snap.NewLearnings...)
	}
	t.sink.OnProgress(snap)
}

func (t *tracker) planned(queries []SerpQuery) {
	t.update(true, func(p *Progress) {
		p.TotalQueries = len(queries)
		p.CurrentQuery = ""
		if len(queries) > 0 {
			p.CurrentQuery = queries[0].Query
		}
	})
}

func (t *tracker) started(query string) {
	t.update(false, func(p *Progress) { p.CurrentQuery = query })
}

func (t *tracker) learned(learnings []string) {
	t.update(true, func(p *Progress) { p.NewLearnings = learnings })
}

func (t *tracker) descend(depth, breadth int) {
	t.update(true, func(p *Progress) {
		p.CompletedQueries++
		p.CurrentDepth = depth
		p.CurrentBreadth = breadth
		p.NewLearnings = nil
	})
}

func (t *tracker) leaf() {
	t.update(true, func(p *Progress) {
		p.CompletedQueries++
		p.CurrentDepth = 0
		p.NewLearnings = nil
	})
}
