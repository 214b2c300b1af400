package websearch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Shared collapses concurrent identical searches into one upstream call.
// Callers each receive their own copy of the results. The upstream call runs
// detached from any one caller's context, so a caller that gives up returns
// its own context error while the others still wait for the result.
type Shared struct {
	Provider
	group singleflight.Group
}

func NewShared(p Provider) *Shared {
	return &Shared{Provider: p}
}

func (s *Shared) Search(ctx context.Context, query string, limit int, opts Options) (Response, error) {
	key := sharedKey(s.Provider.Name(), query, limit, opts)
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.Provider.Search(detached, query, limit, opts)
	})

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Response{}, res.Err
		}
		resp := res.Val.(Response)
		resp.Results = append([]Result(nil), resp.Results...)
		return resp, nil
	}
}

func sharedKey(name, query string, limit int, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%s", name, limit, strings.TrimSpace(query))
	if len(opts) > 0 {
		keys := make([]string, 0, len(opts))
		for k := range opts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "|%s=%v", k, opts[k])
		}
	}
	return b.String()
}
