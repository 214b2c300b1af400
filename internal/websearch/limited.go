package websearch

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Limited paces searches of the wrapped provider with a token bucket.
type Limited struct {
	Provider
	limiter *rate.Limiter
}

// NewLimited allows rps requests per second with a burst of at least one.
func NewLimited(p Provider, rps float64) *Limited {
	burst := int(math.Ceil(rps))
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (l *Limited) Search(ctx context.Context, query string, limit int, opts Options) (Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}
	return l.Provider.Search(ctx, query, limit, opts)
}
