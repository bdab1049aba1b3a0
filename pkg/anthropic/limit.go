package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// limitedClient waits on a shared token bucket before each call.
type limitedClient struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimited wraps c so that calls never exceed rps requests per
// second. A non-positive rps returns c unchanged.
func NewRateLimited(c Client, rps float64, burst int) Client {
	if rps <= 0 {
		return c
	}
	if burst < 1 {
		burst = 1
	}
	return &limitedClient{next: c, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *limitedClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "anthropic: rate limit wait")
	}
	return l.next.CreateMessage(ctx, req)
}
