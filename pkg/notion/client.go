// Package notion is the deal board's view of the Notion API: page create,
// page update and paged database queries, throttled and with failures
// reported as remote errors.
package notion

import (
	"context"
	"errors"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/dealdesk/internal/remote"
)

// DefaultRPS is Notion's documented average request limit per integration.
const DefaultRPS = 3

// Client is the subset of the Notion API the board needs.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// Option configures NewClient.
type Option func(*throttled)

// WithRateLimit sets requests per second. Zero or less disables throttling.
func WithRateLimit(rps float64) Option {
	return func(t *throttled) {
		t.limiter = nil
		if rps > 0 {
			t.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type throttled struct {
	api     *notionapi.Client
	limiter *rate.Limiter
}

// NewClient returns a Client for an integration token, limited to
// DefaultRPS unless overridden.
func NewClient(token string, opts ...Option) Client {
	t := &throttled{
		api:     notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(DefaultRPS, 1),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// call waits for a rate-limit token, runs fn and converts its error.
func call[T any](ctx context.Context, t *throttled, op string, fn func() (T, error)) (T, error) {
	var zero T
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return zero, eris.Wrapf(err, "notion: %s: rate limit", op)
		}
	}
	out, err := fn()
	if err != nil {
		return zero, toRemote(op, err)
	}
	return out, nil
}

func (t *throttled) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return call(ctx, t, "query database "+dbID, func() (*notionapi.DatabaseQueryResponse, error) {
		return t.api.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	})
}

func (t *throttled) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	return call(ctx, t, "create page", func() (*notionapi.Page, error) {
		return t.api.Page.Create(ctx, req)
	})
}

func (t *throttled) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return call(ctx, t, "update page "+pageID, func() (*notionapi.Page, error) {
		return t.api.Page.Update(ctx, notionapi.PageID(pageID), req)
	})
}

func toRemote(op string, err error) error {
	var apiErr *notionapi.Error
	if !errors.As(err, &apiErr) {
		return remote.Wrap("notion", op, err)
	}
	msg := apiErr.Message
	if apiErr.Code != "" {
		msg = string(apiErr.Code) + ": " + msg
	}
	return &remote.Error{Service: "notion", Op: op, StatusCode: apiErr.Status, Message: msg, Err: err}
}
