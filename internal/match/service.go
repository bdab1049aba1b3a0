package match

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/events"
	"github.com/sells-group/dealdesk/internal/lender"
	"github.com/sells-group/dealdesk/internal/model"
)

// Store is the persistence used by a matching run.
type Store interface {
	GetDealAggregate(ctx context.Context, id string) (*model.DealAggregate, error)
	ListLenders(ctx context.Context) ([]lender.Lender, error)
	ListMatches(ctx context.Context, dealID string) ([]model.LenderMatch, error)
	ReplaceMatches(ctx context.Context, dealID string, matches []model.LenderMatch) error
}

// Service loads a deal, matches it and persists the recommendations.
type Service struct {
	matcher   *Matcher
	store     Store
	publisher events.Publisher
}

// NewService creates a Service. A nil publisher disables events.
func NewService(matcher *Matcher, st Store, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{matcher: matcher, store: st, publisher: pub}
}

// Run matches a deal against the lender directory. Lenders whose match has
// already moved past not_submitted keep their row and are not re-ranked.
// The returned list is every match of the deal after the run.
func (s *Service) Run(ctx context.Context, dealID string) ([]model.LenderMatch, *Result, error) {
	agg, err := s.store.GetDealAggregate(ctx, dealID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "match: load deal")
	}
	lenders, err := s.store.ListLenders(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "match: load lenders")
	}
	existing, err := s.store.ListMatches(ctx, dealID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "match: load matches")
	}

	locked := make(map[string]bool)
	for _, m := range existing {
		if m.SubmissionStatus != model.SubmissionNotSubmitted {
			locked[m.LenderID] = true
		}
	}
	open := lenders[:0:0]
	for _, l := range lenders {
		if !locked[l.Base().ID] {
			open = append(open, l)
		}
	}

	start := time.Now()
	res, err := s.matcher.Match(ctx, agg, open)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	rows := make([]model.LenderMatch, 0, len(res.Recommendations))
	for _, r := range res.Recommendations {
		rows = append(rows, model.LenderMatch{
			ID:               uuid.NewString(),
			DealID:           dealID,
			LenderID:         r.LenderID,
			LenderName:       r.LenderName,
			Score:            r.Score,
			Reasoning:        r.Reasoning,
			RedFlags:         r.RedFlags,
			SubmissionStatus: model.SubmissionNotSubmitted,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	if err := s.store.ReplaceMatches(ctx, dealID, rows); err != nil {
		return nil, nil, eris.Wrap(err, "match: save matches")
	}

	all, err := s.store.ListMatches(ctx, dealID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "match: reload matches")
	}

	zap.L().Info("match: deal matched",
		zap.String("deal_id", dealID),
		zap.Int("lenders", len(lenders)),
		zap.Int("screened_out", len(res.Screened)),
		zap.Int("recommended", len(rows)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	events.PublishLogged(ctx, s.publisher, events.New(events.MatchCreated, dealID, rows))
	return all, res, nil
}
