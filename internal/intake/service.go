package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/events"
	"github.com/sells-group/dealdesk/internal/metrics"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/reconcile"
	"github.com/sells-group/dealdesk/internal/remote"
)

// DealWriter persists a mapped deal. CreateDealAggregate must write every
// row or none.
type DealWriter interface {
	CreateDealAggregate(ctx context.Context, agg *model.DealAggregate) error
	SetTrackerRef(ctx context.Context, dealID, ref string) error
}

// DealSyncer mirrors a new deal to an external task board and returns the
// board's reference.
type DealSyncer interface {
	SyncDeal(ctx context.Context, deal *model.Deal) (string, error)
}

// Submission is the outcome of one intake run. Stages is populated even
// when Submit fails.
type Submission struct {
	Aggregate *model.DealAggregate `json:"deal,omitempty"`
	Stages    []model.StageResult  `json:"stages"`
	Warnings  []string             `json:"warnings,omitempty"`
	Usage     model.TokenUsage     `json:"token_usage"`

	// Failed names the failed stages with their details. Transient marks a
	// failure that resubmitting the same files may get past.
	Failed    string `json:"failed,omitempty"`
	Transient bool   `json:"transient,omitempty"`
}

// Service runs the full intake: extract, reconcile, map, persist, notify.
type Service struct {
	orch      *Orchestrator
	store     DealWriter
	publisher events.Publisher
	syncer    DealSyncer
}

// NewService creates a Service. publisher and syncer may be nil.
func NewService(orch *Orchestrator, store DealWriter, publisher events.Publisher, syncer DealSyncer) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{orch: orch, store: store, publisher: publisher, syncer: syncer}
}

// Submit runs one intake. Nothing is persisted unless every stage up to
// persist succeeds.
func (s *Service) Submit(ctx context.Context, req Request) (*Submission, error) {
	tracker := NewTracker()
	sub, err := s.submit(ctx, req, tracker)
	if sub == nil {
		sub = &Submission{}
	}
	sub.Stages = tracker.Stages()
	if err != nil {
		sub.Failed = tracker.Failed()
		sub.Transient = remote.IsTransient(err)
		metrics.IntakeRuns.WithLabelValues("error").Inc()
		zap.L().Warn("intake: run failed",
			zap.String("failed", sub.Failed),
			zap.Bool("transient", sub.Transient),
			zap.Error(err),
		)
		return sub, err
	}
	metrics.IntakeRuns.WithLabelValues("success").Inc()
	return sub, nil
}

func (s *Service) submit(ctx context.Context, req Request, tracker *Tracker) (*Submission, error) {
	ext, err := s.orch.Extract(ctx, req, tracker)
	if err != nil {
		return nil, err
	}
	sub := &Submission{Usage: ext.Usage}

	tracker.StageStarted(model.StageReconcile)
	positions := reconcile.Reconcile(ext.Positions)
	for _, p := range positions {
		metrics.PositionsReconciled.WithLabelValues(string(p.Frequency)).Inc()
	}
	tracker.StageFinished(model.StageReconcile, model.StageStatusSuccess,
		fmt.Sprintf("%d candidates merged into %d positions", len(ext.Positions), len(positions)))

	tracker.StageStarted(model.StagePersist)
	agg, mapWarnings := MapRecords(ext, positions)
	agg.Deal.Warnings = MergeWarnings(agg.Deal.Warnings, mapWarnings)
	now := time.Now().UTC()
	agg.Deal.CreatedAt, agg.Deal.UpdatedAt = now, now
	if err := s.store.CreateDealAggregate(ctx, agg); err != nil {
		tracker.StageFinished(model.StagePersist, model.StageStatusError, remote.Describe(err))
		return sub, eris.Wrap(err, "intake: persist deal")
	}
	tracker.StageFinished(model.StagePersist, model.StageStatusSuccess, "deal "+agg.Deal.ID)

	sub.Aggregate = agg
	sub.Warnings = agg.Deal.Warnings

	log := zap.L().With(zap.String("deal_id", agg.Deal.ID))
	log.Info("intake: deal created",
		zap.String("business_name", agg.Deal.BusinessName),
		zap.Int("owners", len(agg.Owners)),
		zap.Int("statements", len(agg.Statements)),
		zap.Int("positions", len(agg.Positions)),
		zap.Strings("documents", DocumentNames(ext.Documents)),
	)

	events.PublishLogged(ctx, s.publisher, events.New(events.DealCreated, agg.Deal.ID, agg))
	s.sync(ctx, &agg.Deal)
	return sub, nil
}

// sync mirrors the deal to the task board. Failures are logged only.
func (s *Service) sync(ctx context.Context, deal *model.Deal) {
	if s.syncer == nil {
		return
	}
	ref, err := s.syncer.SyncDeal(ctx, deal)
	if err != nil {
		zap.L().Warn("intake: tracker sync failed", zap.String("deal_id", deal.ID), zap.Error(err))
		return
	}
	if ref == "" {
		return
	}
	deal.TrackerRef = ref
	if err := s.store.SetTrackerRef(ctx, deal.ID, ref); err != nil {
		zap.L().Warn("intake: save tracker ref failed", zap.String("deal_id", deal.ID), zap.Error(err))
	}
}
