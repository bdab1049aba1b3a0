package intake

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/metrics"
	"github.com/sells-group/dealdesk/internal/model"
)

// StageObserver receives stage transitions from the workflow.
type StageObserver interface {
	StageStarted(name string)
	StageFinished(name string, status model.StageStatus, detail string)
}

// Tracker records the status of every intake stage. It is safe for
// concurrent use; the two parse stages report from separate goroutines.
type Tracker struct {
	mu     sync.Mutex
	order  []string
	stages map[string]*model.StageResult
	now    func() time.Time
}

// NewTracker returns a Tracker with every intake stage pending.
func NewTracker() *Tracker {
	t := &Tracker{
		stages: make(map[string]*model.StageResult, len(model.IntakeStages)),
		now:    time.Now,
	}
	for _, name := range model.IntakeStages {
		t.order = append(t.order, name)
		t.stages[name] = &model.StageResult{Name: name, Status: model.StageStatusPending}
	}
	return t
}

// StageStarted implements StageObserver.
func (t *Tracker) StageStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.stage(name)
	start := t.now()
	st.StartedAt = &start
	st.Status = model.StageStatusInProgress
	st.Detail = ""
	metrics.IntakeStagesActive.WithLabelValues(name).Inc()
}

// StageFinished implements StageObserver.
func (t *Tracker) StageFinished(name string, status model.StageStatus, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.stage(name)
	wasRunning := st.Status == model.StageStatusInProgress
	st.Status = status
	st.Detail = detail
	if st.StartedAt != nil {
		st.Duration = t.now().Sub(*st.StartedAt).Milliseconds()
	}
	if wasRunning {
		metrics.IntakeStagesActive.WithLabelValues(name).Dec()
		metrics.IntakeStageDuration.WithLabelValues(name, string(status)).Observe(float64(st.Duration) / 1000)
	}

	fields := []zap.Field{
		zap.String("stage", name),
		zap.String("status", string(status)),
		zap.Int64("duration_ms", st.Duration),
	}
	if status == model.StageStatusError {
		zap.L().Error("intake: stage failed", append(fields, zap.String("detail", detail))...)
		return
	}
	zap.L().Info("intake: stage finished", fields...)
}

// SetUsage records token usage for a stage.
func (t *Tracker) SetUsage(name string, usage model.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage(name).TokenUsage = usage
}

// Stages returns a snapshot of every stage in execution order.
func (t *Tracker) Stages() []model.StageResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.StageResult, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.stages[name])
	}
	return out
}

// Status returns the current status of one stage.
func (t *Tracker) Status(name string) model.StageStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.stages[name]; ok {
		return st.Status
	}
	return ""
}

// Failed returns the details of every stage in error, joined.
func (t *Tracker) Failed() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var parts []string
	for _, name := range t.order {
		st := t.stages[name]
		if st.Status == model.StageStatusError {
			parts = append(parts, name+": "+st.Detail)
		}
	}
	return strings.Join(parts, "; ")
}

// stage returns the named stage, registering unknown names at the end.
// Callers hold t.mu.
func (t *Tracker) stage(name string) *model.StageResult {
	st, ok := t.stages[name]
	if !ok {
		st = &model.StageResult{Name: name, Status: model.StageStatusPending}
		t.stages[name] = st
		t.order = append(t.order, name)
	}
	return st
}

type usageRecorder interface {
	SetUsage(name string, usage model.TokenUsage)
}

type nopObserver struct{}

func (nopObserver) StageStarted(string)                             {}
func (nopObserver) StageFinished(string, model.StageStatus, string) {}
