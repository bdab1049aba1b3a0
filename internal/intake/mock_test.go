package intake

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/dealdesk/internal/events"
	"github.com/sells-group/dealdesk/internal/model"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UploadResult), args.Error(1)
}

type mockParser struct {
	mock.Mock
}

func (m *mockParser) ExtractBusinessName(ctx context.Context, f File) (*string, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

func (m *mockParser) ParseApplication(ctx context.Context, files []File) (*ApplicationResult, error) {
	args := m.Called(ctx, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ApplicationResult), args.Error(1)
}

func (m *mockParser) ParseStatements(ctx context.Context, files []File) (*StatementsResult, error) {
	args := m.Called(ctx, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StatementsResult), args.Error(1)
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) CreateDealAggregate(ctx context.Context, agg *model.DealAggregate) error {
	return m.Called(ctx, agg).Error(0)
}

func (m *mockWriter) SetTrackerRef(ctx context.Context, dealID, ref string) error {
	return m.Called(ctx, dealID, ref).Error(0)
}

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) SyncDeal(ctx context.Context, deal *model.Deal) (string, error) {
	args := m.Called(ctx, deal)
	return args.String(0), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func strPtr(s string) *string { return &s }
