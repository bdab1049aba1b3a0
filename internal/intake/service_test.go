package intake

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/events"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/remote"
)

func newTestService(t *testing.T) (*Service, *mockUploader, *mockParser, *mockWriter, *mockSyncer, *recordingPublisher) {
	t.Helper()
	up := &mockUploader{}
	parser := &mockParser{}
	writer := &mockWriter{}
	syncer := &mockSyncer{}
	pub := &recordingPublisher{}
	svc := NewService(NewOrchestrator(up, parser, Options{}), writer, pub, syncer)
	return svc, up, parser, writer, syncer, pub
}

func TestSubmit_PersistsReconciledDeal(t *testing.T) {
	svc, up, parser, writer, syncer, pub := newTestService(t)

	up.On("Upload", mock.Anything, mock.Anything).Return(&UploadResult{FolderRef: "f"}, nil)
	parser.On("ParseApplication", mock.Anything, mock.Anything).Return(sampleApplication(), nil)
	parser.On("ParseStatements", mock.Anything, mock.Anything).Return(sampleStatements(), nil)

	var saved *model.DealAggregate
	writer.On("CreateDealAggregate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*model.DealAggregate)
	}).Return(nil).Once()
	syncer.On("SyncDeal", mock.Anything, mock.Anything).Return("page-1", nil)
	writer.On("SetTrackerRef", mock.Anything, mock.Anything, "page-1").Return(nil)

	sub, err := svc.Submit(context.Background(), Request{Files: allFiles})
	require.NoError(t, err)
	require.NotNil(t, sub.Aggregate)
	require.NotNil(t, saved)

	// Both Fundbox candidates merge into one weekly position.
	require.Len(t, saved.Positions, 1)
	assert.Equal(t, model.FrequencyWeekly, saved.Positions[0].Frequency)
	assert.Equal(t, []string{"2025-01-06", "2025-01-13", "2025-02-03"}, saved.Positions[0].DetectedDates)
	assert.Equal(t, saved.Statements[0].ID, saved.Positions[0].StatementID)
	assert.Nil(t, saved.Owners[0].SSN)
	assert.Equal(t, "page-1", saved.Deal.TrackerRef)
	assert.False(t, saved.Deal.CreatedAt.IsZero())

	require.Len(t, sub.Stages, len(model.IntakeStages))
	for _, st := range sub.Stages {
		assert.Equal(t, model.StageStatusSuccess, st.Status, st.Name)
	}

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.DealCreated, pub.events[0].Type)
	assert.Equal(t, saved.Deal.ID, pub.events[0].DealID)
	writer.AssertExpectations(t)
}

func TestSubmit_PersistFailureReportsStage(t *testing.T) {
	svc, up, parser, writer, syncer, pub := newTestService(t)

	up.On("Upload", mock.Anything, mock.Anything).Return(&UploadResult{FolderRef: "f"}, nil)
	parser.On("ParseApplication", mock.Anything, mock.Anything).Return(sampleApplication(), nil)
	parser.On("ParseStatements", mock.Anything, mock.Anything).Return(sampleStatements(), nil)
	writer.On("CreateDealAggregate", mock.Anything, mock.Anything).
		Return(eris.New("store: insert statement: duplicate key (hint: month already exists)"))

	sub, err := svc.Submit(context.Background(), Request{Files: allFiles})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intake: persist deal")
	require.NotNil(t, sub)
	assert.Nil(t, sub.Aggregate)

	var persist model.StageResult
	for _, st := range sub.Stages {
		if st.Name == model.StagePersist {
			persist = st
		}
	}
	assert.Equal(t, model.StageStatusError, persist.Status)
	assert.Contains(t, persist.Detail, "hint: month already exists")
	assert.Empty(t, pub.events)
	syncer.AssertNotCalled(t, "SyncDeal", mock.Anything, mock.Anything)
}

func TestSubmit_ExtractFailureReturnsStages(t *testing.T) {
	svc, up, _, writer, _, _ := newTestService(t)

	up.On("Upload", mock.Anything, mock.Anything).Return(nil, eris.New("disk full"))

	sub, err := svc.Submit(context.Background(), Request{Files: allFiles})
	require.Error(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, model.StageStatusError, sub.Stages[0].Status)
	assert.Contains(t, sub.Stages[0].Detail, "disk full")
	assert.Equal(t, model.StageStatusPending, sub.Stages[3].Status)
	assert.Contains(t, sub.Failed, "disk full")
	assert.False(t, sub.Transient)
	writer.AssertNotCalled(t, "CreateDealAggregate", mock.Anything, mock.Anything)
}

func TestSubmit_TransientFailureIsLabelled(t *testing.T) {
	svc, up, _, _, _, _ := newTestService(t)

	up.On("Upload", mock.Anything, mock.Anything).Return(nil, remote.HTTP("s3", "put app.pdf", 503, []byte("slow down")))

	sub, err := svc.Submit(context.Background(), Request{Files: allFiles})
	require.Error(t, err)
	assert.True(t, sub.Transient)
	assert.Contains(t, sub.Failed, "status 503")
}

func TestSubmit_TrackerSyncFailureIsNonFatal(t *testing.T) {
	svc, up, parser, writer, syncer, _ := newTestService(t)

	up.On("Upload", mock.Anything, mock.Anything).Return(&UploadResult{FolderRef: "f"}, nil)
	parser.On("ParseApplication", mock.Anything, mock.Anything).Return(sampleApplication(), nil)
	parser.On("ParseStatements", mock.Anything, mock.Anything).Return(sampleStatements(), nil)
	writer.On("CreateDealAggregate", mock.Anything, mock.Anything).Return(nil)
	syncer.On("SyncDeal", mock.Anything, mock.Anything).Return("", eris.New("notion: 429"))

	sub, err := svc.Submit(context.Background(), Request{Files: allFiles})
	require.NoError(t, err)
	assert.Empty(t, sub.Aggregate.Deal.TrackerRef)
	writer.AssertNotCalled(t, "SetTrackerRef", mock.Anything, mock.Anything, mock.Anything)
}
