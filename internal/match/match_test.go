package match

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/events"
	"github.com/sells-group/dealdesk/internal/lender"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/store"
	"github.com/sells-group/dealdesk/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func reply(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 300, OutputTokens: 80},
	}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testDeal() *model.DealAggregate {
	return &model.DealAggregate{
		Deal: model.Deal{
			ID:                "deal-1",
			BusinessName:      "Acme Bakery LLC",
			BusinessType:      "Restaurant",
			BusinessStartDate: "2020-03-15",
			Address:           model.Address{State: "tx"},
			AvgMonthlySales:   dec("42500"),
			DesiredLoanAmount: dec("75000"),
			LoanType:          model.LoanTypeMCA,
			Status:            model.DealStatusNew,
		},
		Statements: []model.BankStatement{{ID: "s1", StatementMonth: "2025-01", BankName: "Chase", TotalCredits: dec("51234.56"), NSFCount: 2}},
		Positions: []model.FundingPosition{
			{ID: "p1", StatementID: "s1", LenderName: "Fundbox", Amount: decimal.RequireFromString("425.50"), Frequency: model.FrequencyWeekly},
			{ID: "p2", StatementID: "s1", LenderName: "fundbox", Amount: decimal.RequireFromString("425.50"), Frequency: model.FrequencyWeekly},
			{ID: "p3", StatementID: "s1", LenderName: "OnDeck", Amount: decimal.RequireFromString("310"), Frequency: model.FrequencyDaily},
		},
	}
}

func testLenders() []lender.Lender {
	ls := []lender.Lender{
		&lender.MCALender{Common: lender.Common{Name: "Alpha Capital", States: []string{"TX", "FL"}}, MaxAdvance: 150000, MaxPositions: 3},
		&lender.MCALender{Common: lender.Common{Name: "Beta Funding", States: []string{"NY"}}, MaxAdvance: 100000},
		&lender.SBALender{Common: lender.Common{Name: "Gamma Bank", MinTimeInBusinessMonths: 24}, MaxLoanAmount: 500000},
		&lender.BusinessLineOfCreditLender{Common: lender.Common{Name: "Delta Line", RestrictedIndustries: []string{"restaurant"}}, MaxLineAmount: 50000},
	}
	for _, l := range ls {
		_ = lender.Normalize(l)
	}
	return ls
}

func TestMonthsSince(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 62, monthsSince("2020-03-15", now))
	assert.Equal(t, 63, monthsSince("03/01/2020", now))
	assert.Equal(t, 65, monthsSince("2020", now))
	assert.Equal(t, 0, monthsSince("2026-01-01", now))
	assert.Equal(t, 0, monthsSince("sometime", now))
	assert.Equal(t, 0, monthsSince("", now))
}

func TestProfileOf(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	p := ProfileOf(testDeal(), now)
	assert.Equal(t, "tx", p.State)
	assert.Equal(t, "Restaurant", p.Industry)
	assert.InDelta(t, 42500, p.MonthlyRevenue, 0.001)
	assert.InDelta(t, 75000, p.DesiredAmount, 0.001)
	assert.Equal(t, 2, p.OpenPositions)
	assert.Equal(t, 62, p.TimeInBusinessMonths)
}

func TestProfileOf_RevenueFromStatements(t *testing.T) {
	agg := testDeal()
	agg.Deal.AvgMonthlySales = nil
	agg.Statements = append(agg.Statements, model.BankStatement{StatementMonth: "2025-02", TotalCredits: dec("48765.44")})
	p := ProfileOf(agg, time.Now())
	assert.InDelta(t, 50000, p.MonthlyRevenue, 0.001)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(testDeal(), testLenders()[:1])
	assert.Contains(t, prompt, "Business: Acme Bakery LLC")
	assert.Contains(t, prompt, "Average monthly sales: $42,500.00")
	assert.Contains(t, prompt, "credits $51,234.56")
	assert.Contains(t, prompt, "- Fundbox: $425.50 weekly")
	assert.Contains(t, prompt, "lender_id="+testLenders()[0].Base().ID)
	assert.Contains(t, prompt, "Average monthly card sales: unknown")
}

func TestMatch(t *testing.T) {
	ls := testLenders()
	alpha, gamma := ls[0].Base().ID, ls[2].Base().ID

	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		content := req.Prompt
		return req.Model == "sonnet" &&
			strings.Contains(content, "Alpha Capital") &&
			strings.Contains(content, "Gamma Bank") &&
			!strings.Contains(content, "Beta Funding") &&
			!strings.Contains(content, "Delta Line")
	})).Return(reply("```json\n"+`{
		"recommendations": [
			{"lender_id": "`+gamma+`", "lender_name": "Gamma Bank", "score": 55, "reasoning": " solid history "},
			{"lender_id": "`+alpha+`", "lender_name": "Alpha Capital", "score": "140", "reasoning": "fits", "red_flags": ["2 NSFs"]},
			{"lender_id": "made-up", "lender_name": "Imaginary Lender", "score": 99},
			{"lender_id": "", "lender_name": "gamma bank", "score": 60}
		],
		"summary": "Two viable lenders."
	}`+"\n```"), nil)

	m := NewMatcher(mc, Options{Model: "sonnet"})
	res, err := m.Match(context.Background(), testDeal(), ls)
	require.NoError(t, err)

	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, "Alpha Capital", res.Recommendations[0].LenderName)
	assert.Equal(t, 100, res.Recommendations[0].Score)
	assert.Equal(t, []string{"2 NSFs"}, res.Recommendations[0].RedFlags)
	assert.Equal(t, "Gamma Bank", res.Recommendations[1].LenderName)
	assert.Equal(t, 60, res.Recommendations[1].Score)
	assert.Equal(t, "Two viable lenders.", res.Summary)

	assert.Contains(t, res.Screened, "Beta Funding")
	assert.Contains(t, res.Screened, "Delta Line")
	assert.Equal(t, model.TokenUsage{InputTokens: 300, OutputTokens: 80}, res.Usage)
	mc.AssertExpectations(t)
}

func TestMatch_NoCandidatesSkipsModel(t *testing.T) {
	mc := new(mockClient)
	m := NewMatcher(mc, Options{Model: "sonnet"})
	res, err := m.Match(context.Background(), testDeal(), testLenders()[1:2])
	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)
	assert.Len(t, res.Screened, 1)
	mc.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestMatch_Errors(t *testing.T) {
	t.Run("client", func(t *testing.T) {
		mc := new(mockClient)
		mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))
		_, err := NewMatcher(mc, Options{}).Match(context.Background(), testDeal(), testLenders())
		assert.ErrorContains(t, err, "overloaded")
	})
	t.Run("truncated", func(t *testing.T) {
		mc := new(mockClient)
		resp := reply(`{"recommendations": [`)
		resp.StopReason = "max_tokens"
		mc.On("CreateMessage", mock.Anything, mock.Anything).Return(resp, nil)
		_, err := NewMatcher(mc, Options{}).Match(context.Background(), testDeal(), testLenders())
		assert.ErrorContains(t, err, "truncated")
	})
	t.Run("malformed", func(t *testing.T) {
		mc := new(mockClient)
		mc.On("CreateMessage", mock.Anything, mock.Anything).Return(reply("I cannot help"), nil)
		_, err := NewMatcher(mc, Options{}).Match(context.Background(), testDeal(), testLenders())
		assert.ErrorContains(t, err, "decode response")
	})
	t.Run("nil deal", func(t *testing.T) {
		_, err := NewMatcher(new(mockClient), Options{}).Match(context.Background(), nil, nil)
		assert.Error(t, err)
	})
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "match.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.CreateDealAggregate(ctx, testDeal()))
	ls := testLenders()
	_, err := st.UpsertLenders(ctx, ls)
	require.NoError(t, err)

	alpha, gamma := ls[0].Base().ID, ls[2].Base().ID
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(reply(`{
		"recommendations": [
			{"lender_id": "`+alpha+`", "score": 80, "reasoning": "fits"},
			{"lender_id": "`+gamma+`", "score": 40, "reasoning": "maybe"}
		],
		"summary": "ok"
	}`), nil).Once()

	pub := &recordingPublisher{}
	svc := NewService(NewMatcher(mc, Options{Model: "sonnet"}), st, pub)

	all, res, err := svc.Run(ctx, "deal-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alpha Capital", all[0].LenderName)
	assert.Equal(t, model.SubmissionNotSubmitted, all[0].SubmissionStatus)
	assert.Len(t, res.Recommendations, 2)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.MatchCreated, pub.events[0].Type)

	// A submitted match survives the next run and its lender is not re-ranked.
	_, err = st.UpdateMatchStatus(ctx, all[0].ID, model.SubmissionSubmitted)
	require.NoError(t, err)

	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return !strings.Contains(req.Prompt, "Alpha Capital")
	})).Return(reply(`{"recommendations": [{"lender_id": "`+gamma+`", "score": 45, "reasoning": "maybe"}], "summary": ""}`), nil).Once()

	all, _, err = svc.Run(ctx, "deal-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.SubmissionSubmitted, all[0].SubmissionStatus)
	assert.Equal(t, 80, all[0].Score)
	assert.Equal(t, 45, all[1].Score)
	mc.AssertExpectations(t)
}

func TestService_RunUnknownDeal(t *testing.T) {
	svc := NewService(NewMatcher(new(mockClient), Options{}), newTestStore(t), nil)
	_, _, err := svc.Run(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
