package docparse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/intake"
	"github.com/sells-group/dealdesk/internal/model"
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

type fakeOCR struct {
	text  string
	err   error
	calls []string
}

func (f *fakeOCR) ExtractText(_ context.Context, name string, _ []byte) (string, error) {
	f.calls = append(f.calls, name)
	return f.text, f.err
}

func reply(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20, CacheReadInputTokens: 50},
	}
}

func newTestParser(mc *mockClient, o *fakeOCR) *Parser {
	return New(mc, o, Options{NameModel: "haiku", ParseModel: "sonnet", MaxTokens: 4096})
}

func textFile(name, body string, cat intake.Category) intake.File {
	return intake.File{Name: name, MimeType: "text/plain", Category: cat, Data: []byte(body)}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validate(schemaBusinessName, []byte(`{"business_name":null}`)))
	require.NoError(t, validate(schemaStatements, []byte(`{"statements":[{"statement_month":"2025-01","total_credits":"$1,000"}]}`)))

	err := validate(schemaBusinessName, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed validation")

	err = validate(schemaStatements, []byte(`{"statements":[],"positions":[{"lender_name":"X","amount":true}]}`))
	require.Error(t, err)

	err = validate(schemaApplication, []byte(`not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")

	assert.Error(t, validate("nope", []byte(`{}`)))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, kindPDF, classify(intake.File{Name: "a.bin", MimeType: "application/pdf"}))
	assert.Equal(t, kindText, classify(intake.File{Name: "a", MimeType: "text/plain; charset=utf-8"}))
	assert.Equal(t, kindPDF, classify(intake.File{Name: "Statement.PDF"}))
	assert.Equal(t, kindText, classify(intake.File{Name: "export.csv", MimeType: "application/octet-stream"}))
	assert.Equal(t, kindUnsupported, classify(intake.File{Name: "photo.jpg", MimeType: "image/jpeg"}))
}

func TestRenderDocuments(t *testing.T) {
	o := &fakeOCR{text: "  scanned page  "}
	p := newTestParser(new(mockClient), o)

	out, warnings, err := p.renderDocuments(context.Background(), []intake.File{
		{Name: "app.pdf", MimeType: "application/pdf"},
		textFile("notes.txt", "hello", intake.CategoryApplication),
		{Name: "logo.png", MimeType: "image/png"},
		textFile("blank.txt", "   ", intake.CategoryApplication),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.pdf"}, o.calls)
	assert.Contains(t, out, "=== Document: app.pdf ===\nscanned page")
	assert.Contains(t, out, "=== Document: notes.txt ===\nhello")
	assert.NotContains(t, out, "logo.png")
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "logo.png")
	assert.Contains(t, warnings[1], "blank.txt")
}

func TestRenderDocuments_Truncates(t *testing.T) {
	p := newTestParser(new(mockClient), &fakeOCR{})
	out, warnings, err := p.renderDocuments(context.Background(), []intake.File{
		textFile("big.txt", strings.Repeat("x", maxDocumentChars+10), intake.CategoryStatements),
	})
	require.NoError(t, err)
	assert.Less(t, len(out), maxDocumentChars+100)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "truncated")
}

func TestRenderDocuments_TruncatesOnRuneBoundary(t *testing.T) {
	p := newTestParser(new(mockClient), &fakeOCR{})
	// "é" is two bytes, so the limit lands inside a rune.
	text := "x" + strings.Repeat("é", maxDocumentChars/2)
	out, warnings, err := p.renderDocuments(context.Background(), []intake.File{
		textFile("accents.txt", text, intake.CategoryStatements),
	})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(out))
	assert.NotContains(t, out, string(utf8.RuneError))
	require.Len(t, warnings, 1)
}

func TestRenderDocuments_NothingReadable(t *testing.T) {
	p := newTestParser(new(mockClient), &fakeOCR{})
	_, warnings, err := p.renderDocuments(context.Background(), []intake.File{
		{Name: "logo.png", MimeType: "image/png"},
	})
	require.Error(t, err)
	assert.Len(t, warnings, 1)
}

func TestRenderDocuments_OCRFailure(t *testing.T) {
	p := newTestParser(new(mockClient), &fakeOCR{err: errors.New("boom")})
	_, _, err := p.renderDocuments(context.Background(), []intake.File{
		{Name: "a.pdf", MimeType: "application/pdf"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.pdf")
}

func TestExtractBusinessName(t *testing.T) {
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "haiku" && req.Temperature != nil && *req.Temperature == 0 &&
			len(req.System) == 1 && req.System[0].CacheControl != nil
	})).Return(reply("```json\n{\"business_name\": \"  Acme Bakery LLC \"}\n```"), nil)

	p := newTestParser(mc, &fakeOCR{})
	name, err := p.ExtractBusinessName(context.Background(), textFile("app.txt", "Legal name: Acme Bakery LLC", intake.CategoryApplication))
	require.NoError(t, err)
	require.NotNil(t, name)
	assert.Equal(t, "Acme Bakery LLC", *name)
	mc.AssertExpectations(t)
}

func TestExtractBusinessName_Null(t *testing.T) {
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(reply(`{"business_name": null}`), nil)

	p := newTestParser(mc, &fakeOCR{})
	name, err := p.ExtractBusinessName(context.Background(), textFile("app.txt", "illegible", intake.CategoryApplication))
	require.NoError(t, err)
	assert.Nil(t, name)
}

func TestExtractBusinessName_UnsupportedSkipsModel(t *testing.T) {
	mc := new(mockClient)
	p := newTestParser(mc, &fakeOCR{})
	name, err := p.ExtractBusinessName(context.Background(), intake.File{Name: "a.png", MimeType: "image/png"})
	require.NoError(t, err)
	assert.Nil(t, name)
	mc.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestExtractBusinessName_TruncatesContext(t *testing.T) {
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Prompt) < nameContextChars+200
	})).Return(reply(`{"business_name": "X"}`), nil)

	p := newTestParser(mc, &fakeOCR{})
	_, err := p.ExtractBusinessName(context.Background(), textFile("app.txt", strings.Repeat("a", 50_000), intake.CategoryApplication))
	require.NoError(t, err)
	mc.AssertExpectations(t)
}

func TestParseApplication(t *testing.T) {
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "sonnet" && strings.Contains(req.Prompt, "=== Document: app.txt ===")
	})).Return(reply(`{
		"deal": {"business_name": "Acme", "avg_monthly_sales": "$45,000", "is_franchise": "yes", "loan_type": "MCA"},
		"owners": [{"first_name": "Jane", "last_name": "Doe", "ownership_pct": "60%", "ssn": "123-45-6789"}],
		"confidence": {"overall": 0.9},
		"warnings": ["signature missing"]
	}`), nil)

	p := newTestParser(mc, &fakeOCR{})
	res, err := p.ParseApplication(context.Background(), []intake.File{
		textFile("app.txt", "application body", intake.CategoryApplication),
		{Name: "photo.heic", MimeType: "image/heic"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme", res.Deal.BusinessName)
	require.NotNil(t, res.Deal.AvgMonthlySales.Value)
	assert.True(t, res.Deal.AvgMonthlySales.Value.Equal(decimal.NewFromInt(45000)))
	assert.True(t, bool(res.Deal.IsFranchise))
	require.Len(t, res.Owners, 1)
	assert.Equal(t, "Jane", res.Owners[0].FirstName)
	assert.InDelta(t, 0.9, res.Confidence["overall"], 1e-9)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "photo.heic")
	assert.Equal(t, "signature missing", res.Warnings[1])
	assert.Equal(t, model.TokenUsage{InputTokens: 150, OutputTokens: 20}, res.Usage)
}

func TestParseApplication_InvalidResponse(t *testing.T) {
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(reply(`{"owners": []}`), nil)

	p := newTestParser(mc, &fakeOCR{})
	_, err := p.ParseApplication(context.Background(), []intake.File{textFile("app.txt", "x", intake.CategoryApplication)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed validation")
}

func TestParseApplication_Truncated(t *testing.T) {
	mc := new(mockClient)
	resp := reply(`{"deal": {`)
	resp.StopReason = "max_tokens"
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(resp, nil)

	p := newTestParser(mc, &fakeOCR{})
	_, err := p.ParseApplication(context.Background(), []intake.File{textFile("app.txt", "x", intake.CategoryApplication)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestParseApplication_ClientError(t *testing.T) {
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	p := newTestParser(mc, &fakeOCR{})
	_, err := p.ParseApplication(context.Background(), []intake.File{textFile("app.txt", "x", intake.CategoryApplication)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestParseStatements(t *testing.T) {
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(reply(`{
		"statements": [{"bank_name": "Chase", "statement_month": "2025-01", "total_credits": 51234.56, "nsf_count": "2"}],
		"positions": [
			{"lender_name": "Fundbox", "amount": "$425.50", "frequency": "Weekly", "statement_month": "2025-01", "detected_dates": ["2025-01-03", "2025-01-10"]},
			{"lender_name": "", "amount": 100},
			{"lender_name": "Mystery", "amount": null},
			{"lender_name": "Kapitus", "amount": "n/a"}
		],
		"confidence": {"overall": 0.8}
	}`), nil)

	o := &fakeOCR{text: "statement text"}
	p := newTestParser(mc, o)
	res, err := p.ParseStatements(context.Background(), []intake.File{
		{Name: "jan.pdf", MimeType: "application/pdf", Category: intake.CategoryStatements},
	})
	require.NoError(t, err)

	require.Len(t, res.Statements, 1)
	assert.Equal(t, "Chase", res.Statements[0].BankName)
	assert.Equal(t, 2, res.Statements[0].NSFCount.IntOrZero())

	require.Len(t, res.Positions, 1)
	pos := res.Positions[0]
	assert.Equal(t, "Fundbox", pos.LenderName)
	assert.True(t, pos.Amount.Equal(decimal.RequireFromString("425.50")))
	assert.Equal(t, model.FrequencyWeekly, pos.Frequency)
	assert.Equal(t, []string{"2025-01-03", "2025-01-10"}, pos.DetectedDates)

	assert.Len(t, res.Warnings, 3)
	assert.Equal(t, []string{"jan.pdf"}, o.calls)
}

func TestToCandidates_BiWeekly(t *testing.T) {
	amt := decimal.NewFromInt(500)
	freq := " Bi-Weekly "
	got, warnings := toCandidates([]rawPosition{{LenderName: "OnDeck", Frequency: &freq}})
	assert.Empty(t, got)
	assert.Len(t, warnings, 1)

	raw := rawPosition{LenderName: "OnDeck", Frequency: &freq}
	raw.Amount.Value = &amt
	got, warnings = toCandidates([]rawPosition{raw})
	assert.Empty(t, warnings)
	require.Len(t, got, 1)
	assert.Equal(t, model.FrequencyWeekly, got[0].Frequency)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "", truncate("é", 1))
	assert.Equal(t, "\xffab", truncate("\xffabé", 4))
}
