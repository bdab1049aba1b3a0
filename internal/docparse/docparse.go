// Package docparse implements intake.Parser on top of Claude. Documents
// are turned into text (PDFs through OCR), sent with a fixed JSON response
// contract, and the reply is validated before it is decoded.
package docparse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/coerce"
	"github.com/sells-group/dealdesk/internal/intake"
	"github.com/sells-group/dealdesk/internal/metrics"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/ocr"
	"github.com/sells-group/dealdesk/pkg/anthropic"
)

const (
	opBusinessName     = "extract_business_name"
	opParseApplication = "parse_application"
	opParseStatements  = "parse_statements"

	// nameContextChars bounds the application text used for name
	// extraction; the name is on the first page.
	nameContextChars = 8_000
)

// Options configures the models used per operation.
type Options struct {
	NameModel  string
	ParseModel string
	MaxTokens  int64
}

// Parser extracts structured deal data from intake documents.
type Parser struct {
	client anthropic.Client
	ocr    ocr.Extractor
	opts   Options
}

var _ intake.Parser = (*Parser)(nil)

// New creates a Parser. Rate limiting belongs to the client; wrap it with
// anthropic.NewRateLimited.
func New(client anthropic.Client, extractor ocr.Extractor, opts Options) *Parser {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 8192
	}
	if opts.NameModel == "" {
		opts.NameModel = opts.ParseModel
	}
	return &Parser{client: client, ocr: extractor, opts: opts}
}

// ExtractBusinessName asks the fast model for the applicant's legal name.
// It returns nil when the model finds none.
func (p *Parser) ExtractBusinessName(ctx context.Context, f intake.File) (*string, error) {
	text, err := p.documentText(ctx, f)
	if eris.Is(err, errUnsupported) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	text = truncate(strings.TrimSpace(text), nameContextChars)
	if text == "" {
		return nil, nil
	}

	raw, _, err := p.call(ctx, opBusinessName, p.opts.NameModel, businessNameSystem,
		fmt.Sprintf("=== Document: %s ===\n%s", f.Name, text), schemaBusinessName)
	if err != nil {
		return nil, err
	}

	var out struct {
		BusinessName *string `json:"business_name"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "docparse: decode business name")
	}
	if out.BusinessName == nil || strings.TrimSpace(*out.BusinessName) == "" {
		return nil, nil
	}
	name := strings.TrimSpace(*out.BusinessName)
	return &name, nil
}

// ParseApplication extracts deal and owner fields from application files.
func (p *Parser) ParseApplication(ctx context.Context, files []intake.File) (*intake.ApplicationResult, error) {
	docs, docWarnings, err := p.renderDocuments(ctx, files)
	if err != nil {
		return nil, err
	}

	raw, usage, err := p.call(ctx, opParseApplication, p.opts.ParseModel, applicationSystem, docs, schemaApplication)
	if err != nil {
		return nil, err
	}

	var res intake.ApplicationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, eris.Wrap(err, "docparse: decode application")
	}
	res.Warnings = intake.MergeWarnings(docWarnings, res.Warnings)
	res.Usage = usage
	return &res, nil
}

// rawPosition is the wire shape of a detected position before its amount
// is coerced.
type rawPosition struct {
	LenderName     string        `json:"lender_name"`
	Amount         coerce.Number `json:"amount"`
	Frequency      *string       `json:"frequency"`
	StatementMonth *string       `json:"statement_month"`
	DetectedDates  []string      `json:"detected_dates"`
}

// ParseStatements extracts statement summaries and recurring lender
// debits from bank statement files.
func (p *Parser) ParseStatements(ctx context.Context, files []intake.File) (*intake.StatementsResult, error) {
	docs, docWarnings, err := p.renderDocuments(ctx, files)
	if err != nil {
		return nil, err
	}

	raw, usage, err := p.call(ctx, opParseStatements, p.opts.ParseModel, statementsSystem, docs, schemaStatements)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Statements []intake.StatementCandidate `json:"statements"`
		Positions  []rawPosition               `json:"positions"`
		Confidence map[string]float64          `json:"confidence"`
		Warnings   []string                    `json:"warnings"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, eris.Wrap(err, "docparse: decode statements")
	}

	positions, posWarnings := toCandidates(wire.Positions)
	return &intake.StatementsResult{
		Statements: wire.Statements,
		Positions:  positions,
		Confidence: wire.Confidence,
		Warnings:   intake.MergeWarnings(docWarnings, wire.Warnings, posWarnings),
		Usage:      usage,
	}, nil
}

// toCandidates drops positions without a lender or a usable amount.
func toCandidates(raw []rawPosition) ([]model.PositionCandidate, []string) {
	var (
		out      []model.PositionCandidate
		warnings []string
	)
	for _, r := range raw {
		name := strings.TrimSpace(r.LenderName)
		if name == "" {
			warnings = append(warnings, "position skipped: missing lender name")
			continue
		}
		if r.Amount.Value == nil || !r.Amount.Value.IsPositive() {
			warnings = append(warnings, fmt.Sprintf("position from %s skipped: missing amount", name))
			continue
		}
		c := model.PositionCandidate{
			LenderName:    name,
			Amount:        *r.Amount.Value,
			DetectedDates: r.DetectedDates,
		}
		if r.Frequency != nil {
			c.Frequency = model.ParseFrequency(strings.ToLower(strings.TrimSpace(*r.Frequency)))
		}
		if r.StatementMonth != nil {
			c.StatementMonth = strings.TrimSpace(*r.StatementMonth)
		}
		out = append(out, c)
	}
	return out, warnings
}

// call sends one request, records usage and returns the validated JSON
// body of the reply.
func (p *Parser) call(ctx context.Context, op, modelName, system, user, schema string) ([]byte, model.TokenUsage, error) {
	temp := 0.0
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       modelName,
		MaxTokens:   p.opts.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(system),
		Prompt:      user,
		Temperature: &temp,
	})
	if err != nil {
		return nil, model.TokenUsage{}, err
	}

	usage := model.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens(),
		OutputTokens: resp.Usage.OutputTokens,
	}
	resp.Usage.LogCost(modelName, op)
	metrics.LLMTokens.WithLabelValues(op, "input").Add(float64(usage.InputTokens))
	metrics.LLMTokens.WithLabelValues(op, "output").Add(float64(usage.OutputTokens))

	if resp.Truncated() {
		return nil, usage, eris.Errorf("docparse: %s response truncated at %d tokens", op, p.opts.MaxTokens)
	}

	body := anthropic.CleanJSON(resp.Text())
	if err := validate(schema, []byte(body)); err != nil {
		zap.L().Warn("docparse: response rejected",
			zap.String("operation", op),
			zap.String("response", truncate(body, 500)),
			zap.Error(err),
		)
		return nil, usage, err
	}
	return []byte(body), usage, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
