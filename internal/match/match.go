// Package match recommends lenders for a deal. Lenders that fail a hard
// criterion are screened out locally; the rest are ranked by Claude.
package match

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/coerce"
	"github.com/sells-group/dealdesk/internal/lender"
	"github.com/sells-group/dealdesk/internal/metrics"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/pkg/anthropic"
)

const operation = "match_lenders"

// Options configures the matcher.
type Options struct {
	Model     string
	MaxTokens int64
}

// Recommendation is one ranked lender.
type Recommendation struct {
	LenderID   string   `json:"lender_id"`
	LenderName string   `json:"lender_name"`
	Score      int      `json:"score"`
	Reasoning  string   `json:"reasoning"`
	RedFlags   []string `json:"red_flags,omitempty"`
}

// Result is the outcome of one matching run.
type Result struct {
	Recommendations []Recommendation `json:"recommendations"`
	Summary         string           `json:"summary"`
	// Screened maps lender names to the hard criteria they failed.
	Screened map[string][]string `json:"screened,omitempty"`
	Usage    model.TokenUsage    `json:"token_usage"`
}

// Matcher ranks lenders for a deal.
type Matcher struct {
	client anthropic.Client
	opts   Options
}

// NewMatcher creates a Matcher.
func NewMatcher(client anthropic.Client, opts Options) *Matcher {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Matcher{client: client, opts: opts}
}

// Match screens lenders against the deal, asks the model to rank the
// survivors and returns recommendations sorted by score. The model is not
// called when no lender survives screening.
func (m *Matcher) Match(ctx context.Context, agg *model.DealAggregate, lenders []lender.Lender) (*Result, error) {
	if agg == nil {
		return nil, eris.New("match: nil deal")
	}

	profile := ProfileOf(agg, time.Now())
	res := &Result{Screened: map[string][]string{}}
	var candidates []lender.Lender
	for _, l := range lenders {
		if fails := lender.Screen(l, profile); len(fails) > 0 {
			res.Screened[l.Base().Name] = fails
			continue
		}
		candidates = append(candidates, l)
	}
	if len(candidates) == 0 {
		zap.L().Info("match: no lender passed screening",
			zap.String("deal_id", agg.Deal.ID),
			zap.Int("lenders", len(lenders)),
		)
		return res, nil
	}

	temp := 0.0
	resp, err := m.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       m.opts.Model,
		MaxTokens:   m.opts.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Prompt:      buildPrompt(agg, candidates),
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	res.Usage = model.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens(),
		OutputTokens: resp.Usage.OutputTokens,
	}
	resp.Usage.LogCost(m.opts.Model, operation)
	metrics.LLMTokens.WithLabelValues(operation, "input").Add(float64(res.Usage.InputTokens))
	metrics.LLMTokens.WithLabelValues(operation, "output").Add(float64(res.Usage.OutputTokens))

	if resp.Truncated() {
		return nil, eris.Errorf("match: response truncated at %d tokens", m.opts.MaxTokens)
	}

	var wire struct {
		Recommendations []struct {
			LenderID   string        `json:"lender_id"`
			LenderName string        `json:"lender_name"`
			Score      coerce.Number `json:"score"`
			Reasoning  string        `json:"reasoning"`
			RedFlags   []string      `json:"red_flags"`
		} `json:"recommendations"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &wire); err != nil {
		return nil, eris.Wrap(err, "match: decode response")
	}

	byID := make(map[string]lender.Lender, len(candidates))
	byName := make(map[string]lender.Lender, len(candidates))
	for _, l := range candidates {
		byID[l.Base().ID] = l
		byName[strings.ToLower(strings.TrimSpace(l.Base().Name))] = l
	}

	seen := make(map[string]int)
	for _, r := range wire.Recommendations {
		l, ok := byID[strings.TrimSpace(r.LenderID)]
		if !ok {
			l, ok = byName[strings.ToLower(strings.TrimSpace(r.LenderName))]
		}
		if !ok {
			zap.L().Warn("match: dropping recommendation for unknown lender",
				zap.String("deal_id", agg.Deal.ID),
				zap.String("lender_id", r.LenderID),
				zap.String("lender_name", r.LenderName),
			)
			continue
		}
		rec := Recommendation{
			LenderID:   l.Base().ID,
			LenderName: l.Base().Name,
			Score:      clamp(r.Score.IntOrZero(), 0, 100),
			Reasoning:  strings.TrimSpace(r.Reasoning),
			RedFlags:   r.RedFlags,
		}
		if i, dup := seen[rec.LenderID]; dup {
			if rec.Score > res.Recommendations[i].Score {
				res.Recommendations[i] = rec
			}
			continue
		}
		seen[rec.LenderID] = len(res.Recommendations)
		res.Recommendations = append(res.Recommendations, rec)
	}

	sort.SliceStable(res.Recommendations, func(i, j int) bool {
		a, b := res.Recommendations[i], res.Recommendations[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return strings.ToLower(a.LenderName) < strings.ToLower(b.LenderName)
	})
	res.Summary = strings.TrimSpace(wire.Summary)
	return res, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// ProfileOf derives the screening profile of a deal. Monthly revenue falls
// back to the mean statement credits when no average sales were given.
func ProfileOf(agg *model.DealAggregate, now time.Time) lender.Profile {
	d := agg.Deal
	p := lender.Profile{
		State:                d.Address.State,
		Industry:             d.BusinessType,
		TimeInBusinessMonths: monthsSince(d.BusinessStartDate, now),
	}
	if d.AvgMonthlySales != nil {
		p.MonthlyRevenue, _ = d.AvgMonthlySales.Float64()
	} else {
		var sum float64
		var n int
		for _, s := range agg.Statements {
			if s.TotalCredits != nil {
				f, _ := s.TotalCredits.Float64()
				sum += f
				n++
			}
		}
		if n > 0 {
			p.MonthlyRevenue = sum / float64(n)
		}
	}
	if d.DesiredLoanAmount != nil {
		p.DesiredAmount, _ = d.DesiredLoanAmount.Float64()
	}

	lenders := make(map[string]bool)
	for _, pos := range agg.Positions {
		lenders[strings.ToLower(pos.LenderName)] = true
	}
	p.OpenPositions = len(lenders)
	return p
}

var startDateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", "2006-01", "01/2006", "2006"}

// monthsSince returns whole months from a business start date to now, or 0
// when the date cannot be parsed or lies in the future.
func monthsSince(date string, now time.Time) int {
	date = strings.TrimSpace(date)
	if date == "" {
		return 0
	}
	for _, layout := range startDateLayouts {
		t, err := time.Parse(layout, date)
		if err != nil {
			continue
		}
		months := (now.Year()-t.Year())*12 + int(now.Month()) - int(t.Month())
		if now.Day() < t.Day() {
			months--
		}
		return max(months, 0)
	}
	return 0
}
