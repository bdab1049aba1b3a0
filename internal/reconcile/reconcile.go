// Package reconcile merges funding positions detected in individual bank
// statements and infers their payment cadence from the detected dates.
//
// Everything here is pure: no I/O, no errors, no panics on malformed input.
// Output does not depend on the order of the input candidates.
package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/dealdesk/internal/model"
)

// Mean-gap thresholds in days. Bi-weekly cadences fall in the weekly band.
const (
	dailyMaxGapDays  = 4.0
	weeklyMaxGapDays = 18.0
)

// dateLayouts are tried in order when parsing detected dates.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
}

// ParseDate parses a detected transaction date. ok is false when no known
// layout matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Key returns the grouping key for a lender name and amount. Names compare
// case- and whitespace-insensitively; amounts compare by numeric value.
func Key(c model.PositionCandidate) string {
	return strings.ToLower(strings.TrimSpace(c.LenderName)) + "|" + c.Amount.String()
}

type group struct {
	key        string
	lenderKey  string
	candidates []model.PositionCandidate
}

// Reconcile groups candidates by (lender, amount), unions their detected
// dates and infers each group's frequency.
func Reconcile(candidates []model.PositionCandidate) []model.ReconciledPosition {
	groups := make(map[string]*group)
	for _, c := range candidates {
		k := Key(c)
		g, ok := groups[k]
		if !ok {
			g = &group{key: k, lenderKey: strings.ToLower(strings.TrimSpace(c.LenderName))}
			groups[k] = g
		}
		g.candidates = append(g.candidates, c)
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.lenderKey != b.lenderKey {
			return a.lenderKey < b.lenderKey
		}
		return a.candidates[0].Amount.LessThan(b.candidates[0].Amount)
	})

	out := make([]model.ReconciledPosition, 0, len(ordered))
	for _, g := range ordered {
		out = append(out, merge(g.candidates))
	}
	return out
}

func merge(cs []model.PositionCandidate) model.ReconciledPosition {
	seen := make(map[string]bool)
	var dates []string
	for _, c := range cs {
		for _, d := range c.DetectedDates {
			if seen[d] {
				continue
			}
			seen[d] = true
			dates = append(dates, d)
		}
	}
	dates = SortDates(dates)

	fallback := parserGuess(cs)
	return model.ReconciledPosition{
		LenderName:     displayName(cs),
		Amount:         decimal.RequireFromString(cs[0].Amount.String()),
		Frequency:      InferFrequency(dates, fallback),
		StatementMonth: declaredMonth(cs),
		DetectedDates:  dates,
	}
}

// InferFrequency classifies the mean gap between the distinct dates. With
// fewer than two distinct dates (or fewer than two parseable ones) the
// fallback is returned, and daily when the fallback is empty.
func InferFrequency(dates []string, fallback model.Frequency) model.Frequency {
	if !fallback.Valid() {
		fallback = model.FrequencyDaily
	}

	distinct := make(map[string]bool, len(dates))
	for _, d := range dates {
		distinct[d] = true
	}
	if len(distinct) < 2 {
		return fallback
	}

	times := make([]time.Time, 0, len(distinct))
	for d := range distinct {
		if t, ok := ParseDate(d); ok {
			times = append(times, t)
		}
	}
	if len(times) < 2 {
		return fallback
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	var total float64
	for i := 1; i < len(times); i++ {
		total += times[i].Sub(times[i-1]).Hours() / 24
	}
	return Classify(total / float64(len(times)-1))
}

// Classify maps a mean gap in days to a frequency.
func Classify(meanGapDays float64) model.Frequency {
	switch {
	case meanGapDays <= dailyMaxGapDays:
		return model.FrequencyDaily
	case meanGapDays <= weeklyMaxGapDays:
		return model.FrequencyWeekly
	default:
		return model.FrequencyMonthly
	}
}

// SortDates orders parseable dates chronologically followed by unparseable
// strings in lexical order. The input slice is not modified.
func SortDates(dates []string) []string {
	type entry struct {
		raw string
		t   time.Time
		ok  bool
	}
	entries := make([]entry, len(dates))
	for i, d := range dates {
		t, ok := ParseDate(d)
		entries[i] = entry{raw: d, t: t, ok: ok}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok && !a.t.Equal(b.t) {
			return a.t.Before(b.t)
		}
		return a.raw < b.raw
	})
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out
}

// displayName picks the name from the candidate with the earliest declared
// month; ties go to the lexically smallest trimmed name.
func displayName(cs []model.PositionCandidate) string {
	best := ""
	bestMonth := ""
	for i, c := range cs {
		name := strings.TrimSpace(c.LenderName)
		month := c.StatementMonth
		if i == 0 {
			best, bestMonth = name, month
			continue
		}
		if monthBefore(month, bestMonth) || (month == bestMonth && name < best) {
			best, bestMonth = name, month
		}
	}
	return best
}

// monthBefore orders months with blanks last.
func monthBefore(a, b string) bool {
	switch {
	case a == b:
		return false
	case a == "":
		return false
	case b == "":
		return true
	default:
		return a < b
	}
}

func declaredMonth(cs []model.PositionCandidate) string {
	month := ""
	for _, c := range cs {
		if monthBefore(c.StatementMonth, month) {
			month = c.StatementMonth
		}
	}
	return month
}

var frequencyOrder = []model.Frequency{model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly}

// parserGuess returns the most common valid parser frequency in the group,
// preferring daily, then weekly, then monthly on ties. Empty if none.
func parserGuess(cs []model.PositionCandidate) model.Frequency {
	counts := make(map[model.Frequency]int)
	for _, c := range cs {
		if c.Frequency.Valid() {
			counts[c.Frequency]++
		}
	}
	var best model.Frequency
	bestCount := 0
	for _, f := range frequencyOrder {
		if counts[f] > bestCount {
			best, bestCount = f, counts[f]
		}
	}
	return best
}
