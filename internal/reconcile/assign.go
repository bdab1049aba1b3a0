package reconcile

import (
	"sort"

	"github.com/sells-group/dealdesk/internal/model"
)

// MonthOf truncates a detected date to its YYYY-MM statement month.
func MonthOf(date string) (string, bool) {
	t, ok := ParseDate(date)
	if !ok {
		return "", false
	}
	return t.Format("2006-01"), true
}

// EarliestMonth returns the month of the earliest parseable date, or "".
func EarliestMonth(dates []string) string {
	for _, d := range SortDates(dates) {
		if m, ok := MonthOf(d); ok {
			return m
		}
	}
	return ""
}

// AssignStatement picks the statement a position is filed under. It tries
// the position's declared month, then the month of its earliest detected
// date, then falls back to the chronologically first statement. The result
// is an index into months, or -1 when months is empty.
//
// This is best effort: a position spanning several statements with no
// month tag lands on whichever statement its earliest date falls in.
func AssignStatement(pos model.ReconciledPosition, months []string) int {
	if len(months) == 0 {
		return -1
	}

	index := make(map[string]int, len(months))
	for i, m := range months {
		if _, dup := index[m]; !dup {
			index[m] = i
		}
	}

	if pos.StatementMonth != "" {
		if i, ok := index[pos.StatementMonth]; ok {
			return i
		}
	}
	if m := EarliestMonth(pos.DetectedDates); m != "" {
		if i, ok := index[m]; ok {
			return i
		}
	}

	order := make([]int, len(months))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return months[order[a]] < months[order[b]] })
	return order[0]
}
