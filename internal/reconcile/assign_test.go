package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dealdesk/internal/model"
)

func TestAssignStatement_DeclaredMonthWins(t *testing.T) {
	pos := model.ReconciledPosition{
		StatementMonth: "2025-02",
		DetectedDates:  []string{"2025-01-28", "2025-02-04"},
	}
	assert.Equal(t, 1, AssignStatement(pos, []string{"2025-01", "2025-02"}))
}

func TestAssignStatement_EarliestDateMonth(t *testing.T) {
	pos := model.ReconciledPosition{
		DetectedDates: []string{"bad", "2025-02-10", "2025-01-28"},
	}
	assert.Equal(t, 0, AssignStatement(pos, []string{"2025-01", "2025-02"}))

	pos.StatementMonth = "2024-12"
	assert.Equal(t, 0, AssignStatement(pos, []string{"2025-01", "2025-02"}))
}

func TestAssignStatement_FallsBackToFirstChronological(t *testing.T) {
	pos := model.ReconciledPosition{
		StatementMonth: "2023-06",
		DetectedDates:  []string{"2023-06-01"},
	}
	assert.Equal(t, 1, AssignStatement(pos, []string{"2025-03", "2025-01", "2025-02"}))
}

func TestAssignStatement_NoStatements(t *testing.T) {
	assert.Equal(t, -1, AssignStatement(model.ReconciledPosition{StatementMonth: "2025-01"}, nil))
}

func TestMonthOf(t *testing.T) {
	m, ok := MonthOf("01/31/2025")
	assert.True(t, ok)
	assert.Equal(t, "2025-01", m)

	_, ok = MonthOf("nope")
	assert.False(t, ok)
}

func TestEarliestMonth(t *testing.T) {
	assert.Equal(t, "2024-12", EarliestMonth([]string{"2025-01-02", "2024-12-30"}))
	assert.Equal(t, "", EarliestMonth([]string{"x"}))
}
