package model

import (
	"github.com/shopspring/decimal"
)

// Frequency is the payment cadence of a funding position.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is one of the known cadences.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// ParseFrequency normalizes a parser-provided cadence. Bi-weekly variants
// map to weekly; unknown values return "".
func ParseFrequency(s string) Frequency {
	switch s {
	case "daily", "Daily", "DAILY":
		return FrequencyDaily
	case "weekly", "Weekly", "WEEKLY", "biweekly", "bi-weekly", "Bi-Weekly":
		return FrequencyWeekly
	case "monthly", "Monthly", "MONTHLY":
		return FrequencyMonthly
	}
	return ""
}

// PositionCandidate is a funding position detected inside a single
// statement by the document parser.
type PositionCandidate struct {
	LenderName     string          `json:"lender_name"`
	Amount         decimal.Decimal `json:"amount"`
	Frequency      Frequency       `json:"frequency,omitempty"`
	StatementMonth string          `json:"statement_month,omitempty"`
	DetectedDates  []string        `json:"detected_dates"`
}

// ReconciledPosition is a funding position merged across statements with its
// cadence inferred from the detected dates.
type ReconciledPosition struct {
	LenderName     string          `json:"lender_name"`
	Amount         decimal.Decimal `json:"amount"`
	Frequency      Frequency       `json:"frequency"`
	StatementMonth string          `json:"statement_month,omitempty"`
	DetectedDates  []string        `json:"detected_dates"`
}

// FundingPosition is a persisted position attached to one statement.
type FundingPosition struct {
	ID            string          `json:"id"`
	DealID        string          `json:"deal_id"`
	StatementID   string          `json:"statement_id"`
	LenderName    string          `json:"lender_name"`
	Amount        decimal.Decimal `json:"amount"`
	Frequency     Frequency       `json:"frequency"`
	DetectedDates []string        `json:"detected_dates"`
}
