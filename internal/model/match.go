package model

import "time"

// SubmissionStatus tracks a broker's submission of a deal to a lender.
type SubmissionStatus string

const (
	SubmissionNotSubmitted SubmissionStatus = "not_submitted"
	SubmissionSubmitted    SubmissionStatus = "submitted"
	SubmissionApproved     SubmissionStatus = "approved"
	SubmissionDeclined     SubmissionStatus = "declined"
	SubmissionFunded       SubmissionStatus = "funded"
)

// Valid reports whether s is a known submission status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionNotSubmitted, SubmissionSubmitted, SubmissionApproved, SubmissionDeclined, SubmissionFunded:
		return true
	}
	return false
}

// LenderMatch is an advisory recommendation of a lender for a deal.
type LenderMatch struct {
	ID               string           `json:"id"`
	DealID           string           `json:"deal_id"`
	LenderID         string           `json:"lender_id"`
	LenderName       string           `json:"lender_name"`
	Score            int              `json:"score"`
	Reasoning        string           `json:"reasoning"`
	RedFlags         []string         `json:"red_flags,omitempty"`
	SubmissionStatus SubmissionStatus `json:"submission_status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// DealAggregate is a deal with all of its child rows.
type DealAggregate struct {
	Deal       Deal              `json:"deal"`
	Owners     []Owner           `json:"owners"`
	Statements []BankStatement   `json:"statements"`
	Positions  []FundingPosition `json:"positions"`
}
