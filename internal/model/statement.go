package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankStatement is one parsed monthly statement of a deal.
type BankStatement struct {
	ID              string           `json:"id"`
	DealID          string           `json:"deal_id"`
	BankName        string           `json:"bank_name"`
	StatementMonth  string           `json:"statement_month"` // YYYY-MM
	TotalCredits    *decimal.Decimal `json:"total_credits"`
	TotalDebits     *decimal.Decimal `json:"total_debits"`
	NSFCount        int              `json:"nsf_count"`
	NegativeDays    int              `json:"negative_days"`
	AvgDailyBalance *decimal.Decimal `json:"avg_daily_balance"`
	DepositCount    int              `json:"deposit_count"`
	CreatedAt       time.Time        `json:"created_at"`
}
