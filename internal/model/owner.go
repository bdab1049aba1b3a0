package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Owner is a principal of a deal, keyed by (DealID, OwnerNumber).
type Owner struct {
	ID            string           `json:"id"`
	DealID        string           `json:"deal_id"`
	OwnerNumber   int              `json:"owner_number"`
	FirstName     string           `json:"first_name"`
	LastName      string           `json:"last_name"`
	Title         string           `json:"title,omitempty"`
	Address       Address          `json:"address"`
	Email         *string          `json:"email"`
	Phone         *string          `json:"phone"`
	OwnershipPct  *decimal.Decimal `json:"ownership_pct"`
	LicenseNumber *string          `json:"license_number"`
	DateOfBirth   *string          `json:"date_of_birth"`
	// SSN is never persisted in cleartext; stores always write NULL.
	SSN       *string   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName joins the first and last name.
func (o Owner) FullName() string {
	switch {
	case o.FirstName == "":
		return o.LastName
	case o.LastName == "":
		return o.FirstName
	default:
		return o.FirstName + " " + o.LastName
	}
}
