package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealStatus is the pipeline position of a deal. Transitions are not
// validated: any status may follow any other.
type DealStatus string

const (
	DealStatusNew               DealStatus = "new"
	DealStatusDocumentsReceived DealStatus = "documents_received"
	DealStatusUnderwriting      DealStatus = "underwriting"
	DealStatusSubmitted         DealStatus = "submitted"
	DealStatusApproved          DealStatus = "approved"
	DealStatusFunded            DealStatus = "funded"
	DealStatusDeclined          DealStatus = "declined"
)

// DealStatuses lists every status in pipeline order.
var DealStatuses = []DealStatus{
	DealStatusNew,
	DealStatusDocumentsReceived,
	DealStatusUnderwriting,
	DealStatusSubmitted,
	DealStatusApproved,
	DealStatusFunded,
	DealStatusDeclined,
}

// Valid reports whether s is a member of the status enumeration.
func (s DealStatus) Valid() bool {
	return s.Rank() >= 0
}

// Rank returns the position of s in the pipeline, or -1 if unknown.
func (s DealStatus) Rank() int {
	for i, v := range DealStatuses {
		if v == s {
			return i
		}
	}
	return -1
}

// LoanType is the financing product requested by a deal.
type LoanType string

const (
	LoanTypeMCA                  LoanType = "mca"
	LoanTypeBusinessLineOfCredit LoanType = "business_line_of_credit"
	LoanTypeSBA                  LoanType = "sba"
	LoanTypeTermLoan             LoanType = "term_loan"
	LoanTypeEquipmentFinancing   LoanType = "equipment_financing"
)

// LoanTypes lists every supported loan type.
var LoanTypes = []LoanType{
	LoanTypeMCA,
	LoanTypeBusinessLineOfCredit,
	LoanTypeSBA,
	LoanTypeTermLoan,
	LoanTypeEquipmentFinancing,
}

// Valid reports whether t is a supported loan type.
func (t LoanType) Valid() bool {
	for _, v := range LoanTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Address is a postal address. Blank parts are stored as empty strings.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Deal is a financing application moving through the brokerage pipeline.
type Deal struct {
	ID                  string             `json:"id"`
	BusinessName        string             `json:"business_name"`
	DBA                 string             `json:"dba,omitempty"`
	EIN                 string             `json:"ein,omitempty"`
	Address             Address            `json:"address"`
	BusinessType        string             `json:"business_type,omitempty"`
	BusinessStartDate   string             `json:"business_start_date,omitempty"`
	IsFranchise         bool               `json:"is_franchise"`
	IsSeasonal          bool               `json:"is_seasonal"`
	AvgMonthlySales     *decimal.Decimal   `json:"avg_monthly_sales"`
	AvgMonthlyCardSales *decimal.Decimal   `json:"avg_monthly_card_sales"`
	DesiredLoanAmount   *decimal.Decimal   `json:"desired_loan_amount"`
	LoanType            LoanType           `json:"loan_type,omitempty"`
	Status              DealStatus         `json:"status"`
	FolderRef           string             `json:"folder_ref,omitempty"`
	DocumentRefs        []string           `json:"document_refs,omitempty"`
	Confidence          map[string]float64 `json:"confidence,omitempty"`
	Warnings            []string           `json:"warnings,omitempty"`
	TrackerRef          string             `json:"tracker_ref,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// DealFields is a partial update of editable deal columns. Nil pointers are
// left untouched.
type DealFields struct {
	BusinessName        *string          `json:"business_name,omitempty"`
	DBA                 *string          `json:"dba,omitempty"`
	EIN                 *string          `json:"ein,omitempty"`
	Street              *string          `json:"street,omitempty"`
	City                *string          `json:"city,omitempty"`
	State               *string          `json:"state,omitempty"`
	Zip                 *string          `json:"zip,omitempty"`
	BusinessType        *string          `json:"business_type,omitempty"`
	BusinessStartDate   *string          `json:"business_start_date,omitempty"`
	IsFranchise         *bool            `json:"is_franchise,omitempty"`
	IsSeasonal          *bool            `json:"is_seasonal,omitempty"`
	AvgMonthlySales     *decimal.Decimal `json:"avg_monthly_sales,omitempty"`
	AvgMonthlyCardSales *decimal.Decimal `json:"avg_monthly_card_sales,omitempty"`
	DesiredLoanAmount   *decimal.Decimal `json:"desired_loan_amount,omitempty"`
	LoanType            *LoanType        `json:"loan_type,omitempty"`
}

// Merge overlays the non-nil fields of next onto f.
func (f DealFields) Merge(next DealFields) DealFields {
	if next.BusinessName != nil {
		f.BusinessName = next.BusinessName
	}
	if next.DBA != nil {
		f.DBA = next.DBA
	}
	if next.EIN != nil {
		f.EIN = next.EIN
	}
	if next.Street != nil {
		f.Street = next.Street
	}
	if next.City != nil {
		f.City = next.City
	}
	if next.State != nil {
		f.State = next.State
	}
	if next.Zip != nil {
		f.Zip = next.Zip
	}
	if next.BusinessType != nil {
		f.BusinessType = next.BusinessType
	}
	if next.BusinessStartDate != nil {
		f.BusinessStartDate = next.BusinessStartDate
	}
	if next.IsFranchise != nil {
		f.IsFranchise = next.IsFranchise
	}
	if next.IsSeasonal != nil {
		f.IsSeasonal = next.IsSeasonal
	}
	if next.AvgMonthlySales != nil {
		f.AvgMonthlySales = next.AvgMonthlySales
	}
	if next.AvgMonthlyCardSales != nil {
		f.AvgMonthlyCardSales = next.AvgMonthlyCardSales
	}
	if next.DesiredLoanAmount != nil {
		f.DesiredLoanAmount = next.DesiredLoanAmount
	}
	if next.LoanType != nil {
		f.LoanType = next.LoanType
	}
	return f
}

// Apply writes the non-nil fields of f into d.
func (f DealFields) Apply(d *Deal) {
	setStr := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setStr(&d.BusinessName, f.BusinessName)
	setStr(&d.DBA, f.DBA)
	setStr(&d.EIN, f.EIN)
	setStr(&d.Address.Street, f.Street)
	setStr(&d.Address.City, f.City)
	setStr(&d.Address.State, f.State)
	setStr(&d.Address.Zip, f.Zip)
	setStr(&d.BusinessType, f.BusinessType)
	setStr(&d.BusinessStartDate, f.BusinessStartDate)
	if f.IsFranchise != nil {
		d.IsFranchise = *f.IsFranchise
	}
	if f.IsSeasonal != nil {
		d.IsSeasonal = *f.IsSeasonal
	}
	if f.AvgMonthlySales != nil {
		d.AvgMonthlySales = f.AvgMonthlySales
	}
	if f.AvgMonthlyCardSales != nil {
		d.AvgMonthlyCardSales = f.AvgMonthlyCardSales
	}
	if f.DesiredLoanAmount != nil {
		d.DesiredLoanAmount = f.DesiredLoanAmount
	}
	if f.LoanType != nil {
		d.LoanType = *f.LoanType
	}
}

// IsEmpty reports whether no field is set.
func (f DealFields) IsEmpty() bool {
	return f == DealFields{}
}
