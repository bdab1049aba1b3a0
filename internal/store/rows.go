package store

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/dealdesk/internal/model"
)

// Column lists shared by both backends. Argument builders below return
// values in the same order.
var (
	dealColumns = []string{
		"id", "business_name", "dba", "ein", "street", "city", "state", "zip",
		"business_type", "business_start_date", "is_franchise", "is_seasonal",
		"avg_monthly_sales", "avg_monthly_card_sales", "desired_loan_amount",
		"loan_type", "status", "folder_ref", "document_refs", "confidence",
		"warnings", "tracker_ref", "created_at", "updated_at",
	}
	ownerColumns = []string{
		"id", "deal_id", "owner_number", "first_name", "last_name", "title",
		"street", "city", "state", "zip", "email", "phone", "ownership_pct",
		"license_number", "date_of_birth", "ssn", "created_at",
	}
	statementColumns = []string{
		"id", "deal_id", "bank_name", "statement_month", "total_credits",
		"total_debits", "nsf_count", "negative_days", "avg_daily_balance",
		"deposit_count", "created_at",
	}
	positionColumns = []string{
		"id", "deal_id", "statement_id", "lender_name", "amount", "frequency",
		"detected_dates",
	}
	matchColumns = []string{
		"id", "deal_id", "lender_id", "lender_name", "score", "reasoning",
		"red_flags", "submission_status", "created_at", "updated_at",
	}
)

// jsonText is a JSON column value. Postgres stores it as JSONB, SQLite as
// TEXT.
func jsonText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal json column")
	}
	return string(data), nil
}

// decimalArg passes money as its exact string form, or NULL.
func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func fromNullDecimal(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func dealArgs(d *model.Deal) ([]any, error) {
	docs, err := jsonText(d.DocumentRefs)
	if err != nil {
		return nil, err
	}
	conf, err := jsonText(d.Confidence)
	if err != nil {
		return nil, err
	}
	warns, err := jsonText(d.Warnings)
	if err != nil {
		return nil, err
	}
	return []any{
		d.ID, d.BusinessName, d.DBA, d.EIN,
		d.Address.Street, d.Address.City, d.Address.State, d.Address.Zip,
		d.BusinessType, d.BusinessStartDate, d.IsFranchise, d.IsSeasonal,
		decimalArg(d.AvgMonthlySales), decimalArg(d.AvgMonthlyCardSales), decimalArg(d.DesiredLoanAmount),
		string(d.LoanType), string(d.Status), d.FolderRef, docs, conf, warns,
		d.TrackerRef, d.CreatedAt, d.UpdatedAt,
	}, nil
}

// ownerArgs never writes the SSN.
func ownerArgs(o *model.Owner) []any {
	return []any{
		o.ID, o.DealID, o.OwnerNumber, o.FirstName, o.LastName, o.Title,
		o.Address.Street, o.Address.City, o.Address.State, o.Address.Zip,
		nullString(o.Email), nullString(o.Phone), decimalArg(o.OwnershipPct),
		nullString(o.LicenseNumber), nullString(o.DateOfBirth), nil, o.CreatedAt,
	}
}

func statementArgs(s *model.BankStatement) []any {
	return []any{
		s.ID, s.DealID, s.BankName, s.StatementMonth,
		decimalArg(s.TotalCredits), decimalArg(s.TotalDebits),
		s.NSFCount, s.NegativeDays, decimalArg(s.AvgDailyBalance),
		s.DepositCount, s.CreatedAt,
	}
}

func positionArgs(p *model.FundingPosition) ([]any, error) {
	dates, err := jsonText(p.DetectedDates)
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID, p.DealID, p.StatementID, p.LenderName, p.Amount.String(),
		string(p.Frequency), dates,
	}, nil
}

func matchArgs(m *model.LenderMatch) ([]any, error) {
	flags, err := jsonText(m.RedFlags)
	if err != nil {
		return nil, err
	}
	return []any{
		m.ID, m.DealID, m.LenderID, m.LenderName, m.Score, m.Reasoning,
		flags, string(m.SubmissionStatus), m.CreatedAt, m.UpdatedAt,
	}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDeal(row scannable) (*model.Deal, error) {
	var (
		d                         model.Deal
		sales, cardSales, desired decimal.NullDecimal
		loanType, status          string
		docs, conf, warns         string
	)
	err := row.Scan(
		&d.ID, &d.BusinessName, &d.DBA, &d.EIN,
		&d.Address.Street, &d.Address.City, &d.Address.State, &d.Address.Zip,
		&d.BusinessType, &d.BusinessStartDate, &d.IsFranchise, &d.IsSeasonal,
		&sales, &cardSales, &desired,
		&loanType, &status, &d.FolderRef, &docs, &conf, &warns,
		&d.TrackerRef, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.AvgMonthlySales = fromNullDecimal(sales)
	d.AvgMonthlyCardSales = fromNullDecimal(cardSales)
	d.DesiredLoanAmount = fromNullDecimal(desired)
	d.LoanType = model.LoanType(loanType)
	d.Status = model.DealStatus(status)
	if err := unmarshalText(docs, &d.DocumentRefs); err != nil {
		return nil, err
	}
	if err := unmarshalText(conf, &d.Confidence); err != nil {
		return nil, err
	}
	if err := unmarshalText(warns, &d.Warnings); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanOwner(row scannable) (*model.Owner, error) {
	var (
		o                               model.Owner
		email, phone, license, dob, ssn *string
		pct                             decimal.NullDecimal
	)
	err := row.Scan(
		&o.ID, &o.DealID, &o.OwnerNumber, &o.FirstName, &o.LastName, &o.Title,
		&o.Address.Street, &o.Address.City, &o.Address.State, &o.Address.Zip,
		&email, &phone, &pct, &license, &dob, &ssn, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Email, o.Phone, o.LicenseNumber, o.DateOfBirth = email, phone, license, dob
	o.OwnershipPct = fromNullDecimal(pct)
	o.SSN = ssn
	return &o, nil
}

func scanStatement(row scannable) (*model.BankStatement, error) {
	var (
		s                    model.BankStatement
		credits, debits, avg decimal.NullDecimal
	)
	err := row.Scan(
		&s.ID, &s.DealID, &s.BankName, &s.StatementMonth, &credits, &debits,
		&s.NSFCount, &s.NegativeDays, &avg, &s.DepositCount, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.TotalCredits = fromNullDecimal(credits)
	s.TotalDebits = fromNullDecimal(debits)
	s.AvgDailyBalance = fromNullDecimal(avg)
	return &s, nil
}

func scanPosition(row scannable) (*model.FundingPosition, error) {
	var (
		p      model.FundingPosition
		amount decimal.NullDecimal
		freq   string
		dates  string
	)
	if err := row.Scan(&p.ID, &p.DealID, &p.StatementID, &p.LenderName, &amount, &freq, &dates); err != nil {
		return nil, err
	}
	p.Amount = amount.Decimal
	p.Frequency = model.Frequency(freq)
	if err := unmarshalText(dates, &p.DetectedDates); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanMatch(row scannable) (*model.LenderMatch, error) {
	var (
		m      model.LenderMatch
		flags  string
		status string
	)
	err := row.Scan(
		&m.ID, &m.DealID, &m.LenderID, &m.LenderName, &m.Score, &m.Reasoning,
		&flags, &status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.SubmissionStatus = model.SubmissionStatus(status)
	if err := unmarshalText(flags, &m.RedFlags); err != nil {
		return nil, err
	}
	return &m, nil
}

func unmarshalText(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return eris.Wrap(err, "store: unmarshal json column")
	}
	return nil
}

func stamp(t *time.Time, now time.Time) {
	if t.IsZero() {
		*t = now
	}
}
