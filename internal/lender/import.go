package lender

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/coerce"
	"github.com/sells-group/dealdesk/internal/tabular"
)

// ImportResult is the outcome of a spreadsheet import. Rows that cannot
// be read are skipped and reported in Skipped.
type ImportResult struct {
	Lenders []Lender
	Skipped []string
}

// ImportXLSX reads lenders from the first worksheet of an XLSX file.
func ImportXLSX(path string) (*ImportResult, error) {
	recs, err := tabular.ReadXLSX(path, tabular.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "lender: import xlsx")
	}
	return fromRecords(recs), nil
}

// ImportCSV reads lenders from a CSV document with a header row.
func ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	recs, err := tabular.ReadCSV(ctx, r, tabular.CSVOptions{LazyQuotes: true})
	if err != nil {
		return nil, eris.Wrap(err, "lender: import csv")
	}
	return fromRecords(recs), nil
}

func fromRecords(recs []tabular.Record) *ImportResult {
	res := &ImportResult{}
	for i, rec := range recs {
		l, err := FromRecord(rec)
		if err != nil {
			// Header is row 1.
			msg := fmt.Sprintf("row %d: %s", i+2, err.Error())
			zap.L().Warn("lender: skipping row", zap.Int("row", i+2), zap.Error(err))
			res.Skipped = append(res.Skipped, msg)
			continue
		}
		res.Lenders = append(res.Lenders, l)
	}
	return res
}

// FromRecord builds a lender from a spreadsheet row keyed by normalized
// header names.
func FromRecord(rec tabular.Record) (Lender, error) {
	t := ParseType(rec.Get("lender_type", "type", "product"))
	l, err := New(t)
	if err != nil {
		return nil, eris.Errorf("unknown lender_type %q", rec.Get("lender_type", "type", "product"))
	}

	c := l.Base()
	c.ID = rec.Get("id")
	c.Name = rec.Get("name", "lender", "lender_name")
	c.ContactEmail = rec.Get("contact_email", "email")
	c.MinCreditScore = intVal(rec.Get("min_credit_score", "min_fico"))
	c.MinMonthlyRevenue = floatVal(rec.Get("min_monthly_revenue"))
	c.MinTimeInBusinessMonths = intVal(rec.Get("min_time_in_business_months", "min_tib_months"))
	c.States = list(rec.Get("states"))
	c.RestrictedIndustries = list(rec.Get("restricted_industries"))

	switch x := l.(type) {
	case *BusinessLineOfCreditLender:
		x.MaxLineAmount = floatVal(rec.Get("max_line_amount", "max_amount"))
		x.DrawFeePct = floatVal(rec.Get("draw_fee_pct"))
	case *MCALender:
		x.MaxAdvance = floatVal(rec.Get("max_advance", "max_amount"))
		x.FactorRateLow = floatVal(rec.Get("factor_rate_low"))
		x.FactorRateHigh = floatVal(rec.Get("factor_rate_high"))
		x.MaxPositions = intVal(rec.Get("max_positions"))
	case *SBALender:
		x.Programs = list(rec.Get("programs"))
		x.MaxLoanAmount = floatVal(rec.Get("max_loan_amount", "max_amount"))
		x.RequiresCollateral = coerce.Bool(rec.Get("requires_collateral"))
	}

	if err := Normalize(l); err != nil {
		return nil, err
	}
	return l, nil
}

func floatVal(s string) float64 {
	d := coerce.Decimal(s)
	if d == nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func intVal(s string) int {
	if p := coerce.Int(s); p != nil {
		return *p
	}
	return 0
}

// list splits a comma, semicolon or pipe separated cell.
func list(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
