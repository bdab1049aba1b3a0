package intake

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/dealdesk/internal/coerce"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/reconcile"
)

// MaxOwners is the number of owner slots filled from an application.
const MaxOwners = 2

// newID generates row identifiers; tests replace it.
var newID = uuid.NewString

// MapRecords translates an extraction and its reconciled positions into
// relational rows with foreign keys assigned. It never fails: missing
// values degrade to nil or "Unknown" and dropped rows are reported as
// warnings.
func MapRecords(ext *Extraction, positions []model.ReconciledPosition) (*model.DealAggregate, []string) {
	var warnings []string

	deal := mapDeal(ext)
	agg := &model.DealAggregate{Deal: deal}

	n := 0
	for i, oc := range ext.Owners {
		if !oc.HasName() {
			warnings = append(warnings, fmt.Sprintf("owner %d skipped: missing name", i+1))
			continue
		}
		if n == MaxOwners {
			warnings = append(warnings, fmt.Sprintf("owner %q skipped: only %d owners are recorded", fullName(oc), MaxOwners))
			continue
		}
		n++
		agg.Owners = append(agg.Owners, mapOwner(deal.ID, n, oc))
	}

	seen := make(map[string]bool)
	var months []string
	for _, sc := range ext.Statements {
		month := normalizeMonth(sc.StatementMonth)
		if seen[month] {
			if month == "" {
				warnings = append(warnings, fmt.Sprintf("%s statement without a month ignored: one undated statement per deal", coerce.OrUnknown(sc.BankName)))
			} else {
				warnings = append(warnings, fmt.Sprintf("duplicate statement for %s ignored", month))
			}
			continue
		}
		seen[month] = true
		months = append(months, month)
		agg.Statements = append(agg.Statements, model.BankStatement{
			ID:              newID(),
			DealID:          deal.ID,
			BankName:        coerce.OrUnknown(sc.BankName),
			StatementMonth:  month,
			TotalCredits:    sc.TotalCredits.Value,
			TotalDebits:     sc.TotalDebits.Value,
			NSFCount:        sc.NSFCount.IntOrZero(),
			NegativeDays:    sc.NegativeDays.IntOrZero(),
			AvgDailyBalance: sc.AvgDailyBalance.Value,
			DepositCount:    sc.DepositCount.IntOrZero(),
		})
	}

	for _, p := range positions {
		idx := reconcile.AssignStatement(p, months)
		if idx < 0 {
			warnings = append(warnings, fmt.Sprintf("position %s %s skipped: no bank statement to attach to", p.LenderName, p.Amount.String()))
			continue
		}
		agg.Positions = append(agg.Positions, model.FundingPosition{
			ID:            newID(),
			DealID:        deal.ID,
			StatementID:   agg.Statements[idx].ID,
			LenderName:    p.LenderName,
			Amount:        p.Amount,
			Frequency:     p.Frequency,
			DetectedDates: p.DetectedDates,
		})
	}

	return agg, warnings
}

func mapDeal(ext *Extraction) model.Deal {
	dc := ext.Deal
	deal := model.Deal{
		ID:           newID(),
		BusinessName: coerce.OrUnknown(dc.BusinessName),
		DBA:          strings.TrimSpace(dc.DBA),
		EIN:          strings.TrimSpace(dc.EIN),
		Address: model.Address{
			Street: strings.TrimSpace(dc.Street),
			City:   strings.TrimSpace(dc.City),
			State:  strings.TrimSpace(dc.State),
			Zip:    strings.TrimSpace(dc.Zip),
		},
		BusinessType:        strings.TrimSpace(dc.BusinessType),
		BusinessStartDate:   strings.TrimSpace(dc.BusinessStartDate),
		IsFranchise:         bool(dc.IsFranchise),
		IsSeasonal:          bool(dc.IsSeasonal),
		AvgMonthlySales:     dc.AvgMonthlySales.Value,
		AvgMonthlyCardSales: dc.AvgMonthlyCardSales.Value,
		DesiredLoanAmount:   dc.DesiredLoanAmount.Value,
		LoanType:            parseLoanType(dc.LoanType),
		Status:              model.DealStatusNew,
		FolderRef:           ext.FolderRef,
		Confidence:          ext.Confidence,
		Warnings:            ext.Warnings,
	}
	for _, d := range ext.Documents {
		deal.DocumentRefs = append(deal.DocumentRefs, d.Ref)
	}
	return deal
}

func mapOwner(dealID string, number int, oc OwnerCandidate) model.Owner {
	return model.Owner{
		ID:          newID(),
		DealID:      dealID,
		OwnerNumber: number,
		FirstName:   coerce.OrUnknown(oc.FirstName),
		LastName:    coerce.OrUnknown(oc.LastName),
		Title:       strings.TrimSpace(oc.Title),
		Address: model.Address{
			Street: coerce.OrUnknown(oc.Street),
			City:   coerce.OrUnknown(oc.City),
			State:  coerce.OrUnknown(oc.State),
			Zip:    coerce.OrUnknown(oc.Zip),
		},
		Email:         coerce.String(oc.Email),
		Phone:         coerce.String(oc.Phone),
		OwnershipPct:  oc.OwnershipPct.Value,
		LicenseNumber: coerce.String(oc.LicenseNumber),
		DateOfBirth:   coerce.String(oc.DateOfBirth),
		SSN:           nil,
	}
}

// parseLoanType maps free-form loan type text onto the enumeration.
// Unknown values map to "".
func parseLoanType(s string) model.LoanType {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "merchant_cash_advance":
		return model.LoanTypeMCA
	case "line_of_credit", "loc", "bloc":
		return model.LoanTypeBusinessLineOfCredit
	case "sba_loan", "sba_7a", "sba_504":
		return model.LoanTypeSBA
	case "equipment", "equipment_finance", "equipment_loan":
		return model.LoanTypeEquipmentFinancing
	}
	if lt := model.LoanType(norm); lt.Valid() {
		return lt
	}
	return ""
}

// normalizeMonth reduces a statement month to YYYY-MM when it parses as a
// date or month, and otherwise keeps the trimmed input.
func normalizeMonth(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m, ok := reconcile.MonthOf(s); ok {
		return m
	}
	if m, ok := reconcile.MonthOf(s + "-01"); ok {
		return m
	}
	return s
}

func fullName(oc OwnerCandidate) string {
	return strings.TrimSpace(strings.TrimSpace(oc.FirstName) + " " + strings.TrimSpace(oc.LastName))
}

// DocumentNames lists stored object names, sorted, for logging.
func DocumentNames(objs []StoredObject) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.Name)
	}
	sort.Strings(out)
	return out
}
