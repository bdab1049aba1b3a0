// Package analytics aggregates deals and funding positions for the
// pipeline dashboard. All functions are pure.
package analytics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/dealdesk/internal/model"
)

// Bucket is a count and an amount total.
type Bucket struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

func (b *Bucket) add(amount *decimal.Decimal) {
	b.Count++
	if amount != nil {
		b.Amount = b.Amount.Add(*amount)
	}
}

// MonthVolume is the funded total of one creation month.
type MonthVolume struct {
	Month  string          `json:"month"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// Summary is the pipeline overview.
type Summary struct {
	TotalDeals     int                          `json:"total_deals"`
	RequestedTotal decimal.Decimal              `json:"requested_total"`
	ByStatus       map[model.DealStatus]*Bucket `json:"by_status"`
	ByLoanType     map[string]*Bucket           `json:"by_loan_type"`
	FundedByMonth  []MonthVolume                `json:"funded_by_month"`
	// Conversion is funded / (funded + declined), or 0 when no deal has
	// reached either outcome.
	Conversion float64 `json:"conversion"`
}

// Summarize counts deals and sums desired amounts by status and loan type.
// Deals without a loan type are grouped under "unspecified".
func Summarize(deals []model.Deal) Summary {
	s := Summary{
		ByStatus:   make(map[model.DealStatus]*Bucket, len(model.DealStatuses)),
		ByLoanType: make(map[string]*Bucket),
	}
	for _, st := range model.DealStatuses {
		s.ByStatus[st] = &Bucket{}
	}

	months := make(map[string]*MonthVolume)
	for _, d := range deals {
		s.TotalDeals++
		if d.DesiredLoanAmount != nil {
			s.RequestedTotal = s.RequestedTotal.Add(*d.DesiredLoanAmount)
		}

		b, ok := s.ByStatus[d.Status]
		if !ok {
			b = &Bucket{}
			s.ByStatus[d.Status] = b
		}
		b.add(d.DesiredLoanAmount)

		lt := string(d.LoanType)
		if lt == "" {
			lt = "unspecified"
		}
		if s.ByLoanType[lt] == nil {
			s.ByLoanType[lt] = &Bucket{}
		}
		s.ByLoanType[lt].add(d.DesiredLoanAmount)

		if d.Status == model.DealStatusFunded {
			month := d.CreatedAt.UTC().Format("2006-01")
			mv := months[month]
			if mv == nil {
				mv = &MonthVolume{Month: month}
				months[month] = mv
			}
			mv.Count++
			if d.DesiredLoanAmount != nil {
				mv.Amount = mv.Amount.Add(*d.DesiredLoanAmount)
			}
		}
	}

	for _, mv := range months {
		s.FundedByMonth = append(s.FundedByMonth, *mv)
	}
	sort.Slice(s.FundedByMonth, func(i, j int) bool {
		return s.FundedByMonth[i].Month < s.FundedByMonth[j].Month
	})

	funded := s.ByStatus[model.DealStatusFunded].Count
	declined := s.ByStatus[model.DealStatusDeclined].Count
	if funded+declined > 0 {
		s.Conversion = float64(funded) / float64(funded+declined)
	}
	return s
}

var monthlyFactor = map[model.Frequency]decimal.Decimal{
	model.FrequencyDaily:   decimal.NewFromInt(21),
	model.FrequencyWeekly:  decimal.RequireFromString("4.33"),
	model.FrequencyMonthly: decimal.NewFromInt(1),
}

// MonthlyPayment normalizes one payment to a monthly figure: 21 business
// days, 4.33 weeks. Unknown cadences count once.
func MonthlyPayment(amount decimal.Decimal, f model.Frequency) decimal.Decimal {
	factor, ok := monthlyFactor[f]
	if !ok {
		factor = decimal.NewFromInt(1)
	}
	return amount.Mul(factor).Round(2)
}

// LenderLoad is the stacked monthly payment owed to one lender.
type LenderLoad struct {
	LenderName string          `json:"lender_name"`
	Positions  int             `json:"positions"`
	Deals      int             `json:"deals"`
	Monthly    decimal.Decimal `json:"monthly"`
}

// PositionLoad groups positions by lender, case-insensitively, and sums
// their monthly payment. Results are sorted by monthly load, largest first.
func PositionLoad(positions []model.FundingPosition) []LenderLoad {
	type acc struct {
		load  LenderLoad
		deals map[string]bool
	}
	byLender := make(map[string]*acc)
	var order []string
	for _, p := range positions {
		key := strings.ToLower(strings.TrimSpace(p.LenderName))
		a := byLender[key]
		if a == nil {
			a = &acc{load: LenderLoad{LenderName: strings.TrimSpace(p.LenderName)}, deals: map[string]bool{}}
			byLender[key] = a
			order = append(order, key)
		}
		a.load.Positions++
		a.deals[p.DealID] = true
		a.load.Monthly = a.load.Monthly.Add(MonthlyPayment(p.Amount, p.Frequency))
	}

	out := make([]LenderLoad, 0, len(order))
	for _, k := range order {
		a := byLender[k]
		a.load.Deals = len(a.deals)
		out = append(out, a.load)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Monthly.GreaterThan(out[j].Monthly)
	})
	return out
}

// Funding is the payload of the analytics endpoint.
type Funding struct {
	Summary Summary      `json:"summary"`
	Lenders []LenderLoad `json:"lenders"`
}
