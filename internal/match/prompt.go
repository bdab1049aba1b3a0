package match

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/dealdesk/internal/lender"
	"github.com/sells-group/dealdesk/internal/model"
)

const systemPrompt = `You are an underwriting assistant at a commercial lending brokerage.
Given one deal and a list of candidate lenders, recommend the lenders most
likely to fund the deal.

Respond with a single JSON object and nothing else:
{
  "recommendations": [
    {"lender_id": "...", "lender_name": "...", "score": 0-100,
     "reasoning": "one or two sentences", "red_flags": ["..."]}
  ],
  "summary": "one paragraph"
}

Rules:
- Only recommend lenders from the candidate list, using their exact lender_id.
- Score is the likelihood of approval, 0 to 100.
- Omit lenders that are clearly a poor fit.
- Red flags are concrete concerns from the deal data (NSFs, negative days,
  stacked positions, short time in business).`

var printer = message.NewPrinter(language.English)

func money(d *decimal.Decimal) string {
	if d == nil {
		return "unknown"
	}
	f, _ := d.Float64()
	return printer.Sprintf("$%.2f", f)
}

func moneyValue(d decimal.Decimal) string {
	return money(&d)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

// buildPrompt renders the deal and the candidate lenders as plain text.
func buildPrompt(agg *model.DealAggregate, candidates []lender.Lender) string {
	d := agg.Deal
	var sb strings.Builder

	sb.WriteString("## Deal\n")
	fmt.Fprintf(&sb, "Business: %s\n", orUnknown(d.BusinessName))
	if d.DBA != "" {
		fmt.Fprintf(&sb, "DBA: %s\n", d.DBA)
	}
	fmt.Fprintf(&sb, "Industry: %s\n", orUnknown(d.BusinessType))
	fmt.Fprintf(&sb, "State: %s\n", orUnknown(d.Address.State))
	fmt.Fprintf(&sb, "Business start date: %s\n", orUnknown(d.BusinessStartDate))
	fmt.Fprintf(&sb, "Franchise: %t, seasonal: %t\n", d.IsFranchise, d.IsSeasonal)
	fmt.Fprintf(&sb, "Average monthly sales: %s\n", money(d.AvgMonthlySales))
	fmt.Fprintf(&sb, "Average monthly card sales: %s\n", money(d.AvgMonthlyCardSales))
	fmt.Fprintf(&sb, "Requested: %s (%s)\n", money(d.DesiredLoanAmount), orUnknown(string(d.LoanType)))

	if len(agg.Statements) > 0 {
		sb.WriteString("\n## Bank statements\n")
		for _, s := range agg.Statements {
			fmt.Fprintf(&sb, "- %s %s: credits %s, debits %s, avg balance %s, %d NSF, %d negative days, %d deposits\n",
				s.StatementMonth, orUnknown(s.BankName), money(s.TotalCredits), money(s.TotalDebits),
				money(s.AvgDailyBalance), s.NSFCount, s.NegativeDays, s.DepositCount)
		}
	}

	if len(agg.Positions) > 0 {
		sb.WriteString("\n## Existing funding positions\n")
		for _, p := range agg.Positions {
			fmt.Fprintf(&sb, "- %s: %s %s\n", p.LenderName, moneyValue(p.Amount), orUnknown(string(p.Frequency)))
		}
	}

	sb.WriteString("\n## Candidate lenders\n")
	for _, l := range candidates {
		c := l.Base()
		fmt.Fprintf(&sb, "- lender_id=%s type=%s %s", c.ID, l.Type(), lender.Summary(l))
		if c.MinMonthlyRevenue > 0 {
			fmt.Fprintf(&sb, "; min revenue %s", printer.Sprintf("$%.0f", c.MinMonthlyRevenue))
		}
		if c.MinTimeInBusinessMonths > 0 {
			fmt.Fprintf(&sb, "; min %d months in business", c.MinTimeInBusinessMonths)
		}
		if c.MinCreditScore > 0 {
			fmt.Fprintf(&sb, "; min credit score %d", c.MinCreditScore)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
