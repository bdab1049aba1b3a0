package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/dealdesk/internal/lender"
	"github.com/sells-group/dealdesk/internal/model"
)

var printer = message.NewPrinter(language.English)

// money renders an amount as $1,234.56, or "-" when absent.
func money(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	f, _ := d.Float64()
	return printer.Sprintf("$%.2f", f)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDealsList(out io.Writer, deals []model.Deal) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBUSINESS\tSTATUS\tLOAN_TYPE\tAMOUNT\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t--------\t------\t---------\t------\t-------")

	for _, d := range deals {
		lt := string(d.LoanType)
		if lt == "" {
			lt = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID,
			truncate(d.BusinessName, 30),
			d.Status,
			lt,
			money(d.DesiredLoanAmount),
			d.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func formatLendersList(out io.Writer, ls []lender.Lender) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tTYPE\tTERMS")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t-----")

	for _, l := range ls {
		b := l.Base()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			truncateID(b.ID),
			truncate(b.Name, 30),
			l.Type(),
			lender.Summary(l),
		)
	}
	_ = w.Flush()
}

func formatMatches(out io.Writer, matches []model.LenderMatch) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tLENDER\tSCORE\tSTATUS\tREASONING")
	_, _ = fmt.Fprintln(w, "--\t------\t-----\t------\t---------")

	for _, m := range matches {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			truncateID(m.ID),
			truncate(m.LenderName, 30),
			m.Score,
			m.SubmissionStatus,
			truncate(m.Reasoning, 60),
		)
	}
	_ = w.Flush()
}
