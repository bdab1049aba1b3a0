package lender

import (
	"fmt"
	"slices"
	"strings"
)

// Profile is the subset of a deal used to screen lenders.
type Profile struct {
	State                string
	Industry             string
	MonthlyRevenue       float64
	TimeInBusinessMonths int
	DesiredAmount        float64
	OpenPositions        int
}

// Screen lists the hard criteria the profile fails for l. Unknown profile
// values (zero) never fail a criterion.
func Screen(l Lender, p Profile) []string {
	c := l.Base()
	var out []string

	if p.State != "" && len(c.States) > 0 && !slices.Contains(c.States, strings.ToUpper(p.State)) {
		out = append(out, fmt.Sprintf("does not lend in %s", strings.ToUpper(p.State)))
	}
	if p.Industry != "" {
		ind := strings.ToLower(p.Industry)
		for _, r := range c.RestrictedIndustries {
			if r != "" && strings.Contains(ind, r) {
				out = append(out, fmt.Sprintf("restricted industry %q", r))
				break
			}
		}
	}
	if p.MonthlyRevenue > 0 && c.MinMonthlyRevenue > 0 && p.MonthlyRevenue < c.MinMonthlyRevenue {
		out = append(out, fmt.Sprintf("monthly revenue %.0f below minimum %.0f", p.MonthlyRevenue, c.MinMonthlyRevenue))
	}
	if p.TimeInBusinessMonths > 0 && c.MinTimeInBusinessMonths > 0 && p.TimeInBusinessMonths < c.MinTimeInBusinessMonths {
		out = append(out, fmt.Sprintf("%d months in business, minimum %d", p.TimeInBusinessMonths, c.MinTimeInBusinessMonths))
	}
	if max := MaxAmount(l); p.DesiredAmount > 0 && max > 0 && p.DesiredAmount > max {
		out = append(out, fmt.Sprintf("requested %.0f exceeds maximum %.0f", p.DesiredAmount, max))
	}
	if m, ok := l.(*MCALender); ok && m.MaxPositions > 0 && p.OpenPositions > m.MaxPositions {
		out = append(out, fmt.Sprintf("%d open positions, maximum %d", p.OpenPositions, m.MaxPositions))
	}
	return out
}
