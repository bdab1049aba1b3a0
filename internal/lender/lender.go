// Package lender models the lender directory. A Lender is one of three
// product-specific record types, discriminated by lender_type.
package lender

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Type discriminates the lender record variants.
type Type string

const (
	TypeBusinessLineOfCredit Type = "business_line_of_credit"
	TypeMCA                  Type = "mca"
	TypeSBA                  Type = "sba"
)

// ParseType normalizes a lender type label. Unknown labels return "".
func ParseType(s string) Type {
	norm := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "business_line_of_credit", "line_of_credit", "loc", "bloc":
		return TypeBusinessLineOfCredit
	case "mca", "merchant_cash_advance":
		return TypeMCA
	case "sba", "sba_loan":
		return TypeSBA
	}
	return ""
}

// Common holds the underwriting criteria shared by every lender type.
type Common struct {
	ID                      string   `json:"id" yaml:"id"`
	Name                    string   `json:"name" yaml:"name"`
	ContactEmail            string   `json:"contact_email,omitempty" yaml:"contact_email"`
	MinCreditScore          int      `json:"min_credit_score,omitempty" yaml:"min_credit_score"`
	MinMonthlyRevenue       float64  `json:"min_monthly_revenue,omitempty" yaml:"min_monthly_revenue"`
	MinTimeInBusinessMonths int      `json:"min_time_in_business_months,omitempty" yaml:"min_time_in_business_months"`
	States                  []string `json:"states,omitempty" yaml:"states"`
	RestrictedIndustries    []string `json:"restricted_industries,omitempty" yaml:"restricted_industries"`
}

// Lender is implemented only by the record types of this package.
type Lender interface {
	Base() *Common
	Type() Type
	sealed()
}

// BusinessLineOfCreditLender offers revolving credit lines.
type BusinessLineOfCreditLender struct {
	Common        `yaml:",inline"`
	MaxLineAmount float64 `json:"max_line_amount,omitempty" yaml:"max_line_amount"`
	DrawFeePct    float64 `json:"draw_fee_pct,omitempty" yaml:"draw_fee_pct"`
}

// MCALender purchases future receivables.
type MCALender struct {
	Common         `yaml:",inline"`
	MaxAdvance     float64 `json:"max_advance,omitempty" yaml:"max_advance"`
	FactorRateLow  float64 `json:"factor_rate_low,omitempty" yaml:"factor_rate_low"`
	FactorRateHigh float64 `json:"factor_rate_high,omitempty" yaml:"factor_rate_high"`
	// MaxPositions is the most existing funding positions a merchant may
	// carry. Zero means no limit.
	MaxPositions int `json:"max_positions,omitempty" yaml:"max_positions"`
}

// SBALender originates SBA-guaranteed loans.
type SBALender struct {
	Common             `yaml:",inline"`
	Programs           []string `json:"programs,omitempty" yaml:"programs"`
	MaxLoanAmount      float64  `json:"max_loan_amount,omitempty" yaml:"max_loan_amount"`
	RequiresCollateral bool     `json:"requires_collateral" yaml:"requires_collateral"`
}

func (l *BusinessLineOfCreditLender) Base() *Common { return &l.Common }
func (l *MCALender) Base() *Common                  { return &l.Common }
func (l *SBALender) Base() *Common                  { return &l.Common }

func (*BusinessLineOfCreditLender) Type() Type { return TypeBusinessLineOfCredit }
func (*MCALender) Type() Type                  { return TypeMCA }
func (*SBALender) Type() Type                  { return TypeSBA }

func (*BusinessLineOfCreditLender) sealed() {}
func (*MCALender) sealed()                  {}
func (*SBALender) sealed()                  {}

// New returns an empty record of the given type.
func New(t Type) (Lender, error) {
	switch t {
	case TypeBusinessLineOfCredit:
		return &BusinessLineOfCreditLender{}, nil
	case TypeMCA:
		return &MCALender{}, nil
	case TypeSBA:
		return &SBALender{}, nil
	}
	return nil, eris.Errorf("lender: unknown lender_type %q", t)
}

// StableID derives a deterministic id from a lender name so repeated
// imports of the same directory upsert rather than duplicate.
func StableID(name string) string {
	key := "lender:" + strings.ToLower(strings.TrimSpace(name))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// Normalize trims fields, uppercases states and fills a missing id.
func Normalize(l Lender) error {
	c := l.Base()
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return eris.New("lender: name is required")
	}
	if c.ID == "" {
		c.ID = StableID(c.Name)
	}
	c.ContactEmail = strings.TrimSpace(c.ContactEmail)
	for i, s := range c.States {
		c.States[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	for i, s := range c.RestrictedIndustries {
		c.RestrictedIndustries[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return nil
}

// Marshal encodes l as JSON including its lender_type discriminant.
func Marshal(l Lender) ([]byte, error) {
	var v any
	switch x := l.(type) {
	case *BusinessLineOfCreditLender:
		v = struct {
			Type Type `json:"lender_type"`
			*BusinessLineOfCreditLender
		}{x.Type(), x}
	case *MCALender:
		v = struct {
			Type Type `json:"lender_type"`
			*MCALender
		}{x.Type(), x}
	case *SBALender:
		v = struct {
			Type Type `json:"lender_type"`
			*SBALender
		}{x.Type(), x}
	default:
		return nil, eris.Errorf("lender: cannot marshal %T", l)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "lender: marshal")
	}
	return data, nil
}

// Unmarshal decodes a JSON record produced by Marshal.
func Unmarshal(data []byte) (Lender, error) {
	var head struct {
		Type string `json:"lender_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "lender: unmarshal")
	}
	l, err := New(ParseType(head.Type))
	if err != nil {
		return nil, eris.Wrapf(err, "lender: lender_type %q", head.Type)
	}
	if err := json.Unmarshal(data, l); err != nil {
		return nil, eris.Wrap(err, "lender: unmarshal")
	}
	return l, nil
}

// List is a JSON-friendly slice of lenders.
type List []Lender

// MarshalJSON implements json.Marshaler.
func (ls List) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(ls))
	for _, l := range ls {
		data, err := Marshal(l)
		if err != nil {
			return nil, err
		}
		raw = append(raw, data)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ls *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "lender: unmarshal list")
	}
	out := make(List, 0, len(raw))
	for _, r := range raw {
		l, err := Unmarshal(r)
		if err != nil {
			return err
		}
		out = append(out, l)
	}
	*ls = out
	return nil
}

// Summary renders a one-line description of the lender's product terms.
func Summary(l Lender) string {
	switch x := l.(type) {
	case *BusinessLineOfCreditLender:
		return fmt.Sprintf("%s: line of credit up to %s, draw fee %.2f%%", x.Name, money(x.MaxLineAmount), x.DrawFeePct)
	case *MCALender:
		s := fmt.Sprintf("%s: MCA up to %s, factor %.2f-%.2f", x.Name, money(x.MaxAdvance), x.FactorRateLow, x.FactorRateHigh)
		if x.MaxPositions > 0 {
			s += fmt.Sprintf(", max %d positions", x.MaxPositions)
		}
		return s
	case *SBALender:
		s := fmt.Sprintf("%s: SBA up to %s", x.Name, money(x.MaxLoanAmount))
		if len(x.Programs) > 0 {
			s += " (" + strings.Join(x.Programs, ", ") + ")"
		}
		if x.RequiresCollateral {
			s += ", collateral required"
		}
		return s
	}
	return ""
}

// MaxAmount returns the largest amount the lender funds, or 0 if unset.
func MaxAmount(l Lender) float64 {
	switch x := l.(type) {
	case *BusinessLineOfCreditLender:
		return x.MaxLineAmount
	case *MCALender:
		return x.MaxAdvance
	case *SBALender:
		return x.MaxLoanAmount
	}
	return 0
}

func money(v float64) string {
	if v <= 0 {
		return "unspecified"
	}
	return fmt.Sprintf("$%.0f", v)
}
