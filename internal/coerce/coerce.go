// Package coerce parses loosely formatted form and model values into typed
// values. Anything that does not parse cleanly becomes nil, never NaN.
package coerce

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var stripper = strings.NewReplacer("$", "", ",", "", " ", "", "%", "", "USD", "", "usd", "", "\u00a0", "")

// Decimal parses a currency-ish string ("$12,500.00", "(250)", "1 200") into
// a decimal. Empty or invalid input returns nil.
func Decimal(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = stripper.Replace(s)
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	if s == "" {
		return nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	if negative {
		d = d.Neg()
	}
	return &d
}

// Int parses an integer count. Decimal input is truncated; invalid input
// returns nil.
func Int(s string) *int {
	d := Decimal(s)
	if d == nil {
		return nil
	}
	n := int(d.IntPart())
	return &n
}

// String trims s and returns nil when nothing is left.
func String(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// OrUnknown returns s trimmed, or "Unknown" when it is blank.
func OrUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Unknown"
	}
	return s
}

// Bool interprets common yes/no spellings. Anything else is false.
func Bool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "x", "checked":
		return true
	}
	return false
}

// Number is a JSON value that accepts numbers, numeric strings, currency
// strings and null. Unparseable values decode to an empty Number rather than
// failing the surrounding document.
type Number struct {
	Value *decimal.Decimal
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	n.Value = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		n.Value = Decimal(s)
		return nil
	}
	n.Value = Decimal(string(data))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return []byte(n.Value.String()), nil
}

// Int returns the value truncated to an int, or nil.
func (n Number) Int() *int {
	if n.Value == nil {
		return nil
	}
	v := int(n.Value.IntPart())
	return &v
}

// IntOrZero returns the truncated value or 0.
func (n Number) IntOrZero() int {
	if p := n.Int(); p != nil {
		return *p
	}
	return 0
}

// Float returns the value as a float64, or 0 when absent.
func (n Number) Float() float64 {
	if n.Value == nil {
		return 0
	}
	f, _ := n.Value.Float64()
	return f
}

// Flag is a JSON boolean that also accepts "yes"/"no" strings and 0/1.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*f = true
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("null")):
		*f = false
	case len(data) > 0 && data[0] == '"':
		var s string
		_ = json.Unmarshal(data, &s)
		*f = Flag(Bool(s))
	default:
		v, err := strconv.ParseFloat(string(data), 64)
		*f = Flag(err == nil && v != 0)
	}
	return nil
}
