// Package tabular reads header-keyed rows from CSV and XLSX spreadsheets.
package tabular

import (
	"strings"
)

// Record is one data row keyed by normalized header name.
type Record map[string]string

// Get returns the trimmed value of the first key present.
func (r Record) Get(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// NormalizeHeader lowercases a column name and joins words with
// underscores: "Min Credit Score" becomes "min_credit_score".
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	}), "_")
}

// newRecord zips a header with a row. Missing cells read as "" and extra
// cells are dropped.
func newRecord(header, row []string) Record {
	rec := make(Record, len(header))
	for i, h := range header {
		if h == "" {
			continue
		}
		if i < len(row) {
			rec[h] = row[i]
		} else {
			rec[h] = ""
		}
	}
	return rec
}

// keyer turns raw rows into Records. The first row it sees becomes the
// header; blank rows after it are dropped.
type keyer struct {
	header []string
}

func (k *keyer) next(cells []string) (Record, bool) {
	if k.header == nil {
		k.header = normalizeAll(cells)
		return nil, false
	}
	if blank(cells) {
		return nil, false
	}
	return newRecord(k.header, cells), true
}

func (k *keyer) sawHeader() bool { return k.header != nil }

func normalizeAll(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = NormalizeHeader(h)
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
