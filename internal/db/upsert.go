package db

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig names the target of a multi-row upsert. UpdateCols nil means
// every column outside ConflictKeys; an empty non-nil slice means DO NOTHING.
type UpsertConfig struct {
	Table        string
	Columns      []string
	ConflictKeys []string
	UpdateCols   []string
}

func (c UpsertConfig) validate() error {
	switch {
	case len(c.Columns) == 0:
		return eris.New("db: upsert: no columns specified")
	case len(c.ConflictKeys) == 0:
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

func (c UpsertConfig) updates() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	var out []string
	for _, col := range c.Columns {
		if !slices.Contains(c.ConflictKeys, col) {
			out = append(out, col)
		}
	}
	return out
}

// Upsert writes rows with one INSERT ... ON CONFLICT statement on q, which
// may be a transaction.
func Upsert(ctx context.Context, q Querier, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	query, err := UpsertSQL(cfg, len(rows))
	if err != nil {
		return 0, err
	}

	args := make([]any, 0, len(rows)*len(cfg.Columns))
	for i, r := range rows {
		if len(r) != len(cfg.Columns) {
			return 0, eris.Errorf("db: upsert: row %d has %d values, want %d", i, len(r), len(cfg.Columns))
		}
		args = append(args, r...)
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s", cfg.Table)
	}
	return tag.RowsAffected(), nil
}

// UpsertSQL renders the statement for n rows with positional parameters.
func UpsertSQL(cfg UpsertConfig, n int) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sanitizeTable(cfg.Table))
	b.WriteString(" (")
	writeIdents(&b, cfg.Columns)
	b.WriteString(") VALUES ")

	param := 1
	for i := range n {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range cfg.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(param))
			param++
		}
		b.WriteByte(')')
	}

	b.WriteString(" ON CONFLICT (")
	writeIdents(&b, cfg.ConflictKeys)
	b.WriteString(") ")

	upd := cfg.updates()
	if len(upd) == 0 {
		b.WriteString("DO NOTHING")
		return b.String(), nil
	}
	b.WriteString("DO UPDATE SET ")
	for i, col := range upd {
		if i > 0 {
			b.WriteString(", ")
		}
		id := pgx.Identifier{col}.Sanitize()
		b.WriteString(id + " = EXCLUDED." + id)
	}
	return b.String(), nil
}

// sanitizeTable quotes a table name, splitting an optional schema prefix.
func sanitizeTable(table string) string {
	return pgx.Identifier(strings.SplitN(table, ".", 2)).Sanitize()
}

func writeIdents(b *strings.Builder, names []string) {
	for i, n := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{n}.Sanitize())
	}
}
