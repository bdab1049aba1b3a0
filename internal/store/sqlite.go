package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealdesk/internal/lender"
	"github.com/sells-group/dealdesk/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Foreign keys are enabled on every pooled connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", withForeignKeys(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// Money columns are TEXT so exact decimal strings survive affinity rules.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id                     TEXT PRIMARY KEY,
	business_name          TEXT NOT NULL,
	dba                    TEXT NOT NULL DEFAULT '',
	ein                    TEXT NOT NULL DEFAULT '',
	street                 TEXT NOT NULL DEFAULT '',
	city                   TEXT NOT NULL DEFAULT '',
	state                  TEXT NOT NULL DEFAULT '',
	zip                    TEXT NOT NULL DEFAULT '',
	business_type          TEXT NOT NULL DEFAULT '',
	business_start_date    TEXT NOT NULL DEFAULT '',
	is_franchise           BOOLEAN NOT NULL DEFAULT 0,
	is_seasonal            BOOLEAN NOT NULL DEFAULT 0,
	avg_monthly_sales      TEXT,
	avg_monthly_card_sales TEXT,
	desired_loan_amount    TEXT,
	loan_type              TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL DEFAULT 'new',
	folder_ref             TEXT NOT NULL DEFAULT '',
	document_refs          TEXT NOT NULL DEFAULT '[]',
	confidence             TEXT NOT NULL DEFAULT '{}',
	warnings               TEXT NOT NULL DEFAULT '[]',
	tracker_ref            TEXT NOT NULL DEFAULT '',
	created_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS owners (
	id             TEXT PRIMARY KEY,
	deal_id        TEXT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
	owner_number   INTEGER NOT NULL,
	first_name     TEXT NOT NULL,
	last_name      TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	street         TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL DEFAULT '',
	zip            TEXT NOT NULL DEFAULT '',
	email          TEXT,
	phone          TEXT,
	ownership_pct  TEXT,
	license_number TEXT,
	date_of_birth  TEXT,
	ssn            TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (deal_id, owner_number)
);

CREATE TABLE IF NOT EXISTS bank_statements (
	id                TEXT PRIMARY KEY,
	deal_id           TEXT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
	bank_name         TEXT NOT NULL,
	statement_month   TEXT NOT NULL,
	total_credits     TEXT,
	total_debits      TEXT,
	nsf_count         INTEGER NOT NULL DEFAULT 0,
	negative_days     INTEGER NOT NULL DEFAULT 0,
	avg_daily_balance TEXT,
	deposit_count     INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (deal_id, statement_month)
);

CREATE TABLE IF NOT EXISTS funding_positions (
	id             TEXT PRIMARY KEY,
	deal_id        TEXT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
	statement_id   TEXT NOT NULL REFERENCES bank_statements(id) ON DELETE CASCADE,
	lender_name    TEXT NOT NULL,
	amount         TEXT NOT NULL,
	frequency      TEXT NOT NULL,
	detected_dates TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS lenders (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	lender_type TEXT NOT NULL,
	data        TEXT NOT NULL,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS lender_matches (
	id                TEXT PRIMARY KEY,
	deal_id           TEXT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
	lender_id         TEXT NOT NULL,
	lender_name       TEXT NOT NULL,
	score             INTEGER NOT NULL,
	reasoning         TEXT NOT NULL DEFAULT '',
	red_flags         TEXT NOT NULL DEFAULT '[]',
	submission_status TEXT NOT NULL DEFAULT 'not_submitted',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_deals_status ON deals(status);
CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals(created_at);
CREATE INDEX IF NOT EXISTS idx_owners_deal_id ON owners(deal_id);
CREATE INDEX IF NOT EXISTS idx_bank_statements_deal_id ON bank_statements(deal_id);
CREATE INDEX IF NOT EXISTS idx_funding_positions_deal_id ON funding_positions(deal_id);
CREATE INDEX IF NOT EXISTS idx_lender_matches_deal_id ON lender_matches(deal_id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteInsert(table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
}

// withTx runs fn in a transaction, rolling back when fn fails.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) CreateDealAggregate(ctx context.Context, agg *model.DealAggregate) error {
	now := time.Now().UTC()
	stamp(&agg.Deal.CreatedAt, now)
	stamp(&agg.Deal.UpdatedAt, now)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		args, err := dealArgs(&agg.Deal)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqliteInsert("deals", dealColumns), args...); err != nil {
			return eris.Wrap(err, "sqlite: insert deal")
		}

		for i := range agg.Owners {
			o := &agg.Owners[i]
			o.DealID = agg.Deal.ID
			o.SSN = nil
			stamp(&o.CreatedAt, now)
			if _, err := tx.ExecContext(ctx, sqliteInsert("owners", ownerColumns), ownerArgs(o)...); err != nil {
				return eris.Wrapf(err, "sqlite: insert owner %d", o.OwnerNumber)
			}
		}

		for i := range agg.Statements {
			st := &agg.Statements[i]
			st.DealID = agg.Deal.ID
			stamp(&st.CreatedAt, now)
			if _, err := tx.ExecContext(ctx, sqliteInsert("bank_statements", statementColumns), statementArgs(st)...); err != nil {
				return eris.Wrapf(err, "sqlite: insert statement %s", st.StatementMonth)
			}
		}

		for i := range agg.Positions {
			p := &agg.Positions[i]
			p.DealID = agg.Deal.ID
			args, err := positionArgs(p)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, sqliteInsert("funding_positions", positionColumns), args...); err != nil {
				return eris.Wrapf(err, "sqlite: insert position %s", p.LenderName)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	d, err := scanDeal(s.db.QueryRowContext(ctx,
		`SELECT `+strings.Join(dealColumns, ", ")+` FROM deals WHERE id = ?`, id))
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, notFound("deal", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get deal %s", id)
	}
	return d, nil
}

func (s *SQLiteStore) GetDealAggregate(ctx context.Context, id string) (*model.DealAggregate, error) {
	d, err := s.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	agg := &model.DealAggregate{Deal: *d}

	err = s.each(ctx, func(rows *sql.Rows) error {
		o, err := scanOwner(rows)
		if err != nil {
			return err
		}
		agg.Owners = append(agg.Owners, *o)
		return nil
	}, `SELECT `+strings.Join(ownerColumns, ", ")+` FROM owners WHERE deal_id = ? ORDER BY owner_number`, id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list owners")
	}

	err = s.each(ctx, func(rows *sql.Rows) error {
		st, err := scanStatement(rows)
		if err != nil {
			return err
		}
		agg.Statements = append(agg.Statements, *st)
		return nil
	}, `SELECT `+strings.Join(statementColumns, ", ")+` FROM bank_statements WHERE deal_id = ? ORDER BY statement_month`, id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list statements")
	}

	positions, err := s.ListPositions(ctx, id)
	if err != nil {
		return nil, err
	}
	agg.Positions = positions
	return agg, nil
}

// each runs query and calls fn for every row.
func (s *SQLiteStore) each(ctx context.Context, fn func(*sql.Rows) error, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) ListDeals(ctx context.Context, filter DealFilter) ([]model.Deal, error) {
	query := `SELECT ` + strings.Join(dealColumns, ", ") + ` FROM deals WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.LoanType != "" {
		query += ` AND loan_type = ?`
		args = append(args, string(filter.LoanType))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		query += ` AND (business_name LIKE ? OR dba LIKE ?)`
		args = append(args, "%"+q+"%", "%"+q+"%")
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, clampLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	var deals []model.Deal
	err := s.each(ctx, func(rows *sql.Rows) error {
		d, err := scanDeal(rows)
		if err != nil {
			return err
		}
		deals = append(deals, *d)
		return nil
	}, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list deals")
	}
	return deals, nil
}

func (s *SQLiteStore) UpdateDealFields(ctx context.Context, id string, fields model.DealFields) (*model.Deal, error) {
	d, err := s.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	fields.Apply(d)
	d.UpdatedAt = time.Now().UTC()

	args, err := dealArgs(d)
	if err != nil {
		return nil, err
	}
	cols := dealColumns[1 : len(dealColumns)-2]
	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "updated_at = ?")
	updArgs := append(args[1:len(args)-2:len(args)-2], d.UpdatedAt, id)

	res, err := s.db.ExecContext(ctx, `UPDATE deals SET `+strings.Join(sets, ", ")+` WHERE id = ?`, updArgs...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update deal %s", id)
	}
	if err := checkRowsAffected(res, "deal", id); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *SQLiteStore) UpdateDealStatus(ctx context.Context, id string, status model.DealStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deals SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update deal status %s", id)
	}
	return checkRowsAffected(res, "deal", id)
}

func (s *SQLiteStore) SetTrackerRef(ctx context.Context, id, ref string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deals SET tracker_ref = ?, updated_at = ? WHERE id = ?`,
		ref, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set tracker ref %s", id)
	}
	return checkRowsAffected(res, "deal", id)
}

func (s *SQLiteStore) DeleteDeal(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"lender_matches", "funding_positions", "bank_statements", "owners"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE deal_id = ?`, id); err != nil {
				return eris.Wrapf(err, "sqlite: delete %s", table)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM deals WHERE id = ?`, id)
		if err != nil {
			return eris.Wrapf(err, "sqlite: delete deal %s", id)
		}
		return checkRowsAffected(res, "deal", id)
	})
}

func (s *SQLiteStore) UpsertOwner(ctx context.Context, owner *model.Owner) error {
	owner.SSN = nil
	stamp(&owner.CreatedAt, time.Now().UTC())

	updates := ownerColumns[3 : len(ownerColumns)-1]
	sets := make([]string, len(updates))
	for i, c := range updates {
		sets[i] = c + " = excluded." + c
	}
	query := sqliteInsert("owners", ownerColumns) +
		` ON CONFLICT (deal_id, owner_number) DO UPDATE SET ` + strings.Join(sets, ", ")

	if _, err := s.db.ExecContext(ctx, query, ownerArgs(owner)...); err != nil {
		return eris.Wrapf(err, "sqlite: upsert owner %s/%d", owner.DealID, owner.OwnerNumber)
	}
	return nil
}

func (s *SQLiteStore) ListPositions(ctx context.Context, dealID string) ([]model.FundingPosition, error) {
	query := `SELECT ` + strings.Join(positionColumns, ", ") + ` FROM funding_positions`
	var args []any
	if dealID != "" {
		query += ` WHERE deal_id = ?`
		args = append(args, dealID)
	}
	query += ` ORDER BY lower(lender_name), CAST(amount AS REAL)`

	var out []model.FundingPosition
	err := s.each(ctx, func(rows *sql.Rows) error {
		p, err := scanPosition(rows)
		if err != nil {
			return err
		}
		out = append(out, *p)
		return nil
	}, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list positions")
	}
	return out, nil
}

func (s *SQLiteStore) UpsertLenders(ctx context.Context, lenders []lender.Lender) (int, error) {
	now := time.Now().UTC()
	n := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, l := range lenders {
			data, err := lender.Marshal(l)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO lenders (id, name, lender_type, data, updated_at) VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT (id) DO UPDATE SET name = excluded.name, lender_type = excluded.lender_type,
				 data = excluded.data, updated_at = excluded.updated_at`,
				l.Base().ID, l.Base().Name, string(l.Type()), string(data), now,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: upsert lender %s", l.Base().Name)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) ListLenders(ctx context.Context) ([]lender.Lender, error) {
	var out []lender.Lender
	err := s.each(ctx, func(rows *sql.Rows) error {
		var data string
		if err := rows.Scan(&data); err != nil {
			return err
		}
		l, err := lender.Unmarshal([]byte(data))
		if err != nil {
			return err
		}
		out = append(out, l)
		return nil
	}, `SELECT data FROM lenders ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lenders")
	}
	return out, nil
}

func (s *SQLiteStore) ReplaceMatches(ctx context.Context, dealID string, matches []model.LenderMatch) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM lender_matches WHERE deal_id = ? AND submission_status = ?`,
			dealID, string(model.SubmissionNotSubmitted),
		); err != nil {
			return eris.Wrap(err, "sqlite: clear matches")
		}
		for i := range matches {
			m := &matches[i]
			m.DealID = dealID
			stamp(&m.CreatedAt, now)
			stamp(&m.UpdatedAt, now)
			args, err := matchArgs(m)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, sqliteInsert("lender_matches", matchColumns), args...); err != nil {
				return eris.Wrapf(err, "sqlite: insert match %s", m.LenderName)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListMatches(ctx context.Context, dealID string) ([]model.LenderMatch, error) {
	var out []model.LenderMatch
	err := s.each(ctx, func(rows *sql.Rows) error {
		m, err := scanMatch(rows)
		if err != nil {
			return err
		}
		out = append(out, *m)
		return nil
	}, `SELECT `+strings.Join(matchColumns, ", ")+` FROM lender_matches WHERE deal_id = ? ORDER BY score DESC, lender_name`, dealID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list matches")
	}
	return out, nil
}

func (s *SQLiteStore) UpdateMatchStatus(ctx context.Context, id string, status model.SubmissionStatus) (*model.LenderMatch, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lender_matches SET submission_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update match status %s", id)
	}
	if err := checkRowsAffected(res, "match", id); err != nil {
		return nil, err
	}
	m, err := scanMatch(s.db.QueryRowContext(ctx,
		`SELECT `+strings.Join(matchColumns, ", ")+` FROM lender_matches WHERE id = ?`, id))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get match %s", id)
	}
	return m, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}
