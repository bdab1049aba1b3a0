package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/dealdesk/internal/db"
	"github.com/sells-group/dealdesk/internal/lender"
	"github.com/sells-group/dealdesk/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
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
	is_franchise           BOOLEAN NOT NULL DEFAULT false,
	is_seasonal            BOOLEAN NOT NULL DEFAULT false,
	avg_monthly_sales      NUMERIC,
	avg_monthly_card_sales NUMERIC,
	desired_loan_amount    NUMERIC,
	loan_type              TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL DEFAULT 'new',
	folder_ref             TEXT NOT NULL DEFAULT '',
	document_refs          JSONB NOT NULL DEFAULT '[]',
	confidence             JSONB NOT NULL DEFAULT '{}',
	warnings               JSONB NOT NULL DEFAULT '[]',
	tracker_ref            TEXT NOT NULL DEFAULT '',
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
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
	ownership_pct  NUMERIC,
	license_number TEXT,
	date_of_birth  TEXT,
	ssn            TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (deal_id, owner_number)
);

CREATE TABLE IF NOT EXISTS bank_statements (
	id                TEXT PRIMARY KEY,
	deal_id           TEXT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
	bank_name         TEXT NOT NULL,
	statement_month   TEXT NOT NULL,
	total_credits     NUMERIC,
	total_debits      NUMERIC,
	nsf_count         INTEGER NOT NULL DEFAULT 0,
	negative_days     INTEGER NOT NULL DEFAULT 0,
	avg_daily_balance NUMERIC,
	deposit_count     INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (deal_id, statement_month)
);

CREATE TABLE IF NOT EXISTS funding_positions (
	id             TEXT PRIMARY KEY,
	deal_id        TEXT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
	statement_id   TEXT NOT NULL REFERENCES bank_statements(id) ON DELETE CASCADE,
	lender_name    TEXT NOT NULL,
	amount         NUMERIC NOT NULL,
	frequency      TEXT NOT NULL,
	detected_dates JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS lenders (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	lender_type TEXT NOT NULL,
	data        JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lender_matches (
	id                TEXT PRIMARY KEY,
	deal_id           TEXT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
	lender_id         TEXT NOT NULL,
	lender_name       TEXT NOT NULL,
	score             INTEGER NOT NULL,
	reasoning         TEXT NOT NULL DEFAULT '',
	red_flags         JSONB NOT NULL DEFAULT '[]',
	submission_status TEXT NOT NULL DEFAULT 'not_submitted',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_deals_status ON deals(status);
CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_owners_deal_id ON owners(deal_id);
CREATE INDEX IF NOT EXISTS idx_bank_statements_deal_id ON bank_statements(deal_id);
CREATE INDEX IF NOT EXISTS idx_funding_positions_deal_id ON funding_positions(deal_id);
CREATE INDEX IF NOT EXISTS idx_lender_matches_deal_id ON lender_matches(deal_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// placeholders returns "$from, $from+1, ..." for n columns.
func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

func insertSQL(table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders(1, len(cols)))
}

func pgNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// CreateDealAggregate writes the deal, owners, statements and positions in
// one transaction.
func (s *PostgresStore) CreateDealAggregate(ctx context.Context, agg *model.DealAggregate) error {
	now := time.Now().UTC()
	stamp(&agg.Deal.CreatedAt, now)
	stamp(&agg.Deal.UpdatedAt, now)

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		args, err := dealArgs(&agg.Deal)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertSQL("deals", dealColumns), args...); err != nil {
			return wrap(err, "postgres: insert deal")
		}

		for i := range agg.Owners {
			o := &agg.Owners[i]
			o.DealID = agg.Deal.ID
			o.SSN = nil
			stamp(&o.CreatedAt, now)
			if _, err := tx.Exec(ctx, insertSQL("owners", ownerColumns), ownerArgs(o)...); err != nil {
				return wrap(err, fmt.Sprintf("postgres: insert owner %d", o.OwnerNumber))
			}
		}

		for i := range agg.Statements {
			st := &agg.Statements[i]
			st.DealID = agg.Deal.ID
			stamp(&st.CreatedAt, now)
			if _, err := tx.Exec(ctx, insertSQL("bank_statements", statementColumns), statementArgs(st)...); err != nil {
				return wrap(err, fmt.Sprintf("postgres: insert statement %s", st.StatementMonth))
			}
		}

		rows := make([][]any, 0, len(agg.Positions))
		for i := range agg.Positions {
			p := &agg.Positions[i]
			p.DealID = agg.Deal.ID
			args, err := positionArgs(p)
			if err != nil {
				return err
			}
			args[4] = pgNumeric(p.Amount)
			rows = append(rows, args)
		}
		if _, err := db.CopyFrom(ctx, tx, "funding_positions", positionColumns, rows); err != nil {
			return wrap(err, "postgres: insert positions")
		}
		return nil
	})
}

func (s *PostgresStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	return s.getDeal(ctx, s.pool, id)
}

func (s *PostgresStore) getDeal(ctx context.Context, q db.Querier, id string) (*model.Deal, error) {
	d, err := scanDeal(q.QueryRow(ctx,
		`SELECT `+strings.Join(dealColumns, ", ")+` FROM deals WHERE id = $1`, id))
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, notFound("deal", id)
		}
		return nil, wrap(err, "postgres: get deal "+id)
	}
	return d, nil
}

func (s *PostgresStore) GetDealAggregate(ctx context.Context, id string) (*model.DealAggregate, error) {
	d, err := s.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	agg := &model.DealAggregate{Deal: *d}

	rows, err := s.pool.Query(ctx,
		`SELECT `+strings.Join(ownerColumns, ", ")+` FROM owners WHERE deal_id = $1 ORDER BY owner_number`, id)
	if err != nil {
		return nil, wrap(err, "postgres: list owners")
	}
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			rows.Close()
			return nil, wrap(err, "postgres: scan owner")
		}
		agg.Owners = append(agg.Owners, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "postgres: list owners")
	}

	rows, err = s.pool.Query(ctx,
		`SELECT `+strings.Join(statementColumns, ", ")+` FROM bank_statements WHERE deal_id = $1 ORDER BY statement_month`, id)
	if err != nil {
		return nil, wrap(err, "postgres: list statements")
	}
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			rows.Close()
			return nil, wrap(err, "postgres: scan statement")
		}
		agg.Statements = append(agg.Statements, *st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "postgres: list statements")
	}

	positions, err := s.ListPositions(ctx, id)
	if err != nil {
		return nil, err
	}
	agg.Positions = positions
	return agg, nil
}

func (s *PostgresStore) ListDeals(ctx context.Context, filter DealFilter) ([]model.Deal, error) {
	query := `SELECT ` + strings.Join(dealColumns, ", ") + ` FROM deals WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.LoanType != "" {
		query += fmt.Sprintf(` AND loan_type = $%d`, argIdx)
		args = append(args, string(filter.LoanType))
		argIdx++
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		query += fmt.Sprintf(` AND (business_name ILIKE $%d OR dba ILIKE $%d)`, argIdx, argIdx)
		args = append(args, "%"+q+"%")
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, clampLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(err, "postgres: list deals")
	}
	defer rows.Close()

	var deals []model.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, wrap(err, "postgres: scan deal")
		}
		deals = append(deals, *d)
	}
	return deals, wrap(rows.Err(), "postgres: list deals")
}

func (s *PostgresStore) UpdateDealFields(ctx context.Context, id string, fields model.DealFields) (*model.Deal, error) {
	var out *model.Deal
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		d, err := s.getDeal(ctx, tx, id)
		if err != nil {
			return err
		}
		fields.Apply(d)
		d.UpdatedAt = time.Now().UTC()

		args, err := dealArgs(d)
		if err != nil {
			return err
		}
		// Every column except id and the two timestamps.
		cols := dealColumns[1 : len(dealColumns)-2]
		sets := make([]string, 0, len(cols)+1)
		for i, c := range cols {
			sets = append(sets, fmt.Sprintf("%s = $%d", c, i+2))
		}
		sets = append(sets, fmt.Sprintf("updated_at = $%d", len(cols)+2))
		updArgs := append([]any{id}, args[1:len(args)-2]...)
		updArgs = append(updArgs, d.UpdatedAt)

		if _, err := tx.Exec(ctx, `UPDATE deals SET `+strings.Join(sets, ", ")+` WHERE id = $1`, updArgs...); err != nil {
			return wrap(err, "postgres: update deal "+id)
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) UpdateDealStatus(ctx context.Context, id string, status model.DealStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE deals SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return wrap(err, "postgres: update deal status "+id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("deal", id)
	}
	return nil
}

func (s *PostgresStore) SetTrackerRef(ctx context.Context, id, ref string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE deals SET tracker_ref = $1, updated_at = $2 WHERE id = $3`,
		ref, time.Now().UTC(), id,
	)
	if err != nil {
		return wrap(err, "postgres: set tracker ref "+id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("deal", id)
	}
	return nil
}

// DeleteDeal removes the deal and every child row.
func (s *PostgresStore) DeleteDeal(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, table := range []string{"lender_matches", "funding_positions", "bank_statements", "owners"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE deal_id = $1`, id); err != nil {
				return wrap(err, "postgres: delete "+table)
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM deals WHERE id = $1`, id)
		if err != nil {
			return wrap(err, "postgres: delete deal "+id)
		}
		if tag.RowsAffected() == 0 {
			return notFound("deal", id)
		}
		return nil
	})
}

// UpsertOwner inserts or replaces the owner at (deal_id, owner_number).
func (s *PostgresStore) UpsertOwner(ctx context.Context, owner *model.Owner) error {
	owner.SSN = nil
	stamp(&owner.CreatedAt, time.Now().UTC())
	cols := ownerColumns[1:]
	_, err := db.Upsert(ctx, s.pool, db.UpsertConfig{
		Table:        "owners",
		Columns:      ownerColumns,
		ConflictKeys: []string{"deal_id", "owner_number"},
		UpdateCols:   cols[2 : len(cols)-1],
	}, [][]any{ownerArgs(owner)})
	return wrap(err, fmt.Sprintf("postgres: upsert owner %s/%d", owner.DealID, owner.OwnerNumber))
}

func (s *PostgresStore) ListPositions(ctx context.Context, dealID string) ([]model.FundingPosition, error) {
	query := `SELECT ` + strings.Join(positionColumns, ", ") + ` FROM funding_positions`
	var args []any
	if dealID != "" {
		query += ` WHERE deal_id = $1`
		args = append(args, dealID)
	}
	query += ` ORDER BY lower(lender_name), amount`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(err, "postgres: list positions")
	}
	defer rows.Close()

	var out []model.FundingPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, wrap(err, "postgres: scan position")
		}
		out = append(out, *p)
	}
	return out, wrap(rows.Err(), "postgres: list positions")
}

func (s *PostgresStore) UpsertLenders(ctx context.Context, lenders []lender.Lender) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(lenders))
	for _, l := range lenders {
		data, err := lender.Marshal(l)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{l.Base().ID, l.Base().Name, string(l.Type()), string(data), now})
	}
	n, err := db.Upsert(ctx, s.pool, db.UpsertConfig{
		Table:        "lenders",
		Columns:      []string{"id", "name", "lender_type", "data", "updated_at"},
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, wrap(err, "postgres: upsert lenders")
	}
	return int(n), nil
}

func (s *PostgresStore) ListLenders(ctx context.Context) ([]lender.Lender, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM lenders ORDER BY name`)
	if err != nil {
		return nil, wrap(err, "postgres: list lenders")
	}
	defer rows.Close()

	var out []lender.Lender
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, wrap(err, "postgres: scan lender")
		}
		l, err := lender.Unmarshal(data)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, wrap(rows.Err(), "postgres: list lenders")
}

// ReplaceMatches swaps the deal's unsubmitted recommendations for matches.
// Matches a broker already acted on are kept.
func (s *PostgresStore) ReplaceMatches(ctx context.Context, dealID string, matches []model.LenderMatch) error {
	now := time.Now().UTC()
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM lender_matches WHERE deal_id = $1 AND submission_status = $2`,
			dealID, string(model.SubmissionNotSubmitted),
		); err != nil {
			return wrap(err, "postgres: clear matches")
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
			if _, err := tx.Exec(ctx, insertSQL("lender_matches", matchColumns), args...); err != nil {
				return wrap(err, "postgres: insert match "+m.LenderName)
			}
		}
		return nil
	})
}

func (s *PostgresStore) ListMatches(ctx context.Context, dealID string) ([]model.LenderMatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+strings.Join(matchColumns, ", ")+` FROM lender_matches WHERE deal_id = $1 ORDER BY score DESC, lender_name`, dealID)
	if err != nil {
		return nil, wrap(err, "postgres: list matches")
	}
	defer rows.Close()

	var out []model.LenderMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, wrap(err, "postgres: scan match")
		}
		out = append(out, *m)
	}
	return out, wrap(rows.Err(), "postgres: list matches")
}

func (s *PostgresStore) UpdateMatchStatus(ctx context.Context, id string, status model.SubmissionStatus) (*model.LenderMatch, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx,
		`UPDATE lender_matches SET submission_status = $1, updated_at = $2 WHERE id = $3 RETURNING `+strings.Join(matchColumns, ", "),
		string(status), time.Now().UTC(), id,
	))
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, notFound("match", id)
		}
		return nil, wrap(err, "postgres: update match status "+id)
	}
	return m, nil
}
