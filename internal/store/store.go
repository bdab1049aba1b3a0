// Package store persists deals, their child rows, the lender directory and
// lender matches in Postgres or SQLite.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/lender"
	"github.com/sells-group/dealdesk/internal/model"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = eris.New("store: not found")

// DealFilter specifies criteria for listing deals.
type DealFilter struct {
	Status   model.DealStatus `json:"status,omitempty"`
	LoanType model.LoanType   `json:"loan_type,omitempty"`
	// Query matches business name or DBA, case-insensitively.
	Query  string `json:"q,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for deals and lenders.
type Store interface {
	// Deals
	CreateDealAggregate(ctx context.Context, agg *model.DealAggregate) error
	GetDeal(ctx context.Context, id string) (*model.Deal, error)
	GetDealAggregate(ctx context.Context, id string) (*model.DealAggregate, error)
	ListDeals(ctx context.Context, filter DealFilter) ([]model.Deal, error)
	UpdateDealFields(ctx context.Context, id string, fields model.DealFields) (*model.Deal, error)
	UpdateDealStatus(ctx context.Context, id string, status model.DealStatus) error
	SetTrackerRef(ctx context.Context, id, ref string) error
	DeleteDeal(ctx context.Context, id string) error

	// Owners
	UpsertOwner(ctx context.Context, owner *model.Owner) error

	// Positions; an empty dealID lists every position.
	ListPositions(ctx context.Context, dealID string) ([]model.FundingPosition, error)

	// Lenders
	UpsertLenders(ctx context.Context, lenders []lender.Lender) (int, error)
	ListLenders(ctx context.Context) ([]lender.Lender, error)

	// Matches
	ReplaceMatches(ctx context.Context, dealID string, matches []model.LenderMatch) error
	ListMatches(ctx context.Context, dealID string) ([]model.LenderMatch, error)
	UpdateMatchStatus(ctx context.Context, id string, status model.SubmissionStatus) (*model.LenderMatch, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Describe renders err with any database-provided detail, hint and
// constraint name appended.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if extra := pgNotes(err); extra != "" && !strings.Contains(msg, extra) {
		msg += " (" + extra + ")"
	}
	return msg
}

// wrap annotates a database error with action and the Postgres notes.
func wrap(err error, action string) error {
	if err == nil {
		return nil
	}
	if extra := pgNotes(err); extra != "" {
		return eris.Wrapf(err, "%s (%s)", action, extra)
	}
	return eris.Wrap(err, action)
}

func pgNotes(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	var notes []string
	if pgErr.Detail != "" {
		notes = append(notes, "detail: "+pgErr.Detail)
	}
	if pgErr.Hint != "" {
		notes = append(notes, "hint: "+pgErr.Hint)
	}
	if pgErr.ConstraintName != "" {
		notes = append(notes, "constraint: "+pgErr.ConstraintName)
	}
	return strings.Join(notes, "; ")
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
