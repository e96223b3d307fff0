package db2i

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// NoResults is the reply for statements that produce no rows.
const NoResults = "SQL executed successfully. No results returned."

// Querier executes SQL and returns its rows.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*ResultSet, error)
}

// SQLRunner executes SQL and renders the rows for an LLM.
type SQLRunner interface {
	Querier
	Run(ctx context.Context, query string, args ...any) (string, error)
}

// Runner executes trusted catalog SQL on a pooled handle.
type Runner struct {
	db      *sql.DB
	timeout time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithQueryTimeout bounds each statement. Zero disables the bound.
func WithQueryTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// NewRunner creates a Runner over db.
func NewRunner(db *sql.DB, opts ...RunnerOption) *Runner {
	r := &Runner{db: db, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query executes a statement with positional arguments.
func (r *Runner) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	query = strings.TrimSuffix(strings.TrimSpace(query), ";")
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	logging.Debug().
		Add(logging.SQL(query)).
		Add(logging.Int("params", len(args))).
		Msg("executing query")

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logging.Error().Add(logging.ErrorField(err)).Add(logging.SQL(query)).Msg("query failed")
		return nil, fmt.Errorf("execute query: %w", err)
	}
	rs, err := scanRows(rows, 0)
	if err != nil {
		return nil, err
	}

	logging.Debug().
		Add(logging.Rows(rs.Len())).
		Add(logging.Duration(time.Since(start))).
		Msg("query complete")
	return rs, nil
}

// Run executes a statement and renders its rows as a JSON array of
// objects, or NoResults when there are none.
func (r *Runner) Run(ctx context.Context, query string, args ...any) (string, error) {
	rs, err := r.Query(ctx, query, args...)
	if err != nil {
		return "", err
	}
	return Format(rs)
}

// Format renders a result set the way Runner.Run does.
func Format(rs *ResultSet) (string, error) {
	if rs.Len() == 0 {
		return NoResults, nil
	}
	data, err := rs.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var _ SQLRunner = (*Runner)(nil)
