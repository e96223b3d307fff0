// Package db2itest provides an in-memory db2i.SQLRunner for tests.
package db2itest

import (
	"context"
	"strings"
	"sync"

	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
)

// Call is one recorded statement.
type Call struct {
	SQL  string
	Args []any
}

// Reply is returned for statements containing Match.
type Reply struct {
	Match  string
	Result *db2i.ResultSet
	Err    error
}

// Recorder records every statement and answers from its replies. The
// first reply whose Match is a substring of the statement wins; with no
// match the result is empty.
type Recorder struct {
	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

// NewRecorder creates a Recorder with the given replies.
func NewRecorder(replies ...Reply) *Recorder {
	return &Recorder{replies: replies}
}

// Rows builds a result set from columns and rows.
func Rows(columns []string, rows ...[]any) *db2i.ResultSet {
	return &db2i.ResultSet{Columns: columns, Rows: rows}
}

// Query implements db2i.Querier.
func (r *Recorder) Query(ctx context.Context, query string, args ...any) (*db2i.ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{SQL: query, Args: args})
	for _, reply := range r.replies {
		if strings.Contains(query, reply.Match) {
			if reply.Err != nil {
				return nil, reply.Err
			}
			if reply.Result == nil {
				return &db2i.ResultSet{}, nil
			}
			return reply.Result, nil
		}
	}
	return &db2i.ResultSet{}, nil
}

// Run implements db2i.SQLRunner.
func (r *Recorder) Run(ctx context.Context, query string, args ...any) (string, error) {
	rs, err := r.Query(ctx, query, args...)
	if err != nil {
		return "", err
	}
	return db2i.Format(rs)
}

// Calls returns the recorded statements.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Last returns the most recent statement.
func (r *Recorder) Last() (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return Call{}, false
	}
	return r.calls[len(r.calls)-1], true
}

var _ db2i.SQLRunner = (*Recorder)(nil)
