package repo

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// valuesRow scans a fixed tuple; a nil tuple reports pgx.ErrNoRows.
type valuesRow struct {
	values []any
	err    error
}

func (r valuesRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.values == nil {
		return pgx.ErrNoRows
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, v := range r.values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type rowsBase struct{}

func (rowsBase) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (rowsBase) Conn() *pgx.Conn                              { return nil }
func (rowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (rowsBase) Values() ([]any, error)                       { return nil, fmt.Errorf("values not supported") }
func (rowsBase) RawValues() [][]byte                          { return nil }

type valuesRows struct {
	rowsBase
	rows []valuesRow
	pos  int
	err  error
}

func (r *valuesRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *valuesRows) Scan(dest ...any) error { return r.rows[r.pos-1].Scan(dest...) }
func (r *valuesRows) Err() error             { return r.err }
func (r *valuesRows) Close()                 {}

type call struct {
	query string
	args  []any
}

// stubSQL answers QueryRow calls from a queue and records every statement.
type stubSQL struct {
	rows    []valuesRow
	list    *valuesRows
	tag     pgconn.CommandTag
	execErr error
	calls   []call
}

func (s *stubSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, call{query, args})
	return s.tag, s.execErr
}

func (s *stubSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, call{query, args})
	if len(s.rows) == 0 {
		return valuesRow{}
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	return row
}

func (s *stubSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, call{query, args})
	if s.list == nil {
		return &valuesRows{}, nil
	}
	return s.list, nil
}

func (s *stubSQL) markers() []string {
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		first := strings.SplitN(strings.TrimSpace(c.query), "\n", 2)[0]
		out = append(out, strings.TrimPrefix(first, "--sql "))
	}
	return out
}
