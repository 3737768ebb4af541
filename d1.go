package worker

import (
	"context"
	"encoding/json"

	"github.com/cryguy/worker-go/sys"
)

// D1Database is a D1 database binding.
type D1Database struct {
	inner sys.Value
}

func (*D1Database) TypeName() string      { return "D1Database" }
func (d *D1Database) attach(v sys.Value) { d.inner = v }

// D1Meta describes the effect of a statement.
type D1Meta struct {
	ChangedDB   bool    `json:"changed_db"`
	Changes     int64   `json:"changes"`
	LastRowID   int64   `json:"last_row_id"`
	RowsRead    int64   `json:"rows_read"`
	RowsWritten int64   `json:"rows_written"`
	Duration    float64 `json:"duration"`
}

// D1Result is the outcome of All, Run or one Batch entry.
type D1Result struct {
	Success bool            `json:"success"`
	Results json.RawMessage `json:"results"`
	Meta    D1Meta          `json:"meta"`
}

// Rows decodes the result rows, one object per row, into dst.
func (r *D1Result) Rows(dst any) error {
	if err := json.Unmarshal(r.Results, dst); err != nil {
		return &Error{Code: CodeDeserializationFailed, Op: "D1Result.Rows", Msg: "decoding rows", Err: err}
	}
	return nil
}

// D1ExecResult is the outcome of Exec.
type D1ExecResult struct {
	Count    int     `json:"count"`
	Duration float64 `json:"duration"`
}

// D1Statement is a prepared query with its bound parameters. Statements
// are values: Bind returns a new statement.
type D1Statement struct {
	db     *D1Database
	query  string
	params []any
}

// Prepare starts a statement.
func (d *D1Database) Prepare(query string) *D1Statement {
	return &D1Statement{db: d, query: query}
}

// Bind returns a copy of s with params bound in order.
func (s *D1Statement) Bind(params ...any) *D1Statement {
	return &D1Statement{db: s.db, query: s.query, params: append([]any(nil), params...)}
}

// handle builds the host prepared statement.
func (s *D1Statement) handle() (sys.Value, error) {
	st, err := s.db.inner.Call("prepare", s.query)
	if err != nil {
		return nil, err
	}
	if len(s.params) == 0 {
		return st, nil
	}
	return st.Call("bind", s.params...)
}

func (s *D1Statement) result(ctx context.Context, op, method string, args ...any) (sys.Value, error) {
	st, err := s.handle()
	if err != nil {
		return nil, hostError(op, err, "D1 statement failed")
	}
	v, err := callAwait(ctx, st, method, args...)
	if err != nil {
		return nil, hostError(op, err, "D1 statement failed")
	}
	return v, nil
}

// All runs the statement and returns every row.
func (s *D1Statement) All(ctx context.Context) (*D1Result, error) {
	v, err := s.result(ctx, "D1Statement.All", "all")
	if err != nil {
		return nil, err
	}
	return exportD1Result(v, "D1Statement.All")
}

// Run executes the statement for its effect.
func (s *D1Statement) Run(ctx context.Context) (*D1Result, error) {
	v, err := s.result(ctx, "D1Statement.Run", "run")
	if err != nil {
		return nil, err
	}
	return exportD1Result(v, "D1Statement.Run")
}

// First decodes the first row into dst. With a column name only that
// column is decoded. ok is false when there are no rows.
func (s *D1Statement) First(ctx context.Context, column string, dst any) (ok bool, err error) {
	var args []any
	if column != "" {
		args = append(args, column)
	}
	v, err := s.result(ctx, "D1Statement.First", "first", args...)
	if err != nil {
		return false, err
	}
	if v.IsNull() {
		return false, nil
	}
	if err := v.Export(dst); err != nil {
		return true, &Error{Code: CodeDeserializationFailed, Op: "D1Statement.First", Msg: "decoding row", Err: err}
	}
	return true, nil
}

// Raw returns rows as arrays, optionally preceded by the column names.
func (s *D1Statement) Raw(ctx context.Context, columnNames bool) ([][]any, error) {
	v, err := s.result(ctx, "D1Statement.Raw", "raw", map[string]any{"columnNames": columnNames})
	if err != nil {
		return nil, err
	}
	var rows [][]any
	if err := v.Export(&rows); err != nil {
		return nil, &Error{Code: CodeDeserializationFailed, Op: "D1Statement.Raw", Msg: "decoding rows", Err: err}
	}
	return rows, nil
}

// Batch runs statements in order and returns one result per statement.
func (d *D1Database) Batch(ctx context.Context, stmts ...*D1Statement) ([]D1Result, error) {
	handles := make([]any, 0, len(stmts))
	for _, s := range stmts {
		h, err := s.handle()
		if err != nil {
			return nil, hostError("D1Database.Batch", err, "D1 batch failed")
		}
		handles = append(handles, h)
	}
	v, err := callAwait(ctx, d.inner, "batch", handles)
	if err != nil {
		return nil, hostError("D1Database.Batch", err, "D1 batch failed")
	}
	var out []D1Result
	if err := v.Export(&out); err != nil {
		return nil, &Error{Code: CodeDeserializationFailed, Op: "D1Database.Batch", Msg: "decoding results", Err: err}
	}
	return out, nil
}

// Exec runs one or more newline separated statements without results.
func (d *D1Database) Exec(ctx context.Context, query string) (*D1ExecResult, error) {
	v, err := callAwait(ctx, d.inner, "exec", query)
	if err != nil {
		return nil, hostError("D1Database.Exec", err, "D1 exec failed")
	}
	res := &D1ExecResult{}
	if err := v.Export(res); err != nil {
		return nil, &Error{Code: CodeDeserializationFailed, Op: "D1Database.Exec", Msg: "decoding result", Err: err}
	}
	return res, nil
}

func exportD1Result(v sys.Value, op string) (*D1Result, error) {
	res := &D1Result{}
	if err := v.Export(res); err != nil {
		return nil, &Error{Code: CodeDeserializationFailed, Op: op, Msg: "decoding result", Err: err}
	}
	return res, nil
}
