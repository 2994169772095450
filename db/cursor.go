package db

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/pgsql-project/sdk/conn"
	"github.com/pgsql-project/sdk/driver"
)

var (
	// ErrCursorClosed indicates an operation on a closed cursor.
	ErrCursorClosed = errors.New("cursor has been closed")

	// ErrNoResult indicates a fetch without a preceding tuple-bearing
	// statement.
	ErrNoResult = errors.New("no result set to fetch from")
)

// Result-type oids the cursor refines beyond the base column coercion.
const (
	oidBool  = 16
	oidBytea = 17
)

// Field describes one column of the current result set.
type Field struct {
	// Name is the column name as reported by the backend.
	Name string

	// TypeOID is the declared type of the column.
	TypeOID uint32

	// TypeName is the type name from pg_type.
	TypeName string

	// InternalSize is the type's internal size in bytes, negative for
	// variable-length types.
	InternalSize int
}

// Cursor executes statements inside the session's transaction and buffers
// the most recent result set for incremental fetching. Bind parameters are
// quoted client-side and spliced over ? placeholders; validation happens
// before any statement reaches the server.
type Cursor struct {
	session *Session

	rows      [][]any
	pos       int
	columns   []driver.Column
	fields    []Field
	rowcount  int64
	lastOID   uint32
	arraysize int
	hasResult bool
	closed    bool
}

// Execute runs one statement, splicing params over its ? placeholders. A
// tuple-bearing statement replaces the buffered result set; anything else
// records the affected-row count and reported object id.
func (c *Cursor) Execute(ctx context.Context, operation string, params ...any) error {
	return c.run(ctx, operation, [][]any{params})
}

// ExecuteMany runs the statement once per parameter set, accumulating the
// affected-row counts. An empty sequence executes nothing.
func (c *Cursor) ExecuteMany(ctx context.Context, operation string, paramSets [][]any) error {
	if len(paramSets) == 0 {
		return nil
	}
	return c.run(ctx, operation, paramSets)
}

func (c *Cursor) run(ctx context.Context, operation string, paramSets [][]any) error {
	if c.closed {
		return ErrCursorClosed
	}
	if _, err := c.session.conn.Handle(); err != nil {
		return err
	}

	// Quote every statement up front: a bad parameter anywhere fails the
	// whole call before any traffic.
	stmts := make([]string, len(paramSets))
	for i, params := range paramSets {
		if len(params) == 0 {
			stmts[i] = operation
			continue
		}
		stmt, err := bindParams(operation, params)
		if err != nil {
			return err
		}
		stmts[i] = stmt
	}

	c.reset()

	if err := c.session.begin(ctx); err != nil {
		return err
	}

	var affected int64
	var last *conn.QueryResponse
	for _, stmt := range stmts {
		resp, err := c.session.conn.Query(ctx, stmt)
		if err != nil {
			return err
		}
		affected += resp.Affected
		last = resp
	}

	if last.Result != nil {
		c.columns = last.Result.Columns()
		rows := last.Result.Rows()
		c.rows = make([][]any, len(rows))
		for i, row := range rows {
			c.rows[i] = c.typecastRow(row)
		}
		c.rowcount = int64(len(c.rows))
		c.hasResult = true
	} else {
		c.rowcount = affected
		c.lastOID = last.OID
	}
	return nil
}

// reset discards the buffered result set before a new execution.
func (c *Cursor) reset() {
	c.rows = nil
	c.pos = 0
	c.columns = nil
	c.fields = nil
	c.rowcount = -1
	c.lastOID = 0
	c.hasResult = false
}

// typecastRow refines the base column coercion: boolean columns become bool,
// bytea columns are decoded from the hex input format into byte slices.
func (c *Cursor) typecastRow(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
		if v == nil || i >= len(c.columns) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch c.columns[i].TypeOID {
		case oidBool:
			out[i] = strings.HasPrefix(s, "t") || strings.HasPrefix(s, "T")
		case oidBytea:
			if raw, ok := strings.CutPrefix(s, `\x`); ok {
				if decoded, err := hex.DecodeString(raw); err == nil {
					out[i] = decoded
				}
			}
		}
	}
	return out
}

// FetchOne returns the next buffered row, or nil when the result set is
// exhausted.
func (c *Cursor) FetchOne() ([]any, error) {
	rows, err := c.FetchMany(1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FetchMany returns up to size rows from the buffered result set, advancing
// the cursor position. A size of zero or less uses the cursor's array size.
func (c *Cursor) FetchMany(size int) ([][]any, error) {
	if c.closed {
		return nil, ErrCursorClosed
	}
	if !c.hasResult {
		return nil, ErrNoResult
	}
	if size <= 0 {
		size = c.arraysize
	}

	end := c.pos + size
	if end > len(c.rows) {
		end = len(c.rows)
	}
	rows := c.rows[c.pos:end]
	c.pos = end
	return rows, nil
}

// FetchAll returns every remaining buffered row.
func (c *Cursor) FetchAll() ([][]any, error) {
	if c.closed {
		return nil, ErrCursorClosed
	}
	if !c.hasResult {
		return nil, ErrNoResult
	}
	rows := c.rows[c.pos:]
	c.pos = len(c.rows)
	return rows, nil
}

// Description resolves the column metadata of the current result set,
// looking type names up through pg_type on first use. It returns nil
// without error after a non-tuple-bearing statement.
func (c *Cursor) Description(ctx context.Context) ([]Field, error) {
	if c.closed {
		return nil, ErrCursorClosed
	}
	if !c.hasResult {
		return nil, nil
	}
	if c.fields != nil {
		return c.fields, nil
	}

	fields := make([]Field, len(c.columns))
	for i, col := range c.columns {
		info, err := c.session.typeInfo(ctx, col.TypeOID)
		if err != nil {
			return nil, err
		}
		fields[i] = Field{
			Name:         col.Name,
			TypeOID:      col.TypeOID,
			TypeName:     info.Name,
			InternalSize: info.Size,
		}
	}
	c.fields = fields
	return fields, nil
}

// FieldNames returns the column names of the current result set without a
// server round trip, nil after a non-tuple-bearing statement.
func (c *Cursor) FieldNames() []string {
	if !c.hasResult {
		return nil
	}
	names := make([]string, len(c.columns))
	for i, col := range c.columns {
		names[i] = col.Name
	}
	return names
}

// RowCount reports the size of the buffered result set, the accumulated
// affected-row count after non-tuple-bearing statements, or -1 before any
// execution.
func (c *Cursor) RowCount() int64 { return c.rowcount }

// LastOID reports the object id of the most recent single-row insert, zero
// when the backend reported none.
func (c *Cursor) LastOID() uint32 { return c.lastOID }

// ArraySize reports the default FetchMany batch size.
func (c *Cursor) ArraySize() int { return c.arraysize }

// SetArraySize changes the default FetchMany batch size. Sizes below one
// are ignored.
func (c *Cursor) SetArraySize(size int) {
	if size >= 1 {
		c.arraysize = size
	}
}

// Close discards the buffered result set and invalidates the cursor. The
// session and its transaction are unaffected.
func (c *Cursor) Close() {
	c.reset()
	c.closed = true
}
