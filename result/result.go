package result

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pgsql-project/sdk/driver"
)

var (
	// ErrFieldNumber indicates a column index outside the result.
	ErrFieldNumber = errors.New("invalid field number")

	// ErrFieldName indicates a column name the result does not contain.
	ErrFieldName = errors.New("unknown field")
)

// Declared-type oids the coercion table distinguishes.
const (
	oidInt8   = 20
	oidInt2   = 21
	oidInt4   = 23
	oidOID    = 26
	oidFloat4 = 700
	oidFloat8 = 701
	oidCash   = 790
)

// kind is the extraction rule for one column, decided once from its
// declared type. The table is fixed, not configurable.
type kind int

const (
	kindText kind = iota
	kindInt
	kindFloat
	kindCash
)

func kindOf(typeOID uint32) kind {
	switch typeOID {
	case oidInt2, oidInt4, oidInt8, oidOID:
		return kindInt
	case oidFloat4, oidFloat8:
		return kindFloat
	case oidCash:
		return kindCash
	default:
		return kindText
	}
}

// Result wraps one result set returned by a query. It is immutable after
// creation.
type Result struct {
	columns []driver.Column
	rows    [][][]byte
	kinds   []kind
}

// New wraps a tuple-bearing driver result.
func New(res *driver.Result) *Result {
	r := &Result{
		columns: res.Columns,
		rows:    res.Rows,
		kinds:   make([]kind, len(res.Columns)),
	}
	for i, col := range res.Columns {
		r.kinds[i] = kindOf(col.TypeOID)
	}
	return r
}

// Columns returns the column metadata in result order.
func (r *Result) Columns() []driver.Column {
	return append([]driver.Column(nil), r.columns...)
}

// FieldNames returns the column names in result order.
func (r *Result) FieldNames() []string {
	names := make([]string, len(r.columns))
	for i, col := range r.columns {
		names[i] = col.Name
	}
	return names
}

// FieldName returns the name of the column at index.
func (r *Result) FieldName(index int) (string, error) {
	if index < 0 || index >= len(r.columns) {
		return "", fmt.Errorf("%w: %d", ErrFieldNumber, index)
	}
	return r.columns[index].Name, nil
}

// FieldNumber returns the index of the named column.
func (r *Result) FieldNumber(name string) (int, error) {
	for i, col := range r.columns {
		if col.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrFieldName, name)
}

// Rows returns every row as a positional value slice, coerced per column:
// integer-family and oid columns to int64, float columns to float64, money
// columns to float64 after stripping the currency symbol and grouping
// separators, everything else to the verbatim text. SQL NULL becomes nil.
func (r *Result) Rows() [][]any {
	out := make([][]any, len(r.rows))
	for i, row := range r.rows {
		vals := make([]any, len(row))
		for j, cell := range row {
			vals[j] = r.coerce(j, cell)
		}
		out[i] = vals
	}
	return out
}

// RowsAsMaps returns every row as a column-name-to-value map, with the same
// coercion as Rows.
func (r *Result) RowsAsMaps() []map[string]any {
	out := make([]map[string]any, len(r.rows))
	for i, row := range r.rows {
		vals := make(map[string]any, len(row))
		for j, cell := range row {
			if j < len(r.columns) {
				vals[r.columns[j].Name] = r.coerce(j, cell)
			}
		}
		out[i] = vals
	}
	return out
}

func (r *Result) coerce(col int, cell []byte) any {
	if cell == nil {
		return nil
	}
	s := string(cell)

	if col >= len(r.kinds) {
		return s
	}

	switch r.kinds[col] {
	case kindInt:
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	case kindFloat:
		v, _ := strconv.ParseFloat(s, 64)
		return v
	case kindCash:
		v, _ := strconv.ParseFloat(stripCash(s), 64)
		return v
	default:
		return s
	}
}

// stripCash removes the leading currency symbol and grouping commas from a
// money literal, leaving a plain float string.
func stripCash(s string) string {
	s = strings.TrimPrefix(s, "$")
	if strings.HasPrefix(s, "-$") {
		s = "-" + s[2:]
	}
	return strings.ReplaceAll(s, ",", "")
}
