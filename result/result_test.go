package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgsql-project/sdk/driver"
)

func sampleResult() *driver.Result {
	return &driver.Result{
		Status: driver.StatusTuples,
		Columns: []driver.Column{
			{Name: "id", TypeOID: oidInt4},
			{Name: "score", TypeOID: oidFloat8},
			{Name: "price", TypeOID: oidCash},
			{Name: "label", TypeOID: 25}, // text
		},
		Rows: [][][]byte{
			{[]byte("1"), []byte("0.5"), []byte("$1,234.50"), []byte("alpha")},
			{[]byte("2"), []byte("-3.25"), []byte("$0.99"), []byte("beta")},
		},
	}
}

func TestFieldNames(t *testing.T) {
	t.Parallel()

	r := New(sampleResult())
	assert.Equal(t, []string{"id", "score", "price", "label"}, r.FieldNames())
}

func TestColumns(t *testing.T) {
	t.Parallel()

	r := New(sampleResult())

	cols := r.Columns()
	assert.Equal(t, sampleResult().Columns, cols)

	// Mutating the returned slice must not touch the result.
	cols[0].Name = "mangled"
	assert.Equal(t, "id", r.Columns()[0].Name)
}

func TestFieldName(t *testing.T) {
	t.Parallel()

	r := New(sampleResult())

	name, err := r.FieldName(2)
	require.NoError(t, err)
	assert.Equal(t, "price", name)

	_, err = r.FieldName(4)
	assert.ErrorIs(t, err, ErrFieldNumber)

	_, err = r.FieldName(-1)
	assert.ErrorIs(t, err, ErrFieldNumber)
}

func TestFieldNumber(t *testing.T) {
	t.Parallel()

	r := New(sampleResult())

	num, err := r.FieldNumber("label")
	require.NoError(t, err)
	assert.Equal(t, 3, num)

	_, err = r.FieldNumber("missing")
	assert.ErrorIs(t, err, ErrFieldName)
}

func TestRowsCoercion(t *testing.T) {
	t.Parallel()

	rows := New(sampleResult()).Rows()
	require.Len(t, rows, 2)

	assert.Equal(t, []any{int64(1), 0.5, 1234.5, "alpha"}, rows[0])
	assert.Equal(t, []any{int64(2), -3.25, 0.99, "beta"}, rows[1])
}

func TestRowsCoercionIsDeterministicPerColumn(t *testing.T) {
	t.Parallel()

	res := &driver.Result{
		Columns: []driver.Column{{Name: "n", TypeOID: oidInt2}},
		Rows: [][][]byte{
			{[]byte("7")},
			{[]byte("8")},
			{[]byte("9")},
		},
	}

	for _, row := range New(res).Rows() {
		assert.IsType(t, int64(0), row[0], "integer-family column must always yield integers")
	}
}

func TestRowsIntegerFamily(t *testing.T) {
	t.Parallel()

	res := &driver.Result{
		Columns: []driver.Column{
			{Name: "a", TypeOID: oidInt2},
			{Name: "b", TypeOID: oidInt4},
			{Name: "c", TypeOID: oidInt8},
			{Name: "d", TypeOID: oidOID},
		},
		Rows: [][][]byte{
			{[]byte("-32768"), []byte("42"), []byte("9223372036854775807"), []byte("16384")},
		},
	}

	rows := New(res).Rows()
	assert.Equal(t, []any{int64(-32768), int64(42), int64(9223372036854775807), int64(16384)}, rows[0])
}

func TestRowsNullBecomesNil(t *testing.T) {
	t.Parallel()

	res := &driver.Result{
		Columns: []driver.Column{
			{Name: "id", TypeOID: oidInt4},
			{Name: "label", TypeOID: 25},
		},
		Rows: [][][]byte{
			{nil, nil},
			{[]byte("1"), []byte("")},
		},
	}

	rows := New(res).Rows()
	assert.Equal(t, []any{nil, nil}, rows[0])
	assert.Equal(t, []any{int64(1), ""}, rows[1], "empty text is not NULL")
}

func TestRowsAsMaps(t *testing.T) {
	t.Parallel()

	maps := New(sampleResult()).RowsAsMaps()
	require.Len(t, maps, 2)

	assert.Equal(t, map[string]any{
		"id":    int64(1),
		"score": 0.5,
		"price": 1234.5,
		"label": "alpha",
	}, maps[0])
	assert.Equal(t, map[string]any{
		"id":    int64(2),
		"score": -3.25,
		"price": 0.99,
		"label": "beta",
	}, maps[1])
}

func TestStripCash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"$1,234.50", "1234.50"},
		{"$0.99", "0.99"},
		{"-$12,000.00", "-12000.00"},
		{"100.00", "100.00"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, stripCash(tc.in), "input %q", tc.in)
	}
}

func TestEmptyResult(t *testing.T) {
	t.Parallel()

	r := New(&driver.Result{Status: driver.StatusTuples})
	assert.Empty(t, r.FieldNames())
	assert.Empty(t, r.Rows())
	assert.Empty(t, r.RowsAsMaps())
}
