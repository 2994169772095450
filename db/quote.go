package db

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBadParameter indicates a bind parameter of an unsupported type. It
	// is raised before any statement reaches the server.
	ErrBadParameter = errors.New("parameter type is not supported")

	// ErrPlaceholders indicates a mismatch between the number of bind
	// parameters and the number of placeholders in the statement.
	ErrPlaceholders = errors.New("parameter count does not match placeholders")
)

// timestampFormat renders time values the way the backend parses timestamp
// literals.
const timestampFormat = "2006-01-02 15:04:05.999999-07:00"

// quoteValue renders one bind parameter as a SQL literal. Strings are
// escaped by doubling single quotes, byte slices use the bytea hex input
// format, and non-finite floats use the backend's spelled-out literals.
func quoteValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return quoteString(t), nil
	case []byte:
		return `'\x` + hex.EncodeToString(t) + `'`, nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float32:
		return quoteFloat(float64(t)), nil
	case float64:
		return quoteFloat(t), nil
	case time.Time:
		return "'" + t.Format(timestampFormat) + "'", nil
	case []any:
		// Parenthesized lists, for IN clauses.
		parts := make([]string, len(t))
		for i, elem := range t {
			part, err := quoteValue(elem)
			if err != nil {
				return "", err
			}
			parts[i] = part
		}
		return "(" + strings.Join(parts, ",") + ")", nil
	default:
		return "", fmt.Errorf("%w: %T", ErrBadParameter, v)
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "'NaN'"
	case math.IsInf(f, 1):
		return "'Infinity'"
	case math.IsInf(f, -1):
		return "'-Infinity'"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// bindParams splices the quoted parameters into the statement, one per ?
// placeholder. Question marks inside quoted string literals and quoted
// identifiers are left alone. The parameter count must match the
// placeholder count exactly.
func bindParams(sql string, params []any) (string, error) {
	var b strings.Builder
	b.Grow(len(sql))

	next := 0
	inSingle, inDouble := false, false
	for _, r := range sql {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case r == '?' && !inSingle && !inDouble:
			if next >= len(params) {
				return "", fmt.Errorf("%w: %d parameters for more placeholders", ErrPlaceholders, len(params))
			}
			quoted, err := quoteValue(params[next])
			if err != nil {
				return "", err
			}
			next++
			b.WriteString(quoted)
			continue
		}
		b.WriteRune(r)
	}

	if next != len(params) {
		return "", fmt.Errorf("%w: %d parameters for %d placeholders", ErrPlaceholders, len(params), next)
	}
	return b.String(), nil
}
