package conn

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sdk "github.com/pgsql-project/sdk"
)

var (
	// ErrBadRowValue indicates a bulk-insert element of an unsupported type.
	// It is raised before any data reaches the copy channel.
	ErrBadRowValue = errors.New("row values must be strings, integers, or floats")

	// ErrCopyFailed wraps a bulk copy the library rejected or aborted.
	ErrCopyFailed = errors.New("copy failed")
)

// endOfData is the copy text-format end-of-data marker line.
const endOfData = "\\.\n"

// PutLine sends one raw line on the copy-in channel a preceding query
// opened.
func (c *Connection) PutLine(ctx context.Context, line string) error {
	if c.closed {
		return sdk.ErrNotConnected
	}
	if err := c.handle.CopyPut(ctx, line); err != nil {
		return errors.Join(ErrCopyFailed, err)
	}
	return nil
}

// GetLine reads one raw line from the copy-out channel a preceding query
// opened. It returns io.EOF at end of data and driver.ErrLineTooLong when a
// line exceeds the fixed read buffer.
func (c *Connection) GetLine(ctx context.Context) (string, error) {
	if c.closed {
		return "", sdk.ErrNotConnected
	}
	return c.handle.CopyGet(ctx)
}

// EndCopy terminates the active copy channel and surfaces its outcome.
func (c *Connection) EndCopy(ctx context.Context) error {
	if c.closed {
		return sdk.ErrNotConnected
	}
	if err := c.handle.CopyEnd(ctx); err != nil {
		return errors.Join(ErrCopyFailed, err)
	}
	return nil
}

// InsertRows bulk-loads rows into table over a copy-in channel. Every row
// is serialized as tab-separated fields terminated by a newline; only
// string, int, int64, and float64 elements are accepted, and the whole
// payload is validated before any data is sent. Embedded tabs, newlines,
// and backslashes are escaped per the copy text format.
func (c *Connection) InsertRows(ctx context.Context, table string, rows [][]any) error {
	if c.closed {
		return sdk.ErrNotConnected
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		line, err := encodeRow(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		lines[i] = line
	}

	resp, err := c.Query(ctx, "copy "+table+" from stdin")
	if err != nil {
		return err
	}
	if resp.Copy != CopyIn {
		// Terminate whatever channel the statement did open.
		_ = c.handle.CopyEnd(ctx)
		return errors.Join(ErrCopyFailed, fmt.Errorf("statement did not open a copy-in channel"))
	}

	for _, line := range lines {
		if err := c.handle.CopyPut(ctx, line); err != nil {
			_ = c.handle.CopyEnd(ctx)
			return errors.Join(ErrCopyFailed, err)
		}
	}
	if err := c.handle.CopyPut(ctx, endOfData); err != nil {
		_ = c.handle.CopyEnd(ctx)
		return errors.Join(ErrCopyFailed, err)
	}

	if err := c.handle.CopyEnd(ctx); err != nil {
		return errors.Join(ErrCopyFailed, err)
	}

	c.logger.Debug("rows inserted", "table", table, "rows", len(rows))
	return nil
}

func encodeRow(row []any) (string, error) {
	fields := make([]string, len(row))
	for i, v := range row {
		field, err := encodeField(v)
		if err != nil {
			return "", fmt.Errorf("element %d: %w", i, err)
		}
		fields[i] = field
	}
	return strings.Join(fields, "\t") + "\n", nil
}

func encodeField(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return escapeCopyText(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: got %T", ErrBadRowValue, v)
	}
}

// copyTextEscaper escapes the characters that are structural in the copy
// text format, so field values survive round trips intact.
var copyTextEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
)

func escapeCopyText(s string) string {
	return copyTextEscaper.Replace(s)
}
