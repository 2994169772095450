package driver

import (
	"context"
	"errors"
	"fmt"
)

// MaxLineSize is the largest raw copy line GetLine-style reads will accept,
// including the trailing newline.
const MaxLineSize = 8192

var (
	// ErrLineTooLong indicates a copy-out line larger than MaxLineSize.
	ErrLineTooLong = errors.New("copy line exceeds buffer size")

	// ErrNoCopy indicates a raw copy operation without an active copy channel.
	ErrNoCopy = errors.New("no copy in progress")

	// ErrNotSocket is returned when the underlying transport exposes no file descriptor.
	ErrNotSocket = errors.New("connection transport has no socket descriptor")
)

// Status classifies the outcome of an executed statement. The values mirror
// the result statuses the backend protocol distinguishes.
type Status int

const (
	// StatusCommand is a successful statement that returned no rows.
	StatusCommand Status = iota

	// StatusTuples is a successful statement that returned rows.
	StatusTuples

	// StatusCopyIn acknowledges a statement that opened a copy-in channel.
	StatusCopyIn

	// StatusCopyOut acknowledges a statement that opened a copy-out channel.
	StatusCopyOut

	// StatusEmptyQuery is the backend response to an empty query string.
	StatusEmptyQuery
)

// Settings carries the connection parameters the login call accepts. Zero
// values mean "unset" and defer to the library's own defaults.
type Settings struct {
	// Host is the server host name or socket directory.
	Host string

	// Port is the server port. Values <= 0 are treated as unset.
	Port int

	// Database is the database name to connect to.
	Database string

	// Options are backend command-line options passed at session start.
	Options string

	// DebugTTY is the legacy debug output target. The modern protocol has no
	// use for it; it is retained only so the accessor can report it back.
	DebugTTY string

	// User is the login role.
	User string

	// Password authenticates User.
	Password string
}

// Column describes one result column.
type Column struct {
	// Name is the column name as reported by the backend.
	Name string

	// TypeOID is the declared type of the column.
	TypeOID uint32
}

// Result is the outcome of a single executed statement.
type Result struct {
	// Status classifies the outcome.
	Status Status

	// Columns holds per-column metadata when Status is StatusTuples.
	Columns []Column

	// Rows holds the row data in text format. A nil cell is a SQL NULL.
	Rows [][][]byte

	// OID is the object id reported by a single-row insert, zero otherwise.
	OID uint32

	// Affected is the row count reported by the command tag of a
	// non-tuple-bearing statement, zero when the tag carries none.
	Affected int64
}

// Notification is an asynchronous message delivered on a listened channel.
type Notification struct {
	// Channel is the notification channel name.
	Channel string

	// PID identifies the sending backend process.
	PID uint32

	// Payload is the optional notification payload.
	Payload string
}

// BackendError carries a diagnostic the backend attached to a failed
// operation. The text is surfaced verbatim and never re-coded.
type BackendError struct {
	// Severity is the backend-reported severity (ERROR, FATAL, PANIC).
	Severity string

	// Code is the SQLSTATE error code.
	Code string

	// Message is the primary human-readable diagnostic.
	Message string
}

// Error returns the backend diagnostic text.
func (e *BackendError) Error() string {
	if e.Severity == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s (SQLSTATE %s)", e.Severity, e.Message, e.Code)
}

// Connector establishes connections for a Connection wrapper.
type Connector interface {
	// Connect logs in with the resolved settings and returns a live handle.
	Connect(ctx context.Context, settings Settings) (Conn, error)
}

// Conn is the wrapped client-library connection handle. Implementations are
// not safe for concurrent use; the binding never runs two operations on the
// same handle at once.
type Conn interface {
	// Exec runs a single statement and classifies its outcome. Backend
	// failures are returned as a *BackendError; transport and protocol
	// failures as ordinary errors.
	Exec(ctx context.Context, sql string) (*Result, error)

	// CopyPut sends one raw line on the active copy-in channel.
	CopyPut(ctx context.Context, line string) error

	// CopyGet reads one raw line from the active copy-out channel. It
	// returns io.EOF at end of data and ErrLineTooLong when a line exceeds
	// MaxLineSize.
	CopyGet(ctx context.Context) (string, error)

	// CopyEnd terminates the active copy channel and reports its outcome.
	CopyEnd(ctx context.Context) error

	// Notification pops the most recent pending asynchronous notification.
	Notification() (Notification, bool)

	// Reset re-establishes the connection using the original settings.
	Reset(ctx context.Context) error

	// Close releases the handle. It must be safe to call once.
	Close(ctx context.Context) error

	// Socket returns the underlying socket descriptor.
	Socket() (int, error)

	// Connection attribute passthroughs.
	Host() string
	Port() int
	Database() string
	Options() string
	DebugTTY() string
	User() string

	// ErrorMessage reports the diagnostic text of the most recent failure,
	// or an empty string after a successful operation.
	ErrorMessage() string

	// Status reports whether the handle is healthy.
	Status() bool

	// Large-object calls. Descriptors are scoped to the current transaction
	// on the server side, exactly as the underlying protocol dictates.
	LoCreate(ctx context.Context, mode int32) (uint32, error)
	LoOpen(ctx context.Context, oid uint32, mode int32) (int32, error)
	LoClose(ctx context.Context, fd int32) error
	LoRead(ctx context.Context, fd int32, size int) ([]byte, error)
	LoWrite(ctx context.Context, fd int32, data []byte) (int, error)
	LoSeek(ctx context.Context, fd int32, offset int64, whence int32) (int64, error)
	LoTell(ctx context.Context, fd int32) (int64, error)
	LoUnlink(ctx context.Context, oid uint32) error
}
