package conn

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	sdk "github.com/pgsql-project/sdk"
	"github.com/pgsql-project/sdk/driver"
	"github.com/pgsql-project/sdk/result"
)

var (
	// ErrConnectFailed wraps a failed login attempt.
	ErrConnectFailed = errors.New("login attempt failed")

	// ErrResetFailed wraps a failed connection re-establishment.
	ErrResetFailed = errors.New("connection reset failed")
)

// Config controls how a Connection is established. Every parameter field is
// optional: an unset field falls back to the Defaults snapshot, then the
// process-wide registry, then the client library's own defaults.
type Config struct {
	// Host is the server host name or socket directory.
	Host string

	// Port is the server port. Values <= 0 are treated as unset.
	Port int

	// Database is the database name to connect to.
	Database string

	// Options are backend command-line options passed at session start.
	Options string

	// DebugTTY is the legacy debug output target, kept for the accessor.
	DebugTTY string

	// User is the login role.
	User string

	// Password authenticates User.
	Password string

	// Defaults is an optional settings snapshot consulted before the
	// process registry, e.g. the output of sdk.DefaultsFromEnv.
	Defaults *driver.Settings

	// Connector overrides the pgconn-backed production connector.
	Connector driver.Connector

	// Logger receives debug-level operation logs. Nil discards them.
	Logger *log.Logger
}

// CopyMode reports the bulk-copy channel a query opened, if any.
type CopyMode int

const (
	// CopyNone means the statement opened no copy channel.
	CopyNone CopyMode = iota

	// CopyIn means the statement awaits copy-in payload lines.
	CopyIn

	// CopyOut means the statement will stream copy-out payload lines.
	CopyOut
)

// QueryResponse is the dispatched outcome of a successful Query call.
type QueryResponse struct {
	// Result holds the rows when the statement returned tuples.
	Result *result.Result

	// OID is the object id a single-row insert reported, zero when absent.
	OID uint32

	// Affected is the row count a non-tuple-bearing statement reported.
	Affected int64

	// Copy reports the bulk-copy channel the statement opened, if any.
	Copy CopyMode
}

// Connection wraps one live client-library handle. It is not safe for
// concurrent use; callers multiplexing across goroutines must serialize
// access per connection.
type Connection struct {
	handle driver.Conn
	logger *log.Logger
	closed bool
}

// Connect resolves the connection parameters and logs in. The library
// diagnostic of a failed login is joined after ErrConnectFailed.
func Connect(ctx context.Context, config Config) (*Connection, error) {
	connector := config.Connector
	if connector == nil {
		connector = driver.PgxConnector{}
	}

	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	settings := resolve(config)
	handle, err := connector.Connect(ctx, settings)
	if err != nil {
		return nil, errors.Join(ErrConnectFailed, err)
	}
	if !handle.Status() {
		_ = handle.Close(ctx)
		return nil, errors.Join(ErrConnectFailed, errors.New(handle.ErrorMessage()))
	}

	logger.Debug("connected", "host", handle.Host(), "port", handle.Port(), "database", handle.Database())
	return &Connection{handle: handle, logger: logger}, nil
}

// resolve layers the connection parameters: explicit Config field, then the
// Defaults snapshot, then the process-wide registry. Fields still unset are
// left for the client library to default.
func resolve(config Config) driver.Settings {
	layers := []driver.Settings{{
		Host:     config.Host,
		Port:     config.Port,
		Database: config.Database,
		Options:  config.Options,
		DebugTTY: config.DebugTTY,
		User:     config.User,
		Password: config.Password,
	}}
	if config.Defaults != nil {
		layers = append(layers, *config.Defaults)
	}
	layers = append(layers, sdk.DefaultSettings())

	var out driver.Settings
	for _, layer := range layers {
		if out.Host == "" {
			out.Host = layer.Host
		}
		if out.Port <= 0 {
			out.Port = layer.Port
		}
		if out.Database == "" {
			out.Database = layer.Database
		}
		if out.Options == "" {
			out.Options = layer.Options
		}
		if out.DebugTTY == "" {
			out.DebugTTY = layer.DebugTTY
		}
		if out.User == "" {
			out.User = layer.User
		}
		if out.Password == "" {
			out.Password = layer.Password
		}
	}
	if out.Port < 0 {
		out.Port = 0
	}
	return out
}

// Handle exposes the driver handle for driver-local usage by sibling
// packages. Do not leak it through higher layers.
func (c *Connection) Handle() (driver.Conn, error) {
	if c.closed {
		return nil, sdk.ErrNotConnected
	}
	return c.handle, nil
}

// Query executes a single statement and dispatches on its result status:
// tuples produce a wrapped result set, a command with a reported object id
// produces that id, a plain command or copy acknowledgement produces an
// empty response, and the failure statuses each surface as a distinct
// condition carrying the library diagnostic.
func (c *Connection) Query(ctx context.Context, sql string) (*QueryResponse, error) {
	if c.closed {
		return nil, sdk.ErrNotConnected
	}

	res, err := c.handle.Exec(ctx, sql)
	if err != nil {
		var backend *driver.BackendError
		if errors.As(err, &backend) {
			return nil, errors.Join(sdk.ErrBackend, err)
		}
		return nil, errors.Join(sdk.ErrBadResponse, err)
	}

	c.logger.Debug("query executed", "status", res.Status)

	switch res.Status {
	case driver.StatusTuples:
		return &QueryResponse{Result: result.New(res)}, nil
	case driver.StatusCommand:
		return &QueryResponse{OID: res.OID, Affected: res.Affected}, nil
	case driver.StatusCopyIn:
		return &QueryResponse{Copy: CopyIn}, nil
	case driver.StatusCopyOut:
		return &QueryResponse{Copy: CopyOut}, nil
	case driver.StatusEmptyQuery:
		return nil, sdk.ErrEmptyQuery
	default:
		return nil, errors.Join(sdk.ErrBadResponse, fmt.Errorf("unknown result status %d", res.Status))
	}
}

// Reset re-establishes the connection in place.
func (c *Connection) Reset(ctx context.Context) error {
	if c.closed {
		return sdk.ErrNotConnected
	}
	if err := c.handle.Reset(ctx); err != nil {
		return errors.Join(ErrResetFailed, err)
	}
	c.logger.Debug("connection reset")
	return nil
}

// Close releases the underlying handle. Closing an already-closed
// connection is a no-op.
func (c *Connection) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Debug("connection closed")
	return c.handle.Close(ctx)
}

// Fileno returns the socket descriptor of the connection for external
// readiness polling.
func (c *Connection) Fileno() (int, error) {
	if c.closed {
		return -1, sdk.ErrNotConnected
	}
	return c.handle.Socket()
}

// GetNotify returns the most recent pending asynchronous notification, or
// nil when none is pending. Notifications only surface as a side effect of
// traffic, so a blank query is issued first to pump the protocol.
func (c *Connection) GetNotify(ctx context.Context) (*driver.Notification, error) {
	if c.closed {
		return nil, sdk.ErrNotConnected
	}

	// The outcome of the pump query is irrelevant; only its side effect of
	// draining inbound notifications matters.
	_, _ = c.handle.Exec(ctx, " ")

	if n, ok := c.handle.Notification(); ok {
		return &n, nil
	}
	return nil, nil
}

// Read-only attribute passthroughs. Each fails once the connection has been
// closed; none issues a server round trip.

// Host returns the connected host.
func (c *Connection) Host() (string, error) {
	if c.closed {
		return "", sdk.ErrNotConnected
	}
	return c.handle.Host(), nil
}

// Port returns the connected port.
func (c *Connection) Port() (int, error) {
	if c.closed {
		return 0, sdk.ErrNotConnected
	}
	return c.handle.Port(), nil
}

// Database returns the connected database name.
func (c *Connection) Database() (string, error) {
	if c.closed {
		return "", sdk.ErrNotConnected
	}
	return c.handle.Database(), nil
}

// Options returns the backend options the session was started with.
func (c *Connection) Options() (string, error) {
	if c.closed {
		return "", sdk.ErrNotConnected
	}
	return c.handle.Options(), nil
}

// DebugTTY returns the legacy debug target supplied at connect time.
func (c *Connection) DebugTTY() (string, error) {
	if c.closed {
		return "", sdk.ErrNotConnected
	}
	return c.handle.DebugTTY(), nil
}

// User returns the login role.
func (c *Connection) User() (string, error) {
	if c.closed {
		return "", sdk.ErrNotConnected
	}
	return c.handle.User(), nil
}

// LastError returns the diagnostic text of the most recent failed library
// call on this connection.
func (c *Connection) LastError() (string, error) {
	if c.closed {
		return "", sdk.ErrNotConnected
	}
	return c.handle.ErrorMessage(), nil
}

// Status reports whether the underlying handle is healthy.
func (c *Connection) Status() (bool, error) {
	if c.closed {
		return false, sdk.ErrNotConnected
	}
	return c.handle.Status(), nil
}
