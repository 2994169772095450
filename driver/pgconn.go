package driver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// Statement classification for the raw copy interface. The protocol only
// announces copy mode after the statement is sent, but pgconn drives a copy
// through dedicated reader/writer calls, so the statement is classified up
// front instead.
var (
	copyInPattern  = regexp.MustCompile(`(?is)^\s*copy\s.*\bfrom\s+stdin\b`)
	copyOutPattern = regexp.MustCompile(`(?is)^\s*copy\s.*\bto\s+stdout\b`)
)

type copyMode int

const (
	copyNone copyMode = iota
	copyIn
	copyOut
)

// PgxConnector establishes connections backed by pgconn.
type PgxConnector struct{}

// Connect logs in with the resolved settings and returns a pgconn-backed
// handle. Unset settings fall back to the libpq environment variables and
// built-in defaults, which pgconn resolves itself.
func (PgxConnector) Connect(ctx context.Context, settings Settings) (Conn, error) {
	cfg, err := pgconn.ParseConfig(connString(settings))
	if err != nil {
		return nil, err
	}

	c := &PgxConn{settings: settings, config: cfg}
	cfg.OnNotification = c.onNotification

	pg, err := pgconn.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, normalizeError(err)
	}

	c.pg = pg
	return c, nil
}

// PgxConn is the production Conn implementation over pgconn.PgConn.
type PgxConn struct {
	pg       *pgconn.PgConn
	config   *pgconn.Config
	settings Settings
	lastErr  string

	// The notification callback fires on the copy goroutine while a copy is
	// active, so the pending slice needs its own lock even though the handle
	// is otherwise single-goroutine.
	notifyMu      sync.Mutex
	notifications []Notification

	copy     copyMode
	copyW    *io.PipeWriter
	copyR    *bufio.Reader
	copyPipe *io.PipeReader
	copyDone chan error
}

var _ Conn = (*PgxConn)(nil)

// Exec runs a single statement and classifies its outcome.
func (c *PgxConn) Exec(ctx context.Context, sql string) (*Result, error) {
	switch {
	case copyInPattern.MatchString(sql):
		return c.startCopyIn(ctx, sql)
	case copyOutPattern.MatchString(sql):
		return c.startCopyOut(ctx, sql)
	}

	results, err := c.pg.Exec(ctx, sql).ReadAll()
	if err != nil {
		return nil, c.fail(normalizeError(err))
	}
	c.lastErr = ""

	if len(results) == 0 {
		return &Result{Status: StatusEmptyQuery}, nil
	}

	// Multi-statement strings report the last result, matching the wrapped
	// library's single-result view of PQexec.
	last := results[len(results)-1]

	if len(last.FieldDescriptions) > 0 {
		res := &Result{Status: StatusTuples, Rows: last.Rows}
		res.Columns = make([]Column, len(last.FieldDescriptions))
		for i, fd := range last.FieldDescriptions {
			res.Columns[i] = Column{Name: fd.Name, TypeOID: fd.DataTypeOID}
		}
		return res, nil
	}

	return &Result{
		Status:   StatusCommand,
		OID:      insertOID(last.CommandTag.String()),
		Affected: last.CommandTag.RowsAffected(),
	}, nil
}

// insertOID extracts the object id from an INSERT command tag. Servers since
// the row-oid removal always report zero, which callers treat as absent.
func insertOID(tag string) uint32 {
	fields := strings.Fields(tag)
	if len(fields) != 3 || fields[0] != "INSERT" {
		return 0
	}
	oid, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(oid)
}

func (c *PgxConn) startCopyIn(ctx context.Context, sql string) (*Result, error) {
	if c.copy != copyNone {
		return nil, c.fail(errors.New("copy already in progress"))
	}

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := c.pg.CopyFrom(ctx, pr, sql)
		pr.CloseWithError(err)
		done <- normalizeError(err)
	}()

	c.copy = copyIn
	c.copyW = pw
	c.copyDone = done
	c.lastErr = ""
	return &Result{Status: StatusCopyIn}, nil
}

func (c *PgxConn) startCopyOut(ctx context.Context, sql string) (*Result, error) {
	if c.copy != copyNone {
		return nil, c.fail(errors.New("copy already in progress"))
	}

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := c.pg.CopyTo(ctx, pw, sql)
		pw.CloseWithError(err)
		done <- normalizeError(err)
	}()

	c.copy = copyOut
	c.copyPipe = pr
	c.copyR = bufio.NewReaderSize(pr, MaxLineSize)
	c.copyDone = done
	c.lastErr = ""
	return &Result{Status: StatusCopyOut}, nil
}

// CopyPut sends one raw line on the active copy-in channel.
func (c *PgxConn) CopyPut(_ context.Context, line string) error {
	if c.copy != copyIn {
		return ErrNoCopy
	}
	if _, err := io.WriteString(c.copyW, line); err != nil {
		return c.fail(err)
	}
	return nil
}

// CopyGet reads one raw line from the active copy-out channel.
func (c *PgxConn) CopyGet(_ context.Context) (string, error) {
	if c.copy != copyOut {
		return "", ErrNoCopy
	}

	line, err := c.copyR.ReadSlice('\n')
	switch {
	case err == nil:
		return strings.TrimSuffix(string(line), "\n"), nil
	case errors.Is(err, bufio.ErrBufferFull):
		return "", c.fail(ErrLineTooLong)
	case errors.Is(err, io.EOF):
		if len(line) > 0 {
			return string(line), nil
		}
		return "", io.EOF
	default:
		return "", c.fail(err)
	}
}

// CopyEnd terminates the active copy channel and reports its outcome.
func (c *PgxConn) CopyEnd(_ context.Context) error {
	switch c.copy {
	case copyIn:
		c.copyW.Close()
	case copyOut:
		c.copyPipe.CloseWithError(io.ErrClosedPipe)
	default:
		return ErrNoCopy
	}

	err := <-c.copyDone
	c.copy = copyNone
	c.copyW = nil
	c.copyR = nil
	c.copyPipe = nil
	c.copyDone = nil

	// A closed copy-out pipe is the expected teardown path, not a failure.
	if errors.Is(err, io.ErrClosedPipe) {
		err = nil
	}
	if err != nil {
		return c.fail(err)
	}
	c.lastErr = ""
	return nil
}

func (c *PgxConn) onNotification(_ *pgconn.PgConn, n *pgconn.Notification) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.notifications = append(c.notifications, Notification{
		Channel: n.Channel,
		PID:     n.PID,
		Payload: n.Payload,
	})
}

// Notification pops the most recent pending notification.
func (c *PgxConn) Notification() (Notification, bool) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if len(c.notifications) == 0 {
		return Notification{}, false
	}
	n := c.notifications[len(c.notifications)-1]
	c.notifications = c.notifications[:len(c.notifications)-1]
	return n, true
}

// Reset re-establishes the connection. pgconn has no in-place reset, so the
// old handle is closed and a fresh one dialed with the stored configuration.
func (c *PgxConn) Reset(ctx context.Context) error {
	_ = c.pg.Close(ctx)

	pg, err := pgconn.ConnectConfig(ctx, c.config)
	if err != nil {
		return c.fail(normalizeError(err))
	}

	c.pg = pg
	c.notifyMu.Lock()
	c.notifications = nil
	c.notifyMu.Unlock()
	c.copy = copyNone
	c.lastErr = ""
	return nil
}

// Close releases the handle.
func (c *PgxConn) Close(ctx context.Context) error {
	return c.pg.Close(ctx)
}

// Socket returns the file descriptor of the underlying network connection.
func (c *PgxConn) Socket() (int, error) {
	return socketFD(c.pg.Conn())
}

func socketFD(nc net.Conn) (int, error) {
	sc, ok := nc.(syscall.Conn)
	if !ok {
		return -1, ErrNotSocket
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}

	var fd uintptr
	if err := raw.Control(func(p uintptr) { fd = p }); err != nil {
		return -1, err
	}
	return int(fd), nil
}

// Host reports the connected host, defaulting to localhost when unset.
func (c *PgxConn) Host() string {
	if c.config.Host != "" {
		return c.config.Host
	}
	return "localhost"
}

// Port reports the connected port.
func (c *PgxConn) Port() int { return int(c.config.Port) }

// Database reports the connected database name.
func (c *PgxConn) Database() string { return c.config.Database }

// Options reports the backend options the session was started with.
func (c *PgxConn) Options() string { return c.settings.Options }

// DebugTTY reports the legacy debug target the caller supplied.
func (c *PgxConn) DebugTTY() string { return c.settings.DebugTTY }

// User reports the login role.
func (c *PgxConn) User() string { return c.config.User }

// ErrorMessage reports the diagnostic of the most recent failure.
func (c *PgxConn) ErrorMessage() string { return c.lastErr }

// Status reports whether the handle is healthy.
func (c *PgxConn) Status() bool { return !c.pg.IsClosed() }

// Large-object calls are issued as server-side function invocations, the
// same approach the pgx large-object support takes.

const (
	oidInt4  = 23
	oidBytea = 17
)

// LoCreate creates a new large object and returns its oid.
func (c *PgxConn) LoCreate(ctx context.Context, mode int32) (uint32, error) {
	v, err := c.callInt(ctx, "select lo_creat($1)", textArg(int64(mode)))
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// LoOpen opens a large object and returns its descriptor.
func (c *PgxConn) LoOpen(ctx context.Context, oid uint32, mode int32) (int32, error) {
	v, err := c.callInt(ctx, "select lo_open($1, $2)", textArg(int64(oid)), textArg(int64(mode)))
	if err != nil {
		return -1, err
	}
	return int32(v), nil
}

// LoClose closes a large-object descriptor.
func (c *PgxConn) LoClose(ctx context.Context, fd int32) error {
	_, err := c.callInt(ctx, "select lo_close($1)", textArg(int64(fd)))
	return err
}

// LoRead reads up to size bytes from a large-object descriptor.
func (c *PgxConn) LoRead(ctx context.Context, fd int32, size int) ([]byte, error) {
	rr := c.pg.ExecParams(ctx,
		"select loread($1, $2)",
		[][]byte{textArg(int64(fd)), textArg(int64(size))},
		nil, nil,
		[]int16{1}, // binary result avoids bytea text decoding
	)
	res := rr.Read()
	if res.Err != nil {
		return nil, c.fail(normalizeError(res.Err))
	}
	if len(res.Rows) != 1 || len(res.Rows[0]) != 1 {
		return nil, c.fail(fmt.Errorf("loread: unexpected result shape"))
	}
	c.lastErr = ""
	return res.Rows[0][0], nil
}

// LoWrite writes data to a large-object descriptor and reports the number of
// bytes the server accepted.
func (c *PgxConn) LoWrite(ctx context.Context, fd int32, data []byte) (int, error) {
	rr := c.pg.ExecParams(ctx,
		"select lowrite($1, $2)",
		[][]byte{textArg(int64(fd)), data},
		[]uint32{oidInt4, oidBytea},
		[]int16{0, 1}, // descriptor in text, payload in binary
		nil,
	)
	res := rr.Read()
	if res.Err != nil {
		return 0, c.fail(normalizeError(res.Err))
	}
	if len(res.Rows) != 1 || len(res.Rows[0]) != 1 {
		return 0, c.fail(fmt.Errorf("lowrite: unexpected result shape"))
	}
	n, err := strconv.Atoi(string(res.Rows[0][0]))
	if err != nil {
		return 0, c.fail(fmt.Errorf("lowrite: %w", err))
	}
	c.lastErr = ""
	return n, nil
}

// LoSeek repositions a large-object descriptor.
func (c *PgxConn) LoSeek(ctx context.Context, fd int32, offset int64, whence int32) (int64, error) {
	return c.callInt(ctx, "select lo_lseek64($1, $2, $3)",
		textArg(int64(fd)), textArg(offset), textArg(int64(whence)))
}

// LoTell reports the current position of a large-object descriptor.
func (c *PgxConn) LoTell(ctx context.Context, fd int32) (int64, error) {
	return c.callInt(ctx, "select lo_tell64($1)", textArg(int64(fd)))
}

// LoUnlink removes a large object.
func (c *PgxConn) LoUnlink(ctx context.Context, oid uint32) error {
	_, err := c.callInt(ctx, "select lo_unlink($1)", textArg(int64(oid)))
	return err
}

// callInt invokes a server-side function with text-format arguments and
// parses its single integer result.
func (c *PgxConn) callInt(ctx context.Context, sql string, args ...[]byte) (int64, error) {
	rr := c.pg.ExecParams(ctx, sql, args, nil, nil, nil)
	res := rr.Read()
	if res.Err != nil {
		return 0, c.fail(normalizeError(res.Err))
	}
	if len(res.Rows) != 1 || len(res.Rows[0]) != 1 || res.Rows[0][0] == nil {
		return 0, c.fail(fmt.Errorf("%s: unexpected result shape", sql))
	}
	v, err := strconv.ParseInt(string(res.Rows[0][0]), 10, 64)
	if err != nil {
		return 0, c.fail(fmt.Errorf("%s: %w", sql, err))
	}
	c.lastErr = ""
	return v, nil
}

func textArg(v int64) []byte {
	return []byte(strconv.FormatInt(v, 10))
}

// fail records the diagnostic of the most recent failure before returning it.
func (c *PgxConn) fail(err error) error {
	c.lastErr = err.Error()
	return err
}

// normalizeError converts backend diagnostics into BackendError so callers
// can distinguish them from transport failures without importing pgconn.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &BackendError{
			Severity: pgErr.Severity,
			Code:     pgErr.Code,
			Message:  pgErr.Message,
		}
	}
	return err
}

// connString renders the settings as a keyword/value connection string.
// Unset fields stay out of the string so pgconn applies the libpq
// environment variables and built-in defaults.
func connString(s Settings) string {
	var parts []string
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+quoteValue(value))
		}
	}

	add("host", s.Host)
	if s.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", s.Port))
	}
	add("dbname", s.Database)
	add("options", s.Options)
	add("user", s.User)
	add("password", s.Password)

	return strings.Join(parts, " ")
}

func quoteValue(v string) string {
	if !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
