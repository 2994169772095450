package drivermock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pgsql-project/sdk/driver"
)

var (
	// ErrOperationFailed is returned when Fail is set without a custom error.
	ErrOperationFailed = errors.New("operation failed")

	// ErrUnknownOID is returned for large-object calls against an oid the
	// mock store has never seen.
	ErrUnknownOID = errors.New("unknown large object oid")

	// ErrUnknownFD is returned for descriptor calls against a descriptor
	// that is not open.
	ErrUnknownFD = errors.New("unknown large object descriptor")
)

// Config represents the configuration for creating a Mock instance.
type Config struct {
	// ConnectError makes Connect fail with this error.
	ConnectError error

	// SQLValidator validates every statement passed to Exec.
	SQLValidator func(sql string) error

	// Results is the queue of results Exec serves, one per call. When the
	// queue is exhausted Exec serves a plain command result.
	Results []*driver.Result

	// ExecError is returned by Exec after the validator passes.
	ExecError error

	// Fail makes every operation return Error, or ErrOperationFailed when
	// Error is nil.
	Fail bool

	// Error is the error to return when Fail is set.
	Error error

	// CopyOutLines is the data served by CopyGet, newline semantics already
	// stripped.
	CopyOutLines []string

	// CopyEndError is returned by CopyEnd to simulate a failed copy.
	CopyEndError error

	// Notifications is the pending notification stack, most recent last.
	Notifications []driver.Notification

	// FD is the socket descriptor Socket reports.
	FD int

	// LoCreateZero makes LoCreate report oid zero, the library's creation
	// failure signal.
	LoCreateZero bool

	// LoWriteLimit caps the bytes a single LoWrite accepts, to exercise the
	// truncation path. Zero means unlimited.
	LoWriteLimit int
}

// Mock simulates the wrapped client library with validation, configurable
// responses, and an in-memory large-object store. It implements both
// driver.Connector and driver.Conn.
type Mock struct {
	Config

	// Settings captures what Connect received.
	Settings driver.Settings

	// ExecLog records every statement passed to Exec, in order.
	ExecLog []string

	// CopyInLines records every line sent through CopyPut.
	CopyInLines []string

	// Resets counts Reset calls.
	Resets int

	// Closed reports whether Close has been called.
	Closed bool

	copyMode  driver.Status // StatusCopyIn, StatusCopyOut, or StatusCommand for none
	copyServe int

	lastErr string

	objects map[uint32][]byte
	nextOID uint32
	fds     map[int32]*cursor
	nextFD  int32
}

type cursor struct {
	oid uint32
	pos int64
}

// New creates a new Mock based on the provided Config.
func New(config Config) (*Mock, error) {
	return &Mock{
		Config:   config,
		copyMode: driver.StatusCommand,
		objects:  make(map[uint32][]byte),
		nextOID:  24576,
		fds:      make(map[int32]*cursor),
	}, nil
}

var (
	_ driver.Connector = (*Mock)(nil)
	_ driver.Conn      = (*Mock)(nil)
)

// Connect captures the resolved settings and hands back the mock itself.
func (m *Mock) Connect(_ context.Context, settings driver.Settings) (driver.Conn, error) {
	if m.ConnectError != nil {
		return nil, m.ConnectError
	}
	if err := m.failErr(); err != nil {
		return nil, err
	}
	m.Settings = settings
	return m, nil
}

// Exec validates the statement, records it, and serves the next queued
// result. Copy results switch the mock into the matching copy mode.
func (m *Mock) Exec(_ context.Context, sql string) (*driver.Result, error) {
	m.ExecLog = append(m.ExecLog, sql)

	if err := m.failErr(); err != nil {
		return nil, m.fail(err)
	}
	if m.SQLValidator != nil {
		if err := m.SQLValidator(sql); err != nil {
			return nil, m.fail(err)
		}
	}
	if m.ExecError != nil {
		return nil, m.fail(m.ExecError)
	}

	res := &driver.Result{Status: driver.StatusCommand}
	if len(m.Results) > 0 {
		res = m.Results[0]
		m.Results = m.Results[1:]
	}

	switch res.Status {
	case driver.StatusCopyIn, driver.StatusCopyOut:
		m.copyMode = res.Status
		m.copyServe = 0
	}

	m.lastErr = ""
	return res, nil
}

// CopyPut records a copy-in line.
func (m *Mock) CopyPut(_ context.Context, line string) error {
	if m.copyMode != driver.StatusCopyIn {
		return driver.ErrNoCopy
	}
	if err := m.failErr(); err != nil {
		return m.fail(err)
	}
	m.CopyInLines = append(m.CopyInLines, line)
	return nil
}

// CopyGet serves the configured copy-out lines, then io.EOF.
func (m *Mock) CopyGet(_ context.Context) (string, error) {
	if m.copyMode != driver.StatusCopyOut {
		return "", driver.ErrNoCopy
	}
	if err := m.failErr(); err != nil {
		return "", m.fail(err)
	}
	if m.copyServe >= len(m.CopyOutLines) {
		return "", io.EOF
	}

	line := m.CopyOutLines[m.copyServe]
	if len(line) >= driver.MaxLineSize {
		return "", m.fail(driver.ErrLineTooLong)
	}
	m.copyServe++
	return line, nil
}

// CopyEnd leaves copy mode and reports the configured outcome.
func (m *Mock) CopyEnd(_ context.Context) error {
	if m.copyMode != driver.StatusCopyIn && m.copyMode != driver.StatusCopyOut {
		return driver.ErrNoCopy
	}
	m.copyMode = driver.StatusCommand
	if m.CopyEndError != nil {
		return m.fail(m.CopyEndError)
	}
	return nil
}

// Notification pops the most recent pending notification.
func (m *Mock) Notification() (driver.Notification, bool) {
	if len(m.Notifications) == 0 {
		return driver.Notification{}, false
	}
	n := m.Notifications[len(m.Notifications)-1]
	m.Notifications = m.Notifications[:len(m.Notifications)-1]
	return n, true
}

// Reset counts the call and reports the fail switch.
func (m *Mock) Reset(_ context.Context) error {
	if err := m.failErr(); err != nil {
		return m.fail(err)
	}
	m.Resets++
	return nil
}

// Close marks the mock closed.
func (m *Mock) Close(_ context.Context) error {
	m.Closed = true
	return nil
}

// Socket reports the configured descriptor.
func (m *Mock) Socket() (int, error) {
	if err := m.failErr(); err != nil {
		return -1, m.fail(err)
	}
	return m.FD, nil
}

// Attribute passthroughs report the captured settings.

func (m *Mock) Host() string {
	if m.Settings.Host == "" {
		return "localhost"
	}
	return m.Settings.Host
}

func (m *Mock) Port() int            { return m.Settings.Port }
func (m *Mock) Database() string     { return m.Settings.Database }
func (m *Mock) Options() string      { return m.Settings.Options }
func (m *Mock) DebugTTY() string     { return m.Settings.DebugTTY }
func (m *Mock) User() string         { return m.Settings.User }
func (m *Mock) ErrorMessage() string { return m.lastErr }
func (m *Mock) Status() bool         { return !m.Closed }

// Object returns the stored content of a large object, for assertions.
func (m *Mock) Object(oid uint32) ([]byte, bool) {
	data, ok := m.objects[oid]
	return data, ok
}

// Seed stores content under a fresh oid and returns it, for assertions.
func (m *Mock) Seed(data []byte) uint32 {
	oid := m.nextOID
	m.nextOID++
	m.objects[oid] = append([]byte(nil), data...)
	return oid
}

// LoCreate allocates a fresh, empty large object.
func (m *Mock) LoCreate(_ context.Context, _ int32) (uint32, error) {
	if err := m.failErr(); err != nil {
		return 0, m.fail(err)
	}
	if m.LoCreateZero {
		return 0, nil
	}
	oid := m.nextOID
	m.nextOID++
	m.objects[oid] = nil
	return oid, nil
}

// LoOpen opens a descriptor positioned at the start of the object.
func (m *Mock) LoOpen(_ context.Context, oid uint32, _ int32) (int32, error) {
	if err := m.failErr(); err != nil {
		return -1, m.fail(err)
	}
	if _, ok := m.objects[oid]; !ok {
		return -1, m.fail(fmt.Errorf("%w: %d", ErrUnknownOID, oid))
	}
	fd := m.nextFD
	m.nextFD++
	m.fds[fd] = &cursor{oid: oid}
	return fd, nil
}

// LoClose releases a descriptor.
func (m *Mock) LoClose(_ context.Context, fd int32) error {
	if err := m.failErr(); err != nil {
		return m.fail(err)
	}
	if _, ok := m.fds[fd]; !ok {
		return m.fail(fmt.Errorf("%w: %d", ErrUnknownFD, fd))
	}
	delete(m.fds, fd)
	return nil
}

// LoRead reads up to size bytes at the descriptor position. Short reads at
// end of object are not an error.
func (m *Mock) LoRead(_ context.Context, fd int32, size int) ([]byte, error) {
	cur, err := m.cursor(fd)
	if err != nil {
		return nil, err
	}

	data := m.objects[cur.oid]
	if cur.pos >= int64(len(data)) {
		return nil, nil
	}
	end := cur.pos + int64(size)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	out := append([]byte(nil), data[cur.pos:end]...)
	cur.pos = end
	return out, nil
}

// LoWrite writes at the descriptor position, honoring LoWriteLimit.
func (m *Mock) LoWrite(_ context.Context, fd int32, data []byte) (int, error) {
	cur, err := m.cursor(fd)
	if err != nil {
		return 0, err
	}

	accepted := data
	if m.LoWriteLimit > 0 && len(data) > m.LoWriteLimit {
		accepted = data[:m.LoWriteLimit]
	}

	obj := m.objects[cur.oid]
	end := cur.pos + int64(len(accepted))
	if int64(len(obj)) < end {
		grown := make([]byte, end)
		copy(grown, obj)
		obj = grown
	}
	copy(obj[cur.pos:end], accepted)
	m.objects[cur.oid] = obj
	cur.pos = end
	return len(accepted), nil
}

// LoSeek repositions the descriptor.
func (m *Mock) LoSeek(_ context.Context, fd int32, offset int64, whence int32) (int64, error) {
	cur, err := m.cursor(fd)
	if err != nil {
		return -1, err
	}

	var base int64
	switch whence {
	case 0:
		base = 0
	case 1:
		base = cur.pos
	case 2:
		base = int64(len(m.objects[cur.oid]))
	default:
		return -1, m.fail(fmt.Errorf("invalid whence %d", whence))
	}

	pos := base + offset
	if pos < 0 {
		return -1, m.fail(fmt.Errorf("seek before start of object"))
	}
	cur.pos = pos
	return pos, nil
}

// LoTell reports the descriptor position.
func (m *Mock) LoTell(_ context.Context, fd int32) (int64, error) {
	cur, err := m.cursor(fd)
	if err != nil {
		return -1, err
	}
	return cur.pos, nil
}

// LoUnlink removes the object from the store.
func (m *Mock) LoUnlink(_ context.Context, oid uint32) error {
	if err := m.failErr(); err != nil {
		return m.fail(err)
	}
	if _, ok := m.objects[oid]; !ok {
		return m.fail(fmt.Errorf("%w: %d", ErrUnknownOID, oid))
	}
	delete(m.objects, oid)
	return nil
}

func (m *Mock) cursor(fd int32) (*cursor, error) {
	if err := m.failErr(); err != nil {
		return nil, m.fail(err)
	}
	cur, ok := m.fds[fd]
	if !ok {
		return nil, m.fail(fmt.Errorf("%w: %d", ErrUnknownFD, fd))
	}
	return cur, nil
}

func (m *Mock) failErr() error {
	if !m.Fail {
		return nil
	}
	if m.Error != nil {
		return m.Error
	}
	return ErrOperationFailed
}

func (m *Mock) fail(err error) error {
	m.lastErr = err.Error()
	return err
}

// TabLine joins fields with tabs and a trailing newline, matching the copy
// text format InsertRows produces. Test helper.
func TabLine(fields ...string) string {
	return strings.Join(fields, "\t") + "\n"
}
