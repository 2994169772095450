package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/pgsql-project/sdk"
	"github.com/pgsql-project/sdk/conn"
)

// ErrTransaction wraps a failed transaction-control command.
var ErrTransaction = errors.New("transaction command failed")

// Session layers transaction management and cursors over a connection. A
// transaction is opened lazily by the first statement a cursor executes and
// stays pending until Commit or Rollback; Close rolls back anything still
// pending. Like the connection it wraps, a Session is single-goroutine.
type Session struct {
	conn *conn.Connection
	inTx bool

	// pg_type lookups are cached per session; type oids are stable for the
	// lifetime of a connection.
	types map[uint32]TypeInfo
}

// TypeInfo describes a backend data type by name and internal size.
type TypeInfo struct {
	// Name is the type name from pg_type.
	Name string

	// Size is the internal size in bytes, negative for variable-length types.
	Size int
}

// Connect dials a connection and wraps it in a Session.
func Connect(ctx context.Context, config conn.Config) (*Session, error) {
	c, err := conn.Connect(ctx, config)
	if err != nil {
		return nil, err
	}
	return Wrap(c)
}

// Wrap builds a Session around an existing connection. The connection must
// currently be valid.
func Wrap(c *conn.Connection) (*Session, error) {
	if _, err := c.Handle(); err != nil {
		return nil, err
	}
	return &Session{conn: c, types: make(map[uint32]TypeInfo)}, nil
}

// ParseDSN splits a colon-separated connection string of the form
// host:database:user:password:options into a connection Config. Every part
// is optional; trailing parts may be omitted entirely.
func ParseDSN(dsn string) conn.Config {
	var config conn.Config
	parts := strings.Split(dsn, ":")
	fields := []*string{
		&config.Host, &config.Database, &config.User,
		&config.Password, &config.Options,
	}
	for i, part := range parts {
		if i >= len(fields) {
			break
		}
		*fields[i] = part
	}
	return config
}

// Connection returns the wrapped connection.
func (s *Session) Connection() *conn.Connection { return s.conn }

// Cursor returns a new cursor bound to the session.
func (s *Session) Cursor() (*Cursor, error) {
	if _, err := s.conn.Handle(); err != nil {
		return nil, err
	}
	return &Cursor{session: s, arraysize: 1, rowcount: -1}, nil
}

// Commit ends the pending transaction, making its changes durable. Without
// a pending transaction it is a no-op.
func (s *Session) Commit(ctx context.Context) error {
	if _, err := s.conn.Handle(); err != nil {
		return err
	}
	if !s.inTx {
		return nil
	}
	s.inTx = false
	if _, err := s.conn.Query(ctx, "commit"); err != nil {
		return errors.Join(ErrTransaction, err)
	}
	return nil
}

// Rollback discards the pending transaction. Without a pending transaction
// it is a no-op.
func (s *Session) Rollback(ctx context.Context) error {
	if _, err := s.conn.Handle(); err != nil {
		return err
	}
	if !s.inTx {
		return nil
	}
	s.inTx = false
	if _, err := s.conn.Query(ctx, "rollback"); err != nil {
		return errors.Join(ErrTransaction, err)
	}
	return nil
}

// Close rolls back any pending transaction and closes the wrapped
// connection. Repeated close is a no-op, matching the connection.
func (s *Session) Close(ctx context.Context) error {
	if s.inTx {
		s.inTx = false
		_, _ = s.conn.Query(ctx, "rollback")
	}
	return s.conn.Close(ctx)
}

// begin opens the lazy transaction if none is pending.
func (s *Session) begin(ctx context.Context) error {
	if s.inTx {
		return nil
	}
	if _, err := s.conn.Query(ctx, "begin"); err != nil {
		return errors.Join(ErrTransaction, err)
	}
	s.inTx = true
	return nil
}

// typeInfo resolves a type oid through pg_type, serving repeats from the
// session cache.
func (s *Session) typeInfo(ctx context.Context, oid uint32) (TypeInfo, error) {
	if info, ok := s.types[oid]; ok {
		return info, nil
	}

	resp, err := s.conn.Query(ctx, fmt.Sprintf("select typname, typlen from pg_type where oid = %d", oid))
	if err != nil {
		return TypeInfo{}, err
	}
	if resp.Result == nil {
		return TypeInfo{}, errors.Join(sdk.ErrBadResponse, fmt.Errorf("pg_type lookup for oid %d returned no rows", oid))
	}

	rows := resp.Result.Rows()
	if len(rows) != 1 || len(rows[0]) != 2 {
		return TypeInfo{}, errors.Join(sdk.ErrBadResponse, fmt.Errorf("pg_type lookup for oid %d: unexpected shape", oid))
	}

	name, _ := rows[0][0].(string)
	size, _ := rows[0][1].(int64)
	info := TypeInfo{Name: name, Size: int(size)}
	s.types[oid] = info
	return info, nil
}
