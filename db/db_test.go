package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/pgsql-project/sdk"
	"github.com/pgsql-project/sdk/conn"
	"github.com/pgsql-project/sdk/drivermock"
)

// newSession dials a mock-backed session for tests.
func newSession(t *testing.T, cfg drivermock.Config) (*Session, *drivermock.Mock) {
	t.Helper()

	mock, err := drivermock.New(cfg)
	require.NoError(t, err, "drivermock")

	s, err := Connect(context.Background(), conn.Config{Connector: mock})
	require.NoError(t, err, "Connect")
	return s, mock
}

func TestLazyTransactionBegin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, mock := newSession(t, drivermock.Config{})

	cur, err := s.Cursor()
	require.NoError(t, err)

	require.NoError(t, cur.Execute(ctx, "insert into t values (1)"))
	assert.Equal(t, []string{"begin", "insert into t values (1)"}, mock.ExecLog)

	// The transaction is already open, no second begin.
	require.NoError(t, cur.Execute(ctx, "insert into t values (2)"))
	assert.Equal(t, []string{
		"begin",
		"insert into t values (1)",
		"insert into t values (2)",
	}, mock.ExecLog)
}

func TestCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, mock := newSession(t, drivermock.Config{})

	cur, err := s.Cursor()
	require.NoError(t, err)
	require.NoError(t, cur.Execute(ctx, "insert into t values (1)"))

	require.NoError(t, s.Commit(ctx))
	assert.Equal(t, "commit", mock.ExecLog[len(mock.ExecLog)-1])

	// Committing again without a pending transaction is a no-op.
	calls := len(mock.ExecLog)
	require.NoError(t, s.Commit(ctx))
	assert.Len(t, mock.ExecLog, calls)

	// The next statement opens a fresh transaction.
	require.NoError(t, cur.Execute(ctx, "insert into t values (2)"))
	assert.Equal(t, "begin", mock.ExecLog[calls])
}

func TestRollback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, mock := newSession(t, drivermock.Config{})

	cur, err := s.Cursor()
	require.NoError(t, err)
	require.NoError(t, cur.Execute(ctx, "insert into t values (1)"))

	require.NoError(t, s.Rollback(ctx))
	assert.Equal(t, "rollback", mock.ExecLog[len(mock.ExecLog)-1])

	calls := len(mock.ExecLog)
	require.NoError(t, s.Rollback(ctx))
	assert.Len(t, mock.ExecLog, calls, "rollback without a transaction is a no-op")
}

func TestCloseRollsBackPendingTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, mock := newSession(t, drivermock.Config{})

	cur, err := s.Cursor()
	require.NoError(t, err)
	require.NoError(t, cur.Execute(ctx, "insert into t values (1)"))

	require.NoError(t, s.Close(ctx))
	assert.Equal(t, "rollback", mock.ExecLog[len(mock.ExecLog)-1])
	assert.True(t, mock.Closed)

	assert.NoError(t, s.Close(ctx), "repeated close is a no-op")
}

func TestSessionAfterConnectionClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newSession(t, drivermock.Config{})
	require.NoError(t, s.Connection().Close(ctx))

	_, err := s.Cursor()
	assert.ErrorIs(t, err, sdk.ErrNotConnected)
	assert.ErrorIs(t, s.Commit(ctx), sdk.ErrNotConnected)
	assert.ErrorIs(t, s.Rollback(ctx), sdk.ErrNotConnected)
}

func TestWrapRequiresValidConnection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mock, err := drivermock.New(drivermock.Config{})
	require.NoError(t, err)

	c, err := conn.Connect(ctx, conn.Config{Connector: mock})
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))

	_, err = Wrap(c)
	assert.ErrorIs(t, err, sdk.ErrNotConnected)
}

func TestParseDSN(t *testing.T) {
	t.Parallel()

	config := ParseDSN("dbhost:orders:app:secret:-o opts")
	assert.Equal(t, "dbhost", config.Host)
	assert.Equal(t, "orders", config.Database)
	assert.Equal(t, "app", config.User)
	assert.Equal(t, "secret", config.Password)
	assert.Equal(t, "-o opts", config.Options)

	partial := ParseDSN("dbhost:orders")
	assert.Equal(t, "dbhost", partial.Host)
	assert.Equal(t, "orders", partial.Database)
	assert.Empty(t, partial.User)

	assert.Equal(t, conn.Config{}, ParseDSN(""))
}
