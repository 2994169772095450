package drivermock

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgsql-project/sdk/driver"
)

func TestConnectCapturesSettings(t *testing.T) {
	t.Parallel()

	mock, err := New(Config{})
	require.NoError(t, err)

	settings := driver.Settings{Host: "db.example.com", Port: 5432, Database: "demo"}
	conn, err := mock.Connect(context.Background(), settings)
	require.NoError(t, err)
	assert.Equal(t, settings, mock.Settings)
	assert.Same(t, mock, conn.(*Mock))
}

func TestConnectError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("refused")
	mock, err := New(Config{ConnectError: wantErr})
	require.NoError(t, err)

	_, err = mock.Connect(context.Background(), driver.Settings{})
	assert.ErrorIs(t, err, wantErr)
}

func TestExecValidatorAndQueue(t *testing.T) {
	t.Parallel()

	queued := &driver.Result{Status: driver.StatusTuples}
	mock, err := New(Config{
		SQLValidator: func(sql string) error {
			if sql == "bad" {
				return errors.New("rejected")
			}
			return nil
		},
		Results: []*driver.Result{queued},
	})
	require.NoError(t, err)

	res, err := mock.Exec(context.Background(), "select 1")
	require.NoError(t, err)
	assert.Same(t, queued, res)

	// Queue exhausted, a plain command result is served.
	res, err = mock.Exec(context.Background(), "select 2")
	require.NoError(t, err)
	assert.Equal(t, driver.StatusCommand, res.Status)

	_, err = mock.Exec(context.Background(), "bad")
	require.Error(t, err)
	assert.Equal(t, "rejected", mock.ErrorMessage())

	assert.Equal(t, []string{"select 1", "select 2", "bad"}, mock.ExecLog)
}

func TestCopyModeGating(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mock, err := New(Config{
		Results:      []*driver.Result{{Status: driver.StatusCopyOut}},
		CopyOutLines: []string{"a\t1\n"},
	})
	require.NoError(t, err)

	// Outside a copy both directions are rejected.
	assert.ErrorIs(t, mock.CopyPut(ctx, "x\n"), driver.ErrNoCopy)
	_, err = mock.CopyGet(ctx)
	assert.ErrorIs(t, err, driver.ErrNoCopy)
	assert.ErrorIs(t, mock.CopyEnd(ctx), driver.ErrNoCopy)

	_, err = mock.Exec(ctx, "copy t to stdout")
	require.NoError(t, err)

	line, err := mock.CopyGet(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a\t1\n", line)

	_, err = mock.CopyGet(ctx)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, mock.CopyEnd(ctx))
	assert.ErrorIs(t, mock.CopyEnd(ctx), driver.ErrNoCopy)
}

func TestFailSwitch(t *testing.T) {
	t.Parallel()

	mock, err := New(Config{Fail: true})
	require.NoError(t, err)

	_, err = mock.Exec(context.Background(), "select 1")
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.Equal(t, ErrOperationFailed.Error(), mock.ErrorMessage())
}

func TestLargeObjectStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mock, err := New(Config{})
	require.NoError(t, err)

	oid, err := mock.LoCreate(ctx, 0)
	require.NoError(t, err)
	require.NotZero(t, oid)

	fd, err := mock.LoOpen(ctx, oid, 0)
	require.NoError(t, err)

	n, err := mock.LoWrite(ctx, fd, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	pos, err := mock.LoSeek(ctx, fd, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, pos)

	data, err := mock.LoRead(ctx, fd, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	require.NoError(t, mock.LoClose(ctx, fd))
	assert.ErrorIs(t, mock.LoClose(ctx, fd), ErrUnknownFD)

	require.NoError(t, mock.LoUnlink(ctx, oid))
	_, err = mock.LoOpen(ctx, oid, 0)
	assert.ErrorIs(t, err, ErrUnknownOID)
}

func TestTabLine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1\tfoo\n", TabLine("1", "foo"))
	assert.Equal(t, "solo\n", TabLine("solo"))
}
