package driver

import (
	"strconv"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestConnString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings Settings
		want     string
	}{
		{
			name:     "Empty settings defer to library defaults",
			settings: Settings{},
			want:     "",
		},
		{
			name:     "Full settings",
			settings: Settings{Host: "dbhost", Port: 5433, Database: "orders", User: "app", Password: "secret"},
			want:     "host=dbhost port=5433 dbname=orders user=app password=secret",
		},
		{
			name:     "Values with spaces are quoted",
			settings: Settings{Password: "two words"},
			want:     "password='two words'",
		},
		{
			name:     "Quotes and backslashes are escaped",
			settings: Settings{Password: `it's\here`},
			want:     `password='it\'s\\here'`,
		},
		{
			name:     "Debug target never reaches the connection string",
			settings: Settings{Host: "dbhost", DebugTTY: "/dev/tty1"},
			want:     "host=dbhost",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, connString(tc.settings))
		})
	}
}

func TestInsertOID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(16423), insertOID("INSERT 16423 1"))
	assert.Zero(t, insertOID("INSERT 0 1"))
	assert.Zero(t, insertOID("UPDATE 3"))
	assert.Zero(t, insertOID("SELECT 1"))
	assert.Zero(t, insertOID(""))
}

func TestCopyPatterns(t *testing.T) {
	t.Parallel()

	assert.True(t, copyInPattern.MatchString("copy t from stdin"))
	assert.True(t, copyInPattern.MatchString("  COPY schema.t (a, b)\nFROM STDIN"))
	assert.False(t, copyInPattern.MatchString("copy t to stdout"))
	assert.True(t, copyOutPattern.MatchString("COPY t TO STDOUT"))
	assert.False(t, copyOutPattern.MatchString("select 'copy t from stdin'x"))
}

func TestNotificationStack(t *testing.T) {
	t.Parallel()

	c := &PgxConn{}
	c.onNotification(nil, &pgconn.Notification{Channel: "older", PID: 100})
	c.onNotification(nil, &pgconn.Notification{Channel: "newest", PID: 200, Payload: "hello"})

	n, ok := c.Notification()
	assert.True(t, ok)
	assert.Equal(t, Notification{Channel: "newest", PID: 200, Payload: "hello"}, n)

	n, ok = c.Notification()
	assert.True(t, ok)
	assert.Equal(t, "older", n.Channel)

	_, ok = c.Notification()
	assert.False(t, ok)
}

// The notification callback fires on the copy goroutine while a copy is
// active; deliveries racing a concurrent pop must not be lost.
func TestNotificationStackConcurrentDelivery(t *testing.T) {
	t.Parallel()

	c := &PgxConn{}
	const deliveries = 100

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < deliveries; i++ {
			c.onNotification(nil, &pgconn.Notification{Channel: strconv.Itoa(i)})
		}
	}()

	popped := 0
	go func() {
		defer wg.Done()
		for i := 0; i < deliveries; i++ {
			if _, ok := c.Notification(); ok {
				popped++
			}
		}
	}()
	wg.Wait()

	for {
		if _, ok := c.Notification(); !ok {
			break
		}
		popped++
	}
	assert.Equal(t, deliveries, popped)
}

func TestBackendErrorText(t *testing.T) {
	t.Parallel()

	err := &BackendError{Severity: "ERROR", Code: "42P01", Message: `relation "t" does not exist`}
	assert.Equal(t, `ERROR: relation "t" does not exist (SQLSTATE 42P01)`, err.Error())

	bare := &BackendError{Message: "backend closed"}
	assert.Equal(t, "backend closed", bare.Error())
}
