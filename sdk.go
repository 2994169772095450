// Package sdk holds the shared surface of the PostgreSQL client SDK:
// the version string, the large-object mode and seek constants, the shared
// error sentinels, and the process-wide connection defaults registry
// consulted by conn.Connect when a parameter is left unset.
package sdk

import (
	"sync"

	"github.com/pgsql-project/sdk/driver"
)

// Version is the SDK version string.
const Version = "0.1.0"

// Large-object open modes, matching the server-side inversion flags.
const (
	ModeWrite = 0x20000
	ModeRead  = 0x40000
)

// Seek origins for largeobject.Seek.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// PortUnset is the sentinel the port accessors use for "no default set".
const PortUnset = -1

// defaults is the process-wide registry. Slots left at their zero value
// (PortUnset for the port) are skipped during connection parameter
// resolution. Access is mutex-guarded: unlike the embedding environments
// this surface grew up in, Go serializes nothing on our behalf.
var defaults = struct {
	mu       sync.Mutex
	settings driver.Settings
}{settings: driver.Settings{Port: PortUnset}}

// DefaultHost returns the default host slot, empty when unset.
func DefaultHost() string {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	return defaults.settings.Host
}

// SetDefaultHost replaces the default host slot and returns the previous
// value. An empty string clears the slot.
func SetDefaultHost(host string) string {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	prev := defaults.settings.Host
	defaults.settings.Host = host
	return prev
}

// DefaultDatabase returns the default database slot, empty when unset.
func DefaultDatabase() string {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	return defaults.settings.Database
}

// SetDefaultDatabase replaces the default database slot and returns the
// previous value. An empty string clears the slot.
func SetDefaultDatabase(database string) string {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	prev := defaults.settings.Database
	defaults.settings.Database = database
	return prev
}

// DefaultOptions returns the default backend-options slot, empty when unset.
func DefaultOptions() string {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	return defaults.settings.Options
}

// SetDefaultOptions replaces the default backend-options slot and returns
// the previous value. An empty string clears the slot.
func SetDefaultOptions(options string) string {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	prev := defaults.settings.Options
	defaults.settings.Options = options
	return prev
}

// DefaultDebugTTY returns the default debug-target slot, empty when unset.
func DefaultDebugTTY() string {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	return defaults.settings.DebugTTY
}

// SetDefaultDebugTTY replaces the default debug-target slot and returns the
// previous value. An empty string clears the slot.
func SetDefaultDebugTTY(tty string) string {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	prev := defaults.settings.DebugTTY
	defaults.settings.DebugTTY = tty
	return prev
}

// DefaultPort returns the default port slot, PortUnset when unset.
func DefaultPort() int {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	return defaults.settings.Port
}

// SetDefaultPort replaces the default port slot and returns the previous
// value. PortUnset clears the slot; negative values other than PortUnset
// are stored as PortUnset.
func SetDefaultPort(port int) int {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	prev := defaults.settings.Port
	if port < 0 {
		port = PortUnset
	}
	defaults.settings.Port = port
	return prev
}

// DefaultUser returns the default user slot, empty when unset.
func DefaultUser() string {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	return defaults.settings.User
}

// SetDefaultUser replaces the default user slot and returns the previous
// value. An empty string clears the slot.
func SetDefaultUser(user string) string {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	prev := defaults.settings.User
	defaults.settings.User = user
	return prev
}

// SetDefaultPassword replaces the default password slot and returns the
// previous value. An empty string clears the slot. There is deliberately no
// matching getter.
func SetDefaultPassword(password string) string {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	prev := defaults.settings.Password
	defaults.settings.Password = password
	return prev
}

// DefaultSettings returns a snapshot of the registry. The port is reported
// as 0 when unset so the snapshot can feed driver.Settings directly.
func DefaultSettings() driver.Settings {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	s := defaults.settings
	if s.Port == PortUnset {
		s.Port = 0
	}
	return s
}

// ResetDefaults clears every registry slot.
func ResetDefaults() {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()
	defaults.settings = driver.Settings{Port: PortUnset}
}
