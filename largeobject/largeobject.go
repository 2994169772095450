package largeobject

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	sdk "github.com/pgsql-project/sdk"
	"github.com/pgsql-project/sdk/conn"
	"github.com/pgsql-project/sdk/driver"
)

var (
	// ErrInvalidOID indicates an object whose identifier is zero, either
	// supplied by the caller or after Unlink.
	ErrInvalidOID = errors.New("object is not valid (null oid)")

	// ErrNotOpen indicates a descriptor operation on a closed object.
	ErrNotOpen = errors.New("object is not opened")

	// ErrAlreadyOpen indicates an open on an already-open object.
	ErrAlreadyOpen = errors.New("object is already opened")

	// ErrCreateFailed means the library reported a zero identifier.
	ErrCreateFailed = errors.New("can't create large object")

	// ErrBadSize indicates a non-positive read size.
	ErrBadSize = errors.New("size must be positive")

	// ErrTruncated means the library accepted fewer bytes than were written.
	ErrTruncated = errors.New("buffer truncated during write")

	// ErrIO wraps a library-reported large-object failure.
	ErrIO = errors.New("large object I/O failed")
)

// importChunk is the read/write unit for file import and export.
const importChunk = 8192

// LargeObject wraps a server-side object identifier plus an optionally open
// descriptor, scoped to one connection. The object keeps a reference to its
// owning connection but never outlives the connection's validity checks:
// descriptor operations fail once the connection is closed.
type LargeObject struct {
	conn *conn.Connection
	oid  uint32
	fd   int32
}

// Create makes a new server-side large object and returns its wrapper in
// the closed state. A zero identifier from the library is a creation
// failure.
func Create(ctx context.Context, c *conn.Connection, mode int) (*LargeObject, error) {
	handle, err := c.Handle()
	if err != nil {
		return nil, err
	}

	oid, err := handle.LoCreate(ctx, int32(mode))
	if err != nil {
		return nil, errors.Join(ErrCreateFailed, err)
	}
	if oid == 0 {
		return nil, ErrCreateFailed
	}

	return &LargeObject{conn: c, oid: oid, fd: -1}, nil
}

// ByOID wraps an existing large object known by its identifier. A zero
// identifier is rejected before any library call.
func ByOID(c *conn.Connection, oid uint32) (*LargeObject, error) {
	if oid == 0 {
		return nil, ErrInvalidOID
	}
	if _, err := c.Handle(); err != nil {
		return nil, err
	}
	return &LargeObject{conn: c, oid: oid, fd: -1}, nil
}

// Import creates a large object and fills it with the contents of a local
// file, returning the wrapper in the closed state.
func Import(ctx context.Context, c *conn.Connection, path string) (*LargeObject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrIO, err)
	}
	defer f.Close()

	lo, err := Create(ctx, c, sdk.ModeRead|sdk.ModeWrite)
	if err != nil {
		return nil, err
	}
	if err := lo.Open(ctx, sdk.ModeWrite); err != nil {
		_ = lo.Unlink(ctx)
		return nil, err
	}

	// Failure past this point would otherwise orphan the created object
	// server-side, so the error paths unlink it before returning.
	buf := make([]byte, importChunk)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := lo.Write(ctx, buf[:n]); err != nil {
				_ = lo.Close(ctx)
				_ = lo.Unlink(ctx)
				return nil, err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			_ = lo.Close(ctx)
			_ = lo.Unlink(ctx)
			return nil, errors.Join(ErrIO, readErr)
		}
	}

	if err := lo.Close(ctx); err != nil {
		return nil, err
	}
	return lo, nil
}

// OID returns the object identifier, zero once unlinked.
func (l *LargeObject) OID() uint32 { return l.oid }

// Connection returns the owning connection wrapper.
func (l *LargeObject) Connection() *conn.Connection { return l.conn }

// LastError returns the owning connection's most recent library diagnostic.
func (l *LargeObject) LastError() (string, error) {
	return l.conn.LastError()
}

// Open opens the object in the given mode. The object must currently be
// closed and its identifier valid.
func (l *LargeObject) Open(ctx context.Context, mode int) error {
	handle, err := l.checkClosed()
	if err != nil {
		return err
	}

	fd, err := handle.LoOpen(ctx, l.oid, int32(mode))
	if err != nil {
		return errors.Join(ErrIO, err)
	}
	l.fd = fd
	return nil
}

// Close closes the open descriptor. The object stays valid and can be
// reopened.
func (l *LargeObject) Close(ctx context.Context) error {
	handle, err := l.checkOpen()
	if err != nil {
		return err
	}

	if err := handle.LoClose(ctx, l.fd); err != nil {
		return errors.Join(ErrIO, err)
	}
	l.fd = -1
	return nil
}

// Read returns up to size bytes from the current position. A short read at
// the end of the object is not an error.
func (l *LargeObject) Read(ctx context.Context, size int) ([]byte, error) {
	handle, err := l.checkOpen()
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, ErrBadSize
	}

	data, err := handle.LoRead(ctx, l.fd, size)
	if err != nil {
		return nil, errors.Join(ErrIO, err)
	}
	return data, nil
}

// Write sends buf at the current position. Accepting fewer bytes than the
// buffer holds is reported as truncation; bytes already sent are not rolled
// back, matching the library's own lack of atomicity for this call.
func (l *LargeObject) Write(ctx context.Context, buf []byte) error {
	handle, err := l.checkOpen()
	if err != nil {
		return err
	}

	n, err := handle.LoWrite(ctx, l.fd, buf)
	if err != nil {
		return errors.Join(ErrIO, err)
	}
	if n < len(buf) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrTruncated, n, len(buf))
	}
	return nil
}

// Seek repositions the descriptor and returns the new position. Whence is
// one of sdk.SeekSet, sdk.SeekCur, sdk.SeekEnd.
func (l *LargeObject) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	handle, err := l.checkOpen()
	if err != nil {
		return -1, err
	}

	pos, err := handle.LoSeek(ctx, l.fd, offset, int32(whence))
	if err != nil {
		return -1, errors.Join(ErrIO, err)
	}
	return pos, nil
}

// Tell returns the current descriptor position.
func (l *LargeObject) Tell(ctx context.Context) (int64, error) {
	handle, err := l.checkOpen()
	if err != nil {
		return -1, err
	}

	pos, err := handle.LoTell(ctx, l.fd)
	if err != nil {
		return -1, errors.Join(ErrIO, err)
	}
	return pos, nil
}

// Size computes the object size the only way the library allows: record the
// current position, seek to the end, read that position, seek back. The
// cursor is left where it was.
func (l *LargeObject) Size(ctx context.Context) (int64, error) {
	handle, err := l.checkOpen()
	if err != nil {
		return -1, err
	}

	start, err := handle.LoTell(ctx, l.fd)
	if err != nil {
		return -1, errors.Join(ErrIO, err)
	}

	end, err := handle.LoSeek(ctx, l.fd, 0, sdk.SeekEnd)
	if err != nil {
		return -1, errors.Join(ErrIO, err)
	}

	if _, err := handle.LoSeek(ctx, l.fd, start, sdk.SeekSet); err != nil {
		return -1, errors.Join(ErrIO, err)
	}
	return end, nil
}

// Export writes the whole object to a local file. The object must currently
// be closed; it is reopened read-only for the duration.
func (l *LargeObject) Export(ctx context.Context, path string) error {
	handle, err := l.checkClosed()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Join(ErrIO, err)
	}
	defer f.Close()

	fd, err := handle.LoOpen(ctx, l.oid, sdk.ModeRead)
	if err != nil {
		return errors.Join(ErrIO, err)
	}

	for {
		data, err := handle.LoRead(ctx, fd, importChunk)
		if err != nil {
			_ = handle.LoClose(ctx, fd)
			return errors.Join(ErrIO, err)
		}
		if len(data) == 0 {
			break
		}
		if _, err := f.Write(data); err != nil {
			_ = handle.LoClose(ctx, fd)
			return errors.Join(ErrIO, err)
		}
	}

	if err := handle.LoClose(ctx, fd); err != nil {
		return errors.Join(ErrIO, err)
	}
	return nil
}

// Unlink removes the object server-side. The object must currently be
// closed; on success the identifier is zeroed and every further operation
// fails validity checks permanently.
func (l *LargeObject) Unlink(ctx context.Context) error {
	handle, err := l.checkClosed()
	if err != nil {
		return err
	}

	if err := handle.LoUnlink(ctx, l.oid); err != nil {
		return errors.Join(ErrIO, err)
	}
	l.oid = 0
	return nil
}

// checkOpen validates the identifier, the owning connection, and that the
// descriptor is currently open.
func (l *LargeObject) checkOpen() (driver.Conn, error) {
	handle, err := l.conn.Handle()
	if err != nil {
		return nil, err
	}
	if l.oid == 0 {
		return nil, ErrInvalidOID
	}
	if l.fd < 0 {
		return nil, ErrNotOpen
	}
	return handle, nil
}

// checkClosed validates the identifier, the owning connection, and that the
// descriptor is currently closed.
func (l *LargeObject) checkClosed() (driver.Conn, error) {
	handle, err := l.conn.Handle()
	if err != nil {
		return nil, err
	}
	if l.oid == 0 {
		return nil, ErrInvalidOID
	}
	if l.fd >= 0 {
		return nil, ErrAlreadyOpen
	}
	return handle, nil
}
