package podfs

import (
	"context"
	"fmt"
	"io"
)

// File is an open handle on a device file. It tracks a local cursor
// and implements io.Reader, io.Writer, io.Seeker, io.ReaderAt,
// io.WriterAt, and io.Closer against the device.
//
// Every method runs on the context passed to Open. A File shares its
// Client's single-request channel and inherits its concurrency rules:
// one goroutine at a time, across all handles of the same client.
type File struct {
	c      *Client
	ctx    context.Context
	path   Path
	handle uint64
	offset uint64
	mode   OpenMode
	closed bool
}

// Name returns the path the file was opened with.
func (f *File) Name() string { return f.path.String() }

// Path returns the path the file was opened with.
func (f *File) Path() Path { return f.path }

// Position returns the local cursor, the offset the next Read or
// Write will use.
func (f *File) Position() int64 { return int64(f.offset) }

// Read reads up to len(p) bytes from the cursor, at most one device
// round trip per call. At end of file it returns 0, io.EOF.
func (f *File) Read(p []byte) (int, error) {
	what := "read " + f.path.String()
	if f.closed {
		return 0, fmt.Errorf("%s: %w", what, ErrInvalidHandle)
	}
	if len(p) == 0 {
		return 0, nil
	}
	data, err := f.c.readChunk(f.ctx, what, f.handle, f.offset, len(p))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, data)
	f.offset += uint64(n)
	return n, nil
}

// Write writes p at the cursor, splitting into device-sized chunks.
// The cursor advances by the acknowledged count even when the write
// fails part way; a failure after at least one byte surfaces as
// *PartialWriteError.
func (f *File) Write(p []byte) (int, error) {
	what := "write " + f.path.String()
	if f.closed {
		return 0, fmt.Errorf("%s: %w", what, ErrInvalidHandle)
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := f.c.writeChunks(f.ctx, what, f.handle, f.offset, p)
	f.offset += uint64(n)
	return n, err
}

// ReadAt reads len(p) bytes starting at off without moving the
// cursor. Fewer bytes than requested means end of file and returns
// io.EOF alongside the count.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	what := "read " + f.path.String()
	if f.closed {
		return 0, fmt.Errorf("%s: %w", what, ErrInvalidHandle)
	}
	if off < 0 {
		return 0, fmt.Errorf("%s: negative offset %d", what, off)
	}
	n := 0
	for n < len(p) {
		data, err := f.c.readChunk(f.ctx, what, f.handle, uint64(off)+uint64(n), len(p)-n)
		if err != nil {
			return n, err
		}
		if len(data) == 0 {
			return n, io.EOF
		}
		n += copy(p[n:], data)
	}
	return n, nil
}

// WriteAt writes p starting at off without moving the cursor. It
// refuses append-mode handles, where the device ignores offsets.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	what := "write " + f.path.String()
	if f.closed {
		return 0, fmt.Errorf("%s: %w", what, ErrInvalidHandle)
	}
	if f.mode == ModeAppend {
		return 0, fmt.Errorf("%s: offset ignored in append mode", what)
	}
	if off < 0 {
		return 0, fmt.Errorf("%s: negative offset %d", what, off)
	}
	return f.c.writeChunks(f.ctx, what, f.handle, uint64(off), p)
}

// Seek moves the cursor and returns its new position. SeekStart and
// SeekCurrent are resolved locally; SeekEnd asks the device, the only
// party that knows the file size.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	what := "seek " + f.path.String()
	if f.closed {
		return 0, fmt.Errorf("%s: %w", what, ErrInvalidHandle)
	}
	switch whence {
	case io.SeekStart:
		if offset < 0 {
			return 0, fmt.Errorf("%s: negative position %d", what, offset)
		}
		f.offset = uint64(offset)
	case io.SeekCurrent:
		pos := int64(f.offset) + offset
		if pos < 0 {
			return 0, fmt.Errorf("%s: negative position %d", what, pos)
		}
		f.offset = uint64(pos)
	case io.SeekEnd:
		if err := f.c.seekHandle(f.ctx, what, f.handle, seekWhenceEnd, offset); err != nil {
			return 0, err
		}
		pos, err := f.c.tellHandle(f.ctx, what, f.handle)
		if err != nil {
			return 0, err
		}
		f.offset = pos
	default:
		return 0, fmt.Errorf("%s: invalid whence %d", what, whence)
	}
	return int64(f.offset), nil
}

// Truncate resizes the file to size bytes. The cursor does not move.
func (f *File) Truncate(size int64) error {
	what := "truncate " + f.path.String()
	if f.closed {
		return fmt.Errorf("%s: %w", what, ErrInvalidHandle)
	}
	if size < 0 {
		return fmt.Errorf("%s: negative size %d", what, size)
	}
	return f.c.truncateHandle(f.ctx, what, f.handle, uint64(size))
}

// Close releases the device handle. Closing twice fails with
// ErrInvalidHandle without touching the connection.
func (f *File) Close() error {
	what := "close " + f.path.String()
	if f.closed {
		return fmt.Errorf("%s: %w", what, ErrInvalidHandle)
	}
	f.closed = true
	return f.c.closeHandle(f.ctx, what, f.handle)
}

var _ interface {
	io.Reader
	io.Writer
	io.Seeker
	io.ReaderAt
	io.WriterAt
	io.Closer
} = (*File)(nil)
