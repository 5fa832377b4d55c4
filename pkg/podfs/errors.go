package podfs

import (
	"errors"
	"fmt"
)

// Recoverable operation errors. The connection stays usable after any
// of these.
var (
	ErrNotFound      = errors.New("podfs: object not found")
	ErrNotDir        = errors.New("podfs: not a directory")
	ErrPermission    = errors.New("podfs: permission denied")
	ErrExist         = errors.New("podfs: object already exists")
	ErrNotEmpty      = errors.New("podfs: directory not empty")
	ErrInvalidHandle = errors.New("podfs: invalid file handle")
)

// Connection-fatal errors. Once one of these is returned the Client is
// unusable until Reset supplies a fresh channel.
var (
	ErrProtocol       = errors.New("podfs: protocol violation")
	ErrConnectionLost = errors.New("podfs: connection lost")
)

// ErrDeviceFailure matches any *StatusError via errors.Is, for callers
// that only care whether the device itself refused an operation.
var ErrDeviceFailure = errors.New("podfs: device failure")

// StatusError is a device failure whose status code has no dedicated
// sentinel in the error taxonomy. It carries the raw code for
// diagnostics.
type StatusError struct {
	Op   string
	Code Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("podfs: %s: device status %d (%s)", e.Op, uint64(e.Code), e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrDeviceFailure
}

// PartialWriteError reports a write that stopped after the device
// acknowledged a prefix. Written is the acknowledged byte count; the
// caller may resume from there. The client never retries on its own.
type PartialWriteError struct {
	Written int
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("podfs: partial write: %d bytes written: %v", e.Written, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
