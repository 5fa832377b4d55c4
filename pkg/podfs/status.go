package podfs

import "fmt"

// Status is a device status code carried in a STATUS response. The
// table below is the dialect of the current device firmware; it is
// configuration, not contract. Unknown codes still map cleanly (see
// statusErr).
type Status uint64

const (
	StatusSuccess          Status = 0
	StatusUnknownError     Status = 1
	StatusInvalidHeader    Status = 2
	StatusNoResources      Status = 3
	StatusReadError        Status = 4
	StatusWriteError       Status = 5
	StatusUnknownPacket    Status = 6
	StatusInvalidArgument  Status = 7
	StatusNotFound         Status = 8
	StatusNotDirectory     Status = 9
	StatusPermissionDenied Status = 10
	StatusNotConnected     Status = 11
	StatusTimeout          Status = 12
	StatusTooMuchData      Status = 13
	StatusEndOfData        Status = 14
	StatusUnsupported      Status = 15
	StatusExists           Status = 16
	StatusBusy             Status = 17
	StatusNoSpace          Status = 18
	StatusWouldBlock       Status = 19
	StatusIOError          Status = 20
	StatusInterrupted      Status = 21
	StatusInProgress       Status = 22
	StatusInternalError    Status = 23
	StatusInvalidHandle    Status = 24
	StatusIsDirectory      Status = 25
	StatusMuxError         Status = 30
	StatusNoMemory         Status = 31
	StatusNotEnoughData    Status = 32
	StatusDirNotEmpty      Status = 33
)

var statusNames = map[Status]string{
	StatusSuccess:          "SUCCESS",
	StatusUnknownError:     "UNKNOWN_ERROR",
	StatusInvalidHeader:    "INVALID_HEADER",
	StatusNoResources:      "NO_RESOURCES",
	StatusReadError:        "READ_ERROR",
	StatusWriteError:       "WRITE_ERROR",
	StatusUnknownPacket:    "UNKNOWN_PACKET",
	StatusInvalidArgument:  "INVALID_ARGUMENT",
	StatusNotFound:         "NOT_FOUND",
	StatusNotDirectory:     "NOT_DIRECTORY",
	StatusPermissionDenied: "PERMISSION_DENIED",
	StatusNotConnected:     "NOT_CONNECTED",
	StatusTimeout:          "TIMEOUT",
	StatusTooMuchData:      "TOO_MUCH_DATA",
	StatusEndOfData:        "END_OF_DATA",
	StatusUnsupported:      "UNSUPPORTED",
	StatusExists:           "EXISTS",
	StatusBusy:             "BUSY",
	StatusNoSpace:          "NO_SPACE",
	StatusWouldBlock:       "WOULD_BLOCK",
	StatusIOError:          "IO_ERROR",
	StatusInterrupted:      "INTERRUPTED",
	StatusInProgress:       "IN_PROGRESS",
	StatusInternalError:    "INTERNAL_ERROR",
	StatusInvalidHandle:    "INVALID_HANDLE",
	StatusIsDirectory:      "IS_DIRECTORY",
	StatusMuxError:         "MUX_ERROR",
	StatusNoMemory:         "NO_MEMORY",
	StatusNotEnoughData:    "NOT_ENOUGH_DATA",
	StatusDirNotEmpty:      "DIRECTORY_NOT_EMPTY",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS_%d", uint64(s))
}

// statusErr maps a device status onto the error taxonomy, with op as
// the error context ("remove /x"). The mapping is total: codes without
// a dedicated sentinel become a *StatusError so that newer firmware
// never produces an unclassifiable failure.
func statusErr(op string, s Status) error {
	switch s {
	case StatusSuccess:
		return nil
	case StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case StatusNotDirectory:
		return fmt.Errorf("%s: %w", op, ErrNotDir)
	case StatusPermissionDenied:
		return fmt.Errorf("%s: %w", op, ErrPermission)
	case StatusExists:
		return fmt.Errorf("%s: %w", op, ErrExist)
	case StatusInvalidHandle:
		return fmt.Errorf("%s: %w", op, ErrInvalidHandle)
	case StatusDirNotEmpty:
		return fmt.Errorf("%s: %w", op, ErrNotEmpty)
	default:
		return &StatusError{Op: op, Code: s}
	}
}
