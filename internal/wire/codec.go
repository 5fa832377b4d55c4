package wire

import (
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	ErrRequestPending = errors.New("wire: request already in flight")
	ErrNothingPending = errors.New("wire: no request in flight")
)

// TagMismatchError reports a response whose tag does not match the
// pending request. The framing state is unrecoverable after this.
type TagMismatchError struct {
	Want uint64
	Got  uint64
}

func (e *TagMismatchError) Error() string {
	return fmt.Sprintf("wire: response tag %d for pending request tag %d", e.Got, e.Want)
}

// Conn is the byte stream the codec speaks over. Deadlines are applied
// when the concrete type also implements SetReadDeadline, as net.Conn
// does.
type Conn interface {
	io.Reader
	io.Writer
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Codec correlates request and response frames over a single Conn.
// One request may be in flight at a time; tags increase monotonically.
// Not safe for concurrent use.
type Codec struct {
	conn    Conn
	limits  Limits
	nextTag uint64
	pending bool
	tag     uint64
}

func NewCodec(conn Conn, limits Limits) *Codec {
	return &Codec{conn: conn, limits: limits, nextTag: 1}
}

// Send writes one request frame and returns its correlation tag.
func (c *Codec) Send(op uint32, payload []byte) (uint64, error) {
	if c.pending {
		return 0, ErrRequestPending
	}
	tag := c.nextTag
	f := Frame{Header: Header{Op: op, Tag: tag}, Payload: payload}
	if err := WriteFrame(c.conn, f, c.limits); err != nil {
		return 0, err
	}
	c.nextTag++
	c.pending = true
	c.tag = tag
	return tag, nil
}

// ReceiveFor reads the response frame for tag, blocking until a
// complete frame arrives, the deadline passes (when the Conn supports
// read deadlines; zero means none), or the stream fails. The in-flight
// slot is released whether or not the read succeeds; on failure the
// connection is no longer usable for framing.
func (c *Codec) ReceiveFor(tag uint64, deadline time.Time) (uint32, []byte, error) {
	if !c.pending || c.tag != tag {
		return 0, nil, ErrNothingPending
	}
	c.pending = false

	if rd, ok := c.conn.(readDeadliner); ok {
		if err := rd.SetReadDeadline(deadline); err != nil {
			return 0, nil, fmt.Errorf("wire: set read deadline: %w", err)
		}
	}

	f, err := ReadFrame(c.conn, c.limits)
	if err != nil {
		return 0, nil, err
	}
	if f.Header.Tag != tag {
		return 0, nil, &TagMismatchError{Want: tag, Got: f.Header.Tag}
	}
	return f.Header.Op, f.Payload, nil
}
