package podfs

import (
	"time"

	"github.com/rs/zerolog"
)

// Config tunes a Client. The zero value works; zero fields fall back
// to the DefaultConfig values.
type Config struct {
	// MaxReadSize caps the byte count requested by one READ.
	MaxReadSize uint32
	// MaxWriteSize caps the data carried by one WRITE. Larger writes
	// split into offset-ordered chunks, one request/response pair
	// each.
	MaxWriteSize uint32
	// MaxPayload bounds any single frame payload, sent or received.
	MaxPayload uint32
	// OpTimeout bounds the wait for each response once a request is on
	// the wire. Zero waits forever unless the operation context
	// carries an earlier deadline. Expiry mid-response is
	// connection-fatal: the frame boundary is lost with the request.
	OpTimeout time.Duration
	// Logger receives per-request debug lines and connection-fatal
	// events. Nil disables logging.
	Logger *zerolog.Logger
}

// DefaultConfig returns the transfer sizes of the current device
// firmware. They are configuration, not protocol constants.
func DefaultConfig() Config {
	return Config{
		MaxReadSize:  64 * 1024,
		MaxWriteSize: 32 * 1024,
		MaxPayload:   1 << 20,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxReadSize == 0 {
		c.MaxReadSize = def.MaxReadSize
	}
	if c.MaxWriteSize == 0 {
		c.MaxWriteSize = def.MaxWriteSize
	}
	if c.MaxPayload == 0 {
		c.MaxPayload = def.MaxPayload
	}
	if c.MaxPayload < 64 {
		c.MaxPayload = 64
	}
	// A write frame carries a 16-byte preamble before the data; keep
	// chunks inside the frame limit.
	if c.MaxWriteSize > c.MaxPayload-16 {
		c.MaxWriteSize = c.MaxPayload - 16
	}
	if c.MaxReadSize > c.MaxPayload {
		c.MaxReadSize = c.MaxPayload
	}
	return c
}
