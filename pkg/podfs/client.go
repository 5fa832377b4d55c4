package podfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/podlink/podfs/internal/observability"
	"github.com/podlink/podfs/internal/wire"
)

// Conn is the transport a Client speaks over: an ordered, reliable
// duplex byte stream already connected to the device's file service.
// A net.Conn works directly; read deadlines are honored when the
// concrete type provides SetReadDeadline.
type Conn interface {
	io.Reader
	io.Writer
}

// OpenMode selects how Open locates and prepares a file.
type OpenMode uint64

const (
	// ModeRead opens an existing file for reading only.
	ModeRead OpenMode = 1
	// ModeWrite creates the file if missing and truncates it
	// otherwise; writing only.
	ModeWrite OpenMode = 2
	// ModeReadWrite creates the file if missing and keeps existing
	// content; reading and writing.
	ModeReadWrite OpenMode = 3
	// ModeAppend creates the file if missing; the device lands every
	// write at the current end of file regardless of offset.
	ModeAppend OpenMode = 4
)

func (m OpenMode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModeReadWrite:
		return "read-write"
	case ModeAppend:
		return "append"
	default:
		return fmt.Sprintf("mode(%d)", uint64(m))
	}
}

// Link kinds on the wire.
const (
	linkHard     uint64 = 1
	linkSymbolic uint64 = 2
)

// Seek whence values on the wire.
const (
	seekWhenceStart   uint64 = 0
	seekWhenceCurrent uint64 = 1
	seekWhenceEnd     uint64 = 2
)

var errNULInPath = errors.New("podfs: NUL byte in path")

// Client issues file-service operations over one established channel,
// strictly one request at a time.
//
// A Client provides no internal locking and is not safe for concurrent
// use; callers that share one device connection must serialize around
// it. Recoverable failures (ErrNotFound, ErrPermission, ...) leave the
// connection usable. ErrProtocol and ErrConnectionLost latch the
// client: every later call fails with the same error until Reset
// supplies a fresh channel.
type Client struct {
	cfg   Config
	log   zerolog.Logger
	conn  Conn
	codec *wire.Codec
	fatal error
}

// NewClient wraps an already-connected channel to the device's file
// service. Discovery and pairing are the caller's collaborators; the
// client never dials.
func NewClient(conn Conn, cfg Config) *Client {
	cfg = cfg.withDefaults()
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Client{
		cfg:   cfg,
		log:   log,
		conn:  conn,
		codec: wire.NewCodec(conn, wire.Limits{MaxPayloadBytes: cfg.MaxPayload}),
	}
}

// Reset points the client at a fresh channel and clears a latched
// connection-fatal error. Handles opened on the previous channel died
// with it.
func (c *Client) Reset(conn Conn) {
	c.conn = conn
	c.codec = wire.NewCodec(conn, wire.Limits{MaxPayloadBytes: c.cfg.MaxPayload})
	c.fatal = nil
}

// Close closes the underlying channel when it supports closing and
// latches the client until Reset.
func (c *Client) Close() error {
	c.fatal = fmt.Errorf("%w: client closed", ErrConnectionLost)
	if cl, ok := c.conn.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// Open opens the file at p and returns its handle. The context governs
// this call and every operation made through the returned File.
func (c *Client) Open(ctx context.Context, p Path, mode OpenMode) (*File, error) {
	what := "open " + p.String()
	payload, err := pathArg(wire.AppendUint64(nil, uint64(mode)), p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	respOp, resp, err := c.roundTrip(ctx, wire.OpOpen, what, payload)
	if err != nil {
		return nil, err
	}
	data, err := c.expectData(what, respOp, resp)
	if err != nil {
		return nil, err
	}
	handle, err := decodeUint64(data)
	if err != nil {
		return nil, c.violation(what, err)
	}
	return &File{c: c, ctx: ctx, path: p, handle: handle, mode: mode}, nil
}

// Stat fetches the entry at p.
func (c *Client) Stat(ctx context.Context, p Path) (Entry, error) {
	what := "stat " + p.String()
	payload, err := pathArg(nil, p)
	if err != nil {
		return Entry{}, fmt.Errorf("%s: %w", what, err)
	}
	respOp, resp, err := c.roundTrip(ctx, wire.OpStat, what, payload)
	if err != nil {
		return Entry{}, err
	}
	data, err := c.expectData(what, respOp, resp)
	if err != nil {
		return Entry{}, err
	}
	kv, err := parseKV(data)
	if err != nil {
		return Entry{}, c.violation(what, err)
	}
	e, err := parseEntry(p, kv)
	if err != nil {
		return Entry{}, c.violation(what, err)
	}
	return e, nil
}

// List fetches the children of the directory at p, sorted by path. The
// device reports the full listing in one response; the result is
// materialized, never lazy.
func (c *Client) List(ctx context.Context, p Path) ([]Entry, error) {
	what := "list " + p.String()
	payload, err := pathArg(nil, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	respOp, resp, err := c.roundTrip(ctx, wire.OpList, what, payload)
	if err != nil {
		return nil, err
	}
	data, err := c.expectData(what, respOp, resp)
	if err != nil {
		return nil, err
	}
	entries, err := parseEntryList(p, data)
	if err != nil {
		return nil, c.violation(what, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path.Less(entries[j].Path)
	})
	return entries, nil
}

// Remove deletes the file or empty directory at p.
func (c *Client) Remove(ctx context.Context, p Path) error {
	return c.pathOnlyOp(ctx, wire.OpRemove, "remove", p)
}

// Mkdir creates a directory at p. The parent must already exist.
func (c *Client) Mkdir(ctx context.Context, p Path) error {
	return c.pathOnlyOp(ctx, wire.OpMkdir, "mkdir", p)
}

// Rename moves the entry at oldp to newp, replacing a replaceable
// entry already at newp.
func (c *Client) Rename(ctx context.Context, oldp, newp Path) error {
	what := fmt.Sprintf("rename %s to %s", oldp, newp)
	payload, err := pathArg(nil, oldp)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	payload, err = pathArg(payload, newp)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	respOp, resp, err := c.roundTrip(ctx, wire.OpRename, what, payload)
	if err != nil {
		return err
	}
	return c.expectStatus(what, respOp, resp)
}

// Link creates linkPath pointing at target, as a symbolic link when
// symbolic is set and as a hard link otherwise. Symbolic targets may
// be relative; the device stores them verbatim.
func (c *Client) Link(ctx context.Context, target, linkPath Path, symbolic bool) error {
	what := fmt.Sprintf("link %s to %s", linkPath, target)
	kind := linkHard
	if symbolic {
		kind = linkSymbolic
	}
	payload, err := pathArg(wire.AppendUint64(nil, kind), target)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	payload, err = pathArg(payload, linkPath)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	respOp, resp, err := c.roundTrip(ctx, wire.OpLink, what, payload)
	if err != nil {
		return err
	}
	return c.expectStatus(what, respOp, resp)
}

// SetModTime stamps the entry at p with mtime.
func (c *Client) SetModTime(ctx context.Context, p Path, mtime time.Time) error {
	what := "set mtime " + p.String()
	payload, err := pathArg(wire.AppendUint64(nil, uint64(mtime.UnixNano())), p)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	respOp, resp, err := c.roundTrip(ctx, wire.OpSetModTime, what, payload)
	if err != nil {
		return err
	}
	return c.expectStatus(what, respOp, resp)
}

// HashFile asks the device to digest the file at p. Current firmware
// answers with a 20-byte SHA-1.
func (c *Client) HashFile(ctx context.Context, p Path) ([]byte, error) {
	what := "hash " + p.String()
	payload, err := pathArg(nil, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	respOp, resp, err := c.roundTrip(ctx, wire.OpHashFile, what, payload)
	if err != nil {
		return nil, err
	}
	return c.expectData(what, respOp, resp)
}

// ReadLink returns the target recorded in the symlink at p.
func (c *Client) ReadLink(ctx context.Context, p Path) (Path, error) {
	e, err := c.Stat(ctx, p)
	if err != nil {
		return Path{}, err
	}
	if e.Kind != KindSymlink {
		return Path{}, fmt.Errorf("readlink %s: not a symlink", p)
	}
	return ParsePath(e.LinkTarget), nil
}

// DeviceInfo queries the device model and filesystem capacity.
func (c *Client) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	const what = "device info"
	respOp, resp, err := c.roundTrip(ctx, wire.OpDeviceInfo, what, nil)
	if err != nil {
		return DeviceInfo{}, err
	}
	data, err := c.expectData(what, respOp, resp)
	if err != nil {
		return DeviceInfo{}, err
	}
	kv, err := parseKV(data)
	if err != nil {
		return DeviceInfo{}, c.violation(what, err)
	}
	info, err := parseDeviceInfo(kv)
	if err != nil {
		return DeviceInfo{}, c.violation(what, err)
	}
	return info, nil
}

// ReadFile opens, fully reads, and closes the file at p.
func (c *Client) ReadFile(ctx context.Context, p Path) ([]byte, error) {
	f, err := c.Open(ctx, p, ModeRead)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteFile creates or truncates the file at p and writes data to it.
func (c *Client) WriteFile(ctx context.Context, p Path, data []byte) error {
	f, err := c.Open(ctx, p, ModeWrite)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// pathOnlyOp runs a status-only operation whose payload is one path.
func (c *Client) pathOnlyOp(ctx context.Context, op uint32, verb string, p Path) error {
	what := verb + " " + p.String()
	payload, err := pathArg(nil, p)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	respOp, resp, err := c.roundTrip(ctx, op, what, payload)
	if err != nil {
		return err
	}
	return c.expectStatus(what, respOp, resp)
}

// closeHandle revokes a device handle.
func (c *Client) closeHandle(ctx context.Context, what string, handle uint64) error {
	respOp, resp, err := c.roundTrip(ctx, wire.OpClose, what, wire.AppendUint64(nil, handle))
	if err != nil {
		return err
	}
	return c.expectStatus(what, respOp, resp)
}

// readChunk issues one READ of at most MaxReadSize bytes. An empty
// result with no error means end of file.
func (c *Client) readChunk(ctx context.Context, what string, handle, offset uint64, n int) ([]byte, error) {
	if n > int(c.cfg.MaxReadSize) {
		n = int(c.cfg.MaxReadSize)
	}
	payload := wire.AppendUint64(nil, handle)
	payload = wire.AppendUint64(payload, offset)
	payload = wire.AppendUint64(payload, uint64(n))
	respOp, resp, err := c.roundTrip(ctx, wire.OpRead, what, payload)
	if err != nil {
		return nil, err
	}
	if respOp == wire.OpStatus {
		s, err := decodeStatus(resp)
		if err != nil {
			return nil, c.violation(what, err)
		}
		// Reading at or past end of file is success with no bytes.
		if s == StatusSuccess || s == StatusEndOfData {
			return nil, nil
		}
		return nil, statusErr(what, s)
	}
	if len(resp) > n {
		return nil, c.violation(what, fmt.Errorf("device returned %d bytes for a %d byte read", len(resp), n))
	}
	observability.RecordTransfer("read", len(resp))
	return resp, nil
}

// writeChunks splits data into offset-ordered WRITE requests of at
// most MaxWriteSize bytes each and returns the count the device
// acknowledged. A failure after at least one acknowledged byte returns
// *PartialWriteError; nothing is retried here, resume policy belongs
// to the caller.
func (c *Client) writeChunks(ctx context.Context, what string, handle, offset uint64, data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n := len(data) - written
		if n > int(c.cfg.MaxWriteSize) {
			n = int(c.cfg.MaxWriteSize)
		}
		chunk := data[written : written+n]

		payload := wire.AppendUint64(nil, handle)
		payload = wire.AppendUint64(payload, offset+uint64(written))
		payload = append(payload, chunk...)

		respOp, resp, err := c.roundTrip(ctx, wire.OpWrite, what, payload)
		if err != nil {
			return written, partialErr(written, err)
		}
		if respOp == wire.OpStatus {
			s, err := decodeStatus(resp)
			if err != nil {
				return written, partialErr(written, c.violation(what, err))
			}
			if s == StatusSuccess {
				return written, partialErr(written, c.violation(what, errors.New("write acknowledged without a byte count")))
			}
			return written, partialErr(written, statusErr(what, s))
		}
		acked64, err := decodeUint64(resp)
		if err != nil {
			return written, partialErr(written, c.violation(what, err))
		}
		if acked64 > uint64(len(chunk)) {
			return written, partialErr(written, c.violation(what, fmt.Errorf("device acknowledged %d bytes for a %d byte write", acked64, len(chunk))))
		}
		acked := int(acked64)
		written += acked
		observability.RecordTransfer("write", acked)
		if acked < len(chunk) {
			return written, partialErr(written, fmt.Errorf("%s: %w", what, io.ErrShortWrite))
		}
	}
	return written, nil
}

// seekHandle moves the device-side cursor; only SeekEnd needs it.
func (c *Client) seekHandle(ctx context.Context, what string, handle, whence uint64, offset int64) error {
	payload := wire.AppendUint64(nil, handle)
	payload = wire.AppendUint64(payload, whence)
	payload = wire.AppendUint64(payload, uint64(offset))
	respOp, resp, err := c.roundTrip(ctx, wire.OpSeek, what, payload)
	if err != nil {
		return err
	}
	return c.expectStatus(what, respOp, resp)
}

// tellHandle reads the device-side cursor position.
func (c *Client) tellHandle(ctx context.Context, what string, handle uint64) (uint64, error) {
	respOp, resp, err := c.roundTrip(ctx, wire.OpTell, what, wire.AppendUint64(nil, handle))
	if err != nil {
		return 0, err
	}
	data, err := c.expectData(what, respOp, resp)
	if err != nil {
		return 0, err
	}
	pos, err := decodeUint64(data)
	if err != nil {
		return 0, c.violation(what, err)
	}
	return pos, nil
}

// truncateHandle resizes the open file to size bytes.
func (c *Client) truncateHandle(ctx context.Context, what string, handle, size uint64) error {
	payload := wire.AppendUint64(nil, handle)
	payload = wire.AppendUint64(payload, size)
	respOp, resp, err := c.roundTrip(ctx, wire.OpTruncate, what, payload)
	if err != nil {
		return err
	}
	return c.expectStatus(what, respOp, resp)
}

// roundTrip sends one request frame and receives its paired response.
// Transport and framing failures latch the client before returning.
func (c *Client) roundTrip(ctx context.Context, op uint32, what string, payload []byte) (uint32, []byte, error) {
	if c.fatal != nil {
		return 0, nil, c.fatal
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	name := wire.OpName(op)
	start := time.Now()
	tag, err := c.codec.Send(op, payload)
	if err != nil {
		observability.RecordOp(name, "fatal", time.Since(start))
		return 0, nil, c.fail(what, err)
	}
	respOp, resp, err := c.codec.ReceiveFor(tag, c.deadline(ctx))
	if err != nil {
		observability.RecordOp(name, "fatal", time.Since(start))
		return 0, nil, c.fail(what, err)
	}
	observability.RecordOp(name, "ok", time.Since(start))

	if respOp != wire.OpStatus && respOp != wire.OpData {
		return 0, nil, c.violation(what, fmt.Errorf("unexpected response op %s", wire.OpName(respOp)))
	}
	c.log.Debug().
		Str("op", name).
		Uint64("tag", tag).
		Int("sent", len(payload)).
		Int("received", len(resp)).
		Msg("round trip")
	return respOp, resp, nil
}

// deadline picks the response deadline: the earlier of the context
// deadline and the configured per-operation timeout. Zero means wait
// forever.
func (c *Client) deadline(ctx context.Context) time.Time {
	var d time.Time
	if c.cfg.OpTimeout > 0 {
		d = time.Now().Add(c.cfg.OpTimeout)
	}
	if cd, ok := ctx.Deadline(); ok && (d.IsZero() || cd.Before(d)) {
		d = cd
	}
	return d
}

// expectStatus finishes an operation whose success carries no result.
func (c *Client) expectStatus(what string, respOp uint32, payload []byte) error {
	if respOp != wire.OpStatus {
		return c.violation(what, errors.New("DATA response to a status-only request"))
	}
	s, err := decodeStatus(payload)
	if err != nil {
		return c.violation(what, err)
	}
	return statusErr(what, s)
}

// expectData unwraps a DATA response, turning STATUS responses into
// mapped errors.
func (c *Client) expectData(what string, respOp uint32, payload []byte) ([]byte, error) {
	if respOp == wire.OpData {
		return payload, nil
	}
	s, err := decodeStatus(payload)
	if err != nil {
		return nil, c.violation(what, err)
	}
	if s == StatusSuccess {
		return nil, c.violation(what, errors.New("success status where data was required"))
	}
	return nil, statusErr(what, s)
}

// fail classifies a codec failure: tag mismatches and oversized frames
// corrupt the protocol, everything else means the channel died.
func (c *Client) fail(what string, err error) error {
	var mismatch *wire.TagMismatchError
	if errors.As(err, &mismatch) || errors.Is(err, wire.ErrPayloadTooLarge) {
		return c.violation(what, err)
	}
	return c.lost(what, err)
}

// violation latches the client with a protocol-violation error.
func (c *Client) violation(what string, err error) error {
	wrapped := fmt.Errorf("%s: %w: %v", what, ErrProtocol, err)
	c.fatal = wrapped
	c.log.Error().Err(err).Str("request", what).Msg("protocol violation, connection unusable")
	return wrapped
}

// lost latches the client with a connection-lost error.
func (c *Client) lost(what string, err error) error {
	wrapped := fmt.Errorf("%s: %w: %v", what, ErrConnectionLost, err)
	c.fatal = wrapped
	c.log.Error().Err(err).Str("request", what).Msg("connection lost")
	return wrapped
}

func partialErr(written int, err error) error {
	if written == 0 {
		return err
	}
	return &PartialWriteError{Written: written, Err: err}
}

// pathArg appends p to a request payload as a NUL-terminated string.
func pathArg(payload []byte, p Path) ([]byte, error) {
	s := p.String()
	if strings.ContainsRune(s, 0) {
		return nil, errNULInPath
	}
	return wire.AppendCString(payload, s), nil
}

func decodeStatus(b []byte) (Status, error) {
	v, err := decodeUint64(b)
	return Status(v), err
}

func decodeUint64(b []byte) (uint64, error) {
	r := wire.NewReader(b)
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	if err := r.Done(); err != nil {
		return 0, err
	}
	return v, nil
}
