// Package mock implements an in-memory device file service speaking
// the real wire protocol. It exists for tests: seed a tree, connect a
// Client over net.Pipe, and assert on the recorded request trace.
package mock

import (
	"crypto/sha1"
	"fmt"
	"io"
	"net"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/podlink/podfs/internal/wire"
	"github.com/podlink/podfs/pkg/podfs"
)

// Call is one recorded request. Offset and Len are meaningful for
// READ and WRITE only.
type Call struct {
	Op     uint32
	Path   string
	Handle uint64
	Offset uint64
	Len    int
}

type node struct {
	dir      bool
	symlink  bool
	data     []byte
	target   string
	children map[string]*node
	nlink    uint64
	mtime    time.Time
	btime    time.Time
}

type handleState struct {
	n    *node
	path string
	mode uint64
	pos  int64
}

// Device is a fake device file service. Seed it before serving;
// mutate FailWriteAfter and the info fields before the first request.
type Device struct {
	// Model and the FS* fields feed the DEVICE_INFO response.
	Model       string
	FSTotal     uint64
	FSFree      uint64
	FSBlockSize uint64

	// FailWriteAfter caps the total bytes WRITE will acknowledge.
	// The crossing chunk is acknowledged short; later chunks fail
	// with the no-space status. Zero disables the cap.
	FailWriteAfter int

	mu         sync.Mutex
	root       *node
	handles    map[uint64]*handleState
	nextHandle uint64
	acked      int
	calls      []Call
}

// NewDevice returns an empty device with a root directory.
func NewDevice() *Device {
	return &Device{
		Model:       "Pod Classic 160",
		FSTotal:     80_000_000_000,
		FSFree:      64_000_000_000,
		FSBlockSize: 4096,
		root:        newDir(),
		handles:     make(map[uint64]*handleState),
		nextHandle:  1,
	}
}

func newDir() *node {
	now := time.Now()
	return &node{dir: true, children: make(map[string]*node), nlink: 2, mtime: now, btime: now}
}

func newFile(data []byte) *node {
	now := time.Now()
	return &node{data: data, nlink: 1, mtime: now, btime: now}
}

// AddFile seeds a file, creating parent directories as needed. It
// panics on a conflicting seed; seeding is programmer-controlled.
func (d *Device) AddFile(p string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dir, name := d.seedParent(p)
	dir.children[name] = newFile(append([]byte(nil), data...))
}

// AddDir seeds a directory, creating parents as needed.
func (d *Device) AddDir(p string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mkdirAll(p)
}

// AddSymlink seeds a symlink storing target verbatim.
func (d *Device) AddSymlink(p, target string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dir, name := d.seedParent(p)
	now := time.Now()
	dir.children[name] = &node{symlink: true, target: target, nlink: 1, mtime: now, btime: now}
}

// FileData returns a copy of the file content at p.
func (d *Device) FileData(p string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.lookup(p)
	if n == nil || n.dir || n.symlink {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// Calls returns the request trace so far.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Pipe connects the device to an in-memory channel, serving it on a
// background goroutine. The returned conn is the client end; stop
// closes both ends and waits for the server to exit.
func (d *Device) Pipe() (net.Conn, func()) {
	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Serve(server)
	}()
	stop := func() {
		client.Close()
		server.Close()
		<-done
	}
	return client, stop
}

// Serve answers requests on rw until reading fails.
func (d *Device) Serve(rw io.ReadWriter) error {
	limits := wire.DefaultLimits()
	for {
		req, err := wire.ReadFrame(rw, limits)
		if err != nil {
			return err
		}
		op, payload := d.handle(req.Header.Op, req.Payload)
		resp := wire.Frame{Header: wire.Header{Op: op, Tag: req.Header.Tag}, Payload: payload}
		if err := wire.WriteFrame(rw, resp, limits); err != nil {
			return err
		}
	}
}

func (d *Device) handle(op uint32, payload []byte) (uint32, []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := wire.NewReader(payload)
	switch op {
	case wire.OpOpen:
		return d.open(r)
	case wire.OpClose:
		return d.close(r)
	case wire.OpRead:
		return d.read(r)
	case wire.OpWrite:
		return d.write(r)
	case wire.OpSeek:
		return d.seek(r)
	case wire.OpTell:
		return d.tell(r)
	case wire.OpTruncate:
		return d.truncate(r)
	case wire.OpStat:
		return d.stat(r)
	case wire.OpList:
		return d.list(r)
	case wire.OpRemove:
		return d.remove(r)
	case wire.OpMkdir:
		return d.mkdir(r)
	case wire.OpRename:
		return d.rename(r)
	case wire.OpLink:
		return d.link(r)
	case wire.OpSetModTime:
		return d.setModTime(r)
	case wire.OpHashFile:
		return d.hashFile(r)
	case wire.OpDeviceInfo:
		return d.deviceInfo()
	default:
		return status(podfs.StatusUnknownPacket)
	}
}

func (d *Device) open(r *wire.Reader) (uint32, []byte) {
	mode, err := r.Uint64()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	p, err := r.CString()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpOpen, Path: p})

	n := d.lookup(p)
	switch {
	case n != nil && n.dir:
		return status(podfs.StatusIsDirectory)
	case n != nil && n.symlink:
		return status(podfs.StatusInvalidArgument)
	}
	switch podfs.OpenMode(mode) {
	case podfs.ModeRead:
		if n == nil {
			return status(podfs.StatusNotFound)
		}
	case podfs.ModeWrite, podfs.ModeReadWrite, podfs.ModeAppend:
		if n == nil {
			dir, name, s := d.resolveParent(p)
			if s != podfs.StatusSuccess {
				return status(s)
			}
			n = newFile(nil)
			dir.children[name] = n
		} else if podfs.OpenMode(mode) == podfs.ModeWrite {
			n.data = nil
			n.mtime = time.Now()
		}
	default:
		return status(podfs.StatusInvalidArgument)
	}

	h := d.nextHandle
	d.nextHandle++
	d.handles[h] = &handleState{n: n, path: p, mode: mode}
	return data(wire.AppendUint64(nil, h))
}

func (d *Device) close(r *wire.Reader) (uint32, []byte) {
	h, err := r.Uint64()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpClose, Handle: h})
	if _, ok := d.handles[h]; !ok {
		return status(podfs.StatusInvalidHandle)
	}
	delete(d.handles, h)
	return status(podfs.StatusSuccess)
}

func (d *Device) read(r *wire.Reader) (uint32, []byte) {
	h, err1 := r.Uint64()
	off, err2 := r.Uint64()
	length, err3 := r.Uint64()
	if err1 != nil || err2 != nil || err3 != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpRead, Handle: h, Offset: off, Len: int(length)})

	hs, ok := d.handles[h]
	if !ok {
		return status(podfs.StatusInvalidHandle)
	}
	if m := podfs.OpenMode(hs.mode); m != podfs.ModeRead && m != podfs.ModeReadWrite {
		return status(podfs.StatusPermissionDenied)
	}
	if off >= uint64(len(hs.n.data)) {
		return status(podfs.StatusEndOfData)
	}
	if avail := uint64(len(hs.n.data)) - off; length > avail {
		length = avail
	}
	return data(hs.n.data[off : off+length])
}

func (d *Device) write(r *wire.Reader) (uint32, []byte) {
	h, err1 := r.Uint64()
	off, err2 := r.Uint64()
	if err1 != nil || err2 != nil {
		return status(podfs.StatusInvalidArgument)
	}
	chunk := r.Rest()
	d.record(Call{Op: wire.OpWrite, Handle: h, Offset: off, Len: len(chunk)})

	hs, ok := d.handles[h]
	if !ok {
		return status(podfs.StatusInvalidHandle)
	}
	if m := podfs.OpenMode(hs.mode); m != podfs.ModeWrite && m != podfs.ModeReadWrite && m != podfs.ModeAppend {
		return status(podfs.StatusPermissionDenied)
	}
	if podfs.OpenMode(hs.mode) == podfs.ModeAppend {
		off = uint64(len(hs.n.data))
	}

	n := len(chunk)
	if d.FailWriteAfter > 0 {
		remaining := d.FailWriteAfter - d.acked
		if remaining <= 0 {
			return status(podfs.StatusNoSpace)
		}
		if n > remaining {
			n = remaining
		}
	}
	hs.n.store(off, chunk[:n])
	d.acked += n
	return data(wire.AppendUint64(nil, uint64(n)))
}

// store overlays chunk at off, zero-filling any gap past the old end.
func (n *node) store(off uint64, chunk []byte) {
	end := off + uint64(len(chunk))
	if end > uint64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[off:], chunk)
	n.mtime = time.Now()
}

func (d *Device) seek(r *wire.Reader) (uint32, []byte) {
	h, err1 := r.Uint64()
	whence, err2 := r.Uint64()
	off, err3 := r.Uint64()
	if err1 != nil || err2 != nil || err3 != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpSeek, Handle: h, Offset: off})

	hs, ok := d.handles[h]
	if !ok {
		return status(podfs.StatusInvalidHandle)
	}
	rel := int64(off)
	var pos int64
	switch whence {
	case 0:
		pos = rel
	case 1:
		pos = hs.pos + rel
	case 2:
		pos = int64(len(hs.n.data)) + rel
	default:
		return status(podfs.StatusInvalidArgument)
	}
	if pos < 0 {
		return status(podfs.StatusInvalidArgument)
	}
	hs.pos = pos
	return status(podfs.StatusSuccess)
}

func (d *Device) tell(r *wire.Reader) (uint32, []byte) {
	h, err := r.Uint64()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpTell, Handle: h})
	hs, ok := d.handles[h]
	if !ok {
		return status(podfs.StatusInvalidHandle)
	}
	return data(wire.AppendUint64(nil, uint64(hs.pos)))
}

func (d *Device) truncate(r *wire.Reader) (uint32, []byte) {
	h, err1 := r.Uint64()
	size, err2 := r.Uint64()
	if err1 != nil || err2 != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpTruncate, Handle: h, Offset: size})

	hs, ok := d.handles[h]
	if !ok {
		return status(podfs.StatusInvalidHandle)
	}
	if m := podfs.OpenMode(hs.mode); m != podfs.ModeWrite && m != podfs.ModeReadWrite && m != podfs.ModeAppend {
		return status(podfs.StatusPermissionDenied)
	}
	if size <= uint64(len(hs.n.data)) {
		hs.n.data = hs.n.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, hs.n.data)
		hs.n.data = grown
	}
	hs.n.mtime = time.Now()
	return status(podfs.StatusSuccess)
}

func (d *Device) stat(r *wire.Reader) (uint32, []byte) {
	p, err := r.CString()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpStat, Path: p})
	n := d.lookup(p)
	if n == nil {
		return status(podfs.StatusNotFound)
	}
	return data(appendAttrs(nil, n))
}

func (d *Device) list(r *wire.Reader) (uint32, []byte) {
	p, err := r.CString()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpList, Path: p})
	n := d.lookup(p)
	if n == nil {
		return status(podfs.StatusNotFound)
	}
	if !n.dir {
		return status(podfs.StatusNotDirectory)
	}

	var b []byte
	b = appendKV(b, "name", ".")
	b = appendKV(b, "name", "..")
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b = appendKV(b, "name", name)
		b = appendAttrs(b, n.children[name])
	}
	return data(b)
}

func (d *Device) remove(r *wire.Reader) (uint32, []byte) {
	p, err := r.CString()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpRemove, Path: p})

	if isRoot(p) {
		return status(podfs.StatusPermissionDenied)
	}
	dir, name, s := d.resolveParent(p)
	if s != podfs.StatusSuccess {
		return status(s)
	}
	n, ok := dir.children[name]
	if !ok {
		return status(podfs.StatusNotFound)
	}
	if n.dir && len(n.children) > 0 {
		return status(podfs.StatusDirNotEmpty)
	}
	delete(dir.children, name)
	if !n.dir && !n.symlink && n.nlink > 0 {
		n.nlink--
	}
	return status(podfs.StatusSuccess)
}

func (d *Device) mkdir(r *wire.Reader) (uint32, []byte) {
	p, err := r.CString()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpMkdir, Path: p})

	if isRoot(p) {
		return status(podfs.StatusExists)
	}
	dir, name, s := d.resolveParent(p)
	if s != podfs.StatusSuccess {
		return status(s)
	}
	if _, ok := dir.children[name]; ok {
		return status(podfs.StatusExists)
	}
	dir.children[name] = newDir()
	return status(podfs.StatusSuccess)
}

func (d *Device) rename(r *wire.Reader) (uint32, []byte) {
	oldp, err1 := r.CString()
	newp, err2 := r.CString()
	if err1 != nil || err2 != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpRename, Path: oldp})

	if isRoot(oldp) || isRoot(newp) {
		return status(podfs.StatusPermissionDenied)
	}
	oldDir, oldName, s := d.resolveParent(oldp)
	if s != podfs.StatusSuccess {
		return status(s)
	}
	n, ok := oldDir.children[oldName]
	if !ok {
		return status(podfs.StatusNotFound)
	}
	newDirNode, newName, s := d.resolveParent(newp)
	if s != podfs.StatusSuccess {
		return status(s)
	}
	if dest, ok := newDirNode.children[newName]; ok {
		if dest.dir && len(dest.children) > 0 {
			return status(podfs.StatusDirNotEmpty)
		}
	}
	delete(oldDir.children, oldName)
	newDirNode.children[newName] = n
	return status(podfs.StatusSuccess)
}

func (d *Device) link(r *wire.Reader) (uint32, []byte) {
	kind, err := r.Uint64()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	target, err1 := r.CString()
	linkPath, err2 := r.CString()
	if err1 != nil || err2 != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpLink, Path: linkPath})

	dir, name, s := d.resolveParent(linkPath)
	if s != podfs.StatusSuccess {
		return status(s)
	}
	if _, ok := dir.children[name]; ok {
		return status(podfs.StatusExists)
	}
	switch kind {
	case 1: // hard
		tn := d.lookup(target)
		if tn == nil {
			return status(podfs.StatusNotFound)
		}
		if tn.dir {
			return status(podfs.StatusInvalidArgument)
		}
		tn.nlink++
		dir.children[name] = tn
	case 2: // symbolic, target stored unchecked
		now := time.Now()
		dir.children[name] = &node{symlink: true, target: target, nlink: 1, mtime: now, btime: now}
	default:
		return status(podfs.StatusInvalidArgument)
	}
	return status(podfs.StatusSuccess)
}

func (d *Device) setModTime(r *wire.Reader) (uint32, []byte) {
	ns, err := r.Uint64()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	p, err := r.CString()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpSetModTime, Path: p})
	n := d.lookup(p)
	if n == nil {
		return status(podfs.StatusNotFound)
	}
	n.mtime = time.Unix(0, int64(ns))
	return status(podfs.StatusSuccess)
}

func (d *Device) hashFile(r *wire.Reader) (uint32, []byte) {
	p, err := r.CString()
	if err != nil {
		return status(podfs.StatusInvalidArgument)
	}
	d.record(Call{Op: wire.OpHashFile, Path: p})
	n := d.lookup(p)
	if n == nil {
		return status(podfs.StatusNotFound)
	}
	if n.dir {
		return status(podfs.StatusIsDirectory)
	}
	if n.symlink {
		return status(podfs.StatusInvalidArgument)
	}
	sum := sha1.Sum(n.data)
	return data(sum[:])
}

func (d *Device) deviceInfo() (uint32, []byte) {
	d.record(Call{Op: wire.OpDeviceInfo})
	var b []byte
	b = appendKV(b, "Model", d.Model)
	b = appendKV(b, "FSTotalBytes", fmt.Sprintf("%d", d.FSTotal))
	b = appendKV(b, "FSFreeBytes", fmt.Sprintf("%d", d.FSFree))
	b = appendKV(b, "FSBlockSize", fmt.Sprintf("%d", d.FSBlockSize))
	return data(b)
}

// lookup walks the tree; nil means not found. Symlinks are terminal,
// never followed.
func (d *Device) lookup(p string) *node {
	n := d.root
	for _, part := range splitPath(p) {
		if !n.dir {
			return nil
		}
		child, ok := n.children[part]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// resolveParent finds the directory that would hold p and the final
// name, mapping missing or non-directory parents to statuses.
func (d *Device) resolveParent(p string) (*node, string, podfs.Status) {
	parts := splitPath(p)
	if len(parts) == 0 {
		return nil, "", podfs.StatusInvalidArgument
	}
	n := d.root
	for _, part := range parts[:len(parts)-1] {
		child, ok := n.children[part]
		if !ok {
			return nil, "", podfs.StatusNotFound
		}
		if !child.dir {
			return nil, "", podfs.StatusNotDirectory
		}
		n = child
	}
	return n, parts[len(parts)-1], podfs.StatusSuccess
}

func (d *Device) seedParent(p string) (*node, string) {
	parts := splitPath(p)
	if len(parts) == 0 {
		panic("mock: cannot seed the root path")
	}
	dir := d.mkdirAllParts(parts[:len(parts)-1])
	return dir, parts[len(parts)-1]
}

func (d *Device) mkdirAll(p string) *node {
	return d.mkdirAllParts(splitPath(p))
}

func (d *Device) mkdirAllParts(parts []string) *node {
	n := d.root
	for _, part := range parts {
		child, ok := n.children[part]
		if !ok {
			child = newDir()
			n.children[part] = child
		} else if !child.dir {
			panic(fmt.Sprintf("mock: %q seeded over a non-directory", part))
		}
		n = child
	}
	return n
}

func (d *Device) record(c Call) {
	d.calls = append(d.calls, c)
}

func splitPath(p string) []string {
	p = strings.TrimPrefix(path.Clean(p), "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

func isRoot(p string) bool {
	return len(splitPath(p)) == 0
}

func appendAttrs(b []byte, n *node) []byte {
	size := uint64(len(n.data))
	format := "S_IFREG"
	switch {
	case n.dir:
		format = "S_IFDIR"
	case n.symlink:
		format = "S_IFLNK"
		size = uint64(len(n.target))
	}
	b = appendKV(b, "st_size", fmt.Sprintf("%d", size))
	b = appendKV(b, "st_blocks", fmt.Sprintf("%d", (size+511)/512))
	b = appendKV(b, "st_nlink", fmt.Sprintf("%d", n.nlink))
	b = appendKV(b, "st_ifmt", format)
	b = appendKV(b, "st_mtime", fmt.Sprintf("%d", n.mtime.UnixNano()))
	b = appendKV(b, "st_birthtime", fmt.Sprintf("%d", n.btime.UnixNano()))
	if n.symlink {
		b = appendKV(b, "LinkTarget", n.target)
	}
	return b
}

func appendKV(b []byte, k, v string) []byte {
	b = append(b, k...)
	b = append(b, 0)
	b = append(b, v...)
	b = append(b, 0)
	return b
}

func status(s podfs.Status) (uint32, []byte) {
	return wire.OpStatus, wire.AppendUint64(nil, uint64(s))
}

func data(b []byte) (uint32, []byte) {
	return wire.OpData, b
}
