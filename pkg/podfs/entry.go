package podfs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a directory entry.
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Entry is a point-in-time snapshot of one object in the device tree,
// produced by Stat and List. Nothing refreshes it; it may go stale.
// Raw keeps every attribute the device reported, including ones this
// client does not interpret.
type Entry struct {
	Path       Path
	Kind       Kind
	Size       uint64
	NLink      uint64
	ModTime    time.Time
	BirthTime  time.Time
	LinkTarget string
	Raw        map[string]string
}

func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

func (e Entry) Name() string {
	return e.Path.Name()
}

// DeviceInfo describes the device and its filesystem capacity.
type DeviceInfo struct {
	Model      string
	TotalBytes uint64
	FreeBytes  uint64
	BlockSize  uint64
	Raw        map[string]string
}

// Attribute keys of the device's stat dialect.
const (
	attrName       = "name"
	attrSize       = "st_size"
	attrNLink      = "st_nlink"
	attrFormat     = "st_ifmt"
	attrMTime      = "st_mtime"
	attrBirthTime  = "st_birthtime"
	attrLinkTarget = "LinkTarget"
)

// splitKV breaks a NUL-separated key/value payload into its fields. A
// single trailing NUL is tolerated; an odd field count is malformed.
func splitKV(b []byte) ([]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	fields := strings.Split(string(b), "\x00")
	if n := len(fields); fields[n-1] == "" {
		fields = fields[:n-1]
	}
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("podfs: key/value payload with odd field count %d", len(fields))
	}
	return fields, nil
}

func parseKV(b []byte) (map[string]string, error) {
	fields, err := splitKV(b)
	if err != nil {
		return nil, err
	}
	kv := make(map[string]string, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		kv[fields[i]] = fields[i+1]
	}
	return kv, nil
}

func parseEntry(p Path, kv map[string]string) (Entry, error) {
	e := Entry{Path: p, Kind: KindOther, Raw: kv}

	switch kv[attrFormat] {
	case "S_IFREG":
		e.Kind = KindFile
	case "S_IFDIR":
		e.Kind = KindDir
	case "S_IFLNK":
		e.Kind = KindSymlink
	}

	var err error
	if e.Size, err = kvUint(kv, attrSize); err != nil {
		return Entry{}, err
	}
	if e.NLink, err = kvUint(kv, attrNLink); err != nil {
		return Entry{}, err
	}
	if e.ModTime, err = kvTime(kv, attrMTime); err != nil {
		return Entry{}, err
	}
	if e.BirthTime, err = kvTime(kv, attrBirthTime); err != nil {
		return Entry{}, err
	}
	e.LinkTarget = kv[attrLinkTarget]
	return e, nil
}

// parseEntryList decodes a directory listing: a flat key/value stream
// where each "name" key begins a new entry described by the keys that
// follow it. The device reports "." and ".." like any other child;
// both are dropped here.
func parseEntryList(dir Path, b []byte) ([]Entry, error) {
	fields, err := splitKV(b)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0)
	var name string
	var kv map[string]string

	flush := func() error {
		if kv == nil {
			return nil
		}
		if name == "." || name == ".." {
			return nil
		}
		e, err := parseEntry(dir.Join(name), kv)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	}

	for i := 0; i < len(fields); i += 2 {
		key, val := fields[i], fields[i+1]
		if key == attrName {
			if err := flush(); err != nil {
				return nil, err
			}
			name = val
			kv = make(map[string]string)
			continue
		}
		if kv == nil {
			return nil, fmt.Errorf("podfs: listing field %q before first name", key)
		}
		kv[key] = val
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseDeviceInfo(kv map[string]string) (DeviceInfo, error) {
	info := DeviceInfo{Model: kv["Model"], Raw: kv}
	var err error
	if info.TotalBytes, err = kvUint(kv, "FSTotalBytes"); err != nil {
		return DeviceInfo{}, err
	}
	if info.FreeBytes, err = kvUint(kv, "FSFreeBytes"); err != nil {
		return DeviceInfo{}, err
	}
	if info.BlockSize, err = kvUint(kv, "FSBlockSize"); err != nil {
		return DeviceInfo{}, err
	}
	return info, nil
}

func kvUint(kv map[string]string, key string) (uint64, error) {
	raw, ok := kv[key]
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("podfs: attribute %s=%q: %w", key, raw, err)
	}
	return v, nil
}

func kvTime(kv map[string]string, key string) (time.Time, error) {
	raw, ok := kv[key]
	if !ok {
		return time.Time{}, nil
	}
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("podfs: attribute %s=%q: %w", key, raw, err)
	}
	return time.Unix(0, ns), nil
}
