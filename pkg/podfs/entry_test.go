package podfs

import (
	"strings"
	"testing"
	"time"
)

func kvPayload(fields ...string) []byte {
	var b []byte
	for _, f := range fields {
		b = append(b, f...)
		b = append(b, 0)
	}
	return b
}

func TestParseEntryFile(t *testing.T) {
	mtime := time.Date(2007, 9, 5, 17, 0, 0, 0, time.UTC)
	kv, err := parseKV(kvPayload(
		"st_size", "8191",
		"st_blocks", "16",
		"st_nlink", "1",
		"st_ifmt", "S_IFREG",
		"st_mtime", "1189011600000000000",
		"st_birthtime", "1189011600000000000",
	))
	if err != nil {
		t.Fatalf("parseKV: %v", err)
	}
	e, err := parseEntry(ParsePath("/Pods/track.mp3"), kv)
	if err != nil {
		t.Fatalf("parseEntry: %v", err)
	}
	if e.Kind != KindFile || e.IsDir() {
		t.Fatalf("kind got=%v", e.Kind)
	}
	if e.Size != 8191 || e.NLink != 1 {
		t.Fatalf("size/nlink got=%d/%d", e.Size, e.NLink)
	}
	if e.ModTime.UnixNano() != mtime.UnixNano() {
		t.Fatalf("mtime got=%v want=%v", e.ModTime, mtime)
	}
	if e.Name() != "track.mp3" {
		t.Fatalf("name got=%q", e.Name())
	}
	if e.Raw["st_blocks"] != "16" {
		t.Fatalf("raw attrs not preserved: %v", e.Raw)
	}
}

func TestParseEntrySymlink(t *testing.T) {
	kv := map[string]string{
		"st_ifmt":    "S_IFLNK",
		"LinkTarget": "../Music/track.mp3",
	}
	e, err := parseEntry(ParsePath("/Pods/link"), kv)
	if err != nil {
		t.Fatalf("parseEntry: %v", err)
	}
	if e.Kind != KindSymlink || e.LinkTarget != "../Music/track.mp3" {
		t.Fatalf("symlink got kind=%v target=%q", e.Kind, e.LinkTarget)
	}
}

func TestParseEntryUnknownFormat(t *testing.T) {
	e, err := parseEntry(ParsePath("/dev/thing"), map[string]string{"st_ifmt": "S_IFSOCK"})
	if err != nil {
		t.Fatalf("parseEntry: %v", err)
	}
	if e.Kind != KindOther {
		t.Fatalf("kind got=%v want=KindOther", e.Kind)
	}
}

func TestParseEntryGarbledAttr(t *testing.T) {
	_, err := parseEntry(ParsePath("/x"), map[string]string{"st_size": "huge"})
	if err == nil || !strings.Contains(err.Error(), "st_size") {
		t.Fatalf("garbled size produced %v", err)
	}
}

func TestSplitKVOddFields(t *testing.T) {
	if _, err := parseKV(kvPayload("st_size", "1", "orphan")); err == nil {
		t.Fatalf("odd field count accepted")
	}
	if kv, err := parseKV(nil); err != nil || len(kv) != 0 {
		t.Fatalf("empty payload got kv=%v err=%v", kv, err)
	}
}

func TestParseEntryList(t *testing.T) {
	payload := kvPayload(
		"name", ".",
		"name", "..",
		"name", "Music",
		"st_ifmt", "S_IFDIR",
		"st_nlink", "2",
		"name", "notes.txt",
		"st_ifmt", "S_IFREG",
		"st_size", "5",
	)
	entries, err := parseEntryList(ParsePath("/Pods"), payload)
	if err != nil {
		t.Fatalf("parseEntryList: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entry count got=%d want=2", len(entries))
	}
	if got := entries[0].Path.String(); got != "/Pods/Music" {
		t.Fatalf("first entry path got=%q", got)
	}
	if !entries[0].IsDir() || entries[1].Kind != KindFile {
		t.Fatalf("kinds got=%v/%v", entries[0].Kind, entries[1].Kind)
	}
	if entries[1].Size != 5 {
		t.Fatalf("file size got=%d", entries[1].Size)
	}
}

func TestParseEntryListDotOnly(t *testing.T) {
	entries, err := parseEntryList(ParsePath("/empty"), kvPayload("name", ".", "name", ".."))
	if err != nil {
		t.Fatalf("parseEntryList: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dot entries leaked: %v", entries)
	}
}

func TestParseEntryListFieldBeforeName(t *testing.T) {
	if _, err := parseEntryList(ParsePath("/x"), kvPayload("st_size", "1")); err == nil {
		t.Fatalf("field before first name accepted")
	}
}

func TestParseDeviceInfo(t *testing.T) {
	kv := map[string]string{
		"Model":        "Pod Classic 160",
		"FSTotalBytes": "159918428160",
		"FSFreeBytes":  "21474836480",
		"FSBlockSize":  "4096",
	}
	info, err := parseDeviceInfo(kv)
	if err != nil {
		t.Fatalf("parseDeviceInfo: %v", err)
	}
	if info.Model != "Pod Classic 160" || info.TotalBytes != 159918428160 || info.BlockSize != 4096 {
		t.Fatalf("info got=%+v", info)
	}
	if info.Raw["FSFreeBytes"] != "21474836480" {
		t.Fatalf("raw kv not preserved")
	}
}
