package podfs_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/podlink/podfs/pkg/podfs"
	"github.com/podlink/podfs/pkg/podfs/mock"
)

func collectLines(t *testing.T, r *podfs.TextReader) []string {
	t.Helper()
	var lines []string
	for line, err := range r.Lines() {
		if err != nil {
			t.Fatalf("lines: %v", err)
		}
		lines = append(lines, line)
	}
	return lines
}

func openText(t *testing.T, c *podfs.Client, path string) *podfs.File {
	t.Helper()
	f, err := c.Open(context.Background(), podfs.ParsePath(path), podfs.ModeRead)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestLinesMixedEndings(t *testing.T) {
	dev := mock.NewDevice()
	dev.AddFile("/notes.txt", []byte("alpha\r\nbeta\ngamma"))
	c := startClient(t, dev, podfs.DefaultConfig())

	lines := collectLines(t, podfs.NewTextReader(openText(t, c, "/notes.txt"), nil))
	want := []string{"alpha", "beta", "gamma"}
	if len(lines) != len(want) {
		t.Fatalf("lines got=%v want=%v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("lines[%d] got=%q want=%q", i, lines[i], want[i])
		}
	}
}

func TestLinesTrailingNewlineAndBlanks(t *testing.T) {
	dev := mock.NewDevice()
	dev.AddFile("/a.txt", []byte("a\n\nb\n"))
	dev.AddFile("/empty.txt", nil)
	c := startClient(t, dev, podfs.DefaultConfig())

	lines := collectLines(t, podfs.NewTextReader(openText(t, c, "/a.txt"), nil))
	want := []string{"a", "", "b"}
	if len(lines) != 3 || lines[0] != "a" || lines[1] != "" || lines[2] != "b" {
		t.Fatalf("lines got=%v want=%v", lines, want)
	}

	if lines := collectLines(t, podfs.NewTextReader(openText(t, c, "/empty.txt"), nil)); len(lines) != 0 {
		t.Fatalf("empty file yielded %v", lines)
	}
}

func TestLinesEarlyStop(t *testing.T) {
	dev := mock.NewDevice()
	dev.AddFile("/a.txt", []byte("one\ntwo\nthree\n"))
	c := startClient(t, dev, podfs.DefaultConfig())

	n := 0
	for _, err := range podfs.NewTextReader(openText(t, c, "/a.txt"), nil).Lines() {
		if err != nil {
			t.Fatalf("lines: %v", err)
		}
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("early stop yielded %d lines", n)
	}
}

func TestUTF16RoundTrip(t *testing.T) {
	dev := mock.NewDevice()
	c := startClient(t, dev, podfs.DefaultConfig())
	ctx := context.Background()
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)

	f, err := c.Open(ctx, podfs.ParsePath("/u16.txt"), podfs.ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tw := podfs.NewTextWriter(f, enc)
	if _, err := tw.WriteString("héllo\nwörld\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, _ := dev.FileData("/u16.txt")
	if len(raw) < 2 || raw[0] != 0xFF || raw[1] != 0xFE {
		t.Fatalf("missing little-endian BOM: % x", raw[:2])
	}

	lines := collectLines(t, podfs.NewTextReader(openText(t, c, "/u16.txt"), enc))
	if len(lines) != 2 || lines[0] != "héllo" || lines[1] != "wörld" {
		t.Fatalf("decoded lines got=%v", lines)
	}
}

func TestCharmapEncoding(t *testing.T) {
	dev := mock.NewDevice()
	c := startClient(t, dev, podfs.DefaultConfig())
	ctx := context.Background()

	f, err := c.Open(ctx, podfs.ParsePath("/latin1.txt"), podfs.ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tw := podfs.NewTextWriter(f, charmap.ISO8859_1)
	if _, err := tw.WriteString("café"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	f.Close()

	raw, _ := dev.FileData("/latin1.txt")
	if !bytes.Equal(raw, []byte{'c', 'a', 'f', 0xE9}) {
		t.Fatalf("latin-1 bytes got=% x", raw)
	}

	decoded, err := io.ReadAll(podfs.NewTextReader(openText(t, c, "/latin1.txt"), charmap.ISO8859_1))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != "café" {
		t.Fatalf("decoded got=%q", decoded)
	}
}

func TestMultiByteRuneAcrossChunks(t *testing.T) {
	dev := mock.NewDevice()
	dev.AddFile("/jp.txt", []byte("héllo\n日本\n"))
	cfg := podfs.DefaultConfig()
	cfg.MaxReadSize = 3
	c := startClient(t, dev, cfg)

	lines := collectLines(t, podfs.NewTextReader(openText(t, c, "/jp.txt"), nil))
	if len(lines) != 2 || lines[0] != "héllo" || lines[1] != "日本" {
		t.Fatalf("chunk-split decode got=%v", lines)
	}
}

func TestTextWriterPropagatesPartialWrite(t *testing.T) {
	dev := mock.NewDevice()
	dev.FailWriteAfter = 2
	c := startClient(t, dev, podfs.DefaultConfig())

	f, err := c.Open(context.Background(), podfs.ParsePath("/short.txt"), podfs.ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tw := podfs.NewTextWriter(f, nil)
	_, werr := tw.WriteString("abcdef")
	cerr := tw.Close()

	// The encoder buffers small writes, so the device failure may
	// surface on either call; it must not be swallowed.
	var pw *podfs.PartialWriteError
	if !errors.As(werr, &pw) && !errors.As(cerr, &pw) {
		t.Fatalf("partial write swallowed: write=%v close=%v", werr, cerr)
	}
	if pw.Written != 2 {
		t.Fatalf("written got=%d want=2", pw.Written)
	}
	if data, _ := dev.FileData("/short.txt"); string(data) != "ab" {
		t.Fatalf("device kept %q", data)
	}
}
