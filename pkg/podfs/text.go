package podfs

import (
	"bufio"
	"io"
	"iter"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextReader decodes a byte stream into UTF-8 text. It is a plain
// value over any io.Reader, typically a *File, and holds no device
// state of its own.
type TextReader struct {
	br *bufio.Reader
}

// NewTextReader decodes r from enc into UTF-8. A nil enc reads the
// stream as UTF-8 unchanged.
func NewTextReader(r io.Reader, enc encoding.Encoding) *TextReader {
	if enc == nil {
		enc = unicode.UTF8
	}
	return &TextReader{br: bufio.NewReader(transform.NewReader(r, enc.NewDecoder()))}
}

// Read returns decoded UTF-8 bytes.
func (r *TextReader) Read(p []byte) (int, error) {
	return r.br.Read(p)
}

// Lines yields the stream line by line with the trailing newline
// removed, accepting both LF and CRLF endings. An unterminated final
// fragment is yielded too. The iterator consumes the reader and is not
// restartable; a decode or read failure is yielded once and ends the
// sequence.
func (r *TextReader) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			line, err := r.br.ReadString('\n')
			if err != nil && err != io.EOF {
				yield("", err)
				return
			}
			if len(line) > 0 {
				line = strings.TrimSuffix(line, "\n")
				line = strings.TrimSuffix(line, "\r")
				if !yield(line, nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
		}
	}
}

// TextWriter encodes UTF-8 text into the device encoding as it is
// written.
type TextWriter struct {
	tw *transform.Writer
}

// NewTextWriter encodes UTF-8 input into enc and writes the result to
// w. A nil enc passes UTF-8 through unchanged. Close flushes pending
// encoder state but leaves w open.
func NewTextWriter(w io.Writer, enc encoding.Encoding) *TextWriter {
	if enc == nil {
		enc = unicode.UTF8
	}
	return &TextWriter{tw: transform.NewWriter(w, enc.NewEncoder())}
}

// Write encodes p and writes it through. The count reports consumed
// input bytes; errors from the underlying writer, including partial
// write failures, pass through unchanged.
func (w *TextWriter) Write(p []byte) (int, error) {
	return w.tw.Write(p)
}

// WriteString encodes and writes s.
func (w *TextWriter) WriteString(s string) (int, error) {
	return io.WriteString(w.tw, s)
}

// Close flushes the encoder. It does not close the underlying writer.
func (w *TextWriter) Close() error {
	return w.tw.Close()
}
