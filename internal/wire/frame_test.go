package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	payload := AppendCString(AppendUint64(nil, 7), "/Music/track.mp3")
	in := Frame{
		Header:  Header{Op: OpOpen, Tag: 42},
		Payload: payload,
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if buf.Len() != HeaderSize+len(payload) {
		t.Fatalf("unexpected frame size: got=%d want=%d", buf.Len(), HeaderSize+len(payload))
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Header.Op != in.Header.Op || out.Header.Tag != in.Header.Tag {
		t.Fatalf("header mismatch: got=%+v want=%+v", out.Header, in.Header)
	}
	if out.Header.Length != uint32(len(payload)) {
		t.Fatalf("unexpected length: got=%d want=%d", out.Header.Length, len(payload))
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Frame{Header: Header{Op: OpDeviceInfo, Tag: 1}}, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if len(out.Payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(out.Payload))
	}
}

func TestReadFrameShortHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameEmptyStream(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	hb := EncodeHeader(Header{Length: 10, Op: OpData, Tag: 3})
	stream := append(hb, []byte{1, 2, 3, 4}...)
	_, err := ReadFrame(bytes.NewReader(stream), DefaultLimits())
	if !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestReadFrameDeclaredLengthOverLimit(t *testing.T) {
	hb := EncodeHeader(Header{Length: 2048, Op: OpData, Tag: 3})
	_, err := ReadFrame(bytes.NewReader(hb), Limits{MaxPayloadBytes: 1024})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestWriteFramePayloadOverLimit(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Header: Header{Op: OpWrite, Tag: 1}, Payload: make([]byte, 2048)}
	err := WriteFrame(&buf, f, Limits{MaxPayloadBytes: 1024})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected nothing written, got %d bytes", buf.Len())
	}
}

func TestDecodeHeaderWrongSize(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Fatalf("expected error for short header buffer")
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	in := Header{Length: 512, Op: OpRead, Tag: 0xDEADBEEF}
	out, err := DecodeHeader(EncodeHeader(in))
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if out != in {
		t.Fatalf("header mismatch: got=%+v want=%+v", out, in)
	}
}
