package wire

import (
	"errors"
	"net"
	"testing"
	"time"
)

// respondOnce reads one frame from conn and answers it through respond.
func respondOnce(t *testing.T, conn net.Conn, respond func(req Frame) Frame) {
	t.Helper()
	go func() {
		req, err := ReadFrame(conn, DefaultLimits())
		if err != nil {
			return
		}
		_ = WriteFrame(conn, respond(req), DefaultLimits())
	}()
}

func TestCodecRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	codec := NewCodec(client, DefaultLimits())

	respondOnce(t, server, func(req Frame) Frame {
		return Frame{Header: Header{Op: OpData, Tag: req.Header.Tag}, Payload: []byte("ok")}
	})
	tag, err := codec.Send(OpStat, AppendCString(nil, "/notes.txt"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if tag != 1 {
		t.Fatalf("unexpected first tag: %d", tag)
	}
	op, payload, err := codec.ReceiveFor(tag, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if op != OpData || string(payload) != "ok" {
		t.Fatalf("unexpected response: op=%s payload=%q", OpName(op), payload)
	}

	respondOnce(t, server, func(req Frame) Frame {
		return Frame{Header: Header{Op: OpStatus, Tag: req.Header.Tag}, Payload: AppendUint64(nil, 0)}
	})
	tag, err = codec.Send(OpRemove, AppendCString(nil, "/notes.txt"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if tag != 2 {
		t.Fatalf("tags must increase: got %d", tag)
	}
	if _, _, err := codec.ReceiveFor(tag, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("receive: %v", err)
	}
}

func TestCodecSecondSendWhilePending(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	codec := NewCodec(client, DefaultLimits())

	go func() {
		_, _ = ReadFrame(server, DefaultLimits())
	}()
	if _, err := codec.Send(OpTell, AppendUint64(nil, 9)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := codec.Send(OpTell, AppendUint64(nil, 9)); !errors.Is(err, ErrRequestPending) {
		t.Fatalf("expected ErrRequestPending, got %v", err)
	}
}

func TestCodecReceiveWithoutSend(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	codec := NewCodec(client, DefaultLimits())
	if _, _, err := codec.ReceiveFor(1, time.Time{}); !errors.Is(err, ErrNothingPending) {
		t.Fatalf("expected ErrNothingPending, got %v", err)
	}
}

func TestCodecTagMismatch(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	codec := NewCodec(client, DefaultLimits())

	respondOnce(t, server, func(req Frame) Frame {
		return Frame{Header: Header{Op: OpData, Tag: req.Header.Tag + 9}, Payload: nil}
	})
	tag, err := codec.Send(OpStat, AppendCString(nil, "/x"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	_, _, err = codec.ReceiveFor(tag, time.Now().Add(time.Second))
	var mismatch *TagMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected TagMismatchError, got %v", err)
	}
	if mismatch.Want != tag || mismatch.Got != tag+9 {
		t.Fatalf("unexpected mismatch detail: %+v", mismatch)
	}
}

func TestCodecDeadlineExpires(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	codec := NewCodec(client, DefaultLimits())

	go func() {
		_, _ = ReadFrame(server, DefaultLimits())
		// never respond
	}()
	tag, err := codec.Send(OpStat, AppendCString(nil, "/x"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	_, _, err = codec.ReceiveFor(tag, time.Now().Add(20*time.Millisecond))
	var nerr net.Error
	if !errors.As(err, &nerr) || !nerr.Timeout() {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestCodecPeerClosesMidFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	codec := NewCodec(client, DefaultLimits())

	go func() {
		_, _ = ReadFrame(server, DefaultLimits())
		hb := EncodeHeader(Header{Length: 64, Op: OpData, Tag: 1})
		_, _ = server.Write(hb)
		_, _ = server.Write([]byte{1, 2, 3})
		server.Close()
	}()
	tag, err := codec.Send(OpStat, AppendCString(nil, "/x"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	_, _, err = codec.ReceiveFor(tag, time.Now().Add(time.Second))
	if !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}
