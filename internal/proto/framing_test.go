package proto

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"
)

func TestWriteThenReadFrame(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"action":"list_rooms"}`)
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if buf.Len() != 4+len(payload) {
		t.Fatalf("unexpected frame size: %d", buf.Len())
	}

	got, err := ReadFrame(&buf, 0)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	if _, err := ReadFrame(&buf, 0); !errors.Is(err, ErrInvalidFrameLength) {
		t.Fatalf("expected invalid length error, got %v", err)
	}
}

func TestReadFrameRejectsOversizedDeclaration(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 1<<24)
	buf.Write(header[:])
	if _, err := ReadFrame(&buf, 1024); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected frame too large error, got %v", err)
	}
}

func TestConnRoundTripJSON(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cc := NewConn(client)
	sc := NewConn(server)

	done := make(chan error, 1)
	go func() {
		done <- cc.WriteJSON(Envelope{Action: "join_room", Data: json.RawMessage(`{"room_id":3}`)})
	}()

	env, err := sc.ReadEnvelope()
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	if env.Action != "join_room" {
		t.Fatalf("unexpected action: %q", env.Action)
	}
	if err := <-done; err != nil {
		t.Fatalf("write json: %v", err)
	}
}

func TestConnIdleTimeoutFiresOnSilentPeer(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sc := NewConn(server, WithIdleTimeout(30*time.Millisecond))
	if _, err := sc.ReadFrame(); err == nil {
		t.Fatalf("expected timeout error from silent peer")
	}
}

func TestErrorResponseShape(t *testing.T) {
	resp := Error("join_room", "room_full")
	if resp.Status != StatusError || resp.Action != "join_room" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	var data map[string]string
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["reason"] != "room_full" {
		t.Fatalf("unexpected reason: %q", data["reason"])
	}
}
