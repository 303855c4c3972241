package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestWriteReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := NewPingRequest()
	if err := WriteMessage(&buf, want); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	payload, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	got, err := DecodeRequest(payload)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestReadFrame_EndOfStreamOnEmptyStream(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadFrame_ShortHeaderIsFatal(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x01, 0x02}))
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected a fatal framing error, got %v", err)
	}
}

func TestReadFrame_ShortPayloadIsFatal(t *testing.T) {
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, 10)
	stream := append(header, []byte("short")...) // declared 10, only 5 present
	_, err := ReadFrame(bytes.NewReader(stream))
	if err == nil {
		t.Fatal("expected a fatal framing error for short payload")
	}
}

func TestReadFrame_OversizedLengthIsInvalidFrame(t *testing.T) {
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, MaxFramePayload+1)
	_, err := ReadFrame(bytes.NewReader(header))
	if !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestWriteFrame_OversizedPayloadIsInvalidFrame(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxFramePayload+1))
	if !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestFrame_LargeBinaryPayloadRoundTrips(t *testing.T) {
	data := make([]byte, 8*1024)
	for i := range data {
		data[i] = byte(i % 256)
	}
	want := NewInputRequest("session-1", data)

	var buf bytes.Buffer
	if err := WriteMessage(&buf, want); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	payload, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	got, err := DecodeRequest(payload)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	gotInput, ok := got.(InputRequest)
	if !ok {
		t.Fatalf("expected InputRequest, got %T", got)
	}
	if !bytes.Equal(gotInput.Data, data) {
		t.Fatal("binary payload did not round-trip byte-for-byte")
	}
}

func TestFrame_MultipleFramesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	msgs := []any{NewPingRequest(), NewListRequest(), NewKillRequest("abc")}
	for _, m := range msgs {
		if err := WriteMessage(&buf, m); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}

	for _, want := range msgs {
		payload, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		got, err := DecodeRequest(payload)
		if err != nil {
			t.Fatalf("DecodeRequest: %v", err)
		}
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	}
	if _, err := ReadFrame(&buf); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after draining all frames, got %v", err)
	}
}
