// Package protocol implements the length-prefixed wire framing and the
// request/event message model shared by the daemon and its clients.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFramePayload is the largest payload a single frame may carry.
const MaxFramePayload = 64 * 1024 * 1024

// ErrInvalidFrame is returned when a frame's declared length is out of
// bounds (negative, or greater than MaxFramePayload).
var ErrInvalidFrame = errors.New("protocol: invalid frame length")

// WriteFrame prefixes payload with its 4-byte little-endian length and
// writes both to w in one call. payload is an already-serialized
// message body — see Encode for producing one from a Request or Event.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFramePayload {
		return fmt.Errorf("protocol: payload of %d bytes exceeds max %d: %w", len(payload), MaxFramePayload, ErrInvalidFrame)
	}

	buf := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one frame from r and returns its raw payload
// bytes, undecoded. It returns io.EOF when the stream ends cleanly
// before any header byte is read — the "EndOfStream" case in spec
// terms. Any other short read is a fatal framing error
// (io.ErrUnexpectedEOF, wrapped).
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("protocol: read frame header: %w", err)
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxFramePayload {
		return nil, fmt.Errorf("protocol: declared length %d exceeds max %d: %w", length, MaxFramePayload, ErrInvalidFrame)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("protocol: read frame payload: %w", err)
		}
	}
	return payload, nil
}

// WriteMessage encodes msg (a Request or Event) and writes it as a
// single frame.
func WriteMessage(w io.Writer, msg any) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	return WriteFrame(w, payload)
}
