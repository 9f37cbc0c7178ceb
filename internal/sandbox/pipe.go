package sandbox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// writeFrame writes a length-prefixed JSON message: a big-endian uint32
// byte count followed by the JSON payload. This is the wire format of the
// execute_tool control pipe between the Go parent and the sandboxed
// interpreter (fd 3 for requests, fd 4 for responses).
func writeFrame(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal control frame: %w", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write control frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write control frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed JSON message and unmarshals it into v.
func readFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	const maxFrameBytes = 16 << 20
	if n > maxFrameBytes {
		return fmt.Errorf("control frame too large: %d bytes", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read control frame body: %w", err)
	}
	return json.Unmarshal(payload, v)
}
