package sandbox

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWriteFrameReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := chainRequest{NameOrID: "my_tool", Args: map[string]any{"x": 1.0}}

	if err := writeFrame(&buf, req); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}

	var got chainRequest
	if err := readFrame(&buf, &got); err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if got.NameOrID != "my_tool" {
		t.Errorf("NameOrID = %q, want %q", got.NameOrID, "my_tool")
	}
	if got.Args["x"] != 1.0 {
		t.Errorf("Args[x] = %v, want 1.0", got.Args["x"])
	}
}

func TestReadFrame_RejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 32<<20) // 32MB, above the 16MB guard
	buf.Write(header[:])

	var out any
	if err := readFrame(&buf, &out); err == nil {
		t.Error("expected error for oversized frame")
	}
}

func TestReadFrame_TruncatedHeader(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x01})

	var out any
	if err := readFrame(buf, &out); err == nil {
		t.Error("expected error for truncated header")
	}
}
