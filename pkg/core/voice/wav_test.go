package voice

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestSpeechStreamHeader(t *testing.T) {
	header := SpeechStreamHeader()
	if len(header) != 44 {
		t.Fatalf("header length = %d, want 44", len(header))
	}
	if !bytes.Equal(header[0:4], []byte("RIFF")) {
		t.Fatalf("missing RIFF marker: %q", header[0:4])
	}
	if !bytes.Equal(header[8:12], []byte("WAVE")) {
		t.Fatalf("missing WAVE marker: %q", header[8:12])
	}
	if !bytes.Equal(header[36:40], []byte("data")) {
		t.Fatalf("missing data marker: %q", header[36:40])
	}

	if format := binary.LittleEndian.Uint16(header[20:22]); format != 1 {
		t.Fatalf("audio format = %d, want 1 (PCM)", format)
	}
	if channels := binary.LittleEndian.Uint16(header[22:24]); channels != 1 {
		t.Fatalf("channels = %d, want 1", channels)
	}
	if rate := binary.LittleEndian.Uint32(header[24:28]); rate != 48000 {
		t.Fatalf("sample rate = %d, want 48000", rate)
	}
	if bits := binary.LittleEndian.Uint16(header[34:36]); bits != 16 {
		t.Fatalf("bits per sample = %d, want 16", bits)
	}
	if byteRate := binary.LittleEndian.Uint32(header[28:32]); byteRate != 48000*2 {
		t.Fatalf("byte rate = %d, want %d", byteRate, 48000*2)
	}

	// Length fields are placeholders for an unbounded stream.
	if size := binary.LittleEndian.Uint32(header[4:8]); size != 0xFFFFFFFF {
		t.Fatalf("riff size = %#x, want placeholder", size)
	}
	if size := binary.LittleEndian.Uint32(header[40:44]); size != 0xFFFFFFFF {
		t.Fatalf("data size = %#x, want placeholder", size)
	}
}
