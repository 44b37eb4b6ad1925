package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	chunk := chunkOf(160, 1000)

	data, err := EncodeWAV(chunk)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != 44+len(chunk.PCM) {
		t.Fatalf("encoded size = %d, want %d", len(data), 44+len(chunk.PCM))
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Error("missing RIFF/WAVE markers")
	}

	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if channels := binary.LittleEndian.Uint16(data[22:24]); channels != 1 {
		t.Errorf("channels = %d, want 1", channels)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != 16 {
		t.Errorf("bits per sample = %d, want 16", bits)
	}
	if dataSize := binary.LittleEndian.Uint32(data[40:44]); dataSize != uint32(len(chunk.PCM)) {
		t.Errorf("data size = %d, want %d", dataSize, len(chunk.PCM))
	}
	if !bytes.Equal(data[44:], chunk.PCM) {
		t.Error("PCM payload not preserved")
	}
}

func TestEncodeWAVRejectsEmptyChunk(t *testing.T) {
	if _, err := EncodeWAV(&Chunk{SampleRate: 16000}); err == nil {
		t.Error("expected error for empty chunk")
	}
}
