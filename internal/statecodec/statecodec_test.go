package statecodec

import (
	"bytes"
	"testing"
)

func TestCompressDecompress_RoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x00, 0xFF, 0x42, 0x99}, 4096)

	compressed, err := Compress(raw)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) == 0 {
		t.Fatal("Compress returned an empty blob")
	}

	got, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(raw))
	}
}

func TestCompress_ShrinksRepetitiveData(t *testing.T) {
	raw := bytes.Repeat([]byte{0xAB}, 64*1024)

	compressed, err := Compress(raw)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) >= len(raw) {
		t.Fatalf("Compress(64KB of one byte) = %d bytes, want it smaller than %d", len(compressed), len(raw))
	}
}

func TestDecompress_GarbageIsError(t *testing.T) {
	if _, err := Decompress([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("Decompress(garbage) = nil error, want an error")
	}
}
