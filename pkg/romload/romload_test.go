package romload

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"testing"
)

func TestFromReader_RawExtensionPassesThrough(t *testing.T) {
	want := []byte{0x00, 0xC3, 0x50, 0x01}
	got, err := FromReader(bytes.NewReader(want), "game.gbc")
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("FromReader(.gbc) = %v, want %v", got, want)
	}
}

func TestFromReader_UnknownExtensionAssumedRaw(t *testing.T) {
	want := []byte("not a recognized container")
	got, err := FromReader(bytes.NewReader(want), "dump_no_ext")
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("FromReader(no ext) = %v, want %v", got, want)
	}
}

func TestFromReader_Gzip(t *testing.T) {
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(want); err != nil {
		t.Fatalf("gzip.Write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip.Close: %v", err)
	}

	got, err := FromReader(&buf, "game.gb.gz")
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("FromReader(.gz) = %v, want %v", got, want)
	}
}

func TestFromReader_ZipPicksROMExtensionOverReadme(t *testing.T) {
	want := []byte{0x01, 0x02, 0x03, 0x04}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	readme, err := zw.Create("README.txt")
	if err != nil {
		t.Fatalf("zw.Create(README): %v", err)
	}
	if _, err := readme.Write([]byte("read me first")); err != nil {
		t.Fatalf("write README: %v", err)
	}

	rom, err := zw.Create("game.gb")
	if err != nil {
		t.Fatalf("zw.Create(game.gb): %v", err)
	}
	if _, err := rom.Write(want); err != nil {
		t.Fatalf("write game.gb: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zw.Close: %v", err)
	}

	got, err := FromReader(bytes.NewReader(buf.Bytes()), "archive.zip")
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("FromReader(.zip) = %v, want %v (picked wrong entry)", got, want)
	}
}

func TestFromReader_ZipFallsBackToFirstEntry(t *testing.T) {
	want := []byte{0xAA, 0xBB}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("mystery.bin")
	if err != nil {
		t.Fatalf("zw.Create: %v", err)
	}
	if _, err := f.Write(want); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zw.Close: %v", err)
	}

	got, err := FromReader(bytes.NewReader(buf.Bytes()), "archive.zip")
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("FromReader(.zip, no ROM-named entry) = %v, want %v", got, want)
	}
}

func TestFromReader_EmptyZipIsError(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := zw.Close(); err != nil {
		t.Fatalf("zw.Close: %v", err)
	}

	if _, err := FromReader(bytes.NewReader(buf.Bytes()), "empty.zip"); err == nil {
		t.Fatal("FromReader(empty .zip) = nil error, want an error")
	}
}
