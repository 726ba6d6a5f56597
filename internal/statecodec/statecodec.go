// Package statecodec compresses the byte streams produced by
// internal/types.State for cheaper save-state storage and transfer. The
// version header and section markers in the underlying stream are
// preserved byte-for-byte; only the wire representation changes.
package statecodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/google/brotli/go/cbrotli"
)

// Quality is the brotli compression level used for save-state blobs.
// Save states are produced far less often than frames, so the higher
// end of the quality range is worth the extra CPU time for the size win.
const Quality = 9

// Compress brotli-encodes raw, a types.State.Bytes() stream.
func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := cbrotli.NewWriter(&buf, cbrotli.WriterOptions{Quality: Quality})
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, fmt.Errorf("statecodec: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("statecodec: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress, returning a stream suitable for
// types.StateFromBytes.
func Decompress(compressed []byte) ([]byte, error) {
	r := cbrotli.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("statecodec: decompress: %w", err)
	}
	return raw, nil
}
