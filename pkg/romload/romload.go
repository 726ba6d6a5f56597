// Package romload accepts a ROM path or io.Reader and transparently
// unwraps the common archive formats ROM dumps circulate in before
// handing raw bytes to the cartridge parser.
package romload

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// romExtensions are passed through unchanged; anything else is assumed
// to be an archive and dispatched by extension.
var romExtensions = map[string]bool{
	".gb":  true,
	".gbc": true,
	".cgb": true,
}

// Load reads path and returns the raw ROM bytes, decompressing a
// recognized .gz/.zip/.7z container first.
func Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("romload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("romload: %w", err)
	}

	return FromReader(bytes.NewReader(data), path)
}

// FromReader reads all of r and unwraps it as an archive according to
// name's extension. name is only consulted for its extension; the
// reader's contents are what get decoded.
func FromReader(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("romload: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if romExtensions[ext] {
		return data, nil
	}

	switch ext {
	case ".gz":
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("romload: gzip: %w", err)
		}
		defer gz.Close()
		return io.ReadAll(gz)
	case ".zip":
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("romload: zip: %w", err)
		}
		return readFirstROM(zr.File, func(f *zip.File) (io.ReadCloser, error) { return f.Open() }, zipName)
	case ".7z":
		sz, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("romload: 7z: %w", err)
		}
		return readFirstROM(sz.File, func(f *sevenzip.File) (io.ReadCloser, error) { return f.Open() }, sevenzipName)
	default:
		// no recognized container extension: assume it's already a raw
		// ROM image (some dumps ship without an extension at all).
		return data, nil
	}
}

func zipName(f *zip.File) string           { return f.Name }
func sevenzipName(f *sevenzip.File) string { return f.Name }

// readFirstROM scans an archive's file list for the first entry whose
// name carries a ROM extension, falling back to the first entry if none
// match (single-ROM archives are rarely named consistently).
func readFirstROM[F any](files []F, open func(F) (io.ReadCloser, error), name func(F) string) ([]byte, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("romload: archive is empty")
	}

	pick := files[0]
	for _, f := range files {
		if romExtensions[strings.ToLower(filepath.Ext(name(f)))] {
			pick = f
			break
		}
	}

	rc, err := open(pick)
	if err != nil {
		return nil, fmt.Errorf("romload: %w", err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}
