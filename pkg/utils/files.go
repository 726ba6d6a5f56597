package utils

import (
	"io"
	"os"
)

// IsSize reports whether filename exists and is exactly size bytes long.
func IsSize(filename string, size int64) bool {
	fi, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return fi.Size() == size
}

// LoadFile reads filename's contents as-is; ROM archive unwrapping lives
// in pkg/romload, since save files and other flat binary blobs never
// need it.
func LoadFile(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
