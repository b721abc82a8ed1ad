package tile

import (
	"bytes"
	"io"
	"os"
)

// PNGSignature is the fixed 8-byte prefix of every PNG file.
var PNGSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// HasPNGSignature reports whether r starts with the PNG signature.
// A short read means no.
func HasPNGSignature(r io.Reader) bool {
	header := make([]byte, len(PNGSignature))
	if _, err := io.ReadFull(r, header); err != nil {
		return false
	}
	return bytes.Equal(header, PNGSignature)
}

// ValidFile reports whether the file at path exists and starts with the PNG
// signature. This is the whole validity predicate for a tile artifact: it is
// a cheap structural check that catches truncated downloads, zero-byte files
// and HTML error pages saved as tiles. It deliberately does not decode the
// image; a well-formed PNG with wrong content passes.
func ValidFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return HasPNGSignature(f)
}
