package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression identifies the codec of a package or source archive.
type Compression string

const (
	CompressionGzip Compression = "gz"
	CompressionZstd Compression = "zst"
	CompressionXz   Compression = "xz"
)

// ParseCompression validates a codec name from configuration.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case CompressionGzip, CompressionZstd, CompressionXz:
		return Compression(s), nil
	default:
		return "", fmt.Errorf("unsupported compression %q (want gz, zst or xz)", s)
	}
}

// Ext returns the file name extension for the codec.
func (c Compression) Ext() string {
	return string(c)
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Decompress wraps r with the decompressor for its codec, sniffed from the
// leading magic bytes with the file name extension as fallback. name is
// only used for the fallback and error messages.
func Decompress(r io.Reader, name string) (io.ReadCloser, Compression, error) {
	br := bufio.NewReader(r)

	comp, ok := sniff(br)
	if !ok {
		comp, ok = byExtension(name)
	}
	if !ok {
		return nil, "", fmt.Errorf("cannot determine compression of %s", name)
	}

	rc, err := newReader(br, comp)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", name, err)
	}
	return rc, comp, nil
}

func sniff(br *bufio.Reader) (Compression, bool) {
	head, err := br.Peek(6)
	if err != nil && len(head) < 2 {
		return "", false
	}
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip, true
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd, true
	case bytes.HasPrefix(head, xzMagic):
		return CompressionXz, true
	}
	return "", false
}

func byExtension(name string) (Compression, bool) {
	switch {
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".tgz"):
		return CompressionGzip, true
	case strings.HasSuffix(name, ".zst"):
		return CompressionZstd, true
	case strings.HasSuffix(name, ".xz"):
		return CompressionXz, true
	}
	return "", false
}

func newReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case CompressionXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", c)
	}
}

func newWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		return zstd.NewWriter(w)
	case CompressionXz:
		return xz.NewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported compression %q", c)
	}
}
