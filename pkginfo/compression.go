package pkginfo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// ErrUnsupportedFileType is returned when the first bytes of an upload match
// no known compression magic, or fewer than magicLen bytes are available.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// magicLen is the number of leading bytes inspected; the longest known
// magic (xz) is 7 bytes.
const magicLen = 7

// Compression identifies the archive's outer compression format.
type Compression struct {
	// Suffix is the file extension fragment, e.g. "zst" in "pkg.tar.zst".
	Suffix string

	magic []byte
	open  func(io.Reader) (io.Reader, error)
}

// The table is ordered most-specific (longest) prefix first.
var compressions = []Compression{
	{
		Suffix: "xz",
		magic:  []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00, 0x00},
		open: func(r io.Reader) (io.Reader, error) {
			reader, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}

			return reader, nil
		},
	},
	{
		Suffix: "zst",
		magic:  []byte{0x28, 0xB5, 0x2F, 0xFD},
		open: func(r io.Reader) (io.Reader, error) {
			reader, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}

			return reader.IOReadCloser(), nil
		},
	},
	{
		Suffix: "lz",
		magic:  []byte{0x4C, 0x5A, 0x49, 0x50},
		open: func(r io.Reader) (io.Reader, error) {
			reader, err := lzip.NewReader(r)
			if err != nil {
				return nil, err
			}

			return reader, nil
		},
	},
	{
		Suffix: "lz4",
		magic:  []byte{0x04, 0x22, 0x4D, 0x18},
		open: func(r io.Reader) (io.Reader, error) {
			return lz4.NewReader(r), nil
		},
	},
	{
		Suffix: "bz2",
		magic:  []byte{0x42, 0x5A, 0x68},
		open: func(r io.Reader) (io.Reader, error) {
			reader, err := bzip2.NewReader(r, nil)
			if err != nil {
				return nil, err
			}

			return reader, nil
		},
	},
	{
		Suffix: "gz",
		magic:  []byte{0x1F, 0x8B},
		open: func(r io.Reader) (io.Reader, error) {
			reader, err := gzip.NewReader(r)
			if err != nil {
				return nil, err
			}

			return reader, nil
		},
	},
	{
		// compress(1) output is recognized for extension purposes but its
		// LZW variant has no Go reader, so the metadata cannot be parsed.
		Suffix: "Z",
		magic:  []byte{0x1F, 0x9D},
		open: func(io.Reader) (io.Reader, error) {
			return nil, &InvalidPackageError{
				Reason: "compress(1) archives cannot be read",
			}
		},
	},
}

// DetectCompression sniffs the compression format from the file's first
// bytes.
func DetectCompression(path string) (Compression, error) {
	file, err := os.Open(path)
	if err != nil {
		return Compression{}, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	buffer := make([]byte, magicLen)
	if _, err := io.ReadFull(file, buffer); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Compression{}, ErrUnsupportedFileType
		}

		return Compression{}, fmt.Errorf("read archive header: %w", err)
	}

	for _, compression := range compressions {
		if bytes.HasPrefix(buffer, compression.magic) {
			return compression, nil
		}
	}

	return Compression{}, ErrUnsupportedFileType
}
