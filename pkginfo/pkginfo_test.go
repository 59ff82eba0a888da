package pkginfo

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePkginfo = `# Generated by makepkg 6.1.0
pkgname = warehouse-test
pkgbase = warehouse-test
pkgver = 1:1.2.3-4
pkgdesc = A package used in tests
url = https://example.com/warehouse-test
builddate = 1729000000
size = 4096
arch = x86_64
license = MIT
license = Apache
depend = glibc
depend = openssl>=3.0
`

type member struct {
	name    string
	dir     bool
	content []byte
}

func buildTar(t *testing.T, members []member) []byte {
	t.Helper()

	var buffer bytes.Buffer
	writer := tar.NewWriter(&buffer)

	for _, m := range members {
		header := &tar.Header{
			Name: m.name,
			Mode: 0o644,
			Size: int64(len(m.content)),
		}
		if m.dir {
			header.Typeflag = tar.TypeDir
			header.Mode = 0o755
		}

		require.NoError(t, writer.WriteHeader(header))
		if !m.dir {
			_, err := writer.Write(m.content)
			require.NoError(t, err)
		}
	}

	require.NoError(t, writer.Close())

	return buffer.Bytes()
}

func compressZstd(t *testing.T, data []byte) []byte {
	t.Helper()

	var buffer bytes.Buffer
	writer, err := zstd.NewWriter(&buffer)
	require.NoError(t, err)
	_, err = writer.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return buffer.Bytes()
}

func compressGzip(t *testing.T, data []byte) []byte {
	t.Helper()

	var buffer bytes.Buffer
	writer := gzip.NewWriter(&buffer)
	_, err := writer.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return buffer.Bytes()
}

func writeArchive(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "archive")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func sampleMembers() []member {
	return []member{
		{name: ".PKGINFO", content: []byte(samplePkginfo)},
		{name: ".BUILDINFO", content: []byte("ignored")},
		{name: ".MTREE", content: []byte("ignored")},
		{name: "./usr/", dir: true},
		{name: "./usr/bin/", dir: true},
		{name: "./usr/bin/warehouse-test", content: bytes.Repeat([]byte{0x42}, 128)},
		{name: "./usr/share/doc/warehouse-test/README", content: []byte("docs")},
	}
}

func TestReadZstdArchive(t *testing.T) {
	data := compressZstd(t, buildTar(t, sampleMembers()))
	path := writeArchive(t, data)

	info, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, "warehouse-test", info.Name)
	assert.Equal(t, "1:1.2.3-4", info.Version)
	assert.Equal(t, "A package used in tests", info.Description)
	assert.Equal(t, "x86_64", info.Architecture)
	assert.Equal(t, "https://example.com/warehouse-test", info.URL)
	assert.Equal(t, []string{"MIT", "Apache"}, info.Licenses)
	assert.Equal(t, []string{"glibc", "openssl>=3.0"}, info.Dependencies)
	assert.Equal(t, int64(4096), info.InstalledSize)
	assert.Equal(t, int64(len(data)), info.CompressedSize)
	assert.Equal(t, time.Unix(1729000000, 0).UTC(), info.BuildDate)
	assert.Equal(t, "pkg.tar.zst", info.Extension)

	// Directories and dot-prefixed metadata members stay out of the list.
	assert.Equal(t, []FileEntry{
		{Name: "usr/bin/warehouse-test", Size: 128},
		{Name: "usr/share/doc/warehouse-test/README", Size: 4},
	}, info.Files)
}

func TestReadGzipArchive(t *testing.T) {
	path := writeArchive(t, compressGzip(t, buildTar(t, sampleMembers())))

	info, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "warehouse-test", info.Name)
	assert.Equal(t, "pkg.tar.gz", info.Extension)
}

func TestReadRejectsUnknownFormat(t *testing.T) {
	path := writeArchive(t, []byte("this is not a package archive"))

	_, err := Read(path)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestReadRejectsShortFile(t *testing.T) {
	// Fewer bytes than the longest magic cannot match anything.
	path := writeArchive(t, []byte{0x1F})

	_, err := Read(path)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestReadRejectsMissingPkginfo(t *testing.T) {
	members := []member{
		{name: "usr/bin/tool", content: []byte("payload")},
	}
	path := writeArchive(t, compressZstd(t, buildTar(t, members)))

	_, err := Read(path)
	var invalid *InvalidPackageError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Error(), ".PKGINFO")
}

func TestReadRejectsMissingName(t *testing.T) {
	members := []member{
		{name: ".PKGINFO", content: []byte("pkgver = 1.0-1\n")},
	}
	path := writeArchive(t, compressZstd(t, buildTar(t, members)))

	_, err := Read(path)
	var invalid *InvalidPackageError
	assert.ErrorAs(t, err, &invalid)
}

func TestReadRejectsCorruptStream(t *testing.T) {
	// A zstd magic followed by garbage is recognized but unreadable.
	data := append([]byte{0x28, 0xB5, 0x2F, 0xFD}, bytes.Repeat([]byte{0xFF}, 32)...)
	path := writeArchive(t, data)

	_, err := Read(path)
	var invalid *InvalidPackageError
	assert.ErrorAs(t, err, &invalid)
}

func TestReadRejectsMalformedSize(t *testing.T) {
	members := []member{
		{name: ".PKGINFO", content: []byte("pkgname = a\npkgver = 1-1\nsize = large\n")},
	}
	path := writeArchive(t, compressZstd(t, buildTar(t, members)))

	_, err := Read(path)
	var invalid *InvalidPackageError
	assert.ErrorAs(t, err, &invalid)
}

func TestDetectCompression(t *testing.T) {
	cases := []struct {
		suffix string
		magic  []byte
	}{
		{"xz", []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00, 0x00}},
		{"zst", []byte{0x28, 0xB5, 0x2F, 0xFD}},
		{"lz", []byte{0x4C, 0x5A, 0x49, 0x50}},
		{"lz4", []byte{0x04, 0x22, 0x4D, 0x18}},
		{"bz2", []byte{0x42, 0x5A, 0x68}},
		{"gz", []byte{0x1F, 0x8B}},
		{"Z", []byte{0x1F, 0x9D}},
	}
	for _, tc := range cases {
		t.Run(tc.suffix, func(t *testing.T) {
			data := make([]byte, magicLen)
			copy(data, tc.magic)
			path := writeArchive(t, data)

			compression, err := DetectCompression(path)
			require.NoError(t, err)
			assert.Equal(t, tc.suffix, compression.Suffix)
		})
	}
}

func TestDetectCompressionMissingFile(t *testing.T) {
	_, err := DetectCompression(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrUnsupportedFileType)
}

func TestCompressArchiveRejectsLZW(t *testing.T) {
	data := make([]byte, magicLen)
	copy(data, []byte{0x1F, 0x9D})
	path := writeArchive(t, data)

	_, err := Read(path)
	var invalid *InvalidPackageError
	assert.ErrorAs(t, err, &invalid)
}

func TestParsePkginfoIgnoresUnknownKeys(t *testing.T) {
	info := &PackageInfo{}
	content := "pkgname = a\npkgver = 1-1\npackager = Somebody <x@example.com>\nmakedepend = cmake\n"
	require.NoError(t, parsePkginfo(bytes.NewReader([]byte(content)), info))
	assert.Equal(t, "a", info.Name)
	assert.Equal(t, "1-1", info.Version)
	assert.Empty(t, info.Dependencies)
}
