// Package pkginfo reads the embedded metadata of pacman binary package
// archives: a compressed tarball carrying a .PKGINFO member next to the
// package's payload files.
package pkginfo

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// InvalidPackageError marks archives whose compression was recognized but
// that could not be parsed as a package. It is surfaced to users as
// "invalid package format".
type InvalidPackageError struct {
	Reason string
	Inner  error
}

func (e *InvalidPackageError) Error() string {
	if e.Inner != nil {
		return "invalid package: " + e.Reason + ": " + e.Inner.Error()
	}

	return "invalid package: " + e.Reason
}

func (e *InvalidPackageError) Unwrap() error {
	return e.Inner
}

// FileEntry is one member path inside the archive with its unpacked size.
type FileEntry struct {
	Name string
	Size int64
}

// PackageInfo carries everything the catalog stores about one package
// archive.
type PackageInfo struct {
	Name           string
	Version        string
	Description    string
	Architecture   string
	URL            string
	Licenses       []string
	Dependencies   []string
	CompressedSize int64
	InstalledSize  int64
	BuildDate      time.Time
	Files          []FileEntry
	// Extension is the stored archive extension, e.g. "pkg.tar.zst".
	Extension string
}

// Read sniffs the compression format of the archive at path and extracts
// its .PKGINFO metadata and member file list.
func Read(path string) (*PackageInfo, error) {
	compression, err := DetectCompression(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	reader, err := compression.open(file)
	if err != nil {
		var invalid *InvalidPackageError
		if errors.As(err, &invalid) {
			return nil, err
		}

		return nil, &InvalidPackageError{Reason: "corrupt compression stream", Inner: err}
	}

	info := &PackageInfo{
		CompressedSize: stat.Size(),
		Extension:      "pkg.tar." + compression.Suffix,
	}

	if err := readMembers(tar.NewReader(reader), info); err != nil {
		return nil, err
	}

	if info.Name == "" || info.Version == "" {
		return nil, &InvalidPackageError{Reason: "missing pkgname or pkgver"}
	}

	return info, nil
}

// readMembers walks the tarball once, parsing .PKGINFO and collecting the
// payload file list. Directory members and the dot-prefixed metadata
// members never enter the file list.
func readMembers(archive *tar.Reader, info *PackageInfo) error {
	foundPkginfo := false

	for {
		header, err := archive.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &InvalidPackageError{Reason: "corrupt tar archive", Inner: err}
		}

		name := strings.TrimPrefix(header.Name, "./")
		if name == "" {
			continue
		}

		if strings.HasPrefix(name, ".") {
			if name == ".PKGINFO" {
				foundPkginfo = true
				if err := parsePkginfo(archive, info); err != nil {
					return err
				}
			}

			continue
		}

		if header.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			continue
		}

		info.Files = append(info.Files, FileEntry{Name: name, Size: header.Size})
	}

	if !foundPkginfo {
		return &InvalidPackageError{Reason: "missing .PKGINFO"}
	}

	return nil
}

// parsePkginfo reads the "key = value" lines of a .PKGINFO member. Repeated
// keys (license, depend) accumulate.
func parsePkginfo(r io.Reader, info *PackageInfo) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "pkgname":
			info.Name = value
		case "pkgver":
			info.Version = value
		case "pkgdesc":
			info.Description = value
		case "url":
			info.URL = value
		case "arch":
			info.Architecture = value
		case "license":
			info.Licenses = append(info.Licenses, value)
		case "depend":
			info.Dependencies = append(info.Dependencies, value)
		case "size":
			size, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return &InvalidPackageError{Reason: "malformed size field", Inner: err}
			}
			info.InstalledSize = size
		case "builddate":
			seconds, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return &InvalidPackageError{Reason: "malformed builddate field", Inner: err}
			}
			info.BuildDate = time.Unix(seconds, 0).UTC()
		}
	}

	if err := scanner.Err(); err != nil {
		return &InvalidPackageError{Reason: "unreadable .PKGINFO", Inner: err}
	}

	return nil
}
