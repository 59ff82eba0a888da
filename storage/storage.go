// Package storage owns the on-disk layout of published package archives and
// repository index archives beneath the configured data root.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Storage places files into and removes files from the data root. It is the
// sole writer of the packages/ tree.
type Storage struct {
	dataDir string
}

// New creates the data root if necessary.
func New(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Storage{dataDir: dataDir}, nil
}

// PackagePath is the canonical location of one package archive:
// <data>/packages/<repository>/<architecture>/<name>.<extension>.
func (s *Storage) PackagePath(repository, architecture, name, extension string) string {
	return filepath.Join(
		s.dataDir,
		"packages",
		repository,
		architecture,
		name+"."+extension,
	)
}

// RepositoryIndexPath is the canonical location of the index archive for
// one (repository, architecture) pair:
// <data>/packages/<repository>/<architecture>/repository.<extension>.
func (s *Storage) RepositoryIndexPath(repository, architecture, extension string) string {
	return filepath.Join(
		s.dataDir,
		"packages",
		repository,
		architecture,
		"repository."+extension,
	)
}

// Key converts an absolute path under the data root into the relative,
// slash-separated form used as mirror object key.
func (s *Storage) Key(path string) string {
	rel, err := filepath.Rel(s.dataDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}

	return filepath.ToSlash(rel)
}

// Place copies the uploaded temp file at src into its canonical dst,
// creating parent directories as needed. The copy goes through a temp file
// in the target directory plus a rename, so a concurrent download never
// observes a half-written archive.
func (s *Storage) Place(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create package directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), ".placing-*")
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(out.Name())

		return fmt.Errorf("failed to copy uploaded file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())

		return fmt.Errorf("failed to finish staging file: %w", err)
	}

	if err := os.Rename(out.Name(), dst); err != nil {
		_ = os.Remove(out.Name())

		return fmt.Errorf("failed to move file into place: %w", err)
	}

	return nil
}

// Stash moves the file at path aside into a hidden sibling so a failed
// replacement can be undone with Unstash. Returns the stash location, or
// "" when nothing exists at path.
func (s *Storage) Stash(path string) (string, error) {
	stash := filepath.Join(filepath.Dir(path), ".stash-"+filepath.Base(path))
	if err := os.Rename(path, stash); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}

		return "", fmt.Errorf("failed to stash file: %w", err)
	}

	return stash, nil
}

// Unstash moves a stashed file back to its original location.
func (s *Storage) Unstash(stash, path string) error {
	if err := os.Rename(stash, path); err != nil {
		return fmt.Errorf("failed to restore stashed file: %w", err)
	}

	return nil
}

// Remove deletes the file at path; a missing file is not an error.
func (s *Storage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}

	return nil
}
