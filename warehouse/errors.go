package warehouse

import (
	"errors"
	"fmt"

	"warehouse/pkginfo"
)

// ErrFileNotFound is returned when the multipart form carries no uploaded
// "file" part
var ErrFileNotFound = errors.New("file not found")

// ErrUnauthorizedUpdate is returned when the acting user is neither admin
// nor the package's current maintainer
var ErrUnauthorizedUpdate = errors.New("unauthorized update")

// TextFieldNotFoundError reports a missing required form text field
type TextFieldNotFoundError struct {
	Field string
}

func (e *TextFieldNotFoundError) Error() string {
	return "Text field " + e.Field + " not found"
}

// RepositoryNotFoundError reports an unknown target repository name
type RepositoryNotFoundError struct {
	Name string
}

func (e *RepositoryNotFoundError) Error() string {
	return "Repository " + e.Name + " not found"
}

// OlderPackageVersionError rejects an import that does not strictly exceed
// the stored version
type OlderPackageVersionError struct {
	Old string
	New string
}

func (e *OlderPackageVersionError) Error() string {
	return fmt.Sprintf(
		"Package already exists in a more recent version. %s <= %s",
		e.New,
		e.Old,
	)
}

// ReadPackageError wraps failures of the archive metadata reader
type ReadPackageError struct {
	Inner error
}

func (e *ReadPackageError) Error() string {
	return "Failed to read package: " + e.Inner.Error()
}

func (e *ReadPackageError) Unwrap() error {
	return e.Inner
}

// FileTooLargeError is produced by the upload boundary when the multipart
// body exceeds the configured limit
type FileTooLargeError struct {
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("File too large. Limited to %d bytes", e.Limit)
}

// UserMessage translates user-correctable import failures into a display
// string. Infrastructure errors return false and bubble unchanged.
func UserMessage(err error) (string, bool) {
	var tooLarge *FileTooLargeError
	if errors.As(err, &tooLarge) {
		return fmt.Sprintf("File too large. Limited to %d bytes.", tooLarge.Limit), true
	}

	var invalid *pkginfo.InvalidPackageError
	if errors.As(err, &invalid) {
		return "Invalid package format.", true
	}

	if errors.Is(err, pkginfo.ErrUnsupportedFileType) {
		return "Unsupported file type.", true
	}

	var older *OlderPackageVersionError
	if errors.As(err, &older) {
		return fmt.Sprintf(
			"Package already exists in a more recent version. %s <= %s.",
			older.New,
			older.Old,
		), true
	}

	if errors.Is(err, ErrUnauthorizedUpdate) {
		return "You are not the maintainer of the package.", true
	}

	return "", false
}

// IsInputError reports whether the failure is user-correctable and should
// map to a 400-class response instead of a 500.
func IsInputError(err error) bool {
	if _, ok := UserMessage(err); ok {
		return true
	}

	var textField *TextFieldNotFoundError
	var repoNotFound *RepositoryNotFoundError

	return errors.As(err, &textField) ||
		errors.As(err, &repoNotFound) ||
		errors.Is(err, ErrFileNotFound)
}
