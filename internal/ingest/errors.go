package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrSheetNotFound is returned when a requested sheet is not in the file.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrUnsupportedKind is returned for file extensions that cannot be loaded.
	ErrUnsupportedKind = errors.New("unsupported file type")

	// ErrEmptyFile is returned when the upload has no bytes at all.
	ErrEmptyFile = errors.New("empty file")
)

// UnreadableFileError reports bytes that could not be parsed as the declared
// file kind: a corrupt archive, an encoding problem or malformed rows.
type UnreadableFileError struct {
	Kind FileKind
	Err  error
}

func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("unreadable %s file: %v", e.Kind, e.Err)
}

func (e *UnreadableFileError) Unwrap() error {
	return e.Err
}

func unreadable(kind FileKind, err error) error {
	return &UnreadableFileError{Kind: kind, Err: err}
}
