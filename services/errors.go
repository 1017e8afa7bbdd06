package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidInput       = errors.New("invalid input")
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrInvalidTransition  = errors.New("invalid step transition")
	ErrUnauthenticated    = errors.New("unauthenticated")

	ErrRequiredFieldsMissing = errors.New("required fields missing")
)

// ConversionFailedError reports that a HEIC upload could not be converted
// to JPEG. Nothing was written to storage.
type ConversionFailedError struct {
	FileName string
	Err      error
}

func (e *ConversionFailedError) Error() string {
	return fmt.Sprintf("convert %s to JPEG: %v", e.FileName, e.Err)
}

func (e *ConversionFailedError) Unwrap() error { return e.Err }

// UploadFailedError reports that the object store rejected the write. No
// reference was produced.
type UploadFailedError struct {
	Path string
	Err  error
}

func (e *UploadFailedError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadFailedError) Unwrap() error { return e.Err }

// FileNotResolvableError reports that no download strategy produced bytes.
type FileNotResolvableError struct {
	Name     string
	Attempts []error
}

func (e *FileNotResolvableError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("file %q has no storage path or url", e.Name)
	}
	msgs := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("file %q could not be resolved: %s", e.Name, strings.Join(msgs, "; "))
}

// PersistenceFailedError reports a failed insert, update or delete.
type PersistenceFailedError struct {
	Op  string
	Err error
}

func (e *PersistenceFailedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceFailedError) Unwrap() error { return e.Err }

// RequiredFieldsMissingError lists required custom fields left empty.
type RequiredFieldsMissingError struct {
	Fields []string
}

func (e *RequiredFieldsMissingError) Error() string {
	return "required fields missing: " + strings.Join(e.Fields, ", ")
}

func (e *RequiredFieldsMissingError) Is(target error) bool {
	return target == ErrRequiredFieldsMissing || target == ErrInvalidInput
}

func persistenceFailed(op string, err error) error {
	return &PersistenceFailedError{Op: op, Err: err}
}
