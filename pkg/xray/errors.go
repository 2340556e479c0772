package xray

import (
	"errors"
	"fmt"
)

// ValidationError means the uploaded file is structurally fine to reject without
// decoding it fully: wrong format, out-of-bounds dimensions, or too many bytes.
// The caller can fix this by uploading a different file.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// DecodeError means the file claimed to be an image, but its pixel data could
// not be decoded (eg a truncated JPEG).
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("Failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsDecodeError(err error) bool {
	var d *DecodeError
	return errors.As(err, &d)
}
