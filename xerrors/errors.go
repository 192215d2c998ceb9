// Package xerrors classifies stage-worker failures as permanent or
// retryable, mirroring the failure policy in the pipeline package.
package xerrors

import "errors"

// PermanentError wraps an error that is structurally impossible to succeed
// on retry (missing required input, absent credentials, ...). The Failure
// Policy sends a job straight to Failed when it sees one, regardless of
// FailCount.
type PermanentError struct{ error }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return PermanentError{err}
}

func (e PermanentError) Unwrap() error {
	return e.error
}

// IsPermanent reports whether err (or anything it wraps) was marked
// permanent by a stage worker.
func IsPermanent(err error) bool {
	return errors.As(err, &PermanentError{})
}

// ObjectNotFoundError indicates a required artifact or remote resource was
// not found. Always permanent: retrying won't make it appear.
type ObjectNotFoundError struct {
	msg   string
	cause error
}

func (e ObjectNotFoundError) Error() string {
	return e.msg
}

func (e ObjectNotFoundError) Unwrap() error {
	return e.cause
}

func NewObjectNotFoundError(msg string, cause error) error {
	return Permanent(ObjectNotFoundError{msg: msg, cause: cause})
}
