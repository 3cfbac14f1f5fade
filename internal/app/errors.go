package app

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failed operation for API mapping and logs.
type Kind string

const (
	KindInvalidInput    Kind = "invalid_input"
	KindNormalization   Kind = "normalization_error"
	KindAdvisorContract Kind = "advisor_contract_violation"
	KindPartialUpload   Kind = "partial_upload_failure"
	KindNotFound        Kind = "not_found"
	KindAuthFailure     Kind = "auth_failure"
	KindTimeout         Kind = "timeout"
	KindUpstream        Kind = "upstream_error"
)

// Error carries a classified kind plus the underlying cause. For
// KindPartialUpload, UploadedURLs lists objects that were stored before the
// pipeline aborted, for manual cleanup.
type Error struct {
	Kind         Kind
	Message      string
	UploadedURLs []string
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classified kind from an error chain. Unclassified
// errors report KindUpstream.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUpstream
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: strings.TrimSpace(msg), Err: cause}
}

func invalidInput(msg string) *Error {
	return newError(KindInvalidInput, msg, nil)
}

func notFound(msg string) *Error {
	return newError(KindNotFound, msg, nil)
}
