package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no session exists for the handle. The usual cause is a replayed
	// request for an upload that already finalized or was cancelled.
	ErrNotFound        = errors.New("upload not found")
	ErrSessionExists   = errors.New("upload session already exists")
	ErrCorruptSession  = errors.New("corrupt upload session record")
	ErrPartialMismatch = errors.New("partial file shorter than acknowledged bytes")
)

// RejectReason is the machine-readable cause of a refused init.
type RejectReason string

const (
	ReasonInvalidPath         RejectReason = "invalid_path"
	ReasonInvalidSize         RejectReason = "invalid_size"
	ReasonFileTooLarge        RejectReason = "file_too_large"
	ReasonExtensionNotAllowed RejectReason = "extension_not_allowed"
	ReasonInvalidBatchID      RejectReason = "invalid_batch_id"
)

// RejectError is a permanent client-input error. Nothing is written to disk when it is returned.
type RejectError struct {
	Reason  RejectReason
	Message string
	Limit   int64    // set for ReasonFileTooLarge
	Allowed []string // set for ReasonExtensionNotAllowed
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func reject(reason RejectReason, format string, args ...any) *RejectError {
	return &RejectError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsReject unwraps err into a *RejectError if it is one.
func AsReject(err error) (*RejectError, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
