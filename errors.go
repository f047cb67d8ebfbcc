// errors.go: Error surface for the Hermes event dispatch library
//
// All public operations report failures through coded errors plus the
// manager's last-error slot. Nothing panics across the public boundary
// except the close-while-firing guard, which is a programming error.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hermes

import (
	"github.com/agilira/go-errors"
)

// Error codes for Hermes operations
const (
	ErrCodeInvalidConfig   = "HERMES_INVALID_CONFIG"
	ErrCodeInvalidListener = "HERMES_INVALID_LISTENER"
	ErrCodeInvalidStub     = "HERMES_INVALID_STUB"
	ErrCodeStubConflict    = "HERMES_STUB_CONFLICT"
	ErrCodeNotFound        = "HERMES_LISTENER_NOT_FOUND"
	ErrCodeRemovePending   = "HERMES_REMOVE_PENDING"
	ErrCodeManagerClosed   = "HERMES_MANAGER_CLOSED"
	ErrCodeIOError         = "HERMES_IO_ERROR"
)

// errorCode extracts the code from a go-errors coded error.
// Returns the empty string for nil or foreign errors.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if coder, ok := err.(errors.ErrorCoder); ok {
		return string(coder.ErrorCode())
	}
	return ""
}

// IsPending reports whether err is a deferred-removal notice: the remove
// was issued while the manager was firing and will be honored when the
// firing depth returns to zero.
func IsPending(err error) bool {
	return errorCode(err) == ErrCodeRemovePending
}

// IsNotFound reports whether err means the remove target (event ID or
// stub) is unknown to the manager.
func IsNotFound(err error) bool {
	return errorCode(err) == ErrCodeNotFound
}

// IsInvalidArg reports whether err is a caller mistake: a nil listener,
// the reserved stub, or a stub collision.
func IsInvalidArg(err error) bool {
	switch errorCode(err) {
	case ErrCodeInvalidListener, ErrCodeInvalidStub, ErrCodeStubConflict:
		return true
	}
	return false
}
