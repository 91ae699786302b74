/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies workflow failures into the stable set the API surface
// exposes. Every engine-level failure maps to a (kind, message) pair.
type ErrorKind string

const (
	// KindNotFound covers missing records and records the caller does not own.
	KindNotFound ErrorKind = "not_found"
	// KindInvalidInput covers missing required fields and unsupported model choices.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindAlreadyResolved is returned when a state-machine precondition fails,
	// i.e. the pending change has already been approved or rejected.
	KindAlreadyResolved ErrorKind = "already_resolved"
	// KindUpstreamUnavailable covers version-control or generation backends
	// that are unreachable or erroring.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// KindMalformedGeneration is returned when a generation backend produced
	// output that could not be parsed into the required shape.
	KindMalformedGeneration ErrorKind = "malformed_generation_response"
	// KindNoEditableFiles is returned when the source snapshot is empty.
	KindNoEditableFiles ErrorKind = "no_editable_files"
	// KindUnknown is the classification for errors that carry no kind.
	KindUnknown ErrorKind = "unknown"
)

// Error is a classified workflow error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E constructs a classified error with a formatted message.
func E(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a classified error wrapping an underlying cause.
func Wrap(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the classification of err, or KindUnknown if it carries none.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindUnknown
}
