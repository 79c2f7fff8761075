// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure by the collaborator that produced it.
// Every kind is local to one operator action; none is fatal and none is
// retried automatically.
type ErrorKind string

const (
	KindFetch        ErrorKind = "fetch"        // record store read failed
	KindUpdate       ErrorKind = "update"       // record store write failed
	KindGeneration   ErrorKind = "generation"   // language model call failed or returned nothing usable
	KindNotification ErrorKind = "notification" // mail relay send failed
	KindPublish      ErrorKind = "publish"      // campaign create or content step failed
	KindNotFound     ErrorKind = "not_found"
	KindInvalid      ErrorKind = "invalid"
	KindPrecondition ErrorKind = "precondition" // action not legal in the record's current state
)

// Error is the domain error carried across package boundaries. Op names the
// operation that failed; Err is the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and operation name.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can test with the
// sentinels below: errors.Is(err, models.ErrFetch).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrFetch        = &Error{Kind: KindFetch}
	ErrUpdate       = &Error{Kind: KindUpdate}
	ErrGeneration   = &Error{Kind: KindGeneration}
	ErrNotification = &Error{Kind: KindNotification}
	ErrPublish      = &Error{Kind: KindPublish}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrInvalid      = &Error{Kind: KindInvalid}
	ErrPrecondition = &Error{Kind: KindPrecondition}
)

// KindOf returns the kind of the first *Error in err's chain, or "" if
// there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
