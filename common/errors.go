// Package common holds the error taxonomy shared by repositories, storage,
// transformers and services. Callers match kinds with errors.As or the Is*
// helpers rather than comparing message strings.
package common

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers that need to decide how to surface it.
type Kind string

const (
	KindValidation Kind = "validation"
	KindRepository Kind = "repository"
	KindTransfer   Kind = "transfer"
	KindTransform  Kind = "transform"
	KindNotFound   Kind = "not_found"
)

// ErrNotFound is the sentinel wrapped by repository lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Error carries the operation and target name so every failure path can be
// shown to the end user as one message.
type Error struct {
	Kind   Kind
	Op     string
	Target string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Target != "" {
		msg = fmt.Sprintf("%s %q", e.Op, e.Target)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds an error rejected before any I/O.
func Validation(op, target, reason string) error {
	return &Error{Kind: KindValidation, Op: op, Target: target, Err: errors.New(reason)}
}

// Repository wraps a document store failure. Not-found errors keep their own kind.
func Repository(op, target string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &Error{Kind: KindNotFound, Op: op, Target: target, Err: err}
	}
	return &Error{Kind: KindRepository, Op: op, Target: target, Err: err}
}

// Transfer wraps a blob put/get/delete failure, including partial transfers.
func Transfer(op, target string, err error) error {
	return &Error{Kind: KindTransfer, Op: op, Target: target, Err: err}
}

// Transform wraps a failed or empty external transform call.
func Transform(op, target string, err error) error {
	return &Error{Kind: KindTransform, Op: op, Target: target, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or "" when
// err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsRepository(err error) bool { return KindOf(err) == KindRepository }
func IsTransfer(err error) bool   { return KindOf(err) == KindTransfer }
func IsTransform(err error) bool  { return KindOf(err) == KindTransform }

// IsNotFound reports whether err is, or wraps, a not-found condition.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound || errors.Is(err, ErrNotFound)
}
