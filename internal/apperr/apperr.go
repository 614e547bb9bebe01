// Package apperr defines the error kinds surfaced to callers of the assistant.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUpload       Kind = "upload"
	KindGeneration   Kind = "generation"
	KindRoutingParse Kind = "routing_parse"
	KindEvaluation   Kind = "evaluation"
	KindConfig       Kind = "config"
)

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind only, so errors.Is(err, apperr.Evaluation)
// works for any evaluation failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Recoverable reports whether the user can retry with a different request.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindRoutingParse, KindEvaluation, KindUpload:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is.
var (
	Upload       = &Error{Kind: KindUpload}
	Generation   = &Error{Kind: KindGeneration}
	RoutingParse = &Error{Kind: KindRoutingParse}
	Evaluation   = &Error{Kind: KindEvaluation}
	Config       = &Error{Kind: KindConfig}
)

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRecoverable is false for nil and for errors without a Kind.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable()
	}
	return false
}
