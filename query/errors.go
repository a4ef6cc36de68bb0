package query

import (
	"errors"
	"fmt"
)

// Kind classifies query failures so transports can map them to a status.
type Kind int

const (
	// KindInvalid is a client error: missing or malformed parameters.
	KindInvalid Kind = iota + 1
	// KindNotFound means the requested document is not indexed.
	KindNotFound
	// KindUnavailable means there is no index to query.
	KindUnavailable
	// KindInternal wraps an index failure.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not found"
	case KindUnavailable:
		return "unavailable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is returned by every Service operation that fails.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
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

// KindOf returns the kind of a query error, or KindInternal for any other
// non-nil error.
func KindOf(err error) Kind {
	var queryErr *Error
	if errors.As(err, &queryErr) {
		return queryErr.Kind
	}
	return KindInternal
}

func invalid(message, hint string) error {
	return &Error{Kind: KindInvalid, Message: message, Hint: hint}
}

func internal(message string, err error) error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

var errUnavailable = &Error{
	Kind:    KindUnavailable,
	Message: "database not found",
	Hint:    "run `contentindex vacuum` to build the index",
}
