package ofd

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures so callers can decide presentation
// and retry policy without string-matching messages.
type Kind int

const (
	// KindRouting: no parser is registered for the URL's host.
	KindRouting Kind = iota
	// KindTransport: network failure, bad status, wrong content type,
	// oversized or cancelled response.
	KindTransport
	// KindStructural: a required key, selector, sentinel or token was
	// absent from the upstream payload.
	KindStructural
	// KindSemantic: a value was present but outside the known
	// vocabulary (operation code, payment type). Never defaulted.
	KindSemantic
)

func (k Kind) String() string {
	switch k {
	case KindRouting:
		return "routing"
	case KindTransport:
		return "transport"
	case KindStructural:
		return "structural"
	case KindSemantic:
		return "semantic"
	}
	return "unknown"
}

// Error is the classified error every parser returns. Fragment holds
// the offending piece of upstream payload, when there is one, so that
// format drift can be diagnosed from logs alone.
type Error struct {
	Kind     Kind
	Msg      string
	Fragment string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Fragment != "" {
		msg += fmt.Sprintf(" (input: %q)", e.Fragment)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from an error returned by this
// package. The second return is false for foreign errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func routingErrf(format string, args ...any) error {
	return &Error{Kind: KindRouting, Msg: fmt.Sprintf(format, args...)}
}

func transportErr(err error, format string, args ...any) error {
	return &Error{Kind: KindTransport, Msg: fmt.Sprintf(format, args...), Err: err}
}

func structuralErrf(fragment, format string, args ...any) error {
	return &Error{Kind: KindStructural, Msg: fmt.Sprintf(format, args...), Fragment: fragment}
}

func semanticErrf(fragment, format string, args ...any) error {
	return &Error{Kind: KindSemantic, Msg: fmt.Sprintf(format, args...), Fragment: fragment}
}
