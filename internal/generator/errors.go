package generator

import "fmt"

// RejectionError means the oracle explicitly refused the input. Message is the oracle's
// own text and is safe to show to the caller.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("oracle rejected input: %s", e.Message)
}

// ParseError means the oracle answered, but not in the expected shape.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse oracle response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransportError means the oracle could not be reached or answered with a non-2xx status.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("oracle transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
