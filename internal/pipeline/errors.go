package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/p-n-ai/pai-quiz/internal/generator"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindOracleRejection     Kind = "oracle_rejection"
	KindParseFailure        Kind = "parse_failure"
	KindTransportFailure    Kind = "transport_failure"
	KindEmptyResult         Kind = "empty_result"
	KindPersistenceFailure  Kind = "persistence_failure"
	KindLedgerFailure       Kind = "ledger_failure"
)

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindInsufficientCredits:
		return http.StatusPaymentRequired
	case KindOracleRejection, KindEmptyResult:
		return http.StatusUnprocessableEntity
	case KindParseFailure:
		return http.StatusBadGateway
	case KindTransportFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the one error type the pipelines return. Message is safe to show to callers;
// Err carries the internal cause and is never exposed.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a pipeline error, or "" for anything else.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func insufficientCredits(err error) *Error {
	return &Error{Kind: KindInsufficientCredits, Message: "Insufficient credits.", Err: err}
}

func ledgerFailure(err error) *Error {
	return &Error{Kind: KindLedgerFailure, Message: "Could not update credits, please try again.", Err: err}
}

func persistenceFailure(err error) *Error {
	return &Error{Kind: KindPersistenceFailure, Message: "Could not save the result, please try again.", Err: err}
}

func emptyResult() *Error {
	return &Error{Kind: KindEmptyResult, Message: "No questions could be produced from this input."}
}

// Classify turns a generator failure into a pipeline error. Only rejection messages pass
// through verbatim.
func Classify(err error) *Error {
	var (
		perr *Error
		rej  *generator.RejectionError
		pe   *generator.ParseError
	)
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.As(err, &rej):
		return &Error{Kind: KindOracleRejection, Message: rej.Message, Err: err}
	case errors.As(err, &pe):
		return &Error{Kind: KindParseFailure, Message: "The generator returned an unreadable response, please try again.", Err: err}
	default:
		return &Error{Kind: KindTransportFailure, Message: "The generator is unavailable, please try again later.", Err: err}
	}
}
