package worker

import (
	"errors"
	"fmt"

	"github.com/cryguy/worker-go/sys"
)

// Code classifies an Error.
type Code string

const (
	CodeBindingNotFound       Code = "BINDING_NOT_FOUND"
	CodeBindingUndefined      Code = "BINDING_UNDEFINED"
	CodeBindingTypeMismatch   Code = "BINDING_TYPE_MISMATCH"
	CodeConstruction          Code = "CONSTRUCTION_ERROR"
	CodeBodyUsed              Code = "BODY_USED"
	CodeNoBody                Code = "NO_BODY"
	CodeHostOperationFailed   Code = "HOST_OPERATION_FAILED"
	CodeImmutable             Code = "IMMUTABLE"
	CodeDeserializationFailed Code = "DESERIALIZATION_FAILED"
	CodeInternal              Code = "INTERNAL"
)

// Error is the single error type returned by this package. Use errors.Is
// with the Err* sentinels, or CodeOf, to tell kinds apart.
type Error struct {
	Code Code
	// Op names the operation that failed, e.g. "Request.Text".
	Op  string
	Msg string
	Err error

	// Binding, Expected and Actual are set for binding resolution errors.
	Binding  string
	Expected string
	Actual   string
}

// Sentinels for errors.Is. Matching compares codes only.
var (
	ErrBindingNotFound       = &Error{Code: CodeBindingNotFound}
	ErrBindingUndefined      = &Error{Code: CodeBindingUndefined}
	ErrBindingTypeMismatch   = &Error{Code: CodeBindingTypeMismatch}
	ErrConstruction          = &Error{Code: CodeConstruction}
	ErrBodyUsed              = &Error{Code: CodeBodyUsed}
	ErrNoBody                = &Error{Code: CodeNoBody}
	ErrHostOperationFailed   = &Error{Code: CodeHostOperationFailed}
	ErrImmutable             = &Error{Code: CodeImmutable}
	ErrDeserializationFailed = &Error{Code: CodeDeserializationFailed}
)

func (e *Error) Error() string {
	msg := e.message()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	return msg
}

func (e *Error) message() string {
	switch e.Code {
	case CodeBindingNotFound:
		return fmt.Sprintf("Env does not contain binding `%s`", e.Binding)
	case CodeBindingUndefined:
		return fmt.Sprintf("Binding `%s` is undefined.", e.Binding)
	case CodeBindingTypeMismatch:
		if e.Actual == "" {
			return fmt.Sprintf("Binding cannot be cast to the type %s", e.Expected)
		}
		return fmt.Sprintf("Binding cannot be cast to the type %s from %s", e.Expected, e.Actual)
	case CodeBodyUsed:
		return "Body has already been used. It can only be used once."
	case CodeImmutable:
		if e.Msg != "" {
			return e.Msg
		}
		return "cannot mutate an immutable message"
	}
	switch {
	case e.Msg != "" && e.Err != nil && e.Code == CodeDeserializationFailed:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// hostError builds a HostOperationFailed error. The host's own message is
// used when it has one, otherwise fallback.
func hostError(op string, err error, fallback string) *Error {
	return &Error{Code: CodeHostOperationFailed, Op: op, Msg: hostText(err, fallback), Err: err}
}

func constructionError(op string, err error, fallback string) *Error {
	return &Error{Code: CodeConstruction, Op: op, Msg: hostText(err, fallback), Err: err}
}

func hostText(err error, fallback string) string {
	var exc *sys.Exception
	if errors.As(err, &exc) && exc.Message != "" {
		return exc.Message
	}
	return fallback
}

func bodyUsedError(op string) *Error {
	return &Error{Code: CodeBodyUsed, Op: op}
}

func immutableError(op, what string) *Error {
	return &Error{Code: CodeImmutable, Op: op, Msg: "cannot mutate " + what + " of an immutable message"}
}
