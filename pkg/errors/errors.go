package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeNotFound     Code = "NOT_FOUND"
	CodeEmptyBasket  Code = "EMPTY_BASKET"
	CodeCapacity     Code = "CAPACITY_EXCEEDED"
	CodeUpstream     Code = "UPSTREAM_ERROR"
	CodePersistence  Code = "PERSISTENCE_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimit    Code = "RATE_LIMITED"
	CodeInternal     Code = "INTERNAL_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	ExitCode       int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		ExitCode:       2,
		Retryable:      false,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		ExitCode:       3,
		Retryable:      false,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeEmptyBasket: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		ExitCode:       4,
		Retryable:      false,
		PublicMessage:  "basket has no items",
		DetailsAllowed: false,
	},
	CodeCapacity: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		ExitCode:       5,
		Retryable:      false,
		PublicMessage:  "basket item limit reached",
		DetailsAllowed: true,
	},
	CodeUpstream: {
		HTTPStatus:     http.StatusBadGateway,
		ExitCode:       6,
		Retryable:      true,
		PublicMessage:  "price source unavailable",
		DetailsAllowed: true,
	},
	CodePersistence: {
		HTTPStatus:     http.StatusServiceUnavailable,
		ExitCode:       7,
		Retryable:      true,
		PublicMessage:  "storage unavailable",
		DetailsAllowed: false,
	},
	CodeUnauthorized: {
		HTTPStatus:     http.StatusUnauthorized,
		ExitCode:       8,
		Retryable:      false,
		PublicMessage:  "authentication required",
		DetailsAllowed: false,
	},
	CodeForbidden: {
		HTTPStatus:     http.StatusForbidden,
		ExitCode:       8,
		Retryable:      false,
		PublicMessage:  "insufficient permissions",
		DetailsAllowed: false,
	},
	CodeRateLimit: {
		HTTPStatus:     http.StatusTooManyRequests,
		ExitCode:       10,
		Retryable:      true,
		PublicMessage:  "rate limit exceeded",
		DetailsAllowed: false,
	},
	CodeConflict: {
		HTTPStatus:     http.StatusConflict,
		ExitCode:       9,
		Retryable:      true,
		PublicMessage:  "conflict detected",
		DetailsAllowed: false,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		ExitCode:       1,
		Retryable:      true,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the outermost typed error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsCode reports whether the outermost typed error in the chain carries code.
func IsCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// ExitCode maps an error to the process exit status used by the command line tools.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return MetadataFor(CodeOf(err)).ExitCode
}
