package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeNotFound              ErrorCode = "NotFound"
	CodeInvalidParameterValue ErrorCode = "InvalidParameterValue"
	CodeServiceUnavailable    ErrorCode = "ServiceUnavailable"
	CodeForbidden             ErrorCode = "Forbidden"
)

// Error is a caller-visible failure. Two Errors match under errors.Is when
// their codes match and the target carries no description, so the sentinels
// below work as code matchers.
type Error struct {
	Code        ErrorCode
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Description == "" || t.Description == e.Description)
}

var (
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrInvalidParameter   = &Error{Code: CodeInvalidParameterValue}
	ErrServiceUnavailable = &Error{Code: CodeServiceUnavailable}
	ErrForbidden          = &Error{Code: CodeForbidden}
)

func NotFound(resource, id string) error {
	return &Error{Code: CodeNotFound, Description: fmt.Sprintf("%s '%s' not found", resource, id)}
}

func InvalidParameter(format string, args ...any) error {
	return &Error{Code: CodeInvalidParameterValue, Description: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
