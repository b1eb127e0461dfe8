package core

import (
	"errors"
	"fmt"

	"github.com/bundlenudge/bundlenudge/internal/model"
)

// Error carries a machine-checkable code alongside the message so handlers
// can map failures to the API error envelope without string matching.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError builds a coded error.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrCode extracts the machine code from err, or internal_error when err is
// not a coded error.
func ErrCode(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return model.CodeInternal
}

// IsNotFound reports whether err carries the not_found code.
func IsNotFound(err error) bool {
	return ErrCode(err) == model.CodeNotFound
}
