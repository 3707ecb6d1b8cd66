// Package validation marks domain input errors so transports can tell a bad
// request from an infrastructure failure.
package validation

import (
	"errors"
	"fmt"
)

// Err is the sentinel every input error matches via errors.Is.
var Err = errors.New("invalid input")

type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Is(target error) bool { return target == Err }

// New returns an input error with the given message.
func New(msg string) error {
	return &inputError{msg: msg}
}

// Errorf returns an input error with a formatted message.
func Errorf(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}
