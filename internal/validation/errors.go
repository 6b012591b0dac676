package validation

import "errors"

// ErrInvalid is matched by every input validation failure.
var ErrInvalid = errors.New("invalid input")

type invalidError string

func (e invalidError) Error() string { return string(e) }

func (e invalidError) Unwrap() error { return ErrInvalid }

func invalid(msg string) error { return invalidError(msg) }
