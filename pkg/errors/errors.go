// Package errors defines the sentinel errors shared across the n-gram
// counter and an AppError wrapper that carries a process exit code.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrMalformedDocument = errors.New("malformed document")
	ErrCacheDir          = errors.New("cache directory unavailable")
	ErrInvariant         = errors.New("invariant violated")
	ErrAborted           = errors.New("run aborted")
	ErrSink              = errors.New("output sink failed")
	ErrInternal          = errors.New("internal error")
)

// Exit codes returned by the CLI.
const (
	ExitFailure   = 1
	ExitUsage     = 2
	ExitInvariant = 3
	ExitAborted   = 130
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// Invariantf reports a broken ordering or aggregation invariant. These are
// programming defects and always abort the run.
func Invariantf(format string, args ...any) *AppError {
	return Newf(ErrInvariant, ExitInvariant, format, args...)
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.ExitCode != 0 {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return ExitUsage
	case errors.Is(err, ErrInvariant):
		return ExitInvariant
	case errors.Is(err, ErrAborted):
		return ExitAborted
	default:
		return ExitFailure
	}
}
