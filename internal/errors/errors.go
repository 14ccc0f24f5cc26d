package errors

import (
	"github.com/cockroachdb/errors"
)

// Exit codes for CLI applications.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitUser indicates a user-related error (invalid input, configuration, etc.).
	ExitUser = 1

	// ExitSystem indicates a system-related error (I/O, network, permissions, etc.).
	ExitSystem = 2
)

// Sentinel errors classifying every failure the engine can surface.
// Components attach them with [Mark] so callers can test with [Is]
// regardless of how many wrapping layers sit in between.
var (
	// ErrConfiguration indicates missing or invalid backend options,
	// or an unknown storage type.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNotFound indicates a missing local source or a missing remote object.
	ErrNotFound = errors.New("not found")

	// ErrTransfer indicates a network or remote-auth failure during an
	// upload, download, existence check, delete, or link signing.
	ErrTransfer = errors.New("transfer failed")

	// ErrAuthentication indicates a wrong decryption password or corrupt
	// ciphertext, as opposed to a structural format error.
	ErrAuthentication = errors.New("authentication failed")

	// ErrUnsupported indicates an optional capability (such as share links)
	// was requested on a backend that does not provide it.
	ErrUnsupported = errors.New("operation not supported")

	// ErrStateCorrupt indicates the persisted state file could not be read.
	// It is recovered locally by starting from empty state and never
	// propagates out of the state store.
	ErrStateCorrupt = errors.New("state file corrupted")
)

// Configuration returns a new error marked as ErrConfiguration.
func Configuration(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}

// NotFound returns a new error marked as ErrNotFound.
func NotFound(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// Unsupported returns a new error marked as ErrUnsupported.
func Unsupported(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrUnsupported)
}

// Transfer wraps err with a message and marks it as ErrTransfer.
// Returns nil if err is nil.
func Transfer(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrTransfer)
}

// Authentication wraps err with a message and marks it as ErrAuthentication.
// Returns nil if err is nil.
func Authentication(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrAuthentication)
}

// Re-exports so callers need a single errors import.
var (
	New    = errors.New
	Newf   = errors.Newf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Is     = errors.Is
	As     = errors.As
	Mark   = errors.Mark
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// ExitError wraps an error with an exit code and optional suggestion for CLI
// applications. It implements the error interface and supports unwrapping.
type ExitError struct {
	// Err is the underlying error that caused the exit.
	Err error

	// Code is the exit code to return to the operating system.
	Code int

	// Suggestion is an optional actionable suggestion for the user.
	Suggestion string
}

// NewExitError creates an ExitError with the given underlying error and exit code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// NewUserError creates an ExitError with ExitUser code and a suggestion.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{Err: err, Code: ExitUser, Suggestion: suggestion}
}

// NewSystemError creates an ExitError with ExitSystem code and a suggestion.
func NewSystemError(err error, suggestion string) *ExitError {
	return &ExitError{Err: err, Code: ExitSystem, Suggestion: suggestion}
}

// Error returns the error message from the underlying error.
// If the underlying error is nil, it returns a generic message with the exit code.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return errors.Newf("exit code %d", e.Code).Error()
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// to examine the error chain.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode classifies err into a process exit code. Configuration and
// unsupported-operation errors are user errors; everything else is a
// system error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrUnsupported) {
		return ExitUser
	}
	return ExitSystem
}
