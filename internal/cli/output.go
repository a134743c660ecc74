package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/djmd/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation rejected (no such track, tag or playlist; identifiers exhausted)
	ExitCommandError = 2 // Command error (bad flags, missing configuration, library unreadable)
)

// Error codes reported for failures that do not come from the library.
const (
	ErrCodeUsage    = "USAGE"
	ErrCodeCanceled = "CANCELED"
	ErrCodeGeneric  = "ERROR"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	reported bool // already written through an OutputFormatter
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil, ExitCommandError for usage errors and
// ExitFailure for any other error that is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, errUsage) {
		return ExitCommandError
	}
	return ExitFailure
}

// IsReported reports whether err has already been written to the user.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.reported
}

var errUsage = errors.New("usage")

// usageErrorf returns an error for invalid flags or arguments.
func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// classifyError maps err onto a reported error code and an exit code.
func classifyError(err error) (string, int) {
	switch {
	case errors.Is(err, errUsage):
		return ErrCodeUsage, ExitCommandError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeCanceled, ExitFailure
	}

	code := store.CodeOf(err)
	switch code {
	case store.ErrCodeConfiguration, store.ErrCodeUnavailable:
		return string(code), ExitCommandError
	case "":
		return ErrCodeGeneric, ExitFailure
	default:
		return string(code), ExitFailure
	}
}

// fail writes err through f and returns it as a reported ExitError.
func fail(f *OutputFormatter, err error) error {
	code, exit := classifyError(err)
	_ = f.Error(code, err.Error(), nil)
	return &ExitError{Code: exit, Message: code, Err: err, reported: true}
}

// OutputFormatter handles text, JSON and YAML output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard structured response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status" yaml:"status"`                   // "ok" or "error"
	Data   any       `json:"data,omitempty" yaml:"data,omitempty"`   // success payload
	Error  *CLIError `json:"error,omitempty" yaml:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code" yaml:"code"`                             // "NOT_FOUND", "USAGE", etc.
	Message string `json:"message" yaml:"message"`                       // human-readable message
	Details any    `json:"details,omitempty" yaml:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// Text output prints data with fmt, so results should implement fmt.Stringer.
func (f *OutputFormatter) Success(data any) error {
	switch f.Format {
	case "json":
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	case "yaml":
		return f.encodeYAML(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	resp := CLIResponse{
		Status: "error",
		Error: &CLIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	switch f.Format {
	case "json":
		return json.NewEncoder(f.Writer).Encode(resp)
	case "yaml":
		return f.encodeYAML(resp)
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

func (f *OutputFormatter) encodeYAML(v any) error {
	enc := yaml.NewEncoder(f.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is structured, verbose logs go to ErrWriter to avoid corrupting output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
