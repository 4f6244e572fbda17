package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nysm-labs/tft-curator/internal/exitcode"
)

// ExitError pairs an error with the process exit code it should produce.
// The code comes from internal/exitcode rather than a CLI-local constant
// set, since exit codes track the Collection Engine's own resumability
// signal, not just command-layer failure classes.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError builds an ExitError with no wrapped cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError builds an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the code a command should exit with. Unwrapped
// errors default to exitcode.Fatal.
func GetExitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitcode.Fatal
}

// CLIResponse is the standard JSON envelope for --format json output.
type CLIResponse struct {
	Status string `json:"status"`
	Data interface{} `json:"data,omitempty"`
	Error *CLIErrDesc `json:"error,omitempty"`
}

// CLIErrDesc carries an error's detail in JSON mode.
type CLIErrDesc struct {
	Message string `json:"message"`
}

// OutputFormatter renders command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Success writes data as the configured format's success envelope.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes err as the configured format's error envelope.
func (f *OutputFormatter) Error(err error) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: &CLIErrDesc{Message: err.Error()}})
	}
	_, werr := fmt.Fprintln(f.Writer, "error:", err)
	return werr
}
