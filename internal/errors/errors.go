package errors

import (
	"fmt"
	"os"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "Configuration"
	ErrorTypeInput         ErrorType = "Input"
	ErrorTypeVerification  ErrorType = "Verification"
	ErrorTypePolicy        ErrorType = "Policy"
	ErrorTypeNetwork       ErrorType = "Network"
	ErrorTypeFileSystem    ErrorType = "FileSystem"
)

// Stage identifies the pipeline stage an error originated from
type Stage string

const (
	StageExport   Stage = "export"
	StageRender   Stage = "render"
	StageVerify   Stage = "verify"
	StageEvaluate Stage = "evaluate"
	StageGate     Stage = "gate"
	StageUnknown  Stage = "unknown"
)

// Exit codes for the netgate CLI. These are part of the command-line
// contract and must stay stable across releases.
const (
	ExitOK             = 0  // success, or policy allow
	ExitError          = 1  // generic failure
	ExitChangesPresent = 2  // plan allowed but contains changes pending approval
	ExitPolicyDenied   = 3  // policy engine denied the plan
	ExitVerifyFailed   = 4  // one or more artifacts failed attestation
	ExitBadInput       = 65 // EX_DATAERR: malformed intent or plan document
	ExitUnavailable    = 69 // EX_UNAVAILABLE: NetBox unreachable
	ExitConfig         = 78 // EX_CONFIG: misuse, e.g. bypass in production
)

// GateError represents a user-facing error with actionable guidance
type GateError struct {
	Type        ErrorType
	Stage       Stage
	Message     string
	Cause       string
	Solutions   []string
	Verify      string
	Environment string
}

// Error implements the error interface
func (e *GateError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\nError: %s\n", e.Message))

	if e.Cause != "" {
		sb.WriteString(fmt.Sprintf("Cause: %s\n", e.Cause))
	}

	if e.Environment != "" {
		sb.WriteString(fmt.Sprintf("Environment: %s\n", e.Environment))
	}

	if len(e.Solutions) > 0 {
		sb.WriteString("\nSolutions:\n")
		for _, solution := range e.Solutions {
			sb.WriteString(fmt.Sprintf("  %s\n", solution))
		}
	}

	if e.Verify != "" {
		sb.WriteString(fmt.Sprintf("\nVerify: %s\n", e.Verify))
	}

	return sb.String()
}

// Format implements fmt.Formatter for custom formatting
func (e *GateError) Format(f fmt.State, verb rune) {
	switch verb {
	case 's':
		fmt.Fprintf(f, "%s", e.Error())
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "[%s/%s] %s", e.Type, e.Stage, e.Error())
		} else {
			fmt.Fprintf(f, "%s", e.Error())
		}
	}
}

// New creates a new GateError
func New(errType ErrorType, stage Stage, message string) *GateError {
	return &GateError{
		Type:        errType,
		Stage:       stage,
		Message:     message,
		Environment: detectEnvironment(),
	}
}

// WithCause adds cause information
func (e *GateError) WithCause(cause string) *GateError {
	e.Cause = cause
	return e
}

// WithSolutions adds solution steps
func (e *GateError) WithSolutions(solutions ...string) *GateError {
	e.Solutions = append(e.Solutions, solutions...)
	return e
}

// WithVerify adds a verification command
func (e *GateError) WithVerify(verify string) *GateError {
	e.Verify = verify
	return e
}

// detectEnvironment detects the current execution environment
func detectEnvironment() string {
	ciVars := []string{"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_HOME"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return "CI/CD detected"
		}
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "Container environment detected"
	}

	return "Development workstation detected"
}

// IsUserError checks if the error carries user-facing guidance
func IsUserError(err error) bool {
	_, ok := err.(*GateError)
	return ok
}

// GetExitCode returns the stable exit code for an error
func GetExitCode(err error) int {
	gateErr, ok := err.(*GateError)
	if !ok {
		return ExitError
	}

	switch gateErr.Type {
	case ErrorTypeConfiguration:
		return ExitConfig
	case ErrorTypeInput:
		return ExitBadInput
	case ErrorTypeVerification:
		return ExitVerifyFailed
	case ErrorTypePolicy:
		return ExitPolicyDenied
	case ErrorTypeNetwork:
		return ExitUnavailable
	case ErrorTypeFileSystem:
		return ExitBadInput
	default:
		return ExitError
	}
}
