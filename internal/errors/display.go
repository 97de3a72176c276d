package errors

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/viper"
)

// DisplayError formats and displays a GateError with enhanced formatting
func DisplayError(err error) {
	noColor := os.Getenv("NO_COLOR") != "" || os.Getenv("NETGATE_NO_COLOR") != ""

	// Also honor the --no-color flag bound through viper.
	if viper.GetBool("output.no_color") {
		noColor = true
	}

	color.NoColor = noColor

	gateErr, ok := err.(*GateError)
	if !ok {
		color.Red("Error: %v", err)
		return
	}

	colorFunc := getErrorStyle(gateErr.Type)

	fmt.Fprintf(os.Stderr, "\n%s\n", colorFunc(gateErr.Message))

	if gateErr.Cause != "" {
		fmt.Fprintf(os.Stderr, "   %s %s\n", color.YellowString("Cause:"), color.HiBlackString(gateErr.Cause))
	}

	if gateErr.Environment != "" {
		fmt.Fprintf(os.Stderr, "   %s %s\n", color.CyanString("Environment:"), color.HiBlackString(gateErr.Environment))
	}

	if len(gateErr.Solutions) > 0 {
		fmt.Fprintf(os.Stderr, "\n   %s\n", color.GreenString("Solutions:"))
		for i, solution := range gateErr.Solutions {
			fmt.Fprintf(os.Stderr, "   %s %s\n", color.HiBlackString(fmt.Sprintf("%d.", i+1)), solution)
		}
	}

	if gateErr.Verify != "" {
		fmt.Fprintf(os.Stderr, "\n   %s %s\n", color.BlueString("Verify:"), color.HiWhiteString(gateErr.Verify))
	}

	fmt.Fprintln(os.Stderr)
}

// getErrorStyle returns the appropriate color function for an error type
func getErrorStyle(errType ErrorType) func(format string, a ...interface{}) string {
	switch errType {
	case ErrorTypeConfiguration:
		return color.YellowString
	case ErrorTypeInput:
		return color.YellowString
	case ErrorTypeVerification:
		return color.RedString
	case ErrorTypePolicy:
		return color.RedString
	case ErrorTypeNetwork:
		return color.RedString
	case ErrorTypeFileSystem:
		return color.MagentaString
	default:
		return color.RedString
	}
}

// FormatErrorWithContext formats an error without color for CI/CD logs
func FormatErrorWithContext(err error, context map[string]string) string {
	var sb strings.Builder

	gateErr, ok := err.(*GateError)
	if !ok {
		sb.WriteString(fmt.Sprintf("Error: %v\n", err))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("[%s/%s] %s\n", gateErr.Type, gateErr.Stage, gateErr.Message))
	if gateErr.Cause != "" {
		sb.WriteString(fmt.Sprintf("Cause: %s\n", gateErr.Cause))
	}
	for k, v := range context {
		sb.WriteString(fmt.Sprintf("%s: %s\n", k, v))
	}
	for _, solution := range gateErr.Solutions {
		sb.WriteString(fmt.Sprintf("  - %s\n", solution))
	}

	return sb.String()
}
