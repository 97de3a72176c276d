package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/boycivenga/netgate/internal/policy"
)

// DecisionReporter writes gate decisions to a terminal or log stream.
type DecisionReporter struct {
	w       io.Writer
	noColor bool
}

// NewDecisionReporter builds a reporter for w. Color is suppressed
// when requested, when NO_COLOR is set, or when w is not a terminal.
func NewDecisionReporter(w io.Writer, noColor bool) *DecisionReporter {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("NETGATE_NO_COLOR") != "" {
		noColor = true
	}
	if f, ok := w.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		noColor = true
	}
	return &DecisionReporter{w: w, noColor: noColor}
}

func (r *DecisionReporter) sprint(c *color.Color, format string, args ...interface{}) string {
	if r.noColor {
		return fmt.Sprintf(format, args...)
	}
	return c.Sprintf(format, args...)
}

// Report writes the decision verdict, change counts, and any denial
// reasons.
func (r *DecisionReporter) Report(d *policy.Decision) {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	if d.Allow {
		fmt.Fprintln(r.w, r.sprint(green, "DECISION: ALLOW"))
	} else {
		fmt.Fprintln(r.w, r.sprint(red, "DECISION: DENY"))
	}

	s := d.Summary
	fmt.Fprintf(r.w, "Changes: %d to create, %d to update, %d to delete\n",
		s.ToCreate, s.ToUpdate, s.ToDelete)

	if d.ApprovalRequired {
		fmt.Fprintln(r.w, r.sprint(yellow, "Destructive changes present: human approval required before apply"))
	}

	if len(d.Deny) > 0 {
		fmt.Fprintln(r.w, "Denial reasons:")
		for _, reason := range d.Deny {
			fmt.Fprintf(r.w, "  %s %s\n", r.sprint(red, "x"), reason)
		}
	}
}
