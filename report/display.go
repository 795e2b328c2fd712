package report

import (
	"fmt"

	"github.com/pterm/pterm"
)

var (
	errorStyleBG = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	errorColorFG = pterm.FgRed
	warnStyleBG  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	warnColorFG  = pterm.FgYellow
	infoStyleBG  = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	infoColorFG  = pterm.FgLightGreen
)

// Display prints every accumulated diagnostic to the terminal, respecting the
// Sink's log level, and returns a short human summary line.
func (s *Sink) Display() string {
	s.mu.Lock()
	diags := make([]Diagnostic, len(s.diags))
	copy(diags, s.diags)
	level := s.logLevel
	s.mu.Unlock()

	if level == LogLevelSilent {
		return ""
	}

	nErr, nWarn := 0, 0
	for _, d := range diags {
		switch d.Severity {
		case SeverityError:
			nErr++
			displayDiagnostic(d, true)
		case SeverityWarning:
			nWarn++
			if level >= LogLevelWarn {
				displayDiagnostic(d, false)
			}
		}
	}

	return fmt.Sprintf("%d error(s), %d warning(s)", nErr, nWarn)
}

func displayDiagnostic(d Diagnostic, isError bool) {
	fmt.Println()

	if isError {
		errorStyleBG.Print(" " + d.Kind.String() + " ")
		fmt.Print(" ")
		errorColorFG.Println(d.Message)
	} else {
		warnStyleBG.Print(" " + d.Kind.String() + " ")
		fmt.Print(" ")
		warnColorFG.Println(d.Message)
	}

	if d.Span != nil {
		infoColorFG.Printf("  at %s\n", d.Span.String())
	}

	for _, link := range d.Chain {
		fmt.Printf("    -> %s\n", link)
	}
}

// DisplayInfo prints a one-line informational banner, e.g. compilation
// start/finish messages from the CLI driver.
func DisplayInfo(tag, msg string) {
	infoStyleBG.Print(" " + tag + " ")
	fmt.Print(" ")
	infoColorFG.Println(msg)
}
