// Package detector picks the progress output mode from the environment.
package detector

import (
	"os"

	"golang.org/x/term"
)

// OutputMode represents how provisioning progress is shown.
type OutputMode int

const (
	// ModeAuto defers to DetectEnvironment.
	ModeAuto OutputMode = iota
	// ModeLinear prints a line per step.
	ModeLinear
	// ModeQuiet prints failed steps only.
	ModeQuiet
	// ModeTUI redraws a live view of every package.
	ModeTUI
)

// String returns the flag spelling of the mode.
func (m OutputMode) String() string {
	switch m {
	case ModeLinear:
		return "linear"
	case ModeQuiet:
		return "quiet"
	case ModeTUI:
		return "tui"
	default:
		return "auto"
	}
}

// DetectEnvironment returns the recommended output mode.
// CI always gets linear output, a terminal gets the TUI, and anything else stays quiet.
func DetectEnvironment() OutputMode {
	return detect(term.IsTerminal(int(os.Stderr.Fd())), os.Getenv("CI"))
}

func detect(isTTY bool, ci string) OutputMode {
	if ci == "true" || ci == "1" {
		return ModeLinear
	}
	if isTTY {
		return ModeTUI
	}
	return ModeQuiet
}

// ResolveMode applies the user's --output flag to the detected mode.
// userFlag should be one of: "auto", "tui", "linear", "ci", "quiet", or empty.
func ResolveMode(autoDetected OutputMode, userFlag string) OutputMode {
	switch userFlag {
	case "linear", "ci":
		return ModeLinear
	case "quiet":
		return ModeQuiet
	case "tui":
		return ModeTUI
	default:
		return autoDetected
	}
}
