package ui

import (
	"fmt"

	"github.com/alfredjeanlab/eventledger/internal/health"
	"github.com/alfredjeanlab/eventledger/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent  = 74  // blue
	colorMuted   = 245 // medium gray
	colorOK      = 114 // green
	colorWarning = 179 // amber
	colorDanger  = 203 // red
)

var noColor = !ShouldUseColor()

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderStatus colors a record status: processed green, processing amber,
// failed red.
func RenderStatus(s model.Status) string {
	switch s {
	case model.StatusProcessed:
		return render(colorOK, s.String())
	case model.StatusProcessing:
		return render(colorWarning, s.String())
	case model.StatusFailed:
		return render(colorDanger, s.String())
	}
	return s.String()
}

// RenderSeverity colors a health severity the same way.
func RenderSeverity(s health.Severity) string {
	switch s {
	case health.SeverityOK:
		return render(colorOK, string(s))
	case health.SeverityWarning:
		return render(colorWarning, string(s))
	case health.SeverityCritical:
		return render(colorDanger, string(s))
	}
	return string(s)
}

// RenderDecision colors a claim outcome: granted green, denied gray.
func RenderDecision(granted bool, reason string) string {
	if granted {
		return render(colorOK, "granted") + " (" + reason + ")"
	}
	return render(colorMuted, "denied") + " (" + reason + ")"
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
