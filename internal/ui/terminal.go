// Package ui renders CLI output, coloring record statuses and health
// severities when stdout is a terminal.
package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor returns true when ANSI colors should be used on stdout.
// NO_COLOR (any non-empty value) wins, then CLICOLOR_FORCE=1, then
// CLICOLOR=0; otherwise color is used only on a TTY.
func ShouldUseColor() bool {
	return colorDecision(os.Getenv, term.IsTerminal(int(os.Stdout.Fd())))
}

func colorDecision(getenv func(string) string, isTTY bool) bool {
	if getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(getenv("CLICOLOR")) == "0" {
		return false
	}
	return isTTY
}
