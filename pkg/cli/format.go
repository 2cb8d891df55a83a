// Package cli provides shared formatting helpers for the bgpwatch CLI.
package cli

import (
	"os"
	"strings"
)

// colorEnabled is false when NO_COLOR env var is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

// SetColor forces color output on or off.
func SetColor(enabled bool) {
	colorEnabled = enabled
}

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Green wraps s in ANSI green. Returns s unchanged when color is off.
func Green(s string) string { return paint("32", s) }

// Yellow wraps s in ANSI yellow. Returns s unchanged when color is off.
func Yellow(s string) string { return paint("33", s) }

// Red wraps s in ANSI red. Returns s unchanged when color is off.
func Red(s string) string { return paint("31", s) }

// Bold wraps s in ANSI bold. Returns s unchanged when color is off.
func Bold(s string) string { return paint("1", s) }

// Dim wraps s in ANSI dim. Returns s unchanged when color is off.
func Dim(s string) string { return paint("2", s) }

// Status colors a health status or observation word.
func Status(s string) string {
	switch strings.ToLower(s) {
	case "ok", "present", "advertised", "none", "removed", "fast-poll":
		return Green(s)
	case "warning", "injected", "slow-poll":
		return Yellow(s)
	case "critical", "absent", "missing", "failed":
		return Red(s)
	default:
		return Dim(s)
	}
}

// Outcome renders a success flag.
func Outcome(ok bool) string {
	if ok {
		return Green("ok")
	}
	return Red("FAILED")
}

// DotPad pads name with dots to the given width.
// Example: DotPad("session-primary", 30) → "session-primary ..............."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}
