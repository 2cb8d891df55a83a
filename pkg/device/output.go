package device

import (
	"regexp"
	"strings"
)

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "")
}

// cleanOutput strips the echoed command line and the trailing prompt line
// from raw shell output.
func cleanOutput(raw, command string, prompt *regexp.Regexp) string {
	lines := strings.Split(raw, "\n")

	if len(lines) > 0 && command != "" && strings.Contains(lines[0], command) {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && prompt != nil && prompt.MatchString(lines[n-1]) {
		lines = lines[:n-1]
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n ")
}
