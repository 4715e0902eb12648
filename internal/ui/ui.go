package ui

// Basic ANSI color codes used by the package loggers.
// Rendered output (tables, workflow) uses the lipgloss styles in styles.go.
const (
	Reset     = "\033[0m"
	FgCyan    = "\033[36m"
	FgGreen   = "\033[32m"
	FgMagenta = "\033[35m"
	FgYellow  = "\033[33m"
	FgRed     = "\033[31m"
	FgBlue    = "\033[34m"
)

var noColor bool

// Init configures global rendering. When disableColor is true, Color returns
// its input unchanged (used by tests and NO_COLOR terminals).
func Init(disableColor bool) { noColor = disableColor }

// Color wraps a string with the given ANSI code.
func Color(s string, code string) string {
	if noColor || code == "" {
		return s
	}
	return code + s + Reset
}
