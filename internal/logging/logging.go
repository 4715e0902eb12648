package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/idlab-discover/emotune-cli/internal/ui"
)

// Logger is a tiny opt-in logger used across internal packages.
// When Writer is nil, logging is disabled.
//
// The output format is:
//
//	<ColoredPrefix> <field>=<id> <formattedMessage>\n
//
// where <field> defaults to "model" and <id> is trimmed and defaults to
// "(unknown)".
type Logger struct {
	Writer io.Writer

	PrefixText  string
	PrefixColor string

	// Field names the subject written before the message ("model", "repo",
	// "run", ...). Empty means "model".
	Field string

	// OmitSubject drops the <field>=<id> pair.
	OmitSubject bool
}

func (l *Logger) SetWriter(w io.Writer) { l.Writer = w }

func (l *Logger) Enabled() bool { return l != nil && l.Writer != nil }

func (l *Logger) Logf(id string, format string, args ...any) {
	if !l.Enabled() {
		return
	}
	prefix := l.PrefixText
	if prefix == "" {
		prefix = "Log:"
	}
	if l.PrefixColor != "" {
		prefix = ui.Color(prefix, l.PrefixColor)
	}
	msg := fmt.Sprintf(format, args...)
	if l.OmitSubject {
		fmt.Fprintf(l.Writer, "%s %s\n", prefix, msg)
		return
	}

	field := l.Field
	if field == "" {
		field = "model"
	}
	subject := strings.TrimSpace(id)
	if subject == "" {
		subject = "(unknown)"
	}
	fmt.Fprintf(l.Writer, "%s %s=%s %s\n", prefix, field, subject, msg)
}
