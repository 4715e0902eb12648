package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/idlab-discover/emotune-cli/internal/ui"
)

func TestLogger_EnabledAndSetWriter(t *testing.T) {
	var l Logger
	if l.Enabled() {
		t.Fatalf("expected disabled when Writer is nil")
	}

	var buf bytes.Buffer
	l.SetWriter(&buf)
	if !l.Enabled() {
		t.Fatalf("expected enabled after setting Writer")
	}
}

func TestLogger_Logf_WritesPrefixSubjectAndMessage(t *testing.T) {
	ui.Init(true)

	var buf bytes.Buffer
	l := Logger{Writer: &buf, PrefixText: "Train:", PrefixColor: ui.FgGreen}
	l.Logf("  distilbert-base-uncased  ", "step %d", 10)

	out := buf.String()
	if out != "Train: model=distilbert-base-uncased step 10\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestLogger_Logf_CustomField(t *testing.T) {
	ui.Init(true)

	var buf bytes.Buffer
	l := Logger{Writer: &buf, PrefixText: "Hub:", Field: "repo"}
	l.Logf("me/emotion-clf", "commit")

	if !strings.Contains(buf.String(), "repo=me/emotion-clf") {
		t.Fatalf("expected repo field, got %q", buf.String())
	}
}

func TestLogger_Logf_EmptySubject_UsesUnknown(t *testing.T) {
	ui.Init(true)

	var buf bytes.Buffer
	l := Logger{Writer: &buf, PrefixText: "X:"}
	l.Logf("   ", "x")

	if !strings.Contains(buf.String(), "model=(unknown)") {
		t.Fatalf("expected unknown subject, got %q", buf.String())
	}
}

func TestLogger_Logf_DefaultPrefix(t *testing.T) {
	ui.Init(true)

	var buf bytes.Buffer
	l := Logger{Writer: &buf}
	l.Logf("m", "x")

	if !strings.HasPrefix(buf.String(), "Log:") {
		t.Fatalf("expected default prefix, got %q", buf.String())
	}
}

func TestLogger_Logf_OmitSubject(t *testing.T) {
	ui.Init(true)

	var buf bytes.Buffer
	l := Logger{Writer: &buf, PrefixText: "X:", OmitSubject: true}
	l.Logf("m", "x")

	if buf.String() != "X: x\n" {
		t.Fatalf("output = %q, want %q", buf.String(), "X: x\\n")
	}
}

func TestLogger_Logf_NilReceiver_NoPanic(t *testing.T) {
	var l *Logger
	l.Logf("m", "x")
}
