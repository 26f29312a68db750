package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	return &buf
}

func TestInfoCF_FormatsComponentAndFields(t *testing.T) {
	buf := capture(t)

	InfoCF("session", "Deposit session streaming", map[string]any{
		"chain":   "bitcoin",
		"address": "1Addr",
	})

	line := buf.String()
	if !strings.Contains(line, "[INFO]") {
		t.Errorf("missing level: %q", line)
	}
	if !strings.Contains(line, "session: Deposit session streaming") {
		t.Errorf("missing component prefix: %q", line)
	}
	// Fields are emitted in sorted key order.
	if !strings.Contains(line, "address=1Addr chain=bitcoin") {
		t.Errorf("fields wrong or unsorted: %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)

	SetLevel(LevelWarn)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	InfoC("stream", "suppressed")
	WarnC("stream", "kept")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("info line not filtered: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn line missing: %q", out)
	}
}
