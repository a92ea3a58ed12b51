package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewText_levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelWarn)

	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("lines below WARN should be suppressed, got: %q", out)
	}
	if !strings.Contains(out, "warn line") || !strings.Contains(out, "error line") {
		t.Errorf("WARN and ERROR lines missing, got: %q", out)
	}
}

func TestWith_carriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelInfo).With("pattern", "tsp")

	l.Info("batch started")

	if !strings.Contains(buf.String(), "pattern=tsp") {
		t.Errorf("expected attribute in output, got: %q", buf.String())
	}
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	var buf bytes.Buffer
	l := NewText(&buf, slog.LevelInfo)
	SetDefault(l)

	Default().Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("default logger not routed, got: %q", buf.String())
	}
}

func TestNoop_discards(t *testing.T) {
	l := NewNoop()
	// Must not panic and must accept With chains.
	l.With("k", "v").Error("ignored")
}
