package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestCounter_rendersCounts(t *testing.T) {
	var buf bytes.Buffer
	c := NewCounter(&buf, "updating", 3)
	c.Set(1, 3)
	c.Finish()

	out := buf.String()
	if !strings.Contains(out, "updating") {
		t.Errorf("output missing label: %q", out)
	}
	if !strings.Contains(out, "1/3") {
		t.Errorf("output missing count: %q", out)
	}
	if !strings.Contains(out, "\r") {
		t.Error("output should use carriage returns")
	}
}

func TestCounter_unknownTotal(t *testing.T) {
	var buf bytes.Buffer
	c := NewCounter(&buf, "fetched", 0)
	c.Incr()
	c.Finish()

	if !strings.Contains(buf.String(), "fetched: 1") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestCounter_rateLimited(t *testing.T) {
	var buf bytes.Buffer
	c := NewCounter(&buf, "x", 1000)
	for i := 0; i < 1000; i++ {
		c.Incr()
	}
	// A tight loop must not emit one line per increment.
	lines := strings.Count(buf.String(), "\r")
	if lines > 20 {
		t.Errorf("%d redraws for 1000 increments, rate limit not applied", lines)
	}
}

func TestCounter_finishClearsLine(t *testing.T) {
	var buf bytes.Buffer
	c := NewCounter(&buf, "x", 2)
	c.Set(2, 2)
	c.Finish()

	if !strings.HasSuffix(buf.String(), "\r") {
		t.Error("Finish should leave the cursor at column zero")
	}
}

func TestShouldShowProgress_override(t *testing.T) {
	orig := IsTerminalFunc
	defer func() { IsTerminalFunc = orig }()

	IsTerminalFunc = func(fd int) bool { return false }
	if ShouldShowProgress() {
		t.Error("expected false with non-terminal stdout")
	}
	IsTerminalFunc = func(fd int) bool { return true }
	if !ShouldShowProgress() {
		t.Error("expected true with terminal stdout")
	}
}
