// Package progress renders a single-line counter for long-running work:
// catalog fetches and batch fan-outs.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// IsTerminalFunc is the function used to check if a file descriptor is a terminal.
// It can be overridden for testing.
var IsTerminalFunc = term.IsTerminal

// Counter tracks item-based progress and renders it as a carriage-return
// updated line.
type Counter struct {
	output    io.Writer
	label     string
	total     int
	done      int
	startTime time.Time
	lastPrint time.Time
	mu        sync.Mutex
}

// NewCounter creates a Counter writing to output. If total is <= 0 only the
// running count is shown.
func NewCounter(output io.Writer, label string, total int) *Counter {
	return &Counter{
		output:    output,
		label:     label,
		total:     total,
		startTime: time.Now(),
	}
}

// Set updates the counter to done of total and redraws the line. Total may
// grow as paged listings reveal their size.
func (c *Counter) Set(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = done
	if total > 0 {
		c.total = total
	}
	c.print(false)
}

// Incr advances the counter by one and redraws the line.
func (c *Counter) Incr() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done++
	c.print(false)
}

// Finish draws the final state and clears the progress line.
func (c *Counter) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.print(true)
	fmt.Fprintf(c.output, "\r%s\r", strings.Repeat(" ", 80))
}

// print displays the current progress. Rate limited to avoid flickering
// (max 10 updates per second), unless force is set.
func (c *Counter) print(force bool) {
	now := time.Now()
	if !force && now.Sub(c.lastPrint) < 100*time.Millisecond {
		return
	}
	c.lastPrint = now

	var line string
	if c.total > 0 {
		percent := float64(c.done) / float64(c.total) * 100
		if percent > 100 {
			percent = 100
		}
		barWidth := 30
		filled := int(percent / 100 * float64(barWidth))
		if filled > barWidth {
			filled = barWidth
		}
		bar := strings.Repeat("=", filled)
		if filled < barWidth {
			bar += ">"
			bar += strings.Repeat(" ", barWidth-filled-1)
		}
		line = fmt.Sprintf("\r   %s [%s] %d/%d", c.label, bar, c.done, c.total)
	} else {
		line = fmt.Sprintf("\r   %s: %d", c.label, c.done)
	}

	// Pad with spaces to clear any remaining characters from previous line
	if len(line) < 80 {
		line += strings.Repeat(" ", 80-len(line))
	}
	_, _ = fmt.Fprint(c.output, line)
}

// ShouldShowProgress returns true if progress should be displayed.
// Progress is shown when stdout is a terminal.
func ShouldShowProgress() bool {
	return IsTerminalFunc(int(os.Stdout.Fd()))
}
