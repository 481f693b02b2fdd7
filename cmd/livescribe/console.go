package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/livescribe-ai/livescribe/pkg/core/live"
)

const (
	ansiReset  = "\x1b[0m"
	ansiCyan   = "\x1b[36m"
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
)

// consoleSink renders transcript lines as timestamped captions. Partial
// lines redraw in place with a carriage return; final and interrupted
// lines commit with a newline.
type consoleSink struct {
	mu      sync.Mutex
	w       io.Writer
	partial bool
}

func newConsoleSink(w io.Writer) *consoleSink {
	return &consoleSink{w: w}
}

func (c *consoleSink) WriteLine(line live.TranscriptLine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	speaker := "USER"
	color := ansiGreen
	if line.Speaker == live.RoleModel {
		speaker = "MODEL"
		color = ansiCyan
	}
	if line.Stage == live.StageInterrupted {
		color = ansiYellow
	}

	rendered := fmt.Sprintf("%s[%s][%s][%s]%s %s",
		color,
		time.Now().Format("15:04:05.000"),
		speaker,
		line.Stage,
		ansiReset,
		line.Text,
	)

	// User partials are cumulative, so they redraw in place. Model
	// segments are disjoint chunks and always commit as lines.
	if line.Stage == live.StagePartial && line.Speaker == live.RoleUser {
		fmt.Fprintf(c.w, "\r\x1b[2K%s", rendered)
		c.partial = true
		return
	}
	if c.partial {
		fmt.Fprint(c.w, "\r\x1b[2K")
		c.partial = false
	}
	fmt.Fprintln(c.w, rendered)
}

// Flush terminates a dangling partial line so later output starts clean.
func (c *consoleSink) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.partial {
		fmt.Fprintln(c.w)
		c.partial = false
	}
}
