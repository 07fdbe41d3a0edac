package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Progress tracks and displays band completion for a long render.
type Progress struct {
	startTime time.Time
	output    io.Writer
	label     string
	total     int
	completed int
	runs      int
	mu        sync.RWMutex
	enabled   bool
}

// NewProgress creates a new progress tracker. label names the work unit
// shown next to the counter (e.g. "bands").
func NewProgress(label string, enabled bool) *Progress {
	return &Progress{
		label:     label,
		startTime: time.Now(),
		output:    os.Stderr,
		enabled:   enabled,
	}
}

// SetOutput redirects progress output.
func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	p.output = w
	p.mu.Unlock()
}

// Update records the completion of a band. Safe for concurrent use.
func (p *Progress) Update(completed, total int) {
	p.mu.Lock()
	// Bands finish out of order; never move the counter backwards within a run.
	if total != p.total || (p.completed == p.total && completed < p.completed) {
		p.total = total
		p.completed = 0
		p.runs++
	}
	if completed > p.completed {
		p.completed = completed
	}
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for use with Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Print displays the current progress to output.
func (p *Progress) Print() {
	p.mu.RLock()
	completed := p.completed
	total := p.total
	startTime := p.startTime
	out := p.output
	p.mu.RUnlock()

	if total <= 0 {
		return
	}

	elapsed := time.Since(startTime)

	barWidth := 30
	filledWidth := int(float64(completed) / float64(total) * float64(barWidth))
	bar := strings.Repeat("█", filledWidth) + strings.Repeat("░", barWidth-filledWidth)

	line := fmt.Sprintf("\r[%s] %d/%d %s", bar, completed, total, p.label)
	if completed == total {
		line += fmt.Sprintf(" - Done in %s", formatDuration(elapsed))
	}
	line += "          "

	fmt.Fprint(out, line)
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		p.mu.RLock()
		fmt.Fprintln(p.output)
		p.mu.RUnlock()
	}
}

// Summary returns a summary string of the completed work.
func (p *Progress) Summary() string {
	p.mu.RLock()
	runs := p.runs
	total := p.total
	startTime := p.startTime
	p.mu.RUnlock()

	return fmt.Sprintf("Computed %d fields (%d %s each) in %s", runs, total, p.label, formatDuration(time.Since(startTime)))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", mins, secs)
}
