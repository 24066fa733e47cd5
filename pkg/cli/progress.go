package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const barWidth = 24

// AuditProgress draws a one-line progress bar while several sources are
// audited. It is safe for concurrent use.
type AuditProgress struct {
	mu       sync.Mutex
	w        io.Writer
	total    int
	done     int
	flagged  int
	current  string
	started  time.Time
	finished bool
}

// NewAuditProgress starts a bar for total sources on w, or os.Stderr when
// w is nil. A total below two draws nothing.
func NewAuditProgress(w io.Writer, total int) *AuditProgress {
	if w == nil {
		w = os.Stderr
	}
	p := &AuditProgress{w: w, total: total, started: time.Now()}
	p.render()
	return p
}

// Advance records that source was audited. highRisk counts it as flagged.
func (p *AuditProgress) Advance(source string, highRisk bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.current = source
	if highRisk {
		p.flagged++
	}
	p.render()
}

// Fail ends the bar with the error that stopped the run.
func (p *AuditProgress) Fail(source string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.visible() || p.finished {
		return
	}
	p.finished = true
	fmt.Fprintf(p.w, "\n✗ %s: %v\n", source, err)
}

// Finish ends the bar line.
func (p *AuditProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.visible() || p.finished {
		return
	}
	p.finished = true
	p.current = ""
	p.render()
	fmt.Fprintln(p.w)
}

func (p *AuditProgress) visible() bool {
	return p.total > 1
}

func (p *AuditProgress) render() {
	if !p.visible() {
		return
	}
	filled := barWidth * p.done / p.total
	if filled > barWidth {
		filled = barWidth
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\rAuditing [%s%s] %d/%d",
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), p.done, p.total)
	if p.flagged > 0 {
		fmt.Fprintf(&sb, ", %d high risk", p.flagged)
	}
	if p.current != "" {
		fmt.Fprintf(&sb, " %s", p.current)
	} else {
		fmt.Fprintf(&sb, " (%s)", time.Since(p.started).Round(time.Millisecond))
	}
	io.WriteString(p.w, sb.String())
}
