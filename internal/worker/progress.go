package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const barWidth = 24

// Progress renders a one-line status for a run of fetch tasks and keeps the
// counters for its summary. It is safe for concurrent use.
type Progress struct {
	mu      sync.Mutex
	out     io.Writer
	label   string
	started time.Time
	enabled bool

	done   int
	total  int
	failed int
	bytes  uint64
}

// Snapshot is a point-in-time copy of the progress counters.
type Snapshot struct {
	Done    int
	Total   int
	Failed  int
	Bytes   uint64
	Elapsed time.Duration
}

// Fraction returns the share of finished tasks in [0,1].
func (s Snapshot) Fraction() float64 {
	if s.Total <= 0 {
		return 1
	}
	return min(float64(s.Done)/float64(s.Total), 1)
}

// ByteRate returns the transferred bytes per second.
func (s Snapshot) ByteRate() uint64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return uint64(float64(s.Bytes) / s.Elapsed.Seconds())
}

// Remaining estimates the time left from the average task duration so far.
func (s Snapshot) Remaining() time.Duration {
	if s.Done == 0 || s.Done >= s.Total {
		return 0
	}
	perTask := s.Elapsed / time.Duration(s.Done)
	return perTask * time.Duration(s.Total-s.Done)
}

// NewProgress creates a progress display for total tasks. label names the
// work, e.g. "primary tiles". Nothing is drawn unless enabled is set.
func NewProgress(label string, total int, enabled bool) *Progress {
	if label == "" {
		label = "tiles"
	}
	return &Progress{
		out:     os.Stderr,
		label:   label,
		started: time.Now(),
		enabled: enabled,
		total:   total,
	}
}

// Update records the pool counters and redraws the status line.
func (p *Progress) Update(completed, total, failed int) {
	p.mu.Lock()
	p.done, p.total, p.failed = completed, total, failed
	p.mu.Unlock()

	if p.enabled {
		p.draw(false)
	}
}

// AddBytes adds n fetched bytes. Non-positive values are ignored.
func (p *Progress) AddBytes(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.bytes += uint64(n)
	p.mu.Unlock()
}

// Callback adapts Update to a pool progress hook.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Done:    p.done,
		Total:   p.total,
		Failed:  p.failed,
		Bytes:   p.bytes,
		Elapsed: time.Since(p.started),
	}
}

// Done draws the final status line and ends it.
func (p *Progress) Done() {
	if p.enabled {
		p.draw(true)
	}
}

// Summary describes the finished run in one sentence.
func (p *Progress) Summary() string {
	s := p.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of %d fetched", p.label, s.Done-s.Failed, s.Total)
	if s.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", s.Failed)
	}
	fmt.Fprintf(&b, ", %s at %s/s in %s",
		humanize.Bytes(s.Bytes), humanize.Bytes(s.ByteRate()), s.Elapsed.Round(time.Second))
	return b.String()
}

func (p *Progress) draw(final bool) {
	fmt.Fprint(p.out, "\r"+statusLine(p.label, p.Snapshot()))
	if final {
		fmt.Fprintln(p.out)
	}
}

// statusLine renders s as "label  42% |=====>    | 5/12  1.2 MB  310 kB/s  eta 4s".
func statusLine(label string, s Snapshot) string {
	filled := int(s.Fraction() * barWidth)
	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-filled-1)
	}

	parts := []string{
		fmt.Sprintf("%s %3.0f%% |%s| %d/%d", label, s.Fraction()*100, bar, s.Done, s.Total),
		humanize.Bytes(s.Bytes),
		humanize.Bytes(s.ByteRate()) + "/s",
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if eta := s.Remaining(); eta > 0 {
		parts = append(parts, "eta "+eta.Round(time.Second).String())
	}

	// trailing blanks clear a longer previous line
	return strings.Join(parts, "  ") + "    "
}
