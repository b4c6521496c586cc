package observ

import (
	"fmt"
	"strings"
	"time"
)

// Timer collects named wall-time phases of one analysis run. The nil
// timer is usable and records nothing. Not safe for concurrent use;
// drive it from the goroutine that owns the run.
type Timer struct {
	phases []phase
}

type phase struct {
	name string
	dur  time.Duration
	note string
}

// NewTimer returns an empty timer.
func NewTimer() *Timer { return &Timer{} }

// Phase opens a named phase and returns its closer. The closer records
// the elapsed time together with an optional note. Phases appear in
// reports in the order their closers ran.
func (t *Timer) Phase(name string) func(note string) {
	if t == nil {
		return func(string) {}
	}
	start := time.Now()
	return func(note string) {
		t.phases = append(t.phases, phase{name: name, dur: time.Since(start), note: note})
	}
}

// PhaseReport is the serializable projection of one recorded phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates the recorded phases.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report converts the recorded phases to milliseconds.
func (t *Timer) Report() Report {
	if t == nil || len(t.phases) == 0 {
		return Report{}
	}
	rep := Report{Phases: make([]PhaseReport, len(t.phases))}
	var total time.Duration
	for i, p := range t.phases {
		total += p.dur
		rep.Phases[i] = PhaseReport{Name: p.name, DurationMS: millis(p.dur), Note: p.note}
	}
	rep.TotalMS = millis(total)
	return rep
}

// Summary renders the report the way the --timings flag prints it.
func (t *Timer) Summary() string {
	var b strings.Builder
	b.WriteString("timings:\n")
	rep := t.Report()
	for _, p := range rep.Phases {
		fmt.Fprintf(&b, "  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			b.WriteString("  // " + p.Note)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "  %-20s %7.2f ms\n", "total", rep.TotalMS)
	return b.String()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
