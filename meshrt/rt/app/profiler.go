package app

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler records per-frame CPU timings of named scopes and a few counters.
// Averages cover all frames since the last Reset.
type Profiler struct {
	Last   map[string]time.Duration
	Total  map[string]time.Duration
	Counts map[string]int
	Frames int

	order []string
	now   func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Last:   make(map[string]time.Duration),
		Total:  make(map[string]time.Duration),
		Counts: make(map[string]int),
		now:    time.Now,
	}
}

// Scope starts timing name and returns the function that stops it:
//
//	defer p.Scope("Dispatch")()
func (p *Profiler) Scope(name string) func() {
	if p == nil {
		return func() {}
	}
	if _, seen := p.Total[name]; !seen {
		p.order = append(p.order, name)
		p.Total[name] = 0
	}
	start := p.now()
	return func() {
		d := p.now().Sub(start)
		p.Last[name] = d
		p.Total[name] += d
	}
}

func (p *Profiler) SetCount(name string, count int) {
	if p == nil {
		return
	}
	p.Counts[name] = count
}

// EndFrame closes the current frame for averaging.
func (p *Profiler) EndFrame() {
	if p == nil {
		return
	}
	p.Frames++
}

// Average is the mean duration of name per frame.
func (p *Profiler) Average(name string) time.Duration {
	if p == nil || p.Frames == 0 {
		return 0
	}
	return p.Total[name] / time.Duration(p.Frames)
}

func (p *Profiler) Reset() {
	for k := range p.Total {
		p.Total[k] = 0
	}
	for k := range p.Last {
		delete(p.Last, k)
	}
	p.Frames = 0
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Timings (CPU, %d frames):\n", p.Frames))
	for _, name := range p.order {
		last := float64(p.Last[name].Microseconds()) / 1000.0
		avg := float64(p.Average(name).Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms (avg %.2f ms)\n", name, last, avg))
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, p.Counts[k]))
	}

	return sb.String()
}
