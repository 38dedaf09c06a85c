// Package stats keeps rolling latency windows for pipeline phases.
package stats

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at time.Time
	ms int64
}

// Snapshot is a point-in-time aggregate of latency samples.
type Snapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Latency tracks recent durations within a rolling window.
type Latency struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

// NewLatency returns a window that forgets samples older than maxAge.
// A non-positive maxAge means one hour.
func NewLatency(maxAge time.Duration) *Latency {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Latency{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one sample. Negative durations count as zero.
func (l *Latency) Record(d time.Duration) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)
	l.samples = append(l.samples, sample{at: now, ms: ms})
}

// Since records the time elapsed since start.
func (l *Latency) Since(start time.Time) {
	l.Record(l.now().Sub(start))
}

func (l *Latency) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(l.now())
	if len(l.samples) == 0 {
		return Snapshot{}
	}

	values := make([]int64, 0, len(l.samples))
	var sum int64
	for _, s := range l.samples {
		values = append(values, s.ms)
		sum += s.ms
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return Snapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

func (l *Latency) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.maxAge)
	keep := 0
	for _, s := range l.samples {
		if !s.at.Before(cutoff) {
			l.samples[keep] = s
			keep++
		}
	}
	l.samples = l.samples[:keep]
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo := float64(sorted[lower])
	hi := float64(sorted[upper])
	return lo + ((hi - lo) * weight)
}

// Phases holds one latency window per named pipeline phase.
type Phases struct {
	mu     sync.Mutex
	maxAge time.Duration
	byName map[string]*Latency
}

func NewPhases(maxAge time.Duration) *Phases {
	return &Phases{maxAge: maxAge, byName: map[string]*Latency{}}
}

// Phase returns the window for name, creating it on first use.
func (p *Phases) Phase(name string) *Latency {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.byName[name]
	if !ok {
		l = NewLatency(p.maxAge)
		p.byName[name] = l
	}
	return l
}

// Snapshot aggregates every phase that has been recorded.
func (p *Phases) Snapshot() map[string]Snapshot {
	p.mu.Lock()
	names := make([]string, 0, len(p.byName))
	windows := make([]*Latency, 0, len(p.byName))
	for name, l := range p.byName {
		names = append(names, name)
		windows = append(windows, l)
	}
	p.mu.Unlock()

	out := make(map[string]Snapshot, len(names))
	for i, name := range names {
		out[name] = windows[i].Snapshot()
	}
	return out
}
