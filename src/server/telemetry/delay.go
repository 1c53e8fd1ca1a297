// Package telemetry records how long requests spend with the analysis server.
package telemetry

import (
	"sort"
	"sync"
	"time"

	"analysis-broker/src/server/queue"
)

// BucketBounds are the upper bounds of the delay histogram buckets; the last
// bucket is open-ended.
var BucketBounds = []time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	1000 * time.Millisecond,
	5000 * time.Millisecond,
	10000 * time.Millisecond,
}

// BucketLabels name each bucket, one more than BucketBounds
var BucketLabels = []string{
	"0-50ms",
	"50-100ms",
	"100-250ms",
	"250-500ms",
	"500-1000ms",
	"1000-5000ms",
	"5000-10000ms",
	"10000ms+",
}

// CommandDelay is the histogram for one command
type CommandDelay struct {
	Command string
	Class   queue.Class
	Count   int
	Total   time.Duration
	Max     time.Duration
	Buckets []int
}

// Average returns the mean delay, zero when nothing was recorded
func (d CommandDelay) Average() time.Duration {
	if d.Count == 0 {
		return 0
	}
	return d.Total / time.Duration(d.Count)
}

// DelayTracker accumulates per-command delay histograms
type DelayTracker struct {
	mu     sync.Mutex
	delays map[string]*CommandDelay
}

// NewDelayTracker creates an empty tracker
func NewDelayTracker() *DelayTracker {
	return &DelayTracker{delays: make(map[string]*CommandDelay)}
}

// Record adds one observation
func (t *DelayTracker) Record(command string, class queue.Class, d time.Duration) {
	if d < 0 {
		d = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.delays[command]
	if !ok {
		entry = &CommandDelay{
			Command: command,
			Class:   class,
			Buckets: make([]int, len(BucketLabels)),
		}
		t.delays[command] = entry
	}

	entry.Count++
	entry.Total += d
	if d > entry.Max {
		entry.Max = d
	}
	entry.Buckets[bucketIndex(d)]++
}

func bucketIndex(d time.Duration) int {
	for i, bound := range BucketBounds {
		if d < bound {
			return i
		}
	}
	return len(BucketBounds)
}

// Snapshot returns a copy of every histogram ordered by class, then command
func (t *DelayTracker) Snapshot() []CommandDelay {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]CommandDelay, 0, len(t.delays))
	for _, entry := range t.delays {
		c := *entry
		c.Buckets = append([]int(nil), entry.Buckets...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		return out[i].Command < out[j].Command
	})
	return out
}

// Reset discards all observations
func (t *DelayTracker) Reset() {
	t.mu.Lock()
	t.delays = make(map[string]*CommandDelay)
	t.mu.Unlock()
}
