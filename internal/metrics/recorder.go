// Package metrics aggregates per-step timing for a run: durations, retry
// counts, success rate, throughput and latency percentiles backed by an HDR
// histogram.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// Histogram bounds: 1ms to 1h, three significant digits.
const (
	minLatencyMS = 1
	maxLatencyMS = 3_600_000
	sigFigs      = 3
)

// Recorder collects step outcomes for one run.
type Recorder struct {
	mu        sync.Mutex
	hist      *hdrhistogram.Histogram
	durations map[string]time.Duration
	retries   map[string]int
	completed int
	failed    int
	start     time.Time
}

// NewRecorder starts a recorder; the run clock starts now.
func NewRecorder() *Recorder {
	return &Recorder{
		hist:      hdrhistogram.New(minLatencyMS, maxLatencyMS, sigFigs),
		durations: make(map[string]time.Duration),
		retries:   make(map[string]int),
		start:     time.Now(),
	}
}

// RecordStep registers one terminal step outcome. attempts is the total
// attempt count; attempts-1 went to retries.
func (r *Recorder) RecordStep(stepID string, d time.Duration, attempts int, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.durations[stepID] = d
	if attempts > 1 {
		r.retries[stepID] = attempts - 1
	}
	if failed {
		r.failed++
	} else {
		r.completed++
	}

	ms := d.Milliseconds()
	if ms < minLatencyMS {
		ms = minLatencyMS
	}
	if ms > maxLatencyMS {
		ms = maxLatencyMS
	}
	_ = r.hist.RecordValue(ms)
}

// Snapshot freezes the collected metrics into the result representation.
func (r *Recorder) Snapshot() *types.PerformanceMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := r.completed + r.failed
	m := &types.PerformanceMetrics{
		StepDurations: make(map[string]time.Duration, len(r.durations)),
		RetryCounts:   make(map[string]int, len(r.retries)),
	}
	for k, v := range r.durations {
		m.StepDurations[k] = v
	}
	for k, v := range r.retries {
		m.RetryCounts[k] = v
	}

	if total > 0 {
		m.SuccessRate = float64(r.completed) / float64(total)
	}

	elapsed := time.Since(r.start)
	if elapsed > 0 {
		m.Throughput = float64(r.completed) / elapsed.Seconds()
	}

	if r.hist.TotalCount() > 0 {
		m.LatencyMS = map[string]float64{
			"p50": float64(r.hist.ValueAtQuantile(50)),
			"p90": float64(r.hist.ValueAtQuantile(90)),
			"p99": float64(r.hist.ValueAtQuantile(99)),
			"max": float64(r.hist.Max()),
		}
	}

	return m
}
