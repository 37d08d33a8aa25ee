package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RuntimeProfiler tracks operation timings and custom metrics for a batch run and
// reports them through a logger.
//
// Reports are emitted on demand with Report, and periodically between Start and
// Stop when a report interval is configured. It is safe for concurrent use.
type RuntimeProfiler struct {
	// Configuration
	reportInterval time.Duration
	maxSamples     int
	log            logrus.FieldLogger

	// State management
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	customMetrics  map[string]*MetricTracker
	operationTimes map[string]*TimeTracker
}

// MetricTracker tracks statistics for a custom metric.
type MetricTracker struct {
	name   string
	values []float64
	sum    float64
	total  float64
	min    float64
	max    float64
	count  int64
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	name      string
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports after Start
	// (default: 0, no periodic reports).
	ReportInterval time.Duration
	// MaxSamples specifies maximum number of samples kept per tracker for
	// averages (default: 600).
	MaxSamples int
	// Logger receives the reports (default: the standard logrus logger).
	Logger logrus.FieldLogger
}

// MetricStats is a snapshot of one custom metric.
type MetricStats struct {
	Name  string
	Count int64
	Total float64
	Avg   float64
	Min   float64
	Max   float64
}

// OperationStats is a snapshot of one timed operation.
type OperationStats struct {
	Name  string
	Count int64
	Total time.Duration
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Stats is a snapshot of everything the profiler tracked.
type Stats struct {
	Elapsed    time.Duration
	Metrics    []MetricStats
	Operations []OperationStats
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
// The elapsed-time clock starts immediately.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		log:            opts.Logger,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins periodic reporting if a report interval is configured. It is safe
// to call more than once.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running || rp.reportInterval <= 0 {
		return
	}
	rp.running = true

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()

		ticker := time.NewTicker(rp.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-rp.ctx.Done():
				return
			case <-ticker.C:
				rp.Report()
			}
		}
	}()
}

// Stop ends periodic reporting and waits for the reporter to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

// Elapsed returns the time since the profiler was created.
func (rp *RuntimeProfiler) Elapsed() time.Duration {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return time.Since(rp.startTime)
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.customMetrics[name]
	if !exists {
		tracker = &MetricTracker{
			name:   name,
			values: make([]float64, 0, min(rp.maxSamples, 64)),
			min:    value,
			max:    value,
		}
		rp.customMetrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	if len(tracker.values) > rp.maxSamples {
		// Remove oldest sample
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}

	tracker.sum += value
	tracker.total += value
	tracker.count++

	if value < tracker.min {
		tracker.min = value
	}
	if value > tracker.max {
		tracker.max = value
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.recordOperationTime(name, time.Since(start))
	}
}

// recordOperationTime records the completion time of an operation.
func (rp *RuntimeProfiler) recordOperationTime(name string, duration time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{
			name:    name,
			minTime: duration,
			maxTime: duration,
		}
		rp.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	if len(tracker.durations) > rp.maxSamples {
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += duration
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Snapshot returns the current statistics sorted by name.
func (rp *RuntimeProfiler) Snapshot() Stats {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	stats := Stats{Elapsed: time.Since(rp.startTime)}

	for _, tracker := range rp.customMetrics {
		m := MetricStats{
			Name:  tracker.name,
			Count: tracker.count,
			Total: tracker.total,
			Min:   tracker.min,
			Max:   tracker.max,
		}
		if len(tracker.values) > 0 {
			m.Avg = tracker.sum / float64(len(tracker.values))
		}
		stats.Metrics = append(stats.Metrics, m)
	}
	sort.Slice(stats.Metrics, func(i, j int) bool { return stats.Metrics[i].Name < stats.Metrics[j].Name })

	for _, tracker := range rp.operationTimes {
		o := OperationStats{
			Name:  tracker.name,
			Count: tracker.count,
			Total: tracker.totalTime,
			Min:   tracker.minTime,
			Max:   tracker.maxTime,
		}
		if tracker.count > 0 {
			o.Avg = tracker.totalTime / time.Duration(tracker.count)
		}
		stats.Operations = append(stats.Operations, o)
	}
	sort.Slice(stats.Operations, func(i, j int) bool { return stats.Operations[i].Name < stats.Operations[j].Name })

	return stats
}

// Report logs the current statistics and memory usage at debug level, with a
// single info line for the elapsed time.
func (rp *RuntimeProfiler) Report() {
	stats := rp.Snapshot()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rp.log.WithFields(logrus.Fields{
		"uptime":     stats.Elapsed.Truncate(time.Millisecond),
		"goroutines": runtime.NumGoroutine(),
		"heap_alloc": formatBytes(mem.HeapAlloc),
		"sys":        formatBytes(mem.Sys),
		"gc_cycles":  mem.NumGC,
	}).Info("profiler status")

	for _, m := range stats.Metrics {
		rp.log.WithFields(logrus.Fields{
			"metric": m.Name,
			"count":  m.Count,
			"avg":    fmt.Sprintf("%.2f", m.Avg),
			"min":    m.Min,
			"max":    m.Max,
		}).Debug("metric")
	}
	for _, o := range stats.Operations {
		rp.log.WithFields(logrus.Fields{
			"operation": o.Name,
			"count":     o.Count,
			"avg":       o.Avg.Truncate(time.Microsecond),
			"min":       o.Min.Truncate(time.Microsecond),
			"max":       o.Max.Truncate(time.Microsecond),
		}).Debug("operation timing")
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
