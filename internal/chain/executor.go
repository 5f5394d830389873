package chain

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fileflow/fileflow/internal/metrics"
	"github.com/fileflow/fileflow/processor"
)

// DefaultTimeout bounds a single processor invocation when no explicit
// timeout is given.
const DefaultTimeout = 30 * time.Second

// Context keys seeded into every chain run.
const (
	ContextKeyOriginalPath   = "original_path"
	ContextKeyChainStartTime = "chain_start_time"
)

// Filter narrows the applicable processor list for a single run.
type Filter func(processor.Processor) bool

// ProgressFunc receives batch progress updates as (current, total).
type ProgressFunc func(current, total int)

// Outcome records one processor invocation within a chain run.
type Outcome struct {
	Processor string                 `json:"processor"`
	Version   string                 `json:"processor_version"`
	Order     int                    `json:"order"`
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	Timeout   bool                   `json:"timeout,omitempty"`
	Err       bool                   `json:"error,omitempty"`
	Stats     map[string]interface{} `json:"stats,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// RunRecord is the result of running one file through its processor chain.
// A chain run always produces a record, never an error.
type RunRecord struct {
	FilePath      string        `json:"file_path"`
	ProcessorsRun int           `json:"processors_run"`
	Successful    int           `json:"successful_processors"`
	Failed        int           `json:"failed_processors"`
	Results       []Outcome     `json:"results"`
	Success       bool          `json:"success"`
	Message       string        `json:"message"`
	Duration      time.Duration `json:"duration"`
}

// Executor runs files through their applicable processors serially in
// priority order, each invocation under an independent timeout. A weighted
// semaphore bounds in-flight chain executions across the whole system, not
// per file.
type Executor struct {
	registry *processor.Registry
	timeout  time.Duration
	sem      *semaphore.Weighted
	stats    *Stats
}

// New creates an executor over the registry. A defaultTimeout <= 0 falls
// back to DefaultTimeout; maxConcurrent < 1 is treated as 1.
func New(registry *processor.Registry, defaultTimeout time.Duration, maxConcurrent int64) *Executor {
	return NewWithStats(registry, defaultTimeout, maxConcurrent, NewStats())
}

// NewWithStats creates an executor that records into a caller-owned counter
// set.
func NewWithStats(registry *processor.Registry, defaultTimeout time.Duration, maxConcurrent int64, stats *Stats) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Executor{
		registry: registry,
		timeout:  defaultTimeout,
		sem:      semaphore.NewWeighted(maxConcurrent),
		stats:    stats,
	}
}

// ProcessFile runs the file through its applicable chain with the default
// per-processor timeout.
func (e *Executor) ProcessFile(ctx context.Context, path string) *RunRecord {
	return e.ProcessFileWith(ctx, path, e.timeout, nil)
}

// ProcessFileWith runs the file through its applicable chain. The timeout
// bounds each processor independently (<= 0 uses the executor default); the
// filter, when non-nil, further narrows the applicable processors.
func (e *Executor) ProcessFileWith(ctx context.Context, path string, timeout time.Duration, filter Filter) *RunRecord {
	start := time.Now()
	if timeout <= 0 {
		timeout = e.timeout
	}

	processors := e.registry.ProcessorsFor(path)
	if filter != nil {
		narrowed := processors[:0:0]
		for _, p := range processors {
			if filter(p) {
				narrowed = append(narrowed, p)
			}
		}
		processors = narrowed
	}

	// Absence of applicable work is not failure.
	if len(processors) == 0 {
		return &RunRecord{
			FilePath: path,
			Success:  true,
			Message:  "No applicable processors found",
			Duration: time.Since(start),
		}
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return &RunRecord{
			FilePath: path,
			Success:  false,
			Message:  fmt.Sprintf("chain execution cancelled: %v", err),
			Duration: time.Since(start),
		}
	}

	chainCtx := map[string]interface{}{
		ContextKeyOriginalPath:   path,
		ContextKeyChainStartTime: start,
	}
	results := make([]Outcome, 0, len(processors))
	overallSuccess := true

	for i, p := range processors {
		if ctx.Err() != nil {
			// Cancellation is observed at the stage boundary; processors
			// that never started are not recorded.
			break
		}

		outcome := Outcome{
			Processor: p.Name(),
			Version:   processor.VersionOf(p),
			Order:     i + 1,
		}

		res, timedOut, err := e.runProcessor(ctx, p, path, chainCtx, timeout)
		switch {
		case timedOut:
			log.Printf("Processor %s timed out on %s after %s", p.Name(), path, timeout)
			outcome.Message = err.Error()
			outcome.Timeout = true
			e.stats.recordTimeout(p.Name())
			overallSuccess = false
		case err != nil:
			log.Printf("Processor %s failed on %s: %v", p.Name(), path, err)
			outcome.Message = err.Error()
			outcome.Err = true
			e.stats.recordFailure(p.Name())
			overallSuccess = false
		default:
			outcome.Success = res.Success
			outcome.Message = res.Message
			outcome.Stats = res.Stats
			outcome.Context = res.Context
			if res.Success {
				for k, v := range res.Context {
					chainCtx[k] = v
				}
				e.stats.recordSuccess(p.Name())
			} else {
				e.stats.recordFailure(p.Name())
				overallSuccess = false
			}
		}

		results = append(results, outcome)
	}

	e.sem.Release(1)
	e.stats.recordFile()

	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}

	duration := time.Since(start)
	metrics.ChainDuration.Observe(duration.Seconds())

	return &RunRecord{
		FilePath:      path,
		ProcessorsRun: len(results),
		Successful:    successful,
		Failed:        len(results) - successful,
		Results:       results,
		Success:       overallSuccess,
		Message:       fmt.Sprintf("Processed through %d processors", len(results)),
		Duration:      duration,
	}
}

// runProcessor invokes one processor in its own goroutine and waits at most
// timeout for it to finish. On deadline expiry the invocation is abandoned:
// the chain proceeds without waiting for the runaway goroutine, which keeps
// the run's wall-clock time bounded even for uncooperative processors.
func (e *Executor) runProcessor(ctx context.Context, p processor.Processor, path string, chainCtx map[string]interface{}, timeout time.Duration) (*processor.Result, bool, error) {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *processor.Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("processor panicked: %v", rec)}
			}
		}()
		res, err := p.Process(pctx, path, copyContext(chainCtx))
		done <- outcome{res: res, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, false, o.err
		}
		if o.res == nil {
			return nil, false, processor.ErrNoResult
		}
		return o.res, false, nil
	case <-timer.C:
		return nil, true, &processor.Error{
			ProcessorName: p.Name(),
			FilePath:      path,
			Message:       fmt.Sprintf("processor timed out after %s", timeout),
			Timeout:       true,
		}
	case <-ctx.Done():
		return nil, false, fmt.Errorf("chain cancelled: %w", ctx.Err())
	}
}

// ProcessFiles runs a batch of files sequentially. A file whose chain setup
// fails is converted into a failed record rather than aborting the batch;
// cancellation stops the batch before the next file starts. The progress
// callback fires before each file and once more at completion.
func (e *Executor) ProcessFiles(ctx context.Context, paths []string, timeout time.Duration, progress ProgressFunc) []*RunRecord {
	records := make([]*RunRecord, 0, len(paths))

	for i, path := range paths {
		if ctx.Err() != nil {
			log.Printf("Batch cancelled with %d of %d files remaining", len(paths)-i, len(paths))
			break
		}
		if progress != nil {
			progress(i, len(paths))
		}
		records = append(records, e.processFileSafely(ctx, path, timeout))
	}

	if progress != nil {
		progress(len(records), len(paths))
	}
	return records
}

func (e *Executor) processFileSafely(ctx context.Context, path string, timeout time.Duration) (rec *RunRecord) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Failed to process %s: %v", path, r)
			rec = &RunRecord{
				FilePath: path,
				Success:  false,
				Message:  fmt.Sprintf("Chain execution failed: %v", r),
			}
		}
	}()
	return e.ProcessFileWith(ctx, path, timeout, nil)
}

// IsSupported reports whether any registered processor applies to the file.
func (e *Executor) IsSupported(path string) bool {
	return len(e.registry.ProcessorsFor(path)) > 0
}

// ListProcessorsFor returns metadata for the processors that would run for
// the given file, in execution order.
func (e *Executor) ListProcessorsFor(path string) []processor.Info {
	processors := e.registry.ProcessorsFor(path)
	infos := make([]processor.Info, 0, len(processors))
	for _, p := range processors {
		infos = append(infos, processor.InfoOf(p))
	}
	return infos
}

// Stats returns a snapshot of the cumulative counters.
func (e *Executor) Stats() StatsSnapshot { return e.stats.Snapshot() }

// ResetStats zeroes the cumulative counters.
func (e *Executor) ResetStats() { e.stats.Reset() }

func copyContext(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
