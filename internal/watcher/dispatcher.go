package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/fileflow/fileflow/internal/chain"
	"github.com/fileflow/fileflow/internal/metrics"
	"github.com/fileflow/fileflow/processor"
)

// TempSuffix marks temporary files written by processors; events for them
// are never dispatched.
const TempSuffix = ".fileflow.tmp"

// stopGrace bounds how long Stop waits for in-flight pipelines.
const stopGrace = 5 * time.Second

// Config controls dispatcher behavior.
type Config struct {
	// Root is the directory watched recursively.
	Root string
	// StableWait is the size-poll interval for stability detection;
	// <= 0 skips the stability wait entirely.
	StableWait time.Duration
	// MaxStableAttempts bounds the stability polls per file.
	MaxStableAttempts int
	// NewFileDelay is an optional fixed delay before the stability wait.
	NewFileDelay time.Duration
	// Cooldown is the minimum time between accepted events for one path.
	Cooldown time.Duration
	// ProcessTimeout bounds each processor invocation.
	ProcessTimeout time.Duration
	// Workers sizes the bulk-processing pool.
	Workers int
}

// Status describes the dispatcher for reporting surfaces.
type Status struct {
	Root                string   `json:"root_path"`
	Watching            bool     `json:"is_watching"`
	SupportedExtensions []string `json:"supported_extensions"`
}

// BulkSummary reports one pass over pre-existing files.
type BulkSummary struct {
	TotalFiles int           `json:"total_files"`
	Processed  int           `json:"processed_files"`
	Succeeded  int           `json:"successful_files"`
	Failed     int           `json:"failed_files"`
	Duration   time.Duration `json:"duration"`
}

// Dispatcher consumes filesystem create/modify events, applies a per-path
// cooldown filter, and schedules background processing through the stability
// wait and the chain executor. Event delivery is never blocked: every
// accepted event gets its own pipeline goroutine.
type Dispatcher struct {
	cfg      Config
	registry *processor.Registry
	executor *chain.Executor

	watcher  *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}

	// pipelines tracks in-flight per-file processing goroutines and the
	// background bulk pass.
	pipelines sync.WaitGroup

	processedMu sync.Mutex
	processed   map[string]time.Time

	mu      sync.Mutex
	running bool
}

// New creates a dispatcher over the given registry and executor.
func New(cfg Config, registry *processor.Registry, executor *chain.Executor) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		registry:  registry,
		executor:  executor,
		processed: make(map[string]time.Time),
	}
}

// Start begins watching the configured root. The event source starts before
// the optional bulk pass so files created while the pass runs are not
// missed; the bulk pass races the live watch in the background.
func (d *Dispatcher) Start(ctx context.Context, processExisting bool) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher is already running")
	}
	d.running = true
	d.mu.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		d.abortStart()
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	d.watcher = w
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.loopDone = make(chan struct{})

	if err := d.addWatchTree(d.cfg.Root); err != nil {
		w.Close()
		d.cancel()
		d.abortStart()
		return fmt.Errorf("failed to watch %s: %w", d.cfg.Root, err)
	}

	log.Printf("Watching %s for extensions: %v", d.cfg.Root, d.registry.SupportedExtensions())
	go d.eventLoop()

	if processExisting {
		d.pipelines.Add(1)
		go func() {
			defer d.pipelines.Done()
			d.ProcessExisting(d.ctx, d.cfg.Workers)
		}()
	}
	return nil
}

// abortStart rolls back a failed Start so the dispatcher returns to its
// created state: Watching reports false, Stop is a no-op, and Start may be
// retried.
func (d *Dispatcher) abortStart() {
	d.watcher = nil
	d.cancel = nil
	d.loopDone = nil

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop cancels in-flight work, closes the event source, and waits a bounded
// grace period for background pipelines. Safe to call more than once.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	log.Println("Stopping file watcher...")
	d.cancel()

	var closeErr error
	if d.watcher != nil {
		closeErr = d.watcher.Close()
		<-d.loopDone
	}

	// In-flight pipelines get a grace period but are not waited for beyond
	// it; per-processor timeouts already bound their runtime.
	waited := make(chan struct{})
	go func() {
		d.pipelines.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(stopGrace):
		log.Printf("Shutdown grace period elapsed with pipelines still in flight")
	}

	stats := d.executor.Stats()
	log.Println("Final statistics:")
	log.Printf("  Files processed: %d", stats.FilesProcessed)
	log.Printf("  Processors run: %d", stats.ProcessorsRun)
	log.Printf("  Successful: %d", stats.Succeeded)
	log.Printf("  Failed: %d", stats.Failed)
	log.Printf("  Timeouts: %d", stats.TimedOut)
	log.Println("File watcher stopped")
	return closeErr
}

// Watching reports whether the dispatcher is currently running.
func (d *Dispatcher) Watching() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Status reports the dispatcher's state for the management API.
func (d *Dispatcher) Status() Status {
	return Status{
		Root:                d.cfg.Root,
		Watching:            d.Watching(),
		SupportedExtensions: d.registry.SupportedExtensions(),
	}
}

// ReloadProcessors swaps the registered processor set without restarting the
// watch. The extension filter picks up the new set immediately because it
// reads through the registry.
func (d *Dispatcher) ReloadProcessors() {
	d.registry.Reload()
	log.Printf("Processors reloaded; watching for extensions: %v", d.registry.SupportedExtensions())
}

func (d *Dispatcher) addWatchTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		if err := d.watcher.Add(path); err != nil {
			log.Printf("Failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (d *Dispatcher) eventLoop() {
	defer close(d.loopDone)
	for {
		select {
		case <-d.ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.handleEvent(event)
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Dispatcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// New directories join the recursive watch.
			if err := d.addWatchTree(event.Name); err != nil {
				log.Printf("Failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	if !d.IsRelevant(event.Name) {
		metrics.EventsDropped.WithLabelValues("irrelevant").Inc()
		return
	}
	if !d.shouldProcess(event.Name) {
		metrics.EventsDropped.WithLabelValues("cooldown").Inc()
		return
	}

	if event.Op&fsnotify.Create != 0 {
		log.Printf("New file detected: %s", event.Name)
	} else {
		log.Printf("File modified: %s", event.Name)
	}
	metrics.EventsAccepted.Inc()

	// Processing runs off the event-delivery goroutine so notification
	// delivery is never blocked.
	d.pipelines.Add(1)
	go d.runPipeline(event.Name)
}

// IsRelevant reports whether an event for the path should be considered at
// all: self-generated temporary files and dotfiles are ignored, and the
// extension must be claimed by at least one registered processor.
func (d *Dispatcher) IsRelevant(path string) bool {
	base := filepath.Base(path)
	if strings.Contains(base, TempSuffix) || strings.HasPrefix(base, ".") {
		return false
	}
	return d.registry.Supports(path)
}

// shouldProcess applies the cooldown filter. Accepted events record the
// acceptance time; dropped events leave the timestamp untouched so the map
// reflects the most recent accepted processing start.
func (d *Dispatcher) shouldProcess(path string) bool {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}

	now := time.Now()
	d.processedMu.Lock()
	defer d.processedMu.Unlock()

	if last, ok := d.processed[key]; ok && d.cfg.Cooldown > 0 && now.Sub(last) < d.cfg.Cooldown {
		return false
	}
	d.processed[key] = now
	return true
}

// runPipeline is the per-file processing sequence: optional new-file delay,
// stability wait, then the chain run. The dispatcher context is checked at
// each stage boundary so shutdown aborts early without error.
func (d *Dispatcher) runPipeline(path string) {
	defer d.pipelines.Done()

	if d.cfg.NewFileDelay > 0 {
		if !sleepCtx(d.ctx, d.cfg.NewFileDelay) {
			return
		}
	}
	if !WaitForStable(d.ctx, path, d.cfg.StableWait, d.cfg.MaxStableAttempts) {
		log.Printf("File not stable, skipping: %s", path)
		return
	}
	if d.ctx.Err() != nil {
		return
	}

	record := d.executor.ProcessFileWith(d.ctx, path, d.cfg.ProcessTimeout, nil)
	d.logRecord(record)
}

func (d *Dispatcher) logRecord(record *chain.RunRecord) {
	if record.Success {
		log.Printf("Processed %s: %d/%d processors succeeded", record.FilePath, record.Successful, record.ProcessorsRun)
	} else {
		log.Printf("Processing failed for %s: %d/%d processors succeeded", record.FilePath, record.Successful, record.ProcessorsRun)
	}
	for _, r := range record.Results {
		if r.Success {
			log.Printf("  ok %s: %s", r.Processor, r.Message)
		} else {
			log.Printf("  failed %s: %s", r.Processor, r.Message)
		}
	}
}

// ProcessExisting walks the root once and runs every relevant file through
// the chain, sequentially or with a bounded worker pool. The pool starts no
// new work once the context is cancelled.
func (d *Dispatcher) ProcessExisting(ctx context.Context, workers int) *BulkSummary {
	start := time.Now()

	var files []string
	err := filepath.WalkDir(d.cfg.Root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != d.cfg.Root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsRelevant(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		log.Printf("Error enumerating existing files under %s: %v", d.cfg.Root, err)
	}

	if len(files) == 0 {
		log.Println("No supported files found for processing")
		return &BulkSummary{Duration: time.Since(start)}
	}

	log.Printf("Found %d supported files to process with %d workers", len(files), workers)

	progress := func(current, total int) {
		if current%10 == 0 || current == total {
			log.Printf("Progress: %d/%d files processed", current, total)
		}
	}

	var records []*chain.RunRecord
	if workers <= 1 {
		records = d.executor.ProcessFiles(ctx, files, d.cfg.ProcessTimeout, progress)
	} else {
		var recordsMu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for _, path := range files {
			if gctx.Err() != nil {
				log.Println("Stop requested, cancelling remaining files")
				break
			}
			path := path
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				record := d.executor.ProcessFileWith(gctx, path, d.cfg.ProcessTimeout, nil)
				recordsMu.Lock()
				records = append(records, record)
				progress(len(records), len(files))
				recordsMu.Unlock()
				return nil
			})
		}
		g.Wait()
	}

	succeeded := 0
	for _, r := range records {
		if r.Success {
			succeeded++
		}
	}

	summary := &BulkSummary{
		TotalFiles: len(files),
		Processed:  len(records),
		Succeeded:  succeeded,
		Failed:     len(records) - succeeded,
		Duration:   time.Since(start),
	}
	log.Printf("Existing file processing complete: %d/%d files processed successfully in %s",
		summary.Succeeded, summary.Processed, summary.Duration.Round(time.Millisecond))
	return summary
}
