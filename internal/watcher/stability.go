package watcher

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/fileflow/fileflow/internal/metrics"
)

// DefaultMaxStableAttempts bounds how many size polls a file gets before it
// is declared unstable.
const DefaultMaxStableAttempts = 10

// WaitForStable polls the file's size at stableWait intervals and reports
// whether it has stopped changing. Two consecutive equal sizes mean stable.
// A file that disappears mid-poll, a cancelled context, or exhausted
// attempts all report not-stable; none of them raise an error. A
// stableWait <= 0 short-circuits to stable immediately.
func WaitForStable(ctx context.Context, path string, stableWait time.Duration, maxAttempts int) bool {
	if stableWait <= 0 {
		return true
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxStableAttempts
	}

	prevSize := int64(-1)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		info, err := os.Stat(path)
		if err != nil {
			// Fails closed: a file we cannot stat is not safe to read.
			if attempt < maxAttempts-1 {
				if !sleepCtx(ctx, stableWait) {
					return false
				}
				continue
			}
			return false
		}

		size := info.Size()
		if prevSize >= 0 && size == prevSize {
			return true
		}
		prevSize = size

		if !sleepCtx(ctx, stableWait) {
			return false
		}
	}

	log.Printf("File did not stabilize after %d attempts: %s", maxAttempts, path)
	metrics.FilesUnstable.Inc()
	return false
}

// sleepCtx waits for d or until the context is cancelled. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
