package utils

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tj/go-spin"
)

// ProgressTracker reports progress of long-running loops. Totals may grow
// while the loop runs (gap queues requeue split pieces), so Add is allowed
// after construction.
type ProgressTracker struct {
	Name      string
	Total     int64
	Processed int64
	StartTime time.Time
	spinner   *spin.Spinner
}

// NewProgressTracker creates a tracker for a loop over total items.
func NewProgressTracker(total int64, name string) *ProgressTracker {
	return &ProgressTracker{
		Name:      name,
		Total:     total,
		StartTime: time.Now(),
		spinner:   spin.New(),
	}
}

// Add grows (or shrinks) the expected total.
func (pt *ProgressTracker) Add(delta int64) {
	atomic.AddInt64(&pt.Total, delta)
}

// Increment marks one item processed, printing every 100 items and at
// completion.
func (pt *ProgressTracker) Increment() {
	processed := atomic.AddInt64(&pt.Processed, 1)
	total := atomic.LoadInt64(&pt.Total)

	if processed%100 == 0 || processed >= total {
		elapsed := time.Since(pt.StartTime)
		rate := float64(processed) / elapsed.Seconds()
		fmt.Printf("\r%s %s: %d/%d - %.1f items/sec", pt.spinner.Next(), pt.Name, processed, total, rate)
	}
}

// Done finishes the progress line.
func (pt *ProgressTracker) Done() {
	processed := atomic.LoadInt64(&pt.Processed)
	elapsed := time.Since(pt.StartTime)
	fmt.Printf("\r%s: completed %d items in %s\n", pt.Name, processed, elapsed.Round(time.Millisecond))
}
