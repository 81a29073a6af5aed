package detect

import (
	"context"
	"sync"
	"time"

	"github.com/ripplecut/ripplecut/internal/segment"
)

// DefaultDebounce is the delay between a parameter change and the detection
// run it schedules. Rapid slider changes collapse into one run.
const DefaultDebounce = 400 * time.Millisecond

// Deliver receives the outcome of a detection pass. On failure the pending
// list is nil and the error carries the cause; the caller keeps its confirmed
// list untouched either way.
type Deliver func(pending []segment.Pending, err error)

// Runner debounces detection requests and discards stale completions. Every
// request bumps a sequence number and cancels the in-flight run; a completion
// is delivered only if its sequence is still the latest, so a slow early run
// can never overwrite the result of a later one.
type Runner struct {
	detector Detector
	debounce time.Duration

	mu     sync.Mutex
	seq    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
}

// NewRunner creates a runner over a detector. A non-positive debounce falls
// back to DefaultDebounce.
func NewRunner(detector Detector, debounce time.Duration) *Runner {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Runner{detector: detector, debounce: debounce}
}

// Request schedules a detection pass after the debounce window. Any
// previously scheduled or running pass is superseded: its context is
// cancelled and its completion, should it still arrive, is dropped. The
// baseline is subtracted from the results before delivery.
func (r *Runner) Request(parent context.Context, inputPath string, p Params, baseline []segment.Interval, deliver Deliver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.seq++
	seq := r.seq
	r.supersedeLocked()

	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel

	base := make([]segment.Interval, len(baseline))
	copy(base, baseline)

	r.timer = time.AfterFunc(r.debounce, func() {
		// Release the run's context even when it completes unsuperseded.
		defer cancel()

		results, err := r.detector.Detect(ctx, inputPath, p)

		r.mu.Lock()
		stale := seq != r.seq || r.closed
		r.mu.Unlock()
		if stale || ctx.Err() != nil {
			return
		}

		if err != nil {
			deliver(nil, err)
			return
		}
		deliver(PostProcess(results, p, base), nil)
	})
}

// Close cancels any scheduled or running pass and rejects further requests.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.seq++
	r.supersedeLocked()
}

// supersedeLocked stops the pending timer and cancels the in-flight context.
// Callers must hold r.mu.
func (r *Runner) supersedeLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
