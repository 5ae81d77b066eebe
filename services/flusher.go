package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const flushTimeout = 10 * time.Second

// Flusher coalesces bursts of mutations into at most one persistence
// write per delay interval. Schedule marks state dirty and arms a
// one-shot timer unless one is already armed; Flush forces a pending
// write through immediately, used on shutdown.
type Flusher struct {
	name  string
	delay time.Duration
	write func(ctx context.Context) error

	mu      sync.Mutex
	pending bool
	timer   *time.Timer

	// writeMu serializes calls to write so a shutdown Flush waits for
	// any timer-fired write still in flight.
	writeMu sync.Mutex
}

func NewFlusher(name string, delay time.Duration, write func(ctx context.Context) error) *Flusher {
	return &Flusher{
		name:  name,
		delay: delay,
		write: write,
	}
}

// Schedule marks the state dirty and arms the flush timer if idle.
// Never blocks.
func (f *Flusher) Schedule() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = true
	if f.timer == nil {
		f.timer = time.AfterFunc(f.delay, f.run)
	}
}

func (f *Flusher) run() {
	f.mu.Lock()
	f.timer = nil
	if !f.pending {
		f.mu.Unlock()
		return
	}
	f.pending = false
	f.mu.Unlock()

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := f.write(ctx); err != nil {
		// In-memory state stays authoritative; the next mutation
		// re-arms the timer and retries.
		slog.Error("Persistence flush failed", "flusher", f.name, "error", err)
	}
}

// Flush forces any pending write through synchronously.
func (f *Flusher) Flush(ctx context.Context) error {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	pending := f.pending
	f.pending = false
	f.mu.Unlock()

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if !pending {
		return nil
	}
	return f.write(ctx)
}

// Pending reports whether a write is queued.
func (f *Flusher) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}
