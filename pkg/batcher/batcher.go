// Package batcher implements the per-key coalescing event batcher that
// bridges high-frequency producers to slower consumers.
package batcher

import (
	"log/slog"
	"sync"
	"time"
)

// Defaults for window, batch size, and debounce absent explicit
// configuration.
const (
	DefaultBatchWindowMs     = 100
	DefaultMaxEventsPerBatch = 50
	DefaultDebounceMs        = 50
)

// Entry is one pending batch item: the last event enqueued for a key,
// and when that key's current entry was first recorded.
type Entry struct {
	Key        string
	Event      interface{}
	EnqueuedAt time.Time
}

// Stats is the batcher's externally observable counters.
type Stats struct {
	QueueSize     int
	DroppedCount  int
	LastFlushTime time.Time
}

// SinkFunc receives a drained batch in insertion order of keys.
type SinkFunc func(batch []Entry)

// timerState models the batcher's flush timer as an explicit state
// machine rather than a one-shot-then-interval pattern
type timerState int

const (
	timerIdle timerState = iota
	timerArmed
)

// Batcher coalesces events per key within a debounce window and
// delivers them to a sink either when a flush timer fires or on
// demand via Flush.
type Batcher struct {
	mu sync.Mutex

	batchWindow time.Duration
	maxEvents   int
	debounce    time.Duration
	sink        SinkFunc

	order   []string
	entries map[string]Entry

	state       timerState
	timer       *time.Timer
	dropped     int
	lastFlushAt time.Time
	stopped     bool

	nowFunc func() time.Time
}

// Config carries the batcher's tunables. Zero values fall back to the
// package defaults.
type Config struct {
	BatchWindowMs     int
	MaxEventsPerBatch int
	DebounceMs        int
}

// New creates a Batcher that delivers drained batches to sink.
func New(cfg Config, sink SinkFunc) *Batcher {
	windowMs := cfg.BatchWindowMs
	if windowMs <= 0 {
		windowMs = DefaultBatchWindowMs
	}
	maxEvents := cfg.MaxEventsPerBatch
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEventsPerBatch
	}
	debounceMs := cfg.DebounceMs

	return &Batcher{
		batchWindow: time.Duration(windowMs) * time.Millisecond,
		maxEvents:   maxEvents,
		debounce:    time.Duration(debounceMs) * time.Millisecond,
		sink:        sink,
		entries:     make(map[string]Entry),
		nowFunc:     time.Now,
	}
}

// Enqueue records event under key, coalescing with any pending entry
// for the same key still inside the debounce window, then arms the
// flush timer if one is not already running.
func (b *Batcher) Enqueue(key string, event interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}

	now := b.nowFunc()

	if existing, ok := b.entries[key]; ok {
		if b.debounce > 0 && now.Sub(existing.EnqueuedAt) <= b.debounce {
			// Coalesce: keep the original EnqueuedAt, replace the event.
			existing.Event = event
			b.entries[key] = existing
		} else {
			b.entries[key] = Entry{Key: key, Event: event, EnqueuedAt: now}
		}
	} else {
		b.order = append(b.order, key)
		b.entries[key] = Entry{Key: key, Event: event, EnqueuedAt: now}
	}

	b.enforceCapacityLocked()
	b.armLocked()
}

// enforceCapacityLocked evicts the oldest insertion-order entries
// until the queue is at or under maxEvents, incrementing dropped for
// each eviction. Must be called with mu held.
func (b *Batcher) enforceCapacityLocked() {
	for len(b.order) > b.maxEvents {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.entries, oldest)
		b.dropped++
	}
}

// armLocked starts the flush timer if it is not already armed. Must
// be called with mu held.
func (b *Batcher) armLocked() {
	if b.state == timerArmed {
		return
	}
	b.state = timerArmed
	b.timer = time.AfterFunc(b.batchWindow, b.onTimerFire)
}

// onTimerFire is invoked by the Go runtime's timer goroutine when the
// batch window elapses.
func (b *Batcher) onTimerFire() {
	b.Flush()
}

// Flush drains the current queue (preserving insertion order of keys)
// and hands it to the sink. Safe to call manually or from the timer.
// When the queue is already empty it only cancels an armed timer and
// records the flush time; the sink is not called.
func (b *Batcher) Flush() {
	b.mu.Lock()

	if b.state == timerArmed && b.timer != nil {
		b.timer.Stop()
	}
	b.state = timerIdle

	if len(b.order) == 0 {
		b.lastFlushAt = b.nowFunc()
		b.mu.Unlock()
		return
	}

	batch := make([]Entry, 0, len(b.order))
	for _, key := range b.order {
		batch = append(batch, b.entries[key])
	}

	// Clear queue state before invoking the sink so a sink panic cannot
	// leave stale entries behind
	b.order = nil
	b.entries = make(map[string]Entry)
	b.lastFlushAt = b.nowFunc()

	sink := b.sink
	b.mu.Unlock()

	b.invokeSink(sink, batch)
}

func (b *Batcher) invokeSink(sink SinkFunc, batch []Entry) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("batcher sink panicked", "panic", r, "batch_size", len(batch))
		}
	}()
	if sink != nil {
		sink(batch)
	}
}

// Stop flushes synchronously and cancels any pending timer. Idempotent.
func (b *Batcher) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()

	b.Flush()
}

// GetStats returns the batcher's current counters.
func (b *Batcher) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		QueueSize:     len(b.order),
		DroppedCount:  b.dropped,
		LastFlushTime: b.lastFlushAt,
	}
}

// ResetDroppedCount zeroes the dropped-event counter.
func (b *Batcher) ResetDroppedCount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropped = 0
}
