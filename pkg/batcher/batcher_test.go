package batcher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_MatchSpecConstants(t *testing.T) {
	assert.Equal(t, 100, DefaultBatchWindowMs)
	assert.Equal(t, 50, DefaultMaxEventsPerBatch)
	assert.Equal(t, 50, DefaultDebounceMs)
}

type sinkCollector struct {
	mu      sync.Mutex
	batches [][]Entry
}

func (c *sinkCollector) sink(batch []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, batch)
}

func (c *sinkCollector) all() [][]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]Entry, len(c.batches))
	copy(out, c.batches)
	return out
}

// Scenario #1: window=50ms, max=100, debounce=10.
func TestBatcher_BatchAndFlushScenario(t *testing.T) {
	c := &sinkCollector{}
	b := New(Config{BatchWindowMs: 50, MaxEventsPerBatch: 100, DebounceMs: 10}, c.sink)
	defer b.Stop()

	b.Enqueue("a1", "e1")
	b.Enqueue("a2", "e2")
	b.Enqueue("a3", "e3")

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, c.all(), "sink must be empty before the batch window elapses")

	time.Sleep(40 * time.Millisecond)
	batches := c.all()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
}

// Scenario #2: window=100, debounce=50.
func TestBatcher_DebounceCoalescingScenario(t *testing.T) {
	c := &sinkCollector{}
	b := New(Config{BatchWindowMs: 100, MaxEventsPerBatch: 100, DebounceMs: 50}, c.sink)
	defer b.Stop()

	b.Enqueue("a1", "s1")
	b.Enqueue("a1", "s2")
	b.Enqueue("a1", "s3")
	b.Enqueue("a2", "sA")

	time.Sleep(120 * time.Millisecond)

	batches := c.all()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)

	byKey := map[string]interface{}{}
	for _, e := range batches[0] {
		byKey[e.Key] = e.Event
	}
	assert.Equal(t, "s3", byKey["a1"])
	assert.Equal(t, "sA", byKey["a2"])
}

// Scenario #3: maxEventsPerBatch=3, debounce=0.
func TestBatcher_DropOldestScenario(t *testing.T) {
	c := &sinkCollector{}
	b := New(Config{BatchWindowMs: 1000, MaxEventsPerBatch: 3, DebounceMs: 0}, c.sink)
	defer b.Stop()

	b.Enqueue("a1", 1)
	b.Enqueue("a2", 2)
	b.Enqueue("a3", 3)
	b.Enqueue("a4", 4)
	b.Enqueue("a5", 5)

	stats := b.GetStats()
	assert.Equal(t, 3, stats.QueueSize)
	assert.Equal(t, 2, stats.DroppedCount)

	b.Flush()
	batches := c.all()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)

	values := map[int]bool{}
	for _, e := range batches[0] {
		values[e.Event.(int)] = true
	}
	assert.True(t, values[3])
	assert.True(t, values[4])
	assert.True(t, values[5])
}

func TestBatcher_QueueSizeNeverExceedsMax(t *testing.T) {
	c := &sinkCollector{}
	b := New(Config{BatchWindowMs: 1000, MaxEventsPerBatch: 5, DebounceMs: 0}, c.sink)
	defer b.Stop()

	for i := 0; i < 50; i++ {
		b.Enqueue(string(rune('a'+i%26)), i)
		assert.LessOrEqual(t, b.GetStats().QueueSize, 5)
	}
}

func TestBatcher_DroppedCountMonotonicBetweenResets(t *testing.T) {
	c := &sinkCollector{}
	b := New(Config{BatchWindowMs: 1000, MaxEventsPerBatch: 2, DebounceMs: 0}, c.sink)
	defer b.Stop()

	b.Enqueue("a", 1)
	b.Enqueue("b", 2)
	b.Enqueue("c", 3)
	first := b.GetStats().DroppedCount
	assert.Equal(t, 1, first)

	b.Enqueue("d", 4)
	second := b.GetStats().DroppedCount
	assert.GreaterOrEqual(t, second, first)

	b.ResetDroppedCount()
	assert.Equal(t, 0, b.GetStats().DroppedCount)
}

func TestBatcher_StopFlushesSynchronouslyAndIsIdempotent(t *testing.T) {
	c := &sinkCollector{}
	b := New(Config{BatchWindowMs: 10_000, MaxEventsPerBatch: 100, DebounceMs: 0}, c.sink)

	b.Enqueue("a1", "e1")
	b.Stop()
	b.Stop() // idempotent

	batches := c.all()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 1)
}

func TestBatcher_EnqueueAfterStopIsNoop(t *testing.T) {
	c := &sinkCollector{}
	b := New(Config{BatchWindowMs: 10_000, MaxEventsPerBatch: 100, DebounceMs: 0}, c.sink)
	b.Stop()

	b.Enqueue("a1", "e1")
	assert.Equal(t, 0, b.GetStats().QueueSize)
}

func TestBatcher_SinkPanicDoesNotCorruptState(t *testing.T) {
	b := New(Config{BatchWindowMs: 1000, MaxEventsPerBatch: 100, DebounceMs: 0}, func(batch []Entry) {
		panic("sink exploded")
	})
	defer b.Stop()

	b.Enqueue("a1", "e1")
	require.NotPanics(t, func() { b.Flush() })

	assert.Equal(t, 0, b.GetStats().QueueSize)

	b.Enqueue("a2", "e2")
	assert.Equal(t, 1, b.GetStats().QueueSize)
}

func TestBatcher_ManualFlushOfEmptyQueueIsNoop(t *testing.T) {
	c := &sinkCollector{}
	b := New(Config{}, c.sink)
	defer b.Stop()

	b.Flush()
	assert.Empty(t, c.all())
}

func TestBatcher_InsertionOrderWithinBatch(t *testing.T) {
	c := &sinkCollector{}
	b := New(Config{BatchWindowMs: 1000, MaxEventsPerBatch: 100, DebounceMs: 0}, c.sink)
	defer b.Stop()

	b.Enqueue("z", 1)
	b.Enqueue("a", 2)
	b.Enqueue("m", 3)
	b.Flush()

	batches := c.all()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
	assert.Equal(t, []string{"z", "a", "m"}, []string{batches[0][0].Key, batches[0][1].Key, batches[0][2].Key})
}
