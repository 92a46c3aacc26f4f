package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"go-sostenuto/midi"
)

// DefaultLogQueueSize is the number of log slots.
const DefaultLogQueueSize = 512

// LogRecord is one routed event waiting to be shown.
type LogRecord struct {
	Event  midi.Event
	Source string
	Time   time.Duration
}

// LogQueue is a bounded ring of log records. Any goroutine may push; only
// the drainer pops. Push never blocks: a full ring drops the record.
type LogQueue struct {
	mu    sync.Mutex
	slots []LogRecord
	head  int // oldest record
	count int

	dropped atomic.Uint64
	pushed  atomic.Uint64
}

func NewLogQueue(size int) *LogQueue {
	if size <= 0 {
		size = DefaultLogQueueSize
	}
	return &LogQueue{slots: make([]LogRecord, size)}
}

// TryPush reserves a slot, copies r into it and commits. It reports false
// when the ring is full.
func (q *LogQueue) TryPush(r LogRecord) bool {
	q.mu.Lock()
	if q.count == len(q.slots) {
		q.mu.Unlock()
		q.dropped.Add(1)
		return false
	}
	idx := q.head + q.count
	if idx >= len(q.slots) {
		idx -= len(q.slots)
	}
	q.slots[idx] = r
	q.count++
	q.mu.Unlock()
	q.pushed.Add(1)
	return true
}

// Drain appends every ready record to dst, oldest first, and frees the
// slots. It never waits.
func (q *LogQueue) Drain(dst []LogRecord) []LogRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count > 0 {
		dst = append(dst, q.slots[q.head])
		q.slots[q.head] = LogRecord{}
		q.head++
		if q.head == len(q.slots) {
			q.head = 0
		}
		q.count--
	}
	return dst
}

// Discard empties the ring without reading it.
func (q *LogQueue) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.slots)
	q.head, q.count = 0, 0
}

func (q *LogQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *LogQueue) Cap() int { return len(q.slots) }

// Dropped counts records rejected because the ring was full.
func (q *LogQueue) Dropped() uint64 { return q.dropped.Load() }

// Pushed counts records accepted.
func (q *LogQueue) Pushed() uint64 { return q.pushed.Load() }
