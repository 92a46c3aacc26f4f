package engine

import (
	"sync"
	"testing"
	"time"
)

func rec(note uint8, at time.Duration) LogRecord {
	return LogRecord{Event: noteOn(note), Source: "test", Time: at}
}

func TestLogQueueFIFO(t *testing.T) {
	q := NewLogQueue(4)
	for i := uint8(0); i < 3; i++ {
		if !q.TryPush(rec(i, 0)) {
			t.Fatalf("push %d rejected", i)
		}
	}
	got := q.Drain(nil)
	if len(got) != 3 {
		t.Fatalf("drained %d", len(got))
	}
	for i, r := range got {
		if r.Event.Note != uint8(i) {
			t.Fatalf("order: %d at %d", r.Event.Note, i)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty")
	}
}

func TestLogQueueWrapsAround(t *testing.T) {
	q := NewLogQueue(3)
	for round := 0; round < 5; round++ {
		q.TryPush(rec(uint8(round), 0))
		q.TryPush(rec(uint8(round+10), 0))
		got := q.Drain(nil)
		if len(got) != 2 || got[0].Event.Note != uint8(round) || got[1].Event.Note != uint8(round+10) {
			t.Fatalf("round %d: %+v", round, got)
		}
	}
}

func TestLogQueueDropsWhenFull(t *testing.T) {
	q := NewLogQueue(2)
	q.TryPush(rec(1, 0))
	q.TryPush(rec(2, 0))
	if q.TryPush(rec(3, 0)) {
		t.Fatalf("push into full queue accepted")
	}
	if q.Dropped() != 1 || q.Pushed() != 2 {
		t.Fatalf("dropped=%d pushed=%d", q.Dropped(), q.Pushed())
	}
	got := q.Drain(nil)
	if len(got) != 2 || got[1].Event.Note != 2 {
		t.Fatalf("full queue lost the wrong record: %+v", got)
	}
}

func TestLogQueueNeverBlocksProducers(t *testing.T) {
	q := NewLogQueue(16)

	const producers = 8
	const each = 1000
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.TryPush(rec(uint8(i%128), 0))
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("producers blocked on a full queue")
	}

	if q.Len() > q.Cap() {
		t.Fatalf("queue grew past capacity: %d", q.Len())
	}
	if q.Pushed()+q.Dropped() != producers*each {
		t.Fatalf("pushed %d + dropped %d != %d", q.Pushed(), q.Dropped(), producers*each)
	}
	if q.Dropped() == 0 {
		t.Fatalf("expected drops with no consumer")
	}
}

func TestLogQueueDiscard(t *testing.T) {
	q := NewLogQueue(4)
	q.TryPush(rec(1, 0))
	q.Discard()
	if q.Len() != 0 || len(q.Drain(nil)) != 0 {
		t.Fatalf("discard left records behind")
	}
	if !q.TryPush(rec(2, 0)) {
		t.Fatalf("push after discard rejected")
	}
}
