package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go-sostenuto/debug"
)

func TestFormatRecord(t *testing.T) {
	r := LogRecord{
		Event:  noteOn(60),
		Source: "Keys (Input)",
		Time:   time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond,
	}
	want := "01:02:03.004  -  Note on C3 (Keys (Input))"
	if got := FormatRecord(r); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func recv(t *testing.T, d *Drainer) LogUpdate {
	t.Helper()
	select {
	case u := <-d.Updates():
		return u
	default:
		t.Fatalf("no update delivered")
	}
	return LogUpdate{}
}

func TestDrainerEmptyTickIsNoop(t *testing.T) {
	d := NewDrainer(NewLogQueue(8), 10, time.Millisecond, nil)
	d.Tick()
	select {
	case u := <-d.Updates():
		t.Fatalf("unexpected update %+v", u)
	default:
	}
}

func TestDrainerSortsBatchByTime(t *testing.T) {
	q := NewLogQueue(8)
	d := NewDrainer(q, 10, time.Millisecond, nil)

	q.TryPush(rec(62, 30*time.Millisecond))
	q.TryPush(rec(60, 10*time.Millisecond))
	q.TryPush(rec(61, 20*time.Millisecond))
	d.Tick()

	u := recv(t, d)
	if u.Lines != 3 || u.Trim != 0 || u.Reset {
		t.Fatalf("update %+v", u)
	}
	lines := strings.Split(strings.TrimSuffix(u.Text, "\n"), "\n")
	for i, want := range []string{"C3", "C#3", "D3"} {
		if !strings.Contains(lines[i], "Note on "+want+" ") {
			t.Fatalf("line %d = %q, want %s", i, lines[i], want)
		}
	}
}

func TestDrainerTrimsPastCap(t *testing.T) {
	q := NewLogQueue(32)
	d := NewDrainer(q, 10, time.Millisecond, nil)
	var buf LogBuffer

	for i := 0; i < 8; i++ {
		q.TryPush(rec(uint8(i), time.Duration(i)))
	}
	d.Tick()
	buf.Apply(recv(t, d))

	for i := 8; i < 12; i++ {
		q.TryPush(rec(uint8(i), time.Duration(i)))
	}
	d.Tick()
	u := recv(t, d)
	if u.Trim != 2 || u.Reset {
		t.Fatalf("expected trim of 2, got %+v", u)
	}
	buf.Apply(u)

	if buf.Len() != 10 || d.Lines() != 10 {
		t.Fatalf("buffer %d drainer %d", buf.Len(), d.Lines())
	}
	if !strings.Contains(buf.Lines()[0], "Note on D-2 ") {
		t.Fatalf("oldest lines not trimmed: %q", buf.Lines()[0])
	}
}

func TestDrainerResetsOnLargeExcess(t *testing.T) {
	q := NewLogQueue(64)
	d := NewDrainer(q, 10, time.Millisecond, nil)
	var buf LogBuffer

	for i := 0; i < 30; i++ {
		q.TryPush(rec(uint8(i), time.Duration(i)))
	}
	d.Tick()
	u := recv(t, d)
	if !u.Reset || u.Lines != 10 {
		t.Fatalf("expected reset with newest 10 lines, got %+v", u)
	}
	buf.Apply(u)
	if buf.Len() != 10 {
		t.Fatalf("buffer len %d", buf.Len())
	}
	if !strings.Contains(buf.Lines()[9], "Note on F0 ") {
		t.Fatalf("newest line missing: %q", buf.Lines()[9])
	}
}

func TestDrainerCoalescesWhenDisplayIsSlow(t *testing.T) {
	q := NewLogQueue(8)
	d := NewDrainer(q, 100, time.Millisecond, nil)

	// Fill the update channel without reading it.
	for i := 0; i < cap(d.updates)+3; i++ {
		q.TryPush(rec(60, 0))
		d.Tick()
	}

	total := 0
	for len(d.updates) > 0 {
		total += (<-d.updates).Lines
	}
	d.Tick()
	total += recv(t, d).Lines
	if total != cap(d.updates)+3 {
		t.Fatalf("lines lost while display was slow: %d", total)
	}
}

func TestDrainerDisabledDiscardsAndResets(t *testing.T) {
	q := NewLogQueue(8)
	var on atomic.Bool
	on.Store(true)
	d := NewDrainer(q, 10, time.Millisecond, on.Load)

	q.TryPush(rec(60, 0))
	d.Tick()
	recv(t, d)

	on.Store(false)
	q.TryPush(rec(61, 0))
	d.Tick()
	u := recv(t, d)
	if !u.Reset || u.Text != "" {
		t.Fatalf("expected bare reset, got %+v", u)
	}
	if q.Len() != 0 || d.Lines() != 0 {
		t.Fatalf("queue %d lines %d", q.Len(), d.Lines())
	}

	d.Tick()
	select {
	case u := <-d.Updates():
		t.Fatalf("repeated reset %+v", u)
	default:
	}
}

func TestDrainerStartStop(t *testing.T) {
	q := NewLogQueue(8)
	d := NewDrainer(q, 10, time.Millisecond, nil)
	d.Start()
	q.TryPush(rec(60, 0))

	select {
	case u := <-d.Updates():
		if u.Lines != 1 {
			t.Fatalf("update %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("drainer never delivered")
	}
	d.Stop()
	d.Stop()
}

func TestDrainerStopTimeoutIsLogged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	if err := debug.EnableFile(path); err != nil {
		t.Fatal(err)
	}
	defer debug.Disable()

	// Never started, so the loop never reports done.
	d := NewDrainer(NewLogQueue(8), 10, time.Millisecond, nil)
	d.Stop()
	debug.Disable()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "drainer stop timed out") {
		t.Fatalf("timeout not logged:\n%s", data)
	}
}

func TestLogBufferApply(t *testing.T) {
	var b LogBuffer
	b.Apply(LogUpdate{Text: "a\nb\nc\n", Lines: 3})
	b.Apply(LogUpdate{Text: "d\n", Lines: 1, Trim: 2})
	if b.String() != "c\nd" {
		t.Fatalf("buffer %q", b.String())
	}
	b.Apply(LogUpdate{Text: "x\n", Lines: 1, Reset: true})
	if b.String() != "x" {
		t.Fatalf("after reset %q", b.String())
	}
	b.Apply(LogUpdate{Trim: 5})
	if b.Len() != 0 {
		t.Fatalf("over-trim left %d lines", b.Len())
	}
}

func TestDrainerPendingUpdateStaysWithinCap(t *testing.T) {
	q := NewLogQueue(64)
	d := NewDrainer(q, 50, time.Millisecond, nil)

	at := time.Duration(0)
	for tick := 0; tick < 500; tick++ {
		for i := 0; i < 20; i++ {
			at += time.Millisecond
			q.TryPush(rec(uint8(i), at))
		}
		d.Tick()
		if d.pending != nil && d.pending.Lines > 50 {
			t.Fatalf("tick %d: pending update holds %d lines", tick, d.pending.Lines)
		}
	}
	if n := strings.Count(d.pending.Text, "\n"); n != d.pending.Lines {
		t.Fatalf("pending text has %d lines, says %d", n, d.pending.Lines)
	}

	var buf LogBuffer
	for len(d.updates) > 0 {
		buf.Apply(<-d.updates)
	}
	d.Tick()
	buf.Apply(recv(t, d))
	if buf.Len() != 50 || d.Lines() != 50 {
		t.Fatalf("buffer %d drainer %d", buf.Len(), d.Lines())
	}
	if last := buf.Lines()[49]; !strings.HasPrefix(last, FormatRecord(rec(19, at))) {
		t.Fatalf("newest line missing: %q", last)
	}
}

func TestLastLines(t *testing.T) {
	cases := []struct {
		text string
		n    int
		want string
	}{
		{"a\nb\nc\n", 2, "b\nc\n"},
		{"a\nb\nc\n", 3, "a\nb\nc\n"},
		{"a\nb\nc\n", 5, "a\nb\nc\n"},
		{"a\n", 1, "a\n"},
	}
	for _, c := range cases {
		if got := lastLines(c.text, c.n); got != c.want {
			t.Errorf("lastLines(%q, %d) = %q, want %q", c.text, c.n, got, c.want)
		}
	}
}
