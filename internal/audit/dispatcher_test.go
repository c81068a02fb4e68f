package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDelivers(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "login_success", AccountID: "a1", Success: true})

	select {
	case e := <-sink.Events():
		if e.EventType != "login_success" || e.AccountID != "a1" {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// one held by the worker, one in the buffer, the rest dropped
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "e"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}

	close(sink.release)
	d.Close()

	sink.mu.Lock()
	delivered := len(sink.got)
	sink.mu.Unlock()
	if uint64(delivered)+d.Dropped() != 10 {
		t.Fatalf("delivered %d + dropped %d != 10", delivered, d.Dropped())
	}
}

func TestCloseFlushesBuffer(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "e"})
	}
	d.Close()

	if n := len(sink.Events()); n != 5 {
		t.Fatalf("expected 5 flushed events, got %d", n)
	}

	d.Emit(context.Background(), Event{EventType: "late"})
	if n := len(sink.Events()); n != 5 {
		t.Fatalf("emit after close must be ignored, got %d", n)
	}
	if d.DroppedBy(DropClosed) != 1 || d.Dropped() != 1 {
		t.Fatalf("late event must count as a closed drop, got %d", d.DroppedBy(DropClosed))
	}
}

func TestDropReasonsReachHook(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	var mu sync.Mutex
	reasons := map[DropReason][]string{}
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		OnDrop: func(e Event, r DropReason) {
			mu.Lock()
			reasons[r] = append(reasons[r], e.EventType)
			mu.Unlock()
		},
	}, sink)

	// fill the worker and the buffer so the next Emit has to wait
	d.Emit(context.Background(), Event{EventType: "held"})
	d.Emit(context.Background(), Event{EventType: "queued"})
	deadline := time.Now().Add(2 * time.Second)
	for len(d.queue) != 1 || d.DroppedBy(DropCanceled) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("canceled emit was not counted")
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if len(d.queue) == 1 {
			d.Emit(ctx, Event{EventType: "refresh_failure"})
		} else {
			time.Sleep(time.Millisecond)
		}
	}

	close(sink.release)
	d.Close()
	d.Emit(context.Background(), Event{EventType: "logout"})

	mu.Lock()
	defer mu.Unlock()
	if len(reasons[DropCanceled]) == 0 || reasons[DropCanceled][0] != "refresh_failure" {
		t.Fatalf("expected canceled drop, got %v", reasons)
	}
	if len(reasons[DropClosed]) != 1 || reasons[DropClosed][0] != "logout" {
		t.Fatalf("expected closed drop, got %v", reasons)
	}
	if uint64(len(reasons[DropCanceled])+len(reasons[DropClosed])) != d.Dropped() {
		t.Fatalf("hook calls and Dropped disagree: %v vs %d", reasons, d.Dropped())
	}
}

func TestDropReasonString(t *testing.T) {
	cases := map[DropReason]string{
		DropBufferFull: "buffer_full",
		DropCanceled:   "canceled",
		DropClosed:     "closed",
		DropReason(99): "unknown",
	}
	for r, want := range cases {
		if got := r.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", r, got, want)
		}
	}
	var d *Dispatcher
	if d.DroppedBy(DropClosed) != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "logout", AccountID: "a1", Success: true})

	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if decoded["event_type"] != "logout" || decoded["account_id"] != "a1" {
		t.Fatalf("unexpected payload %v", decoded)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid_credentials"})
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "event_type=login_failure") {
		t.Fatalf("unexpected log line %q", out)
	}
}
