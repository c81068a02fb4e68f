package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// DropReason says why an event never reached the sink.
type DropReason uint8

const (
	// DropBufferFull is a full queue with DropIfFull set.
	DropBufferFull DropReason = iota
	// DropCanceled is a request context that ended while Emit waited for room.
	DropCanceled
	// DropClosed is an event emitted during or after Close.
	DropClosed
	dropReasonCount
)

func (r DropReason) String() string {
	switch r {
	case DropBufferFull:
		return "buffer_full"
	case DropCanceled:
		return "canceled"
	case DropClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config controls dispatcher buffering. OnDrop, when set, is called on the
// emitting goroutine for every dropped event and must not block.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	OnDrop     func(Event, DropReason)
}

// Dispatcher forwards lifecycle events to a Sink from one worker goroutine,
// so a slow sink never sits on the login or refresh path.
// A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	queue     chan Event
	stop      chan struct{}
	wg        sync.WaitGroup
	drops     [dropReasonCount]atomic.Uint64
	closing   atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
	}

	d.wg.Add(1)
	go d.worker()

	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			d.flush()
			return
		}
	}
}

// flush hands the sink whatever was accepted before Close.
func (d *Dispatcher) flush() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit queues event. With DropIfFull a full buffer drops it; otherwise Emit
// waits for room, for ctx or for Close. Every drop is counted by reason.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if d.closing.Load() {
		d.drop(event, DropClosed)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
			d.drop(event, DropClosed)
		default:
			d.drop(event, DropBufferFull)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event, DropCanceled)
	case <-d.stop:
		d.drop(event, DropClosed)
	}
}

func (d *Dispatcher) drop(event Event, reason DropReason) {
	d.drops[reason].Add(1)
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(event, reason)
	}
}

// Close stops accepting events, flushes the queue and waits for the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped reports how many events never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	var total uint64
	for i := range d.drops {
		total += d.drops[i].Load()
	}
	return total
}

// DroppedBy reports the drops for one reason.
func (d *Dispatcher) DroppedBy(reason DropReason) uint64 {
	if d == nil || reason >= dropReasonCount {
		return 0
	}
	return d.drops[reason].Load()
}
