package benchmark

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProgressFunc receives run progress. It may be slow or panic; neither
// affects the run.
type ProgressFunc func(completed, total int, message string)

type progressEvent struct {
	completed int
	total     int
	message   string
}

// reporter delivers progress to a sink from its own goroutine. Report never
// blocks: when the buffer is full the event is dropped.
type reporter struct {
	events  chan progressEvent
	done    chan struct{}
	once    sync.Once
	dropped int64
	mu      sync.Mutex
}

// drainTimeout bounds how long Close waits for a slow sink.
const drainTimeout = 5 * time.Second

func newReporter(sink ProgressFunc, buffer int) *reporter {
	if buffer <= 0 {
		buffer = 1
	}
	r := &reporter{
		events: make(chan progressEvent, buffer),
		done:   make(chan struct{}),
	}
	go r.loop(sink)
	return r
}

func (r *reporter) loop(sink ProgressFunc) {
	defer close(r.done)
	for ev := range r.events {
		if sink != nil {
			deliver(sink, ev)
		}
	}
}

func deliver(sink ProgressFunc, ev progressEvent) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Warn("progress sink panicked", zap.Any("panic", p))
		}
	}()
	sink(ev.completed, ev.total, ev.message)
}

// Report enqueues an event without blocking.
func (r *reporter) Report(completed, total int, message string) {
	select {
	case r.events <- progressEvent{completed: completed, total: total, message: message}:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// Close stops accepting events and waits, up to drainTimeout, for the sink
// to catch up.
func (r *reporter) Close() {
	r.once.Do(func() {
		close(r.events)
		select {
		case <-r.done:
		case <-time.After(drainTimeout):
			zap.L().Warn("progress sink still busy after run finished")
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.dropped > 0 {
			zap.L().Debug("progress events dropped", zap.Int64("dropped", r.dropped))
		}
	})
}
