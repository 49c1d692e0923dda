package recorder

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/carstom/internal/ar/coordinator"
)

// Recorder journals coordinator events off the main queue. OnEvent never
// blocks; events arriving while the buffer is full are dropped and counted.
type Recorder struct {
	journal *Journal
	events  chan coordinator.Event

	mu     sync.RWMutex
	closed bool

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewRecorder returns a recorder writing to j with room for buffer pending
// events.
func NewRecorder(j *Journal, buffer int) *Recorder {
	if buffer < 1 {
		buffer = 1
	}
	return &Recorder{journal: j, events: make(chan coordinator.Event, buffer)}
}

// OnEvent implements coordinator.Observer.
func (r *Recorder) OnEvent(e coordinator.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.events <- e:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			opsf("journal buffer full, %d events dropped", n)
		}
	}
}

// Run writes events until Close has been called and the buffer is drained,
// or ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-r.events:
			if !ok {
				return nil
			}
			if _, err := r.journal.Record(ctx, e); err != nil {
				r.failed.Add(1)
				opsf("failed to journal %s event: %v", e.Kind, err)
				continue
			}
			r.written.Add(1)
		}
	}
}

// Close stops accepting events. Run returns once the buffer is drained.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.events)
}

// Stats returns the number of events written, dropped and failed.
func (r *Recorder) Stats() (written, dropped, failed uint64) {
	return r.written.Load(), r.dropped.Load(), r.failed.Load()
}
