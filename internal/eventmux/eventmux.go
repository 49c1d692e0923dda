// Package eventmux fans a line-oriented stream out to multiple subscribers.
// The session CLI reads commands from stdin through it, and the debug server
// tails both the command stream and published session events.
package eventmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ErrClosed is returned by Monitor once the mux has been closed.
var ErrClosed = errors.New("event mux closed")

type subscriber struct {
	ch       chan string
	lossless bool
}

// EventMux reads lines from a source and delivers each to every subscriber.
type EventMux struct {
	src          io.Reader
	subscribers  map[string]subscriber
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// New returns a mux over src. src may be nil for a mux that only carries
// published lines.
func New(src io.Reader) *EventMux {
	return &EventMux{
		src:         src,
		subscribers: make(map[string]subscriber),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a channel receiving every line. Lines are dropped for
// this subscriber while its buffer is full.
func (m *EventMux) Subscribe(buffer int) (string, chan string) {
	return m.subscribe(buffer, false)
}

// SubscribeLossless creates a channel that receives every line. Delivery
// blocks the mux until the subscriber reads, so use it for the consumer that
// must see every command.
func (m *EventMux) SubscribeLossless(buffer int) (string, chan string) {
	return m.subscribe(buffer, true)
}

func (m *EventMux) subscribe(buffer int, lossless bool) (string, chan string) {
	if buffer < 0 {
		buffer = 0
	}
	id := randomID()
	ch := make(chan string, buffer)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = subscriber{ch: ch, lossless: lossless}
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *EventMux) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if s, ok := m.subscribers[id]; ok {
		close(s.ch)
		delete(m.subscribers, id)
	}
}

// Publish delivers a line that did not come from the source, such as a
// session event.
func (m *EventMux) Publish(ctx context.Context, line string) {
	m.closingMu.Lock()
	closing := m.closing
	m.closingMu.Unlock()
	if closing {
		return
	}
	m.deliver(ctx, line)
}

func (m *EventMux) deliver(ctx context.Context, line string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for _, s := range m.subscribers {
		if s.lossless {
			select {
			case s.ch <- line:
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case s.ch <- line:
		default:
			// if the channel is full skip so as not to block the outer loop
		}
	}
}

// Monitor reads lines from the source until it is exhausted, ctx is done or
// the mux is closed. It returns nil at end of input.
func (m *EventMux) Monitor(ctx context.Context) error {
	if m.src == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	scan := bufio.NewScanner(m.src)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan runs on its own goroutine so the loop below
	// can still observe cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return fmt.Errorf("failed to read event stream: %w", err)

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return fmt.Errorf("failed to read event stream: %w", err)
				default:
				}
				return nil
			}
			m.closingMu.Lock()
			if m.closing {
				m.closingMu.Unlock()
				return ErrClosed
			}
			m.closingMu.Unlock()

			m.deliver(ctx, line)
		}
	}
}

// Close closes every subscriber channel. The source is closed too when it
// implements io.Closer.
func (m *EventMux) Close() error {
	m.closingMu.Lock()
	if m.closing {
		m.closingMu.Unlock()
		return nil
	}
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	for id, s := range m.subscribers {
		close(s.ch)
		delete(m.subscribers, id)
	}
	m.subscriberMu.Unlock()

	if c, ok := m.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// AttachDebugRoutes serves a Server-Sent Events tail of the stream at
// /debug/tail.
func (m *EventMux) AttachDebugRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := m.Subscribe(64)
		defer m.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
