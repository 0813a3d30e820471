// Package sse streams org tree activity to HTTP clients as Server-Sent
// Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeTreeChanged          = "tree.changed"
	TypeArtifactsRegenerated = "artifacts.regenerated"
	TypeStateUpdated         = "state.updated"
)

// Event is one message for subscribers. Data is encoded as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Regenerated summarizes one generation pass.
type Regenerated struct {
	Written  []string `json:"written"`
	Removed  []string `json:"removed"`
	Failures int      `json:"failures"`
}

type outbound struct {
	event Event
	// stateHint asks the loop for a throttled state.updated after event.
	stateHint bool
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithStateThrottle sets the minimum gap between state.updated events.
func WithStateThrottle(d time.Duration) BrokerOption {
	return func(b *Broker) {
		if d > 0 {
			b.stateMin = d
		}
	}
}

// WithKeepAlive sets how often idle streams receive a comment line.
func WithKeepAlive(d time.Duration) BrokerOption {
	return func(b *Broker) {
		if d > 0 {
			b.keepAlive = d
		}
	}
}

// Broker fans events out to subscribers. A single goroutine owns the client
// set, the event sequence and the state throttle; the public methods talk to
// it over channels.
//
// A new subscriber first receives the most recent artifacts.regenerated
// event, if any.
type Broker struct {
	logger    *slog.Logger
	stateMin  time.Duration
	keepAlive time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan outbound
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker loop. Close stops it.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		logger:        logger,
		stateMin:      2 * time.Second,
		keepAlive:     30 * time.Second,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan outbound, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq        uint64
		lastState  time.Time
		lastReport []byte
	)

	frame := func(e Event) []byte {
		payload, err := json.Marshal(e.Data)
		if err != nil {
			b.logger.Error("sse: encode event", slog.String("type", e.Type), slog.String("error", err.Error()))
			return nil
		}
		seq++
		return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", seq, e.Type, payload)
	}
	send := func(ch chan []byte, msg []byte) {
		select {
		case ch <- msg:
		default:
			// Slow client; it misses this event.
		}
	}
	broadcast := func(e Event) {
		msg := frame(e)
		if msg == nil {
			return
		}
		if e.Type == TypeArtifactsRegenerated {
			lastReport = msg
		}
		for ch := range clients {
			send(ch, msg)
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			if lastReport != nil {
				send(ch, lastReport)
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case out := <-b.publishCh:
			broadcast(out.event)
			if out.stateHint {
				if now := time.Now(); now.Sub(lastState) >= b.stateMin {
					lastState = now
					broadcast(Event{Type: TypeStateUpdated, Data: struct{}{}})
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed by Unsubscribe or
// Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of subscribers.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

func (b *Broker) publish(out outbound) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- out:
	case <-b.stopped:
	}
}

// Publish sends e to every subscriber.
func (b *Broker) Publish(e Event) {
	b.publish(outbound{event: e})
}

// PublishTreeChange announces the paths of one settled watcher burst,
// followed by a throttled state.updated.
func (b *Broker) PublishTreeChange(paths []string) {
	if paths == nil {
		paths = []string{}
	}
	b.publish(outbound{
		event:     Event{Type: TypeTreeChanged, Data: map[string][]string{"paths": paths}},
		stateHint: true,
	})
}

// PublishRegenerated announces the outcome of a generation pass.
func (b *Broker) PublishRegenerated(r Regenerated) {
	if r.Written == nil {
		r.Written = []string{}
	}
	if r.Removed == nil {
		r.Removed = []string{}
	}
	b.Publish(Event{Type: TypeArtifactsRegenerated, Data: r})
}

// ServeHTTP streams events until the client goes away or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", (3 * time.Second).Milliseconds())
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
