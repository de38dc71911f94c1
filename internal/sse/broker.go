// Package sse streams expression tree updates to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/inkmath/internal/models"
)

// Event is one SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SnapshotEvent carries the full tree. It is throttled; the newest tree is
// always delivered once the throttle window closes.
const SnapshotEvent = "tree.snapshot"

type treeEventReq struct {
	kind string
	tree *models.Tree
}

// treeSummary is the light payload sent for every tree change.
type treeSummary struct {
	Session    string `json:"session"`
	Seq        uint64 `json:"seq"`
	Generation uint64 `json:"generation"`
	Pending    int    `json:"pending"`
}

// Broker fans events out to connected clients.
//
// A single event loop goroutine owns the client set, the newest snapshot and
// the throttle state. Public methods talk to it over channels.
type Broker struct {
	snapshotMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	treeEventCh   chan treeEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker sending at most one snapshot per interval.
func NewBroker(snapshotThrottle time.Duration) *Broker {
	if snapshotThrottle <= 0 {
		snapshotThrottle = 250 * time.Millisecond
	}

	b := &Broker{
		snapshotMin:   snapshotThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		treeEventCh:   make(chan treeEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func encode(event Event) []byte {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastSent time.Time
		latest   []byte // newest encoded snapshot
		unsent   bool
		flush    *time.Timer
		flushC   <-chan time.Time
	)

	send := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Slow client; drop rather than block the loop.
		}
	}
	broadcast := func(raw []byte) {
		if raw == nil {
			return
		}
		for ch := range clients {
			send(ch, raw)
		}
	}
	sendSnapshot := func() {
		lastSent = time.Now()
		unsent = false
		broadcast(latest)
	}

	for {
		select {
		case <-b.stopCh:
			if flush != nil {
				flush.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			if latest != nil {
				send(ch, latest)
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(encode(event))

		case req := <-b.treeEventCh:
			broadcast(encode(Event{Type: req.kind, Data: treeSummary{
				Session:    req.tree.Session,
				Seq:        req.tree.Seq,
				Generation: req.tree.Generation,
				Pending:    req.tree.Pending,
			}}))
			latest = encode(Event{Type: SnapshotEvent, Data: req.tree})
			unsent = true

			if wait := b.snapshotMin - time.Since(lastSent); wait <= 0 {
				sendSnapshot()
			} else if flush == nil {
				flush = time.NewTimer(wait)
				flushC = flush.C
			}

		case <-flushC:
			flush, flushC = nil, nil
			if unsent {
				sendSnapshot()
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client. The newest snapshot, if any, is queued first.
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

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishTreeEvent announces a tree change and schedules a snapshot. Its
// signature matches session.Publisher.
func (b *Broker) PublishTreeEvent(kind string, tree *models.Tree) {
	if b.closed.Load() || tree == nil {
		return
	}
	select {
	case b.treeEventCh <- treeEventReq{kind: kind, tree: tree}:
	case <-b.stopped:
	}
}

// PublishDocumentEvent announces a watcher change to a stored document.
func (b *Broker) PublishDocumentEvent(kind, path string) {
	b.Publish(Event{Type: "document." + kind, Data: map[string]string{"path": path}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
