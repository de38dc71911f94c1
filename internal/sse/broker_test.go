package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/inkmath/internal/models"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func tree(seq uint64) *models.Tree {
	return &models.Tree{Session: "s", Seq: seq, Root: &models.Node{ID: "MainBlock", Kind: "result"}}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentEvent("loaded", "a.json")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: document.loaded") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.json"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishTreeEvent_SnapshotThrottle(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishTreeEvent("tree.recognized", tree(1))
	b.PublishTreeEvent("tree.erased", tree(2))
	b.PublishTreeEvent("tree.recognized", tree(3))

	time.Sleep(50 * time.Millisecond)
	var summaries, snapshots int
	for _, msg := range drain(ch) {
		if strings.Contains(msg, "event: "+SnapshotEvent) {
			snapshots++
		} else {
			summaries++
		}
	}
	if summaries != 3 {
		t.Errorf("summary events = %d, want 3", summaries)
	}
	if snapshots != 1 {
		t.Errorf("snapshot events = %d, want 1 before the window closes", snapshots)
	}

	time.Sleep(300 * time.Millisecond)
	late := drain(ch)
	if len(late) != 1 || !strings.Contains(late[0], `"seq":3`) {
		t.Errorf("trailing snapshot = %q, want the newest tree", late)
	}
}

func TestSubscribeReceivesLatestSnapshot(t *testing.T) {
	b := NewBroker(10 * time.Millisecond)
	defer b.Close()

	b.PublishTreeEvent("tree.loaded", tree(4))
	time.Sleep(50 * time.Millisecond)

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), "event: "+SnapshotEvent) || !strings.Contains(string(msg), `"seq":4`) {
			t.Errorf("first message = %q, want the latest snapshot", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishTreeEvent("tree.erased", tree(2))
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: tree.erased") {
		t.Errorf("handler output missing event: %q", body)
	}
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Capacity is 64; the loop must not block on the 65th message.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]int{"i": i}})
	}
	if b.ClientCount() != 1 {
		t.Fatal("broker loop stalled")
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Safe no-ops after close.
	b.Publish(Event{Type: "tree.erased"})
	b.PublishTreeEvent("tree.erased", tree(1))
}
