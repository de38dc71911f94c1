// Package testutil provides shared test helpers for journals, drop
// directories and recognition stubs.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/inkmath/internal/geom"
	"github.com/starford/inkmath/internal/journal"
	"github.com/starford/inkmath/internal/storage"
)

// TestJournal opens a journal in a temporary directory that is closed when
// the test ends.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	db, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDrop creates a temporary drop directory with a storage.FS.
func TestDrop(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// StaticRecognizer answers every request with Doc and counts calls.
type StaticRecognizer struct {
	mu    sync.Mutex
	Doc   string
	Err   error
	calls int
}

// Recognize implements recognition.Recognizer.
func (r *StaticRecognizer) Recognize(_ context.Context, _ []*geom.Stroke, _, _ int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.Err != nil {
		return nil, r.Err
	}
	return []byte(r.Doc), nil
}

// Calls returns how many requests were made.
func (r *StaticRecognizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
