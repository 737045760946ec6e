package history

import (
	"context"
	"sync"
)

// History is the ordered, append-only list of commands entered this session.
type History struct {
	mu      sync.RWMutex
	entries []string
}

func New() *History {
	return &History{}
}

// Add appends a raw command line.
func (h *History) Add(line string) {
	h.mu.Lock()
	h.entries = append(h.entries, line)
	h.mu.Unlock()
}

// Entries returns a copy of the history in chronological order.
func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.entries...)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Store persists command history across sessions.
type Store interface {
	// Load returns previously saved entries; an empty store is not an error.
	Load(ctx context.Context) ([]string, error)
	// Save replaces the stored history with entries.
	Save(ctx context.Context, entries []string) error
	Close() error
}

// NopStore neither loads nor saves anything.
type NopStore struct{}

func (NopStore) Load(context.Context) ([]string, error) { return nil, nil }
func (NopStore) Save(context.Context, []string) error   { return nil }
func (NopStore) Close() error                           { return nil }
