package pushstatus

import (
	"context"
	"sync"
)

// Record is one captured WriteStatus call.
type Record struct {
	Key   []byte
	Value []byte
}

// FakeWriter is an in-memory StatusWriter for tests: it never dials a
// broker and simply records what would have been written.
type FakeWriter struct {
	mu      sync.Mutex
	records []Record
}

func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

func (w *FakeWriter) WriteStatus(_ context.Context, key, value []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, Record{Key: key, Value: value})
}

func (w *FakeWriter) Records() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Record, len(w.records))
	copy(out, w.records)
	return out
}
