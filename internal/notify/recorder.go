package notify

import "sync"

// Recorder is an in-memory sink useful for tests: it captures every
// notification in order and can count by kind.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

type Entry struct {
	Kind    Kind
	Message string
}

func (r *Recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Kind: kind, Message: message})
}

// All returns a copy of the captured notifications, in emission order.
func (r *Recorder) All() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns how many notifications of the given kind were emitted.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
