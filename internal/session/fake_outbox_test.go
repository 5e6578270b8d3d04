package session

import "sync"

// fakeOutbox records what it was sent. A positive capacity makes it refuse
// payloads once that many are queued.
type fakeOutbox struct {
	mu       sync.Mutex
	payloads [][]byte
	capacity int
	closed   bool
}

func (f *fakeOutbox) Enqueue(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || (f.capacity > 0 && len(f.payloads) >= f.capacity) {
		return false
	}
	f.payloads = append(f.payloads, payload)
	return true
}

func (f *fakeOutbox) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeOutbox) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.payloads))
	for _, p := range f.payloads {
		out = append(out, string(p))
	}
	return out
}

func (f *fakeOutbox) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
