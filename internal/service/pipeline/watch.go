package pipeline

import (
	"net/http"
	"sync"
)

// Broadcast fans the leaseholder's frames out to read-only watchers. Every
// frame is framed into its own part buffer, which is never written again, so
// watchers can share it. A watcher still writing the previous part misses
// the new one.
type Broadcast struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	closed  bool
	done    chan struct{}
}

// NewBroadcast creates an empty Broadcast.
func NewBroadcast() *Broadcast {
	return &Broadcast{
		clients: make(map[chan []byte]struct{}),
		done:    make(chan struct{}),
	}
}

// UpdateJPEG publishes jpeg to every connected watcher.
func (b *Broadcast) UpdateJPEG(jpeg []byte) {
	part := Part(jpeg)

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c <- part:
		default:
		}
	}
}

// Watchers reports how many watchers are connected.
func (b *Broadcast) Watchers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close ends every watch and refuses new ones.
func (b *Broadcast) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
}

func (b *Broadcast) subscribe() (chan []byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	c := make(chan []byte, 1)
	b.clients[c] = struct{}{}
	return c, true
}

func (b *Broadcast) unsubscribe(c chan []byte) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
}

// ServeHTTP streams published parts until the client leaves or the Broadcast is closed.
func (b *Broadcast) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, ok := b.subscribe()
	if !ok {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer b.unsubscribe(c)

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-b.done:
			return
		case part := <-c:
			if _, err := w.Write(part); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
