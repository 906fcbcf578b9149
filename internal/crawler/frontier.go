package crawler

import (
	"context"
	"sync"
)

// frontier is the FIFO of URLs waiting to be fetched. It also counts the
// workers still processing popped URLs, so "empty and idle" is decided
// under the same lock that guards the queue.
type frontier struct {
	mu       sync.Mutex
	queue    []string
	seen     map[string]struct{}
	inflight int
	wake     chan struct{}
}

func newFrontier(seed string) *frontier {
	f := &frontier{
		seen: make(map[string]struct{}),
		wake: make(chan struct{}, 1),
	}
	f.Push(seed)
	return f
}

// Push enqueues URLs not queued before in this run and returns how many
// were added.
func (f *frontier) Push(urls ...string) int {
	f.mu.Lock()
	added := 0
	for _, u := range urls {
		if _, ok := f.seen[u]; ok {
			continue
		}
		f.seen[u] = struct{}{}
		f.queue = append(f.queue, u)
		added++
	}
	f.mu.Unlock()
	if added > 0 {
		f.signal()
	}
	return added
}

// Pop blocks until a URL is available and marks a worker in flight. It
// returns false once the queue is empty with no worker left that could
// refill it, or when ctx is done.
func (f *frontier) Pop(ctx context.Context) (string, bool) {
	for {
		f.mu.Lock()
		if len(f.queue) > 0 {
			u := f.queue[0]
			f.queue[0] = ""
			f.queue = f.queue[1:]
			f.inflight++
			f.mu.Unlock()
			return u, true
		}
		if f.inflight == 0 {
			f.mu.Unlock()
			return "", false
		}
		f.mu.Unlock()

		select {
		case <-f.wake:
		case <-ctx.Done():
			return "", false
		}
	}
}

// Done releases a worker taken by Pop. Links must be pushed before Done.
func (f *frontier) Done() {
	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()
	f.signal()
}

func (f *frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

func (f *frontier) signal() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}
