package gateway

import (
	"context"
	"sync"
)

// ChangeFeed carries the paths of committed writes to watchers.
type ChangeFeed interface {
	Publish(ctx context.Context, path string) error
	// Watch returns the changed paths that overlap path until ctx is done.
	Watch(ctx context.Context, path string) <-chan string
}

// Feed is an in-process ChangeFeed. Publish never blocks: a watcher that
// already has a pending change for its path is due to re-read anyway, so
// further changes are dropped for it.
type Feed struct {
	mu     sync.Mutex
	next   int
	subs   map[int]feedSub
	closed bool
}

type feedSub struct {
	path string
	ch   chan string
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]feedSub)}
}

func (f *Feed) Publish(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if !Overlaps(path, sub.path) {
			continue
		}
		select {
		case sub.ch <- path:
		default:
		}
	}
	return nil
}

func (f *Feed) Watch(ctx context.Context, path string) <-chan string {
	ch := make(chan string, 1)
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	id := f.next
	f.next++
	f.subs[id] = feedSub{path: path, ch: ch}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub.ch)
		}
	}()
	return ch
}

// Close ends every watch.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for id, sub := range f.subs {
		delete(f.subs, id)
		close(sub.ch)
	}
}
