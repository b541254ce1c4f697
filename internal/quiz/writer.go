package quiz

import (
	"context"
	"log"
	"sync"
	"time"
)

const writeTimeout = 10 * time.Second

type writeJob struct {
	name string
	run  func(ctx context.Context) error
}

// writeQueue runs progress writes one at a time in submission order. Submit
// never blocks. Failures are logged and dropped.
type writeQueue struct {
	mu      sync.Mutex
	jobs    []writeJob
	wake    chan struct{}
	closed  bool
	stopped chan struct{}
}

func newWriteQueue() *writeQueue {
	q := &writeQueue{wake: make(chan struct{}, 1), stopped: make(chan struct{})}
	go q.loop()
	return q
}

func (q *writeQueue) submit(name string, run func(ctx context.Context) error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		log.Printf("quiz: dropping %s, writer closed", name)
		return
	}
	q.jobs = append(q.jobs, writeJob{name: name, run: run})
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// close lets queued jobs finish, then stops the loop.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// flush waits until every job submitted so far has run.
func (q *writeQueue) flush() {
	done := make(chan struct{})
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.jobs = append(q.jobs, writeJob{name: "flush", run: func(context.Context) error {
		close(done)
		return nil
	}})
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-done
}

func (q *writeQueue) loop() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := job.run(ctx); err != nil {
			log.Printf("quiz: %s failed: %+v", job.name, err)
		}
		cancel()
	}
}
