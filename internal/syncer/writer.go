package syncer

import (
	"context"
	"sync"
)

// job is one remote write. ids get pending markers for as long as the job is
// queued or running.
type job struct {
	code string
	what string
	ids  []string
	run  func(ctx context.Context) error
	// onFail runs before the pending markers are cleared.
	onFail    func(error)
	onSuccess func()
}

// writer is an unbounded FIFO drained by one goroutine, so enqueueing never
// blocks a local mutation and writes reach the remote in issue order.
type writer struct {
	qmu      sync.Mutex
	queue    []job
	inflight int
	drained  chan struct{}
	wake     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func (w *writer) start(run func(job)) {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.wake = make(chan struct{}, 1)
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-w.wake:
			}
			for {
				j, ok := w.next()
				if !ok {
					break
				}
				run(j)
				w.finish()
				if w.ctx.Err() != nil {
					return
				}
			}
		}
	}()
}

func (w *writer) push(j job) {
	w.qmu.Lock()
	if w.inflight == 0 {
		w.drained = make(chan struct{})
	}
	w.inflight++
	w.queue = append(w.queue, j)
	w.qmu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) next() (job, bool) {
	w.qmu.Lock()
	defer w.qmu.Unlock()
	if len(w.queue) == 0 {
		return job{}, false
	}
	j := w.queue[0]
	w.queue[0] = job{}
	w.queue = w.queue[1:]
	return j, true
}

func (w *writer) finish() {
	w.qmu.Lock()
	defer w.qmu.Unlock()
	w.inflight--
	if w.inflight == 0 {
		close(w.drained)
	}
}

// Flush waits until every queued write has finished.
func (w *writer) Flush(ctx context.Context) error {
	w.qmu.Lock()
	if w.inflight == 0 {
		w.qmu.Unlock()
		return nil
	}
	ch := w.drained
	w.qmu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return context.Canceled
	}
}

func (w *writer) stop() {
	w.cancel()
	<-w.done
}
