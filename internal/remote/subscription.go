package remote

import "sync"

// Subscription is a live feed of snapshots. C is closed when the feed ends,
// either through Close or because the store gave up on it; Err says which.
type Subscription struct {
	C <-chan Snapshot

	ch      chan Snapshot
	stop    func()
	once    sync.Once
	mu      sync.Mutex
	err     error
	stopped bool
}

// NewSubscription returns a subscription with a buffered channel. stop is
// called once, on Close, to release the producer.
func NewSubscription(buffer int, stop func()) *Subscription {
	ch := make(chan Snapshot, buffer)
	return &Subscription{C: ch, ch: ch, stop: stop}
}

// Send delivers a snapshot, reporting false when the subscription is over or
// the reader has fallen behind.
func (s *Subscription) Send(snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	select {
	case s.ch <- snap:
		return true
	default:
		return false
	}
}

// Fail ends the subscription from the producer side.
func (s *Subscription) Fail(err error) {
	s.end(err)
}

// Close ends the subscription from the consumer side. Err stays nil.
func (s *Subscription) Close() {
	s.end(nil)
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

func (s *Subscription) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.err = err
	close(s.ch)
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
