package index

import (
	"sync"
	"time"
)

// Refresher periodically invalidates an index and triggers a rebuild.
// It is stopped through its handle; Stop is idempotent and returns once the
// ticking goroutine has exited.
type Refresher struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartRefresher invalidates x every interval until the returned handle is
// stopped. tick, if non-nil, runs after each trigger.
func StartRefresher(x *Indexer, interval time.Duration, tick func()) *Refresher {
	r := &Refresher{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-t.C:
				x.Invalidate()
				x.Trigger()
				if tick != nil {
					tick()
				}
			}
		}
	}()
	return r
}

// Stop cancels the refresher and waits for it to exit.
func (r *Refresher) Stop() {
	r.once.Do(func() { close(r.stop) })
	<-r.done
}
