// Package poll provides an interval fetch primitive with an explicit
// stop handle, used to keep order snapshots current while a view is
// on screen.
package poll

import (
	"context"
	"sync"
	"time"
)

// Handle controls a running poll loop. The owner of the view that
// started the poll owns its teardown.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop tears the loop down. Safe to call more than once, and safe
// even if no fetch ever completed.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Start invokes fetch immediately, then on every interval tick until
// stopped. The fetch is responsible for its own error handling: a
// failed fetch never stops the loop, so a transient network blip does
// not abort the user's visibility into the resource.
func Start(interval time.Duration, fetch func(ctx context.Context)) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)

		fetch(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fetch(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	return h
}
