// usage:
//
//	import (
//		"log/slog"
//
//		"github.com/unkn0wn-root/cachekit"
//		asynchook "github.com/unkn0wn-root/cachekit/hooks/async"
//		"github.com/unkn0wn-root/cachekit/sloghooks"
//	)
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//		GetEvery: 10, // ~every 10th read failure
//	})
//
//	errs := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer errs.Close()
//
//	m, _ := cachekit.New(cachekit.Options{
//		Provider:     provider,
//		ErrorHandler: errs, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/cachekit"
)

// Handler hands errors to inner on background workers. When the queue is
// full, events are dropped and counted.
type Handler struct {
	inner   cachekit.ErrorHandler
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ cachekit.ErrorHandler = (*Handler)(nil)

func New(inner cachekit.ErrorHandler, workers, qlen int) *Handler {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Handler{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Handler) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Handler) Dropped() uint64 { return h.dropped.Load() }

func (h *Handler) HandleError(op cachekit.Op, namespace, key string, err error) {
	h.try(func() { h.inner.HandleError(op, namespace, key, err) })
}

func (h *Handler) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}
