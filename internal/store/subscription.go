package store

import "sync"

// watcher serializes deliveries to one callback and makes Cancel synchronous:
// Cancel waits for an in-flight delivery and blocks all later ones.
type watcher struct {
	query Query
	fn    func([]Document, error)
	stop  func()

	mu     sync.Mutex
	closed bool
}

func newWatcher(q Query, fn func([]Document, error), stop func()) *watcher {
	return &watcher{query: q, fn: fn, stop: stop}
}

func (w *watcher) deliver(docs []Document, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.fn(docs, err)
}

func (w *watcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Cancel implements Subscription.
func (w *watcher) Cancel() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	if w.stop != nil {
		w.stop()
	}
}
