package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Op names a store operation for failure injection.
type Op string

const (
	OpGet       Op = "get"
	OpSet       Op = "set"
	OpUpdate    Op = "update"
	OpDelete    Op = "delete"
	OpList      Op = "list"
	OpRun       Op = "run"
	OpSubscribe Op = "subscribe"
)

// FakeStore is an in-memory Store for testing.
// Subscriptions are notified synchronously before the mutating call returns.
type FakeStore struct {
	mu       sync.Mutex
	docs     map[string]Fields
	order    map[string][]string // collection -> ids in insertion order
	watchers map[string][]*watcher
	failures map[Op]map[string]error
	deletes  []string
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		docs:     make(map[string]Fields),
		order:    make(map[string][]string),
		watchers: make(map[string][]*watcher),
		failures: make(map[Op]map[string]error),
	}
}

// FailOn makes op fail with err for the given path. Collection level
// operations (list, run, subscribe) match on the collection path.
func (f *FakeStore) FailOn(op Op, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[op] == nil {
		f.failures[op] = make(map[string]error)
	}
	f.failures[op][path] = err
}

// ClearFailures removes all injected failures.
func (f *FakeStore) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[Op]map[string]error)
}

// DeleteCalls returns every path passed to Delete, including failed ones.
func (f *FakeStore) DeleteCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deletes))
	copy(out, f.deletes)
	return out
}

// Subscribers returns the number of live subscriptions on a collection.
func (f *FakeStore) Subscribers(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers[collection])
}

// Count returns the number of documents in a collection.
func (f *FakeStore) Count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order[collection])
}

func (f *FakeStore) failure(op Op, path string) error {
	if m := f.failures[op]; m != nil {
		return m[path]
	}
	return nil
}

// Get implements Store.
func (f *FakeStore) Get(_ context.Context, path string) (Document, error) {
	_, id, err := Split(path)
	if err != nil {
		return Document{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure(OpGet, path); err != nil {
		return Document{}, err
	}
	fields, ok := f.docs[path]
	if !ok {
		return Document{}, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	return Document{Path: path, ID: id, Fields: copyFields(fields)}, nil
}

// Set implements Store.
func (f *FakeStore) Set(_ context.Context, path string, fields Fields) error {
	collection, id, err := Split(path)
	if err != nil {
		return err
	}
	norm, err := normalize(fields)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if err := f.failure(OpSet, path); err != nil {
		f.mu.Unlock()
		return err
	}
	if _, exists := f.docs[path]; !exists {
		f.order[collection] = append(f.order[collection], id)
	}
	f.docs[path] = norm
	f.mu.Unlock()

	f.notify(collection)
	return nil
}

// Update implements Store.
func (f *FakeStore) Update(_ context.Context, path string, fields Fields) error {
	collection, _, err := Split(path)
	if err != nil {
		return err
	}
	patch, err := normalize(fields)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if err := f.failure(OpUpdate, path); err != nil {
		f.mu.Unlock()
		return err
	}
	current, ok := f.docs[path]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	for k, v := range patch {
		current[k] = v
	}
	f.mu.Unlock()

	f.notify(collection)
	return nil
}

// Delete implements Store.
func (f *FakeStore) Delete(_ context.Context, path string) error {
	collection, id, err := Split(path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.deletes = append(f.deletes, path)
	if err := f.failure(OpDelete, path); err != nil {
		f.mu.Unlock()
		return err
	}
	if _, ok := f.docs[path]; !ok {
		f.mu.Unlock()
		return nil
	}
	delete(f.docs, path)
	ids := f.order[collection]
	for i, existing := range ids {
		if existing == id {
			f.order[collection] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	f.mu.Unlock()

	f.notify(collection)
	return nil
}

// Add implements Store.
func (f *FakeStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.NewString()
	if err := f.Set(ctx, Join(collection, id), fields); err != nil {
		return "", err
	}
	return id, nil
}

// List implements Store.
func (f *FakeStore) List(_ context.Context, collection string) ([]Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure(OpList, collection); err != nil {
		return nil, err
	}
	return f.listLocked(collection), nil
}

func (f *FakeStore) listLocked(collection string) []Document {
	ids := f.order[collection]
	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		path := Join(collection, id)
		docs = append(docs, Document{Path: path, ID: id, Fields: copyFields(f.docs[path])})
	}
	return docs
}

// Run implements Store.
func (f *FakeStore) Run(_ context.Context, q Query) ([]Document, error) {
	if err := checkQuery(q); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure(OpRun, q.Collection); err != nil {
		return nil, err
	}
	return orderDocuments(f.listLocked(q.Collection), q), nil
}

// Subscribe implements Store.
func (f *FakeStore) Subscribe(ctx context.Context, q Query, fn func([]Document, error)) (Subscription, error) {
	if err := checkQuery(q); err != nil {
		return nil, err
	}
	f.mu.Lock()
	if err := f.failure(OpSubscribe, q.Collection); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	var w *watcher
	w = newWatcher(q, fn, func() { f.removeWatcher(q.Collection, w) })
	f.watchers[q.Collection] = append(f.watchers[q.Collection], w)
	f.mu.Unlock()

	docs, err := f.Run(ctx, q)
	w.deliver(docs, err)
	return w, nil
}

func (f *FakeStore) removeWatcher(collection string, w *watcher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws := f.watchers[collection]
	for i, existing := range ws {
		if existing == w {
			f.watchers[collection] = append(ws[:i:i], ws[i+1:]...)
			return
		}
	}
}

// notify re-runs every live query on collection. Runs without the store lock
// so callbacks may read the store.
func (f *FakeStore) notify(collection string) {
	f.mu.Lock()
	ws := make([]*watcher, len(f.watchers[collection]))
	copy(ws, f.watchers[collection])
	f.mu.Unlock()

	for _, w := range ws {
		docs, err := f.Run(context.Background(), w.query)
		w.deliver(docs, err)
	}
}

func copyFields(in Fields) Fields {
	out := make(Fields, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
