// Package memory provides an in-process storage.Queue backed by a map and
// FIFO order slice, guarded by a mutex and condition variable. It is the
// reference Queue implementation: every channel engine test runs against
// it, and it is the default backend for a channel opened without an
// explicit store.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/groundstation/bplib/pkg/storage"
)

// Queue is a bounded, in-memory FIFO implementing storage.Queue.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  map[storage.ID]storage.Item
	order  []storage.ID
	maxLen int
	closed bool
}

// New creates a queue. maxLen<=0 means unbounded.
func New(maxLen int) *Queue {
	q := &Queue{
		items:  make(map[storage.ID]storage.Item),
		maxLen: maxLen,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func newID() storage.ID {
	return storage.ID(uuid.New())
}

func (q *Queue) Enqueue(ctx context.Context, data []byte) (storage.ID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return storage.Vacant, &storage.Error{Op: "enqueue", Err: storage.ErrClosed}
	}

	done := make(chan struct{})
	defer close(done)
	if q.maxLen > 0 && len(q.order) >= q.maxLen {
		go q.wakeOnDone(ctx, done)
		for q.maxLen > 0 && len(q.order) >= q.maxLen && !q.closed {
			q.cond.Wait()
			if err := ctx.Err(); err != nil {
				return storage.Vacant, &storage.Error{Op: "enqueue", Err: storage.ErrTimeout}
			}
		}
		if q.closed {
			return storage.Vacant, &storage.Error{Op: "enqueue", Err: storage.ErrClosed}
		}
	}

	id := newID()
	cp := append([]byte(nil), data...)
	q.items[id] = storage.Item{ID: id, Data: cp}
	q.order = append(q.order, id)
	q.cond.Broadcast()
	return id, nil
}

func (q *Queue) Dequeue(ctx context.Context) (storage.Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return storage.Item{}, &storage.Error{Op: "dequeue", Err: storage.ErrClosed}
	}

	if len(q.order) == 0 {
		done := make(chan struct{})
		defer close(done)
		go q.wakeOnDone(ctx, done)
		for len(q.order) == 0 && !q.closed {
			q.cond.Wait()
			if err := ctx.Err(); err != nil {
				return storage.Item{}, &storage.Error{Op: "dequeue", Err: storage.ErrTimeout}
			}
		}
		if q.closed {
			return storage.Item{}, &storage.Error{Op: "dequeue", Err: storage.ErrClosed}
		}
	}

	id := q.order[0]
	q.order = q.order[1:]
	// The item stays in q.items until Relinquish, so Retrieve can still
	// read it back.
	item := q.items[id]
	q.cond.Broadcast()
	return item, nil
}

func (q *Queue) Retrieve(ctx context.Context, id storage.ID) (storage.Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return storage.Item{}, &storage.Error{Op: "retrieve", ID: id, Err: storage.ErrClosed}
	}
	item, ok := q.items[id]
	if !ok {
		return storage.Item{}, &storage.Error{Op: "retrieve", ID: id, Err: storage.ErrNotFound}
	}
	return item, nil
}

func (q *Queue) Relinquish(ctx context.Context, id storage.ID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[id]; !ok {
		return nil
	}
	delete(q.items, id)
	for i, x := range q.order {
		if x == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	q.cond.Broadcast()
	return nil
}

func (q *Queue) Count(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
	return nil
}

// wakeOnDone broadcasts on the queue's condition variable when ctx is
// canceled, so a blocked Wait() doesn't outlive the caller's deadline.
// done lets the caller retire this goroutine once it stops waiting.
func (q *Queue) wakeOnDone(ctx context.Context, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	case <-done:
	}
}
