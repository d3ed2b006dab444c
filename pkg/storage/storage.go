// Package storage defines the pluggable persistent queue the channel engine
// stores bundles, payloads, and outgoing ACS records in.
//
// The engine never interprets an ID: it is an opaque handle minted by
// whichever backend is wired in (see storage/memory, storage/badgerstore,
// storage/s3store). A Queue is FIFO from the engine's point of view —
// Dequeue always returns the oldest item still enqueued — but Retrieve lets
// the engine re-read an item by ID after it has left the head of the queue,
// which is how active-table retransmission re-sends a bundle whose CID is
// still outstanding.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ID is the opaque handle a Queue returns for an enqueued item.
type ID [16]byte

// Vacant is the sentinel ID denoting an empty active-table slot or "no
// item" return value. The zero ID is never minted by a real backend.
var Vacant ID

// IsVacant reports whether id is the sentinel.
func (id ID) IsVacant() bool { return id == Vacant }

func (id ID) String() string {
	return fmt.Sprintf("%x", [16]byte(id))
}

// Sentinel errors a Queue implementation returns, wrapped with operational
// context via *Error where useful.
var (
	ErrNotFound   = errors.New("storage: item not found")
	ErrFull       = errors.New("storage: queue at capacity")
	ErrTimeout    = errors.New("storage: operation timed out")
	ErrClosed     = errors.New("storage: queue closed")
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// Error wraps a sentinel error with the operation and ID involved, the way
// callers need for structured logging without losing errors.Is() matching.
type Error struct {
	Op  string
	ID  ID
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s(%s): %s", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Item is a record dequeued or retrieved from a Queue.
type Item struct {
	ID   ID
	Data []byte
}

// Queue is the storage service the channel and ACS engines depend on. A
// channel holds three: a bundle-store, a payload-store, and an ACS-store
// for outbound aggregate custody signals.
type Queue interface {
	// Enqueue persists data and returns the ID it was stored under. It
	// may block up to ctx's deadline under backpressure.
	Enqueue(ctx context.Context, data []byte) (ID, error)

	// Dequeue removes and returns the oldest item still enqueued. The
	// memory backend blocks up to ctx's deadline if the queue is empty;
	// the badgerstore, s3store and postgres backends return an error
	// wrapping ErrTimeout at once.
	Dequeue(ctx context.Context) (Item, error)

	// Retrieve reads back an item by ID without removing it. The ID must
	// have been returned by a prior Enqueue and not yet Relinquished.
	Retrieve(ctx context.Context, id ID) (Item, error)

	// Relinquish permanently deletes the item with the given ID. It is a
	// no-op, not an error, if the ID is already gone.
	Relinquish(ctx context.Context, id ID) error

	// Count returns the number of items currently held.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources. Further calls on the Queue after
	// Close return ErrClosed.
	Close() error
}

// DefaultTimeout is used by callers that translate a caller-supplied
// millisecond timeout of 0 into "block briefly rather than forever" —
// mirrors the engine's documented suspension points (§5: storage calls
// may block up to a caller-provided timeout).
const DefaultTimeout = 5 * time.Second

// WithTimeout derives a context bounded by ms milliseconds, or by
// DefaultTimeout if ms is 0. A negative ms means "no deadline".
func WithTimeout(parent context.Context, ms int) (context.Context, context.CancelFunc) {
	switch {
	case ms < 0:
		return context.WithCancel(parent)
	case ms == 0:
		return context.WithTimeout(parent, DefaultTimeout)
	default:
		return context.WithTimeout(parent, time.Duration(ms)*time.Millisecond)
	}
}
