// Package badgerstore persists a storage.Queue in an embedded Badger
// database, for channels that must survive a process restart without an
// external storage service.
package badgerstore

import (
	"context"
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/groundstation/bplib/pkg/storage"
)

var (
	itemPrefix  = []byte("item:")
	orderPrefix = []byte("order:")
	seqKey      = []byte("seq")
)

// Queue is a storage.Queue backed by a Badger key space. FIFO order is
// kept in a second keyspace mapping a monotonic sequence number to the
// item ID, so Dequeue can find the oldest surviving item by scanning
// order: forward and skipping IDs already relinquished.
type Queue struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (creating if absent) a Badger database at dir.
func Open(dir string) (*Queue, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.Error{Op: "open", Err: err}
	}
	seq, err := db.GetSequence(seqKey, 1000)
	if err != nil {
		db.Close()
		return nil, &storage.Error{Op: "open", Err: err}
	}
	return &Queue{db: db, seq: seq}, nil
}

func orderKey(n uint64) []byte {
	k := make([]byte, len(orderPrefix)+8)
	copy(k, orderPrefix)
	binary.BigEndian.PutUint64(k[len(orderPrefix):], n)
	return k
}

func itemKey(id storage.ID) []byte {
	k := make([]byte, len(itemPrefix)+16)
	copy(k, itemPrefix)
	copy(k[len(itemPrefix):], id[:])
	return k
}

func (q *Queue) Enqueue(ctx context.Context, data []byte) (storage.ID, error) {
	id := storage.ID(uuid.New())
	n, err := q.seq.Next()
	if err != nil {
		return storage.Vacant, &storage.Error{Op: "enqueue", Err: err}
	}
	err = q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(itemKey(id), data); err != nil {
			return err
		}
		return txn.Set(orderKey(n), id[:])
	})
	if err != nil {
		return storage.Vacant, &storage.Error{Op: "enqueue", ID: id, Err: err}
	}
	return id, nil
}

// Dequeue scans the order keyspace for the oldest entry whose item still
// exists and removes its order marker. The item itself stays until
// Relinquish, so Retrieve can still read it back.
func (q *Queue) Dequeue(ctx context.Context) (storage.Item, error) {
	var result storage.Item
	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = orderPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(orderPrefix); it.ValidForPrefix(orderPrefix); it.Next() {
			orderK := append([]byte(nil), it.Item().Key()...)
			var idBytes []byte
			err := it.Item().Value(func(v []byte) error {
				idBytes = append([]byte(nil), v...)
				return nil
			})
			if err != nil {
				return err
			}
			var id storage.ID
			copy(id[:], idBytes)

			itemVal, err := txn.Get(itemKey(id))
			if err == badger.ErrKeyNotFound {
				// Already relinquished; drop the stale order marker and
				// keep scanning.
				if delErr := txn.Delete(orderK); delErr != nil {
					return delErr
				}
				continue
			}
			if err != nil {
				return err
			}
			data, err := itemVal.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(orderK); err != nil {
				return err
			}
			result = storage.Item{ID: id, Data: data}
			return nil
		}
		return storage.ErrNotFound
	})
	if err != nil {
		return storage.Item{}, &storage.Error{Op: "dequeue", Err: errOrEmpty(err)}
	}
	return result, nil
}

func errOrEmpty(err error) error {
	if err == storage.ErrNotFound {
		return storage.ErrTimeout
	}
	return err
}

func (q *Queue) Retrieve(ctx context.Context, id storage.ID) (storage.Item, error) {
	var out storage.Item
	err := q.db.View(func(txn *badger.Txn) error {
		it, err := txn.Get(itemKey(id))
		if err == badger.ErrKeyNotFound {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err := it.ValueCopy(nil)
		if err != nil {
			return err
		}
		out = storage.Item{ID: id, Data: data}
		return nil
	})
	if err != nil {
		return storage.Item{}, &storage.Error{Op: "retrieve", ID: id, Err: err}
	}
	return out, nil
}

func (q *Queue) Relinquish(ctx context.Context, id storage.ID) error {
	err := q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(itemKey(id)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		return &storage.Error{Op: "relinquish", ID: id, Err: err}
	}
	return nil
}

func (q *Queue) Count(ctx context.Context) (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = itemPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(itemPrefix); it.ValidForPrefix(itemPrefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, &storage.Error{Op: "count", Err: err}
	}
	return count, nil
}

func (q *Queue) Close() error {
	if err := q.seq.Release(); err != nil {
		q.db.Close()
		return &storage.Error{Op: "close", Err: err}
	}
	if err := q.db.Close(); err != nil {
		return &storage.Error{Op: "close", Err: err}
	}
	return nil
}
