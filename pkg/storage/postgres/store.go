// Package postgres persists a storage.Queue in PostgreSQL via pgx, for
// ground-segment deployments that want bundle/payload/ACS storage to
// live in the same relational database as the rest of their
// operations state rather than an embedded or object-storage backend.
package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groundstation/bplib/pkg/storage"
)

// Config configures the pgx-backed queue.
type Config struct {
	ConnString string
	QueueName  string
	MaxConns   int32
}

// Queue is a storage.Queue backed by a single queue_items table, shared
// across every namespace opened against the same database and
// distinguished by QueueName.
type Queue struct {
	pool      *pgxpool.Pool
	queueName string
}

// Open runs pending migrations against cfg's database, then opens a
// connection pool for it.
func Open(ctx context.Context, cfg Config) (*Queue, error) {
	if err := runMigrations(cfg.ConnString); err != nil {
		return nil, &storage.Error{Op: "open", Err: err}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, &storage.Error{Op: "open", Err: err}
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, &storage.Error{Op: "open", Err: err}
	}
	return &Queue{pool: pool, queueName: cfg.QueueName}, nil
}

func (q *Queue) Enqueue(ctx context.Context, data []byte) (storage.ID, error) {
	id := storage.ID(uuid.New())
	_, err := q.pool.Exec(ctx,
		`INSERT INTO queue_items (id, queue_name, data) VALUES ($1, $2, $3)`,
		uuid.UUID(id), q.queueName, data)
	if err != nil {
		return storage.Vacant, &storage.Error{Op: "enqueue", ID: id, Err: err}
	}
	return id, nil
}

// Dequeue removes and returns the oldest item for this queue name,
// using FOR UPDATE SKIP LOCKED so concurrent dequeuers on the same
// namespace never contend for the same row.
func (q *Queue) Dequeue(ctx context.Context) (storage.Item, error) {
	var (
		id   uuid.UUID
		data []byte
	)
	err := q.pool.QueryRow(ctx, `
		DELETE FROM queue_items
		WHERE id = (
			SELECT id FROM queue_items
			WHERE queue_name = $1
			ORDER BY seq
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, data
	`, q.queueName).Scan(&id, &data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return storage.Item{}, &storage.Error{Op: "dequeue", Err: storage.ErrTimeout}
		}
		return storage.Item{}, &storage.Error{Op: "dequeue", Err: err}
	}
	return storage.Item{ID: storage.ID(id), Data: data}, nil
}

func (q *Queue) Retrieve(ctx context.Context, id storage.ID) (storage.Item, error) {
	var data []byte
	err := q.pool.QueryRow(ctx,
		`SELECT data FROM queue_items WHERE id = $1 AND queue_name = $2`,
		uuid.UUID(id), q.queueName).Scan(&data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return storage.Item{}, &storage.Error{Op: "retrieve", ID: id, Err: storage.ErrNotFound}
		}
		return storage.Item{}, &storage.Error{Op: "retrieve", ID: id, Err: err}
	}
	return storage.Item{ID: id, Data: data}, nil
}

func (q *Queue) Relinquish(ctx context.Context, id storage.ID) error {
	_, err := q.pool.Exec(ctx,
		`DELETE FROM queue_items WHERE id = $1 AND queue_name = $2`,
		uuid.UUID(id), q.queueName)
	if err != nil {
		return &storage.Error{Op: "relinquish", ID: id, Err: err}
	}
	return nil
}

func (q *Queue) Count(ctx context.Context) (int, error) {
	var n int
	err := q.pool.QueryRow(ctx,
		`SELECT count(*) FROM queue_items WHERE queue_name = $1`,
		q.queueName).Scan(&n)
	if err != nil {
		return 0, &storage.Error{Op: "count", Err: err}
	}
	return n, nil
}

func (q *Queue) Close() error {
	q.pool.Close()
	return nil
}
