package config

import (
	"context"
	"fmt"

	"github.com/groundstation/bplib/pkg/storage"
	"github.com/groundstation/bplib/pkg/storage/badgerstore"
	"github.com/groundstation/bplib/pkg/storage/memory"
	"github.com/groundstation/bplib/pkg/storage/postgres"
	"github.com/groundstation/bplib/pkg/storage/s3store"
)

// NewQueue constructs the storage.Queue backend selected by cfg.
func NewQueue(ctx context.Context, cfg StorageConfig) (storage.Queue, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(cfg.MaxLen), nil
	case "badger":
		return badgerstore.Open(cfg.Badger.Dir)
	case "s3":
		return s3store.NewFromConfig(ctx, s3store.Config{
			Bucket:         cfg.S3.Bucket,
			Region:         cfg.S3.Region,
			Endpoint:       cfg.S3.Endpoint,
			KeyPrefix:      cfg.S3.KeyPrefix,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
	case "postgres":
		return postgres.Open(ctx, postgres.Config{
			ConnString: cfg.Postgres.ConnectionString(),
			QueueName:  cfg.Postgres.QueueName,
			MaxConns:   cfg.Postgres.MaxConns,
		})
	default:
		return nil, fmt.Errorf("%w: unknown storage type %q", ErrParm, cfg.Type)
	}
}
