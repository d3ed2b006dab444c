// Package s3store provides an S3-backed storage.Queue, for ground-segment
// deployments where bundle and payload storage lives in object storage
// rather than on the local disk.
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/groundstation/bplib/pkg/storage"
)

// Config holds configuration for the S3-backed queue.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	KeyPrefix      string
	ForcePathStyle bool
}

// Queue is an S3-backed implementation of storage.Queue. FIFO order is
// approximated by listing objects under the order prefix, which S3
// returns in lexicographic key order; keys are a zero-padded sequence
// number so lexicographic order matches enqueue order.
type Queue struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	seq       atomic.Uint64
	closed    bool
	mu        sync.RWMutex
}

// New creates a queue with an existing S3 client.
func New(client *s3.Client, cfg Config) *Queue {
	return &Queue{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}
}

// NewFromConfig builds an S3 client from cfg and returns a queue.
func NewFromConfig(ctx context.Context, cfg Config) (*Queue, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return New(client, cfg), nil
}

func (q *Queue) itemKey(id storage.ID) string {
	return q.keyPrefix + "item/" + id.String()
}

func (q *Queue) orderKey(n uint64) string {
	return q.keyPrefix + fmt.Sprintf("order/%020d", n)
}

func (q *Queue) checkClosed() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return &storage.Error{Op: "checkClosed", Err: storage.ErrClosed}
	}
	return nil
}

func (q *Queue) Enqueue(ctx context.Context, data []byte) (storage.ID, error) {
	if err := q.checkClosed(); err != nil {
		return storage.Vacant, err
	}
	id := storage.ID(uuid.New())
	n := q.seq.Add(1)

	if _, err := q.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(q.bucket),
		Key:    aws.String(q.itemKey(id)),
		Body:   bytes.NewReader(data),
	}); err != nil {
		return storage.Vacant, &storage.Error{Op: "enqueue", ID: id, Err: err}
	}
	if _, err := q.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(q.bucket),
		Key:    aws.String(q.orderKey(n)),
		Body:   bytes.NewReader(id[:]),
	}); err != nil {
		return storage.Vacant, &storage.Error{Op: "enqueue", ID: id, Err: err}
	}
	return id, nil
}

func (q *Queue) Dequeue(ctx context.Context) (storage.Item, error) {
	if err := q.checkClosed(); err != nil {
		return storage.Item{}, err
	}

	prefix := q.keyPrefix + "order/"
	paginator := s3.NewListObjectsV2Paginator(q.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(q.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return storage.Item{}, &storage.Error{Op: "dequeue", Err: err}
		}
		for _, obj := range page.Contents {
			orderKey := *obj.Key
			resp, err := q.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(q.bucket),
				Key:    aws.String(orderKey),
			})
			if err != nil {
				continue
			}
			idBytes, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil || len(idBytes) != 16 {
				continue
			}
			var id storage.ID
			copy(id[:], idBytes)

			item, err := q.getItem(ctx, id)
			if err != nil {
				// Stale order marker: the item was already relinquished.
				q.deleteKey(ctx, orderKey)
				continue
			}
			// Only the order marker goes; the item object stays until
			// Relinquish, so Retrieve can still read it back.
			q.deleteKey(ctx, orderKey)
			return item, nil
		}
	}
	return storage.Item{}, &storage.Error{Op: "dequeue", Err: storage.ErrTimeout}
}

func (q *Queue) getItem(ctx context.Context, id storage.ID) (storage.Item, error) {
	resp, err := q.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(q.bucket),
		Key:    aws.String(q.itemKey(id)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return storage.Item{}, storage.ErrNotFound
		}
		return storage.Item{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return storage.Item{}, err
	}
	return storage.Item{ID: id, Data: data}, nil
}

func (q *Queue) deleteKey(ctx context.Context, key string) {
	_, _ = q.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(q.bucket),
		Key:    aws.String(key),
	})
}

func (q *Queue) Retrieve(ctx context.Context, id storage.ID) (storage.Item, error) {
	if err := q.checkClosed(); err != nil {
		return storage.Item{}, err
	}
	item, err := q.getItem(ctx, id)
	if err != nil {
		return storage.Item{}, &storage.Error{Op: "retrieve", ID: id, Err: err}
	}
	return item, nil
}

func (q *Queue) Relinquish(ctx context.Context, id storage.ID) error {
	q.deleteKey(ctx, q.itemKey(id))
	return nil
}

func (q *Queue) Count(ctx context.Context) (int, error) {
	prefix := q.keyPrefix + "item/"
	count := 0
	paginator := s3.NewListObjectsV2Paginator(q.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(q.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, &storage.Error{Op: "count", Err: err}
		}
		count += len(page.Contents)
	}
	return count, nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// DeleteAllUnderPrefix is an operator utility: removes every item and
// order marker this queue owns, for tearing down ephemeral test buckets.
func (q *Queue) DeleteAllUnderPrefix(ctx context.Context) error {
	paginator := s3.NewListObjectsV2Paginator(q.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(q.bucket),
		Prefix: aws.String(q.keyPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3 list objects: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}
		objects := make([]types.ObjectIdentifier, len(page.Contents))
		for i, obj := range page.Contents {
			objects[i] = types.ObjectIdentifier{Key: obj.Key}
		}
		if _, err := q.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(q.bucket),
			Delete: &types.Delete{Objects: objects},
		}); err != nil {
			return fmt.Errorf("s3 delete objects: %w", err)
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "NoSuchKey") || strings.Contains(s, "NotFound") || strings.Contains(s, "404")
}
