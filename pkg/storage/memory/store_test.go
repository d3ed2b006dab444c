package memory

import (
	"context"
	"testing"
	"time"

	"github.com/groundstation/bplib/pkg/storage"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(0)
	ctx := context.Background()

	for _, s := range []string{"a", "b", "c"} {
		if _, err := q.Enqueue(ctx, []byte(s)); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		item, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if string(item.Data) != want {
			t.Fatalf("got %q, want %q", item.Data, want)
		}
	}
}

func TestRetrieveAfterEnqueue(t *testing.T) {
	q := New(0)
	ctx := context.Background()
	id, err := q.Enqueue(ctx, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	item, err := q.Retrieve(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if string(item.Data) != "payload" {
		t.Fatalf("unexpected retrieve result %q", item.Data)
	}
	// Retrieve does not remove the item.
	if n, _ := q.Count(ctx); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestRelinquishRemovesFromQueue(t *testing.T) {
	q := New(0)
	ctx := context.Background()
	id, _ := q.Enqueue(ctx, []byte("x"))
	if err := q.Relinquish(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Retrieve(ctx, id); err == nil {
		t.Fatal("expected retrieve of relinquished item to fail")
	}
	if err := q.Relinquish(ctx, id); err != nil {
		t.Fatalf("relinquish of absent id should be a no-op, got %v", err)
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(0)
	ctx := context.Background()
	done := make(chan storage.Item, 1)
	go func() {
		item, err := q.Dequeue(ctx)
		if err != nil {
			close(done)
			return
		}
		done <- item
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := q.Enqueue(ctx, []byte("late")); err != nil {
		t.Fatal(err)
	}

	select {
	case item := <-done:
		if string(item.Data) != "late" {
			t.Fatalf("got %q", item.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke up after enqueue")
	}
}

func TestDequeueRespectsContextTimeout(t *testing.T) {
	q := New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatal("expected timeout error on empty queue")
	}
}

func TestCloseUnblocksWaiters(t *testing.T) {
	q := New(0)
	ctx := context.Background()
	errc := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("expected error after close")
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke up after close")
	}
}
