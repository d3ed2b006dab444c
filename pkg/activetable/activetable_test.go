package activetable

import (
	"testing"

	"github.com/groundstation/bplib/pkg/storage"
)

func sid(b byte) storage.ID {
	var id storage.ID
	id[0] = b
	return id
}

func TestNewRejectsZeroSize(t *testing.T) {
	if _, err := New(0); err != ErrSizeZero {
		t.Fatalf("got %v, want ErrSizeZero", err)
	}
}

func TestAddAdvancesCurrentCID(t *testing.T) {
	tb, _ := New(4)
	if err := tb.Add(1, Entry{SID: sid(1)}, false); err != nil {
		t.Fatal(err)
	}
	if tb.CurrentCID() != 2 {
		t.Fatalf("current_cid = %d, want 2", tb.CurrentCID())
	}
	if tb.Count() != 1 {
		t.Fatalf("count = %d, want 1", tb.Count())
	}
}

func TestAddFailsOnOccupiedSlot(t *testing.T) {
	tb, _ := New(4)
	_ = tb.Add(1, Entry{SID: sid(1)}, false)
	// CID 5 maps to the same slot as CID 1 (5 mod 4 == 1 mod 4).
	if err := tb.Add(5, Entry{SID: sid(2)}, false); err != ErrBufferFull {
		t.Fatalf("got %v, want ErrBufferFull", err)
	}
	if err := tb.Add(5, Entry{SID: sid(2)}, true); err != nil {
		t.Fatalf("overwrite should succeed, got %v", err)
	}
}

func TestNextPopsInOrderAndSkipsVacant(t *testing.T) {
	tb, _ := New(8)
	_ = tb.Add(1, Entry{SID: sid(1)}, false)
	_ = tb.Add(2, Entry{SID: sid(2)}, false)
	_ = tb.Add(3, Entry{SID: sid(3)}, false)
	// Vacate CID 2 out of order.
	if _, ok := tb.Remove(2); !ok {
		t.Fatal("expected remove to find cid 2")
	}

	cid, entry, ok := tb.Next()
	if !ok || cid != 1 || entry.SID != sid(1) {
		t.Fatalf("got cid=%d ok=%v, want cid=1", cid, ok)
	}
	cid, entry, ok = tb.Next()
	if !ok || cid != 3 || entry.SID != sid(3) {
		t.Fatalf("got cid=%d ok=%v, want cid=3 (skip vacated 2)", cid, ok)
	}
	if _, _, ok = tb.Next(); ok {
		t.Fatal("expected no more outstanding entries")
	}
}

func TestRemoveOnlyClearsMatchingCID(t *testing.T) {
	tb, _ := New(4)
	_ = tb.Add(1, Entry{SID: sid(1)}, false)
	if _, ok := tb.Remove(5); ok {
		t.Fatal("remove should not match a different CID at the same slot")
	}
	if _, ok := tb.Remove(1); !ok {
		t.Fatal("remove should match the CID actually held")
	}
	if tb.Count() != 0 {
		t.Fatalf("count = %d, want 0", tb.Count())
	}
}

func TestAvailable(t *testing.T) {
	tb, _ := New(4)
	if !tb.Available(1) {
		t.Fatal("vacant slot should be available")
	}
	_ = tb.Add(1, Entry{SID: sid(1)}, false)
	if tb.Available(1) {
		t.Fatal("slot holding cid 1 should not be available for cid 1")
	}
	// CID 5 maps to the same slot but is a different CID than the one
	// currently held there, so it is available (the occupant differs).
	if !tb.Available(5) {
		t.Fatal("slot held by a different cid should read as available")
	}
}

func TestCountTracksVacatesOutOfOrder(t *testing.T) {
	tb, _ := New(8)
	for cid := uint64(1); cid <= 4; cid++ {
		_ = tb.Add(cid, Entry{SID: sid(byte(cid))}, false)
	}
	if tb.Count() != 4 {
		t.Fatalf("count = %d, want 4", tb.Count())
	}
	tb.Remove(2)
	if tb.Count() != 3 {
		t.Fatalf("count = %d, want 3 after out-of-order vacate", tb.Count())
	}
}
