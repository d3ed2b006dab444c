package rangeset

import (
	"math/rand"
	"testing"
)

func collect(t *testing.T, tr *Tree) []Range {
	t.Helper()
	var out []Range
	it := tr.Begin()
	var r Range
	for it.GetNext(&r, false, false) {
		out = append(out, r)
	}
	return out
}

func TestCreateRejectsZeroSize(t *testing.T) {
	if _, err := Create(0); err != ErrSizeZero {
		t.Fatalf("got %v, want ErrSizeZero", err)
	}
}

func TestInsertSingleton(t *testing.T) {
	tr, err := Create(8)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Insert(5); err != nil {
		t.Fatal(err)
	}
	if tr.Size() != 1 {
		t.Fatalf("size = %d, want 1", tr.Size())
	}
	ranges := collect(t, tr)
	if len(ranges) != 1 || ranges[0] != (Range{Value: 5, Offset: 1}) {
		t.Fatalf("unexpected ranges %v", ranges)
	}
}

func TestInsertDuplicateIsNoOp(t *testing.T) {
	tr, _ := Create(8)
	_ = tr.Insert(5)
	if err := tr.Insert(5); err != ErrInsertDuplicate {
		t.Fatalf("got %v, want ErrInsertDuplicate", err)
	}
	if tr.Size() != 1 {
		t.Fatalf("size = %d, want 1", tr.Size())
	}
}

// Scenario 1 (spec.md §8): inserting the value that bridges two existing
// ranges fuses them into one, and the tree's node count (Size) drops by
// one relative to the number of disjoint ranges inserted.
func TestInsertFusesAdjacentRanges(t *testing.T) {
	tr, _ := Create(8)
	for _, v := range []uint32{1, 2, 3, 7, 8, 9} {
		if err := tr.Insert(v); err != nil {
			t.Fatalf("insert(%d): %v", v, err)
		}
	}
	if tr.Size() != 2 {
		t.Fatalf("size = %d, want 2 (two disjoint ranges)", tr.Size())
	}

	// Left-extend merge.
	if err := tr.Insert(4); err != nil {
		t.Fatal(err)
	}
	ranges := collect(t, tr)
	if len(ranges) != 2 || ranges[0] != (Range{Value: 1, Offset: 4}) {
		t.Fatalf("unexpected ranges after left-extend %v", ranges)
	}

	// Bridging value: closes the gap between [1,5) and [7,10), fusing
	// them into a single range and freeing one arena node.
	if err := tr.Insert(5); err != nil {
		t.Fatal(err)
	}
	if err := tr.Insert(6); err != nil {
		t.Fatal(err)
	}
	if tr.Size() != 1 {
		t.Fatalf("size = %d, want 1 after full fuse", tr.Size())
	}
	ranges = collect(t, tr)
	if len(ranges) != 1 || ranges[0] != (Range{Value: 1, Offset: 9}) {
		t.Fatalf("unexpected fused range %v", ranges)
	}
}

// Scenario 2 (spec.md §8): once the arena is exhausted, inserting a value
// that cannot merge into an existing range fails with ErrTreeFull, and
// the set is left unmodified.
func TestInsertTreeFull(t *testing.T) {
	tr, _ := Create(2)
	if err := tr.Insert(1); err != nil {
		t.Fatal(err)
	}
	if err := tr.Insert(10); err != nil {
		t.Fatal(err)
	}
	if err := tr.Insert(20); err != ErrTreeFull {
		t.Fatalf("got %v, want ErrTreeFull", err)
	}
	if tr.Size() != 2 {
		t.Fatalf("size = %d, want 2 (failed insert must not mutate)", tr.Size())
	}
}

func TestPopFirstOrdersAscending(t *testing.T) {
	tr, _ := Create(16)
	for _, v := range []uint32{50, 10, 30, 1, 20} {
		if err := tr.Insert(v); err != nil {
			t.Fatal(err)
		}
	}
	var prev uint32
	var r Range
	first := true
	for tr.Size() > 0 {
		if err := tr.PopFirst(&r); err != nil {
			t.Fatal(err)
		}
		if !first && r.Value <= prev {
			t.Fatalf("pop_first returned out-of-order value %d after %d", r.Value, prev)
		}
		prev = r.Value
		first = false
	}
	if err := tr.PopFirst(&r); err != ErrValueNotFound {
		t.Fatalf("got %v, want ErrValueNotFound on empty tree", err)
	}
}

func TestClearResetsArena(t *testing.T) {
	tr, _ := Create(4)
	for _, v := range []uint32{1, 2, 3, 4} {
		if err := tr.Insert(v); err != nil {
			t.Fatal(err)
		}
	}
	tr.Clear()
	if tr.Size() != 0 {
		t.Fatalf("size = %d after Clear, want 0", tr.Size())
	}
	for _, v := range []uint32{100, 200, 300, 400} {
		if err := tr.Insert(v); err != nil {
			t.Fatalf("insert(%d) after Clear: %v", v, err)
		}
	}
	if tr.Size() != 4 {
		t.Fatalf("size = %d, want 4", tr.Size())
	}
}

// RS1: the set never contains two ranges that are adjacent or
// overlapping after any sequence of inserts.
func TestInvariantNoAdjacentRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tr, _ := Create(512)
	seen := map[uint32]bool{}
	for i := 0; i < 400; i++ {
		v := uint32(rng.Intn(1000))
		if seen[v] {
			continue
		}
		if err := tr.Insert(v); err != nil {
			continue
		}
		seen[v] = true

		ranges := collect(t, tr)
		for j := 1; j < len(ranges); j++ {
			if ranges[j].Value <= ranges[j-1].End() {
				t.Fatalf("adjacent/overlapping ranges at step %d: %v", i, ranges)
			}
		}
	}
}

// RS2: every value inserted is covered by exactly one range in the
// resulting set.
func TestInvariantCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tr, _ := Create(512)
	inserted := map[uint32]bool{}
	for i := 0; i < 300; i++ {
		v := uint32(rng.Intn(2000))
		if err := tr.Insert(v); err == nil {
			inserted[v] = true
		}
	}
	ranges := collect(t, tr)
	covered := map[uint32]bool{}
	for _, r := range ranges {
		for x := r.Value; x < r.End(); x++ {
			covered[x] = true
		}
	}
	for v := range inserted {
		if !covered[v] {
			t.Fatalf("value %d inserted but not covered by any range", v)
		}
	}
}

// RS3: the set never holds more disjoint ranges than the arena's
// capacity, and Size never exceeds MaxSize.
func TestInvariantSizeBound(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tr, _ := Create(32)
	for i := 0; i < 5000; i++ {
		v := uint32(rng.Intn(1 << 20))
		_ = tr.Insert(v)
		if tr.Size() > tr.MaxSize() {
			t.Fatalf("size %d exceeds max %d", tr.Size(), tr.MaxSize())
		}
	}
}

func TestPopFirstOnEmptyTree(t *testing.T) {
	tr, _ := Create(4)
	var r Range
	if err := tr.PopFirst(&r); err != ErrValueNotFound {
		t.Fatalf("got %v, want ErrValueNotFound", err)
	}
}

func TestPopFirstNilOut(t *testing.T) {
	tr, _ := Create(4)
	_ = tr.Insert(1)
	if err := tr.PopFirst(nil); err != ErrNullRange {
		t.Fatalf("got %v, want ErrNullRange", err)
	}
}

// Repeated pop_first/insert cycles must not leak or corrupt arena slots:
// after popping everything back out, the arena should accept a fresh
// full load again.
func TestArenaReuseAfterPopAll(t *testing.T) {
	tr, _ := Create(8)
	for v := uint32(0); v < 8; v++ {
		if err := tr.Insert(v * 10); err != nil {
			t.Fatalf("insert %d: %v", v, err)
		}
	}
	var r Range
	for tr.Size() > 0 {
		if err := tr.PopFirst(&r); err != nil {
			t.Fatal(err)
		}
	}
	for v := uint32(0); v < 8; v++ {
		if err := tr.Insert(v * 10); err != nil {
			t.Fatalf("reinsert %d: %v", v, err)
		}
	}
	if tr.Size() != 8 {
		t.Fatalf("size = %d, want 8", tr.Size())
	}
}
