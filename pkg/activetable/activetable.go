// Package activetable implements the channel engine's fixed-capacity
// custody window: a circular array mapping CID mod N to the storage ID of
// the bundle outstanding at that CID, plus the two monotone counters that
// bound which CIDs are believed in flight.
package activetable

import (
	"errors"

	"github.com/groundstation/bplib/pkg/storage"
)

var (
	// ErrBufferFull is returned by Add when the target slot is occupied
	// and the caller did not ask to overwrite it.
	ErrBufferFull = errors.New("activetable: slot occupied")
	// ErrSizeZero is returned by New for a zero-capacity table.
	ErrSizeZero = errors.New("activetable: zero capacity")
)

// Entry is the per-slot record: the storage ID of the outstanding
// bundle and the unix time (seconds) it was last transmitted.
type Entry struct {
	SID        storage.ID
	LastTxTime int64
}

func (e Entry) vacant() bool { return e.SID.IsVacant() }

// Table is the circular active table. It is not safe for concurrent use
// without external locking — the channel engine guards it with its own
// per-channel mutex, per spec.
type Table struct {
	slots []Entry
	cids  []uint64 // the CID currently held at slots[i], valid only when !slots[i].vacant()

	size     uint64
	occupied uint64 // slots currently holding a bundle; kept incremental per §4.2

	oldestCID  uint64
	currentCID uint64 // a.k.a. "newest" hint: next CID to be assigned
}

// New allocates a table of the given size. oldestCID and currentCID both
// start at 1, matching the channel engine's CID numbering (§3: CIDs start
// at 1).
func New(size uint64) (*Table, error) {
	if size == 0 {
		return nil, ErrSizeZero
	}
	return &Table{
		slots:      make([]Entry, size),
		cids:       make([]uint64, size),
		size:       size,
		oldestCID:  1,
		currentCID: 1,
	}, nil
}

// Size returns the table's fixed capacity N.
func (t *Table) Size() uint64 { return t.size }

// OldestCID returns the current oldest_cid counter.
func (t *Table) OldestCID() uint64 { return t.oldestCID }

// CurrentCID returns the current current_cid counter (the next CID the
// channel engine will assign).
func (t *Table) CurrentCID() uint64 { return t.currentCID }

// SetOldestCID advances the oldest_cid counter directly — used by the
// channel engine's wrap-scan, which walks past vacant slots itself rather
// than through Next.
func (t *Table) SetOldestCID(v uint64) { t.oldestCID = v }

// SetCurrentCID sets the current_cid counter, used when the engine
// assigns a fresh CID.
func (t *Table) SetCurrentCID(v uint64) { t.currentCID = v }

func (t *Table) index(cid uint64) uint64 { return cid % t.size }

// Slot returns the entry at the index cid maps to, and the CID actually
// held there (which may differ from cid if the slot holds a different,
// still-outstanding bundle).
func (t *Table) Slot(cid uint64) (Entry, uint64) {
	i := t.index(cid)
	return t.slots[i], t.cids[i]
}

// SlotAt returns the entry and held CID at raw array index i, used by the
// engine's retransmit scan which walks the array itself rather than by
// CID.
func (t *Table) SlotAt(i uint64) (Entry, uint64) {
	return t.slots[i], t.cids[i]
}

// Add writes entry at cid mod N, advancing current_cid to cid+1 if cid is
// the latest CID assigned. If the target slot is occupied by a different
// CID and overwrite is false, Add fails with ErrBufferFull and leaves the
// table unmodified.
func (t *Table) Add(cid uint64, entry Entry, overwrite bool) error {
	i := t.index(cid)
	wasVacant := t.slots[i].vacant()
	if !wasVacant && t.cids[i] != cid && !overwrite {
		return ErrBufferFull
	}
	t.slots[i] = entry
	t.cids[i] = cid
	if wasVacant {
		t.occupied++
	}
	if cid >= t.currentCID {
		t.currentCID = cid + 1
	}
	return nil
}

// Next pops the slot at oldest_cid if occupied, advancing oldest_cid by
// one. If that slot is vacant, oldest_cid advances past vacant slots
// until an occupied one is found or oldest_cid catches up to current_cid
// (nothing outstanding). Returns false when no entry was found.
func (t *Table) Next() (cid uint64, entry Entry, ok bool) {
	for t.oldestCID < t.currentCID {
		i := t.index(t.oldestCID)
		if !t.slots[i].vacant() && t.cids[i] == t.oldestCID {
			entry = t.slots[i]
			cid = t.oldestCID
			t.slots[i] = Entry{}
			t.cids[i] = 0
			t.occupied--
			t.oldestCID++
			return cid, entry, true
		}
		t.oldestCID++
	}
	return 0, Entry{}, false
}

// Remove clears the slot for cid iff it currently holds cid, returning
// the entry that was there. ok is false if the slot held a different CID
// or was already vacant.
func (t *Table) Remove(cid uint64) (entry Entry, ok bool) {
	i := t.index(cid)
	if t.slots[i].vacant() || t.cids[i] != cid {
		return Entry{}, false
	}
	entry = t.slots[i]
	t.slots[i] = Entry{}
	t.cids[i] = 0
	t.occupied--
	return entry, true
}

// Available reports whether the slot cid maps to is free to receive cid:
// true if the slot is vacant, or if it is occupied by a different CID
// (meaning cid itself is not the one outstanding there).
func (t *Table) Available(cid uint64) bool {
	i := t.index(cid)
	return t.slots[i].vacant() || t.cids[i] != cid
}

// Count returns the number of slots currently occupied. Unlike
// current_cid - oldest_cid, this discounts slots vacated out of order
// (e.g. by an out-of-sequence ACS acknowledgement): it is kept as an
// incremental counter rather than recomputed by scanning the array.
func (t *Table) Count() uint64 {
	return t.occupied
}

// Window returns the half-open [oldest_cid, current_cid) interval of
// CIDs believed outstanding, per §3's Active Table window definition.
func (t *Table) Window() (oldest, current uint64) {
	return t.oldestCID, t.currentCID
}
