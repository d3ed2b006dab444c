// Package acs implements the Aggregate Custody Signal engine: on the
// receive side it accumulates custodial CIDs into a range set and
// serializes them into compact ACS records; on receipt of a peer's ACS
// it walks the record and reports which CIDs were acknowledged.
package acs

import (
	"errors"

	"github.com/groundstation/bplib/pkg/rangeset"
	"github.com/groundstation/bplib/pkg/sdnv"
)

// RecordType is the fixed administrative-record type byte this module
// writes and expects on read.
const RecordType = 0x40

// AckBit marks the status byte of a written record as an
// acknowledgment (as opposed to some other administrative record type
// this module does not otherwise produce).
const AckBit = 0x01

var (
	// ErrNotACS is returned by Read when the record type byte doesn't
	// match RecordType.
	ErrNotACS = errors.New("acs: not an ACS record")
	// ErrTruncated is returned by Read when the buffer ends mid-field.
	ErrTruncated = errors.New("acs: truncated record")
)

// Engine accumulates received custodial CIDs and serializes them into
// ACS records on demand. It wraps a bounded rangeset.Tree; the caller
// (the channel engine) is responsible for the emission thresholds
// (max_gaps_per_dacs, dacs_rate) described in §4.3 — Engine itself only
// does the accumulate/serialize/parse mechanics.
type Engine struct {
	pending *rangeset.Tree
}

// New creates an engine whose range set can hold up to maxRanges
// disjoint runs of acknowledged CIDs before Accumulate reports
// rangeset.ErrTreeFull.
func New(maxRanges int) (*Engine, error) {
	tree, err := rangeset.Create(maxRanges)
	if err != nil {
		return nil, err
	}
	return &Engine{pending: tree}, nil
}

// Accumulate records cid as custodially received and due for
// acknowledgement in the next emitted ACS record.
func (e *Engine) Accumulate(cid uint32) error {
	err := e.pending.Insert(cid)
	if err != nil && err != rangeset.ErrInsertDuplicate {
		return err
	}
	return nil
}

// Pending returns the number of disjoint ranges currently accumulated —
// the quantity the channel engine compares against max_gaps_per_dacs.
func (e *Engine) Pending() int {
	return e.pending.Size()
}

// Empty reports whether there is nothing to emit.
func (e *Engine) Empty() bool {
	return e.pending.Size() == 0
}

// Write serializes as many accumulated ranges as fit within maxFills
// on/off pairs, appending the result to dst and returning it. Each
// emitted range is removed from the pending set (§4.3: "each emitted
// pair removes its source range from the tree"). Write returns dst
// unchanged (and writes nothing) if the pending set is empty.
func (e *Engine) Write(dst []byte, maxFills int) ([]byte, error) {
	if e.pending.Size() == 0 {
		return dst, nil
	}

	var first rangeset.Range
	if err := e.pending.PopFirst(&first); err != nil {
		return dst, err
	}

	out := append(dst, RecordType, AckBit)
	out = sdnv.Encode(out, uint64(first.Value))

	prevEnd := first.End()
	fillOn := uint64(first.Offset)

	for fills := 0; fills < maxFills && e.pending.Size() > 0; fills++ {
		var r rangeset.Range
		if err := e.pending.PopFirst(&r); err != nil {
			return out, err
		}
		gap := uint64(r.Value - prevEnd)
		out = sdnv.Encode(out, fillOn)
		out = sdnv.Encode(out, gap)
		fillOn = uint64(r.Offset)
		prevEnd = r.End()
	}

	// The most recently popped range's "on" run has no paired gap yet —
	// its source range is already gone from the tree, so it must reach
	// the wire now regardless of whether the loop stopped on budget or
	// on exhaustion. A zero-length gap terminates the record.
	out = sdnv.Encode(out, fillOn)
	out = sdnv.Encode(out, 0)

	return out, nil
}

// AckResult reports the outcome of reading an ACS record.
type AckResult struct {
	// Acknowledged lists every CID the record marked present.
	Acknowledged []uint64
}

// Read parses an ACS record from data, returning every CID it
// acknowledges. The first SDNV is the anchor CID; subsequent SDNV pairs
// alternate "on" (a run of acknowledged CIDs) and "off" (a run of
// skipped CIDs), per §4.3.
func Read(data []byte) (AckResult, error) {
	if len(data) < 2 {
		return AckResult{}, ErrTruncated
	}
	if data[0] != RecordType {
		return AckResult{}, ErrNotACS
	}
	pos := 2 // record type + status byte

	cursor, n, flags := sdnv.Decode(data[pos:])
	if flags != 0 {
		return AckResult{}, ErrTruncated
	}
	pos += n

	var result AckResult
	on := true
	for pos < len(data) {
		fill, n, flags := sdnv.Decode(data[pos:])
		if flags != 0 {
			return result, ErrTruncated
		}
		pos += n

		if on {
			for i := uint64(0); i < fill; i++ {
				result.Acknowledged = append(result.Acknowledged, cursor+i)
			}
		}
		cursor += fill
		on = !on
	}
	return result, nil
}
