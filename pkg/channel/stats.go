package channel

import "sync/atomic"

// stats holds the monotone counters spec.md §3 assigns to every
// channel: generated, transmitted, retransmitted, delivered, received,
// acknowledged, lost, expired. active/bundles/payloads/records are not
// stored here — LatchStats recomputes them from the active table window
// and the storage backends at call time.
type stats struct {
	generated     atomic.Uint64
	transmitted   atomic.Uint64
	retransmitted atomic.Uint64
	delivered     atomic.Uint64
	received      atomic.Uint64
	acknowledged  atomic.Uint64
	lost          atomic.Uint64
	expired       atomic.Uint64
}

// Stats is the snapshot LatchStats returns: spec.md §4.4.7's "copies
// stats atomically" rendered as a value type a caller can hold onto
// without touching the channel's internals.
type Stats struct {
	Generated     uint64
	Transmitted   uint64
	Retransmitted uint64
	Delivered     uint64
	Received      uint64
	Acknowledged  uint64
	Lost          uint64
	Expired       uint64
	Active        uint64
	Bundles       uint64
	Payloads      uint64
	Records       uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Generated:     s.generated.Load(),
		Transmitted:   s.transmitted.Load(),
		Retransmitted: s.retransmitted.Load(),
		Delivered:     s.delivered.Load(),
		Received:      s.received.Load(),
		Acknowledged:  s.acknowledged.Load(),
		Lost:          s.lost.Load(),
		Expired:       s.expired.Load(),
	}
}
