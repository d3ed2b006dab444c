package channel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/groundstation/bplib/internal/logger"
	"github.com/groundstation/bplib/internal/telemetry"
	"github.com/groundstation/bplib/pkg/activetable"
	"github.com/groundstation/bplib/pkg/bpstatus"
	"github.com/groundstation/bplib/pkg/bpwire"
	"github.com/groundstation/bplib/pkg/config"
	"github.com/groundstation/bplib/pkg/storage"
)

// candidate is the bundle Load has chosen to emit, before the common
// "emit chosen bundle" tail (§4.4.3 step 4) runs.
type candidate struct {
	encoded      []byte
	sid          storage.ID
	assignNewCID bool
	// cid is the CID this bundle already occupies, valid only when
	// !assignNewCID (the cid_reuse retransmit path keeps its slot).
	cid uint64
}

// Load returns one wire-ready bundle, in priority order: a pending ACS
// record, a due retransmit from the active table, or a fresh bundle
// from the bundle store. If out is non-nil and too small for the
// chosen bundle, the bundle is relinquished and BundleTooLarge is
// returned; if out is nil, Load allocates its own buffer.
func (c *Channel) Load(ctx context.Context, out []byte, timeoutMS int) ([]byte, bpstatus.Status, bpstatus.Flags) {
	ctx, span := telemetry.StartChannelSpan(ctx, telemetry.SpanLoad, c.route.String())
	defer span.End()

	var flags bpstatus.Flags

	// Step 1: flush pending ACS, then try a non-blocking dequeue of
	// anything already serialized into the ACS store.
	if _, err := c.maybeFlushACS(ctx, false); err != nil {
		logger.Warnf("channel: load %s: flush ACS: %v", c.route, err)
	}
	if buf, ok := c.dequeueACS(ctx); ok {
		flags |= bpstatus.RouteNeeded
		emitted, status := c.finishEmit(buf, out)
		c.stats.transmitted.Add(1)
		c.metrics.IncTransmitted(c.route.String())
		telemetry.SetStatus(ctx, codes.Ok, "")
		return emitted, status, flags
	}

	a := c.Attributes()
	now, timeOK := c.osi.SysTime()
	if !timeOK {
		flags |= bpstatus.UnreliableTime
	}

	// Step 2: scan the active table head for a due retransmit, or
	// determine wrap safety for a fresh CID assignment.
	cand, status, _ := c.scanRetransmits(ctx, a, now)
	if status != bpstatus.Success {
		return nil, status, flags
	}

	if cand == nil {
		// Step 3: dequeue a fresh bundle.
		sctx, cancel := storage.WithTimeout(ctx, timeoutMS)
		item, err := c.stores.Bundle.Dequeue(sctx)
		cancel()
		if err != nil {
			telemetry.SetStatus(ctx, codes.Error, "timeout")
			return nil, bpstatus.Timeout, flags
		}
		b, derr := bpwire.Decode(item.Data)
		if derr == nil && b.ExprTime != 0 && now >= b.ExprTime {
			_ = c.stores.Bundle.Relinquish(ctx, item.ID)
			c.stats.expired.Add(1)
			c.metrics.IncExpired(c.route.String())
			telemetry.SetStatus(ctx, codes.Error, "expired")
			return nil, bpstatus.Expired, flags
		}
		cand = &candidate{encoded: item.Data, sid: item.ID, assignNewCID: true}
	}

	// Step 4: emit the chosen bundle.
	b, err := bpwire.Decode(cand.encoded)
	if err != nil {
		_ = c.stores.Bundle.Relinquish(ctx, cand.sid)
		telemetry.RecordError(ctx, err)
		return nil, bpstatus.BundleParseErr, flags
	}

	if out != nil && len(out) < len(cand.encoded) {
		_ = c.stores.Bundle.Relinquish(ctx, cand.sid)
		c.stats.lost.Add(1)
		c.metrics.IncLost(c.route.String())
		telemetry.SetStatus(ctx, codes.Error, "bundle too large")
		return nil, bpstatus.BundleTooLarge, flags
	}

	requestsCustody := b.RequestsCustody && b.CTEBOffset != 0
	if requestsCustody {
		c.lock.Lock()
		if cand.assignNewCID {
			_, current := c.at.Window()
			if err := bpwire.PatchCID(cand.encoded, b.CTEBOffset, current); err != nil {
				c.lock.Unlock()
				telemetry.RecordError(ctx, err)
				return nil, bpstatus.BundleParseErr, flags
			}
			_ = c.at.Add(current, activetable.Entry{SID: cand.sid, LastTxTime: now}, true)
			c.at.SetCurrentCID(current + 1)
		} else {
			_ = c.at.Add(cand.cid, activetable.Entry{SID: cand.sid, LastTxTime: now}, true)
		}
		c.lock.Unlock()
	}

	emitted, status := c.finishEmit(cand.encoded, out)
	c.stats.transmitted.Add(1)
	c.metrics.IncTransmitted(c.route.String())

	if !requestsCustody {
		if err := c.stores.Bundle.Relinquish(ctx, cand.sid); err != nil {
			logger.Warnf("channel: load %s: relinquish %s: %v", c.route, cand.sid, err)
		}
	}

	telemetry.SetStatus(ctx, codes.Ok, "")
	return emitted, status, flags
}

// finishEmit copies encoded into out (allocating if out is nil) and
// returns the slice actually containing the bundle.
func (c *Channel) finishEmit(encoded []byte, out []byte) ([]byte, bpstatus.Status) {
	if out == nil {
		buf := make([]byte, len(encoded))
		copy(buf, encoded)
		return buf, bpstatus.Success
	}
	n := copy(out, encoded)
	return out[:n], bpstatus.Success
}

// dequeueACS attempts a non-blocking dequeue from the ACS store. A very
// short deadline approximates "non-blocking" over the storage.Queue
// interface, which has no explicit non-blocking mode. A dequeued record
// is relinquished at once, since it is never retransmitted.
func (c *Channel) dequeueACS(ctx context.Context) ([]byte, bool) {
	sctx, cancel := context.WithTimeout(ctx, time.Millisecond)
	defer cancel()
	item, err := c.stores.ACS.Dequeue(sctx)
	if err != nil {
		return nil, false
	}
	if err := c.stores.ACS.Relinquish(ctx, item.ID); err != nil {
		logger.Warnf("channel: load %s: relinquish ACS %s: %v", c.route, item.ID, err)
	}
	return item.Data, true
}

// scanRetransmits implements §4.4.3 step 2: walk the active table from
// oldest_active_cid looking for a due retransmit, then, if none is due,
// check wrap safety for a fresh CID at current_active_cid and apply the
// configured wrap policy. Returns (nil, Success, false) when the caller
// should proceed to a fresh dequeue.
func (c *Channel) scanRetransmits(ctx context.Context, a config.Attributes, now int64) (*candidate, bpstatus.Status, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for {
		oldest, current := c.at.Window()
		if oldest == current {
			break
		}

		entry, heldCID := c.at.Slot(oldest)
		if entry.SID.IsVacant() || heldCID != oldest {
			c.at.SetOldestCID(oldest + 1)
			continue
		}

		item, err := c.stores.Bundle.Retrieve(ctx, entry.SID)
		if err != nil {
			_ = c.stores.Bundle.Relinquish(ctx, entry.SID)
			c.at.Remove(oldest)
			c.at.SetOldestCID(oldest + 1)
			c.stats.lost.Add(1)
			c.metrics.IncLost(c.route.String())
			continue
		}

		b, derr := bpwire.Decode(item.Data)
		if derr != nil {
			_ = c.stores.Bundle.Relinquish(ctx, entry.SID)
			c.at.Remove(oldest)
			c.at.SetOldestCID(oldest + 1)
			c.stats.lost.Add(1)
			c.metrics.IncLost(c.route.String())
			continue
		}

		if b.ExprTime != 0 && now >= b.ExprTime {
			_ = c.stores.Bundle.Relinquish(ctx, entry.SID)
			c.at.Remove(oldest)
			c.at.SetOldestCID(oldest + 1)
			c.stats.expired.Add(1)
			c.metrics.IncExpired(c.route.String())
			continue
		}

		if a.Timeout != 0 && now >= entry.LastTxTime+int64(a.Timeout) {
			c.stats.retransmitted.Add(1)
			c.metrics.IncRetransmitted(c.route.String())
			c.at.SetOldestCID(oldest + 1)
			if a.CidReuse {
				return &candidate{encoded: item.Data, sid: entry.SID, assignNewCID: false, cid: oldest}, bpstatus.Success, true
			}
			c.at.Remove(oldest)
			return &candidate{encoded: item.Data, sid: entry.SID, assignNewCID: true}, bpstatus.Success, true
		}

		// Head of the table is not yet due; stop scanning and check
		// wrap safety.
		break
	}

	_, current := c.at.Window()
	wrapEntry, _ := c.at.Slot(current)
	if wrapEntry.SID.IsVacant() {
		return nil, bpstatus.Success, false
	}

	switch a.WrapResponse {
	case config.WrapResend:
		oldest, _ := c.at.Window()
		entry, _ := c.at.Slot(oldest)
		item, err := c.stores.Bundle.Retrieve(ctx, entry.SID)
		if err != nil {
			_ = c.stores.Bundle.Relinquish(ctx, entry.SID)
			c.at.Remove(oldest)
			c.at.SetOldestCID(oldest + 1)
			c.stats.lost.Add(1)
			c.metrics.IncLost(c.route.String())
			return nil, bpstatus.FailedStore, false
		}
		c.at.Remove(oldest)
		c.at.SetOldestCID(oldest + 1)
		c.stats.retransmitted.Add(1)
		c.metrics.IncRetransmitted(c.route.String())
		c.lock.WaitOn(time.Duration(a.WrapTimeout) * time.Millisecond)
		return &candidate{encoded: item.Data, sid: entry.SID, assignNewCID: true}, bpstatus.Success, true

	case config.WrapDrop:
		for i := uint64(0); i < c.at.Size(); i++ {
			_, entry, ok := c.at.Next()
			if !ok {
				break
			}
			_ = c.stores.Bundle.Relinquish(ctx, entry.SID)
			c.stats.lost.Add(1)
			c.metrics.IncLost(c.route.String())
			_, cur := c.at.Window()
			if e, _ := c.at.Slot(cur); e.SID.IsVacant() {
				break
			}
		}
		return nil, bpstatus.Success, false

	default: // config.WrapBlock
		c.lock.WaitOn(time.Duration(a.WrapTimeout) * time.Millisecond)
		return nil, bpstatus.Overflow, false
	}
}
