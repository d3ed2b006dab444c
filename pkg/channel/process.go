package channel

import (
	"context"

	"go.opentelemetry.io/otel/codes"

	"github.com/groundstation/bplib/internal/logger"
	"github.com/groundstation/bplib/internal/telemetry"
	"github.com/groundstation/bplib/pkg/acs"
	"github.com/groundstation/bplib/pkg/bpstatus"
	"github.com/groundstation/bplib/pkg/bpwire"
	"github.com/groundstation/bplib/pkg/storage"
)

// Process decodes a received bundle and dispositions it per §4.4.4:
// an expired bundle is dropped, an ACS payload acknowledges active-table
// entries, a custody-requesting bundle is accumulated for acknowledgment
// and its payload queued for Accept, and a plain bundle's payload is
// queued directly. stats.received increments on every call.
func (c *Channel) Process(ctx context.Context, data []byte, timeoutMS int) (bpstatus.Status, bpstatus.Flags) {
	ctx, span := telemetry.StartChannelSpan(ctx, telemetry.SpanProcess, c.route.String(),
		telemetry.BundleSize(len(data)))
	defer span.End()

	var flags bpstatus.Flags
	c.stats.received.Add(1)
	c.metrics.IncReceived(c.route.String())

	b, err := bpwire.Decode(data)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return bpstatus.BundleParseErr, flags
	}

	now, timeOK := c.osi.SysTime()
	if !timeOK {
		flags |= bpstatus.UnreliableTime
	}

	if b.ExprTime != 0 && now >= b.ExprTime {
		c.stats.expired.Add(1)
		c.metrics.IncExpired(c.route.String())
		telemetry.SetAttributes(ctx, telemetry.Disposition("EXPIRED"))
		return bpstatus.Expired, flags
	}

	if b.AdminRecord {
		n, err := c.acknowledge(ctx, b.Payload)
		if err != nil {
			telemetry.RecordError(ctx, err)
			return bpstatus.BundleParseErr, flags
		}
		c.stats.acknowledged.Add(uint64(n))
		c.metrics.AddAcknowledged(c.route.String(), n)
		telemetry.SetAttributes(ctx, telemetry.Disposition("PENDINGACKNOWLEDGMENT"), telemetry.RecordCount(n))
		return bpstatus.PendingAcknowledgment, flags
	}

	if b.RequestsCustody {
		if err := c.acsEngine.Accumulate(uint32(b.CID)); err != nil {
			logger.Warnf("channel: process %s: accumulate CID %d: %v", c.route, b.CID, err)
		}
		if _, err := c.maybeFlushACS(ctx, false); err != nil {
			logger.Warnf("channel: process %s: flush ACS: %v", c.route, err)
		}

		sctx, cancel := storage.WithTimeout(ctx, timeoutMS)
		_, err := c.stores.Payload.Enqueue(sctx, b.Payload)
		cancel()
		if err != nil {
			telemetry.RecordError(ctx, err)
			return bpstatus.FailedStore, flags
		}
		telemetry.SetAttributes(ctx, telemetry.Disposition("PENDINGCUSTODYTRANSFER"))
		return bpstatus.PendingCustodyTransfer, flags
	}

	sctx, cancel := storage.WithTimeout(ctx, timeoutMS)
	_, err = c.stores.Payload.Enqueue(sctx, b.Payload)
	cancel()
	if err != nil {
		telemetry.RecordError(ctx, err)
		return bpstatus.FailedStore, flags
	}
	telemetry.SetAttributes(ctx, telemetry.Disposition("SUCCESS"))
	return bpstatus.Success, flags
}

// acknowledge reads an ACS payload and relinquishes every active-table
// entry it marks acknowledged, waking any Load blocked on wrap. CIDs
// outside the current window, or whose slot is already vacant, are
// silently ignored per §4.4.4.
func (c *Channel) acknowledge(ctx context.Context, payload []byte) (int, error) {
	result, err := acs.Read(payload)
	if err != nil {
		return 0, err
	}

	c.lock.Lock()
	var toRelinquish []storage.ID
	n := 0
	for _, cid := range result.Acknowledged {
		oldest, current := c.at.Window()
		if cid < oldest || cid >= current {
			continue
		}
		if entry, ok := c.at.Remove(cid); ok {
			toRelinquish = append(toRelinquish, entry.SID)
			n++
		}
	}
	c.lock.Signal()
	c.lock.Unlock()

	for _, sid := range toRelinquish {
		if err := c.stores.Bundle.Relinquish(ctx, sid); err != nil {
			logger.Warnf("channel: acknowledge %s: relinquish %s: %v", c.route, sid, err)
		}
	}
	return n, nil
}

// Accept dequeues one delivered payload, blocking up to timeoutMS.
// Allocates a buffer if out is nil; returns PayloadTooLarge if out is
// provided but too small.
func (c *Channel) Accept(ctx context.Context, out []byte, timeoutMS int) ([]byte, bpstatus.Status) {
	ctx, span := telemetry.StartChannelSpan(ctx, telemetry.SpanAccept, c.route.String())
	defer span.End()

	sctx, cancel := storage.WithTimeout(ctx, timeoutMS)
	item, err := c.stores.Payload.Dequeue(sctx)
	cancel()
	if err != nil {
		telemetry.SetStatus(ctx, codes.Error, "timeout")
		return nil, bpstatus.Timeout
	}

	if out != nil && len(out) < len(item.Data) {
		_ = c.stores.Payload.Relinquish(ctx, item.ID)
		c.stats.lost.Add(1)
		c.metrics.IncLost(c.route.String())
		telemetry.SetStatus(ctx, codes.Error, "payload too large")
		return nil, bpstatus.PayloadTooLarge
	}

	var payload []byte
	if out == nil {
		payload = append([]byte(nil), item.Data...)
	} else {
		n := copy(out, item.Data)
		payload = out[:n]
	}

	if err := c.stores.Payload.Relinquish(ctx, item.ID); err != nil {
		logger.Warnf("channel: accept %s: relinquish %s: %v", c.route, item.ID, err)
	}

	c.stats.delivered.Add(1)
	c.metrics.IncDelivered(c.route.String())
	telemetry.SetStatus(ctx, codes.Ok, "")
	return payload, bpstatus.Success
}
