// Package channel implements the custody and retransmission engine: a
// per-route state machine that assigns Custody IDs, tracks outstanding
// bundles in an active table, times out and retransmits, handles
// active-table wrap, and folds received Aggregate Custody Signals back
// into the sender's bookkeeping.
//
// A Channel owns three storage.Queue handles (bundle store, payload
// store, outbound ACS store), an activetable.Table, and an acs.Engine.
// All five spec.md §4.4 operations — Store, Load, Process, Accept,
// Flush — and the stats snapshot LatchStats are exposed as methods.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/codes"

	"github.com/groundstation/bplib/internal/logger"
	"github.com/groundstation/bplib/internal/telemetry"
	"github.com/groundstation/bplib/pkg/acs"
	"github.com/groundstation/bplib/pkg/activetable"
	"github.com/groundstation/bplib/pkg/bpstats"
	"github.com/groundstation/bplib/pkg/bpstatus"
	"github.com/groundstation/bplib/pkg/bpwire"
	"github.com/groundstation/bplib/pkg/config"
	"github.com/groundstation/bplib/pkg/eid"
	"github.com/groundstation/bplib/pkg/osshim"
	"github.com/groundstation/bplib/pkg/storage"
)

// Stores bundles the three storage.Queue handles a channel needs: the
// bundle store (outgoing, custody-tracked bundles), the payload store
// (decoded payloads awaiting Accept), and the ACS store (serialized
// aggregate custody signals awaiting Load).
type Stores struct {
	Bundle  storage.Queue
	Payload storage.Queue
	ACS     storage.Queue
}

// Channel is a single endpoint-to-endpoint custody/retransmission
// state machine. Not safe for concurrent use except through its own
// methods, which serialize active-table access internally via osi's
// lock.
type Channel struct {
	route eid.Route

	stores Stores

	acsEngine *acs.Engine
	at        *activetable.Table

	osi  osshim.OS
	lock osshim.Lock

	attrsMu  sync.RWMutex
	attrs    config.Attributes
	prebuilt bool

	stats       stats
	lastACSEmit int64

	metrics *bpstats.Collector
}

// Open allocates a channel for route, wiring it to stores and attrs.
// A nil attrs uses config.DefaultAttributes(). A nil metrics is valid
// and disables Prometheus export for this channel (bpstats.Collector's
// methods are nil-safe).
func Open(route eid.Route, stores Stores, attrs *config.Attributes, osi osshim.OS, metrics *bpstats.Collector) (*Channel, error) {
	if stores.Bundle == nil || stores.Payload == nil || stores.ACS == nil {
		return nil, fmt.Errorf("channel: open %s: %w", route, errors.New("bundle, payload, and ACS stores are all required"))
	}

	a := config.DefaultAttributes()
	if attrs != nil {
		a = *attrs
	}
	if err := config.ValidateAttributes(&a); err != nil {
		return nil, fmt.Errorf("channel: open %s: %w", route, err)
	}

	at, err := activetable.New(uint64(a.ActiveTableSize))
	if err != nil {
		return nil, fmt.Errorf("channel: open %s: %w", route, err)
	}

	maxRanges := a.MaxGapsPerDACS
	if maxRanges <= 0 {
		maxRanges = 32
	}
	acsEngine, err := acs.New(maxRanges)
	if err != nil {
		return nil, fmt.Errorf("channel: open %s: %w", route, err)
	}

	now, _ := osi.SysTime()

	c := &Channel{
		route:       route,
		stores:      stores,
		acsEngine:   acsEngine,
		at:          at,
		osi:         osi,
		lock:        osi.CreateLock(),
		attrs:       a,
		lastACSEmit: now,
		metrics:     metrics,
	}
	return c, nil
}

// Route returns the channel's local/remote endpoint pair.
func (c *Channel) Route() eid.Route {
	return c.route
}

// Attributes returns a copy of the channel's current attribute set.
func (c *Channel) Attributes() config.Attributes {
	c.attrsMu.RLock()
	defer c.attrsMu.RUnlock()
	return c.attrs
}

// SetAttributes replaces the channel's attribute set after validating
// it, per spec.md §6: "Setting any option clears prebuilt so that the
// next store re-builds the cached header."
func (c *Channel) SetAttributes(attrs config.Attributes) error {
	if err := config.ValidateAttributes(&attrs); err != nil {
		return fmt.Errorf("channel: set attributes: %w", err)
	}
	c.attrsMu.Lock()
	defer c.attrsMu.Unlock()
	c.attrs = attrs
	c.prebuilt = false
	return nil
}

// Store encodes payload as a bundle per the channel's current
// attributes and enqueues it into the bundle store. Increments
// stats.generated on success.
func (c *Channel) Store(ctx context.Context, payload []byte, timeoutMS int) (bpstatus.Status, bpstatus.Flags) {
	ctx, span := telemetry.StartChannelSpan(ctx, telemetry.SpanStore, c.route.String(),
		telemetry.PayloadSize(len(payload)))
	defer span.End()

	a := c.Attributes()

	now, ok := c.osi.SysTime()
	var flags bpstatus.Flags
	if !ok {
		flags |= bpstatus.UnreliableTime
	}

	var exprtime int64
	if a.Lifetime > 0 {
		exprtime = now + a.Lifetime
	}

	b := bpwire.Bundle{
		AdminRecord:     a.AdminRecord,
		RequestsCustody: a.RequestCustody,
		IntegrityCheck:  a.IntegrityCheck,
		ExprTime:        exprtime,
		Payload:         payload,
	}
	encoded := bpwire.Encode(b)

	if a.MaxLength > 0 && uint64(len(encoded)) > a.MaxLength.Uint64() {
		telemetry.SetStatus(ctx, codes.Error, "bundle too large")
		return bpstatus.BundleTooLarge, flags
	}

	sctx, cancel := storage.WithTimeout(ctx, timeoutMS)
	defer cancel()
	if _, err := c.stores.Bundle.Enqueue(sctx, encoded); err != nil {
		logger.Warnf("channel: store %s: enqueue: %v", c.route, err)
		telemetry.RecordError(ctx, err)
		return bpstatus.FailedStore, flags
	}

	c.stats.generated.Add(1)
	c.metrics.IncGenerated(c.route.String())
	telemetry.SetStatus(ctx, codes.Ok, "")
	return bpstatus.Success, flags
}

// Flush relinquishes every non-vacant active-table entry in
// [oldest, current), counting each as lost, then collapses the
// window so oldest == current (CH2).
func (c *Channel) Flush(ctx context.Context) error {
	ctx, span := telemetry.StartChannelSpan(ctx, telemetry.SpanFlush, c.route.String())
	defer span.End()

	c.lock.Lock()
	oldest, current := c.at.Window()
	var toRelinquish []storage.ID
	for cid := oldest; cid < current; cid++ {
		if entry, ok := c.at.Remove(cid); ok {
			toRelinquish = append(toRelinquish, entry.SID)
		}
	}
	c.at.SetOldestCID(current)
	c.lock.Unlock()

	for _, sid := range toRelinquish {
		if err := c.stores.Bundle.Relinquish(ctx, sid); err != nil {
			logger.Warnf("channel: flush %s: relinquish %s: %v", c.route, sid, err)
		}
	}
	if len(toRelinquish) > 0 {
		c.stats.lost.Add(uint64(len(toRelinquish)))
		c.metrics.AddLost(c.route.String(), len(toRelinquish))
	}
	return nil
}

// LatchStats copies the channel's counters, computing active from the
// active-table window and refreshing bundles/payloads/records from the
// storage backends' counts.
func (c *Channel) LatchStats(ctx context.Context) (Stats, error) {
	c.lock.Lock()
	oldest, current := c.at.Window()
	c.lock.Unlock()

	snap := c.stats.snapshot()
	snap.Active = current - oldest

	bundles, err := c.stores.Bundle.Count(ctx)
	if err != nil {
		return snap, fmt.Errorf("channel: latchstats %s: bundle count: %w", c.route, err)
	}
	payloads, err := c.stores.Payload.Count(ctx)
	if err != nil {
		return snap, fmt.Errorf("channel: latchstats %s: payload count: %w", c.route, err)
	}
	records, err := c.stores.ACS.Count(ctx)
	if err != nil {
		return snap, fmt.Errorf("channel: latchstats %s: ACS count: %w", c.route, err)
	}
	snap.Bundles = uint64(bundles)
	snap.Payloads = uint64(payloads)
	snap.Records = uint64(records)

	c.metrics.SetActive(c.route.String(), int(snap.Active))
	return snap, nil
}

// maybeFlushACS asks the custody engine to emit an ACS record if
// max_gaps_per_dacs or dacs_rate thresholds are met, enqueueing the
// result into the ACS store. Returns the number of records emitted.
func (c *Channel) maybeFlushACS(ctx context.Context, force bool) (int, error) {
	a := c.Attributes()
	now, _ := c.osi.SysTime()

	due := force || c.acsEngine.Empty() == false && int(c.acsEngine.Pending()) >= maxOf(a.MaxGapsPerDACS, 1)
	if !due && a.DacsRate > 0 && now-c.lastACSEmit >= a.DacsRate {
		due = true
	}
	if !due || c.acsEngine.Empty() {
		return 0, nil
	}

	maxFills := a.MaxFillsPerDACS
	if maxFills <= 0 {
		maxFills = 16
	}

	records := 0
	for !c.acsEngine.Empty() {
		payload, err := c.acsEngine.Write(nil, maxFills)
		if err != nil {
			return records, fmt.Errorf("channel: flush ACS %s: %w", c.route, err)
		}
		if len(payload) == 0 {
			break
		}
		encoded := bpwire.Encode(bpwire.Bundle{AdminRecord: true, Payload: payload})
		sctx, cancel := storage.WithTimeout(ctx, 0)
		_, err = c.stores.ACS.Enqueue(sctx, encoded)
		cancel()
		if err != nil {
			return records, fmt.Errorf("channel: flush ACS %s: enqueue: %w", c.route, err)
		}
		records++
	}
	c.lastACSEmit = now
	return records, nil
}

func maxOf(v, floor int) int {
	if v <= 0 {
		return floor
	}
	return v
}
