package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for channel operations.
const (
	AttrRoute       = "bp.route"        // "<local>-><remote>"
	AttrLocal       = "bp.local"        // local EID
	AttrRemote      = "bp.remote"       // remote EID
	AttrCID         = "bp.cid"          // custody ID
	AttrSID         = "bp.sid"          // storage ID, hex
	AttrBundleSize  = "bp.bundle_size"  // bytes
	AttrPayloadSize = "bp.payload_size" // bytes
	AttrCustody     = "bp.custody"      // request_custody attribute in effect
	AttrDisposition = "bp.disposition"  // process() outcome
	AttrStatus      = "bp.status"       // return status code
	AttrRecordCount = "bp.records"      // ACS records flushed
)

// Span names for channel operations.
const (
	SpanStore   = "channel.store"
	SpanLoad    = "channel.load"
	SpanProcess = "channel.process"
	SpanAccept  = "channel.accept"
	SpanFlush   = "channel.flush"
)

// Route returns an attribute identifying a channel's local->remote pair.
func Route(route string) attribute.KeyValue {
	return attribute.String(AttrRoute, route)
}

// Local returns an attribute for a channel's local EID.
func Local(eid string) attribute.KeyValue {
	return attribute.String(AttrLocal, eid)
}

// Remote returns an attribute for a channel's remote EID.
func Remote(eid string) attribute.KeyValue {
	return attribute.String(AttrRemote, eid)
}

// CID returns an attribute for a custody ID.
func CID(cid uint64) attribute.KeyValue {
	return attribute.Int64(AttrCID, int64(cid))
}

// BundleSize returns an attribute for an encoded bundle's size in bytes.
func BundleSize(size int) attribute.KeyValue {
	return attribute.Int(AttrBundleSize, size)
}

// PayloadSize returns an attribute for a payload's size in bytes.
func PayloadSize(size int) attribute.KeyValue {
	return attribute.Int(AttrPayloadSize, size)
}

// Custody returns an attribute for whether custody transfer is requested.
func Custody(requested bool) attribute.KeyValue {
	return attribute.Bool(AttrCustody, requested)
}

// Disposition returns an attribute for a process() outcome.
func Disposition(d string) attribute.KeyValue {
	return attribute.String(AttrDisposition, d)
}

// Status returns an attribute for a return status code.
func Status(status int) attribute.KeyValue {
	return attribute.Int(AttrStatus, status)
}

// RecordCount returns an attribute for the number of ACS records flushed.
func RecordCount(n int) attribute.KeyValue {
	return attribute.Int(AttrRecordCount, n)
}

// StartChannelSpan starts a span for a channel operation, tagging it
// with the channel's route.
func StartChannelSpan(ctx context.Context, spanName, route string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{Route(route)}, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}
