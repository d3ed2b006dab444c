// Package bpstats exports channel statistics as Prometheus metrics.
//
// A Collector wraps the same counters latchstats reports (generated,
// transmitted, retransmitted, delivered, received, acknowledged, lost,
// expired, active) so they are observable over /metrics in addition to
// the in-process latchstats call. Passing a nil *Collector to any
// channel is valid and costs nothing: every method is a no-op on a nil
// receiver.
package bpstats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registry *prometheus.Registry
	enabled  atomic.Bool
)

// InitRegistry installs reg as the registry new Collectors register
// against and marks metrics enabled. Call once at startup before
// opening any channel; calling it again replaces the registry for
// Collectors constructed afterward.
func InitRegistry(reg *prometheus.Registry) {
	registry = reg
	enabled.Store(true)
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the registry passed to InitRegistry, or nil if
// metrics have not been initialized.
func GetRegistry() *prometheus.Registry {
	return registry
}

// Collector is the Prometheus-backed implementation of a channel's
// exported statistics. A nil *Collector is safe to use: every method
// checks for it and does nothing.
type Collector struct {
	generated     *prometheus.CounterVec
	transmitted   *prometheus.CounterVec
	retransmitted *prometheus.CounterVec
	delivered     *prometheus.CounterVec
	received      *prometheus.CounterVec
	acknowledged  *prometheus.CounterVec
	lost          *prometheus.CounterVec
	expired       *prometheus.CounterVec
	active        *prometheus.GaugeVec
}

// NewCollector creates a Collector registered against the registry
// passed to InitRegistry. Returns nil if metrics are not enabled
// (InitRegistry not called), so callers can pass the result straight
// into channel.Open without branching.
func NewCollector() *Collector {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()
	labels := []string{"route"}

	return &Collector{
		generated: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bplib_channel_generated_total",
				Help: "Bundles generated by store, per route",
			},
			labels,
		),
		transmitted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bplib_channel_transmitted_total",
				Help: "Bundles emitted by load, per route",
			},
			labels,
		),
		retransmitted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bplib_channel_retransmitted_total",
				Help: "Bundles re-emitted from the active table, per route",
			},
			labels,
		),
		delivered: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bplib_channel_delivered_total",
				Help: "Payloads delivered by accept, per route",
			},
			labels,
		),
		received: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bplib_channel_received_total",
				Help: "Bundles passed to process, per route",
			},
			labels,
		),
		acknowledged: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bplib_channel_acknowledged_total",
				Help: "Custody IDs acknowledged via an ACS record, per route",
			},
			labels,
		),
		lost: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bplib_channel_lost_total",
				Help: "Bundles dropped by wrap policy or storage failure, per route",
			},
			labels,
		),
		expired: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bplib_channel_expired_total",
				Help: "Bundles discarded past their expiration time, per route",
			},
			labels,
		),
		active: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bplib_channel_active_table_entries",
				Help: "Current occupied entries in the active table, per route",
			},
			labels,
		),
	}
}

func (c *Collector) IncGenerated(route string) {
	if c == nil {
		return
	}
	c.generated.WithLabelValues(route).Inc()
}

func (c *Collector) IncTransmitted(route string) {
	if c == nil {
		return
	}
	c.transmitted.WithLabelValues(route).Inc()
}

func (c *Collector) IncRetransmitted(route string) {
	if c == nil {
		return
	}
	c.retransmitted.WithLabelValues(route).Inc()
}

func (c *Collector) IncDelivered(route string) {
	if c == nil {
		return
	}
	c.delivered.WithLabelValues(route).Inc()
}

func (c *Collector) IncReceived(route string) {
	if c == nil {
		return
	}
	c.received.WithLabelValues(route).Inc()
}

func (c *Collector) AddAcknowledged(route string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.acknowledged.WithLabelValues(route).Add(float64(n))
}

func (c *Collector) IncLost(route string) {
	if c == nil {
		return
	}
	c.lost.WithLabelValues(route).Inc()
}

func (c *Collector) AddLost(route string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.lost.WithLabelValues(route).Add(float64(n))
}

func (c *Collector) IncExpired(route string) {
	if c == nil {
		return
	}
	c.expired.WithLabelValues(route).Inc()
}

func (c *Collector) SetActive(route string, count int) {
	if c == nil {
		return
	}
	c.active.WithLabelValues(route).Set(float64(count))
}
