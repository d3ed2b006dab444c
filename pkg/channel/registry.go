package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/groundstation/bplib/internal/logger"
	"github.com/groundstation/bplib/pkg/eid"
)

// defaultSweepInterval is how often the registry's background worker
// checks every open channel's ACS thresholds.
const defaultSweepInterval = 1 * time.Second

// Registry holds every open channel for a process, keyed by route, and
// drives the background ACS flush sweep that lets dacs_rate-based
// emission happen without a caller ever calling Load.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel

	sweepInterval time.Duration

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewRegistry creates an empty registry. Call Start to begin the
// background ACS sweep; a registry with no channels open is a no-op
// sweep loop.
func NewRegistry(sweepInterval time.Duration) *Registry {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	return &Registry{
		channels:      make(map[string]*Channel),
		sweepInterval: sweepInterval,
	}
}

// RegisterChannel adds an already-opened channel to the registry under
// its route. Returns an error if the route is already registered.
func (r *Registry) RegisterChannel(c *Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := c.Route().String()
	if _, exists := r.channels[key]; exists {
		return fmt.Errorf("channel: registry: route %s already open", key)
	}
	r.channels[key] = c
	return nil
}

// Get returns the channel registered for route, if any.
func (r *Registry) Get(route eid.Route) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.channels[route.String()]
	return c, ok
}

// Close removes route's channel from the registry. It does not close
// the channel's underlying storage handles; the caller owns those.
func (r *Registry) Close(route eid.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, route.String())
}

// Routes lists every currently registered route.
func (r *Registry) Routes() []eid.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routes := make([]eid.Route, 0, len(r.channels))
	for _, c := range r.channels {
		routes = append(routes, c.Route())
	}
	return routes
}

// Start begins the background sweep goroutine. The sweep fires every
// sweepInterval and asks each registered channel to flush its pending
// ACS if thresholds are met — the dacs_rate half of §4.3's emission
// policy, which otherwise only runs inline inside Load and Process.
func (r *Registry) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	group, gctx := errgroup.WithContext(ctx)
	r.group = group

	group.Go(func() error {
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				r.sweep(context.Background())
				return nil
			case <-ticker.C:
				r.sweep(gctx)
			}
		}
	})
}

// Stop cancels the sweep loop and waits for it to exit.
func (r *Registry) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.group != nil {
		return r.group.Wait()
	}
	return nil
}

// sweep asks every registered channel to flush ACS if its thresholds
// are due, logging (but not propagating) individual failures so one
// channel's storage trouble doesn't stop the others from being swept.
func (r *Registry) sweep(ctx context.Context) {
	r.mu.RLock()
	channels := make([]*Channel, 0, len(r.channels))
	for _, c := range r.channels {
		channels = append(channels, c)
	}
	r.mu.RUnlock()

	for _, c := range channels {
		if _, err := c.maybeFlushACS(ctx, false); err != nil {
			logger.Warnf("channel: registry sweep %s: %v", c.Route(), err)
		}
	}
}
