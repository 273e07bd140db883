package device

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultStatusTimeout bounds one device health check.
const DefaultStatusTimeout = 5 * time.Second

// Poller determines device reachability and writes it back to the registry.
// Check failures never reach the caller; they mark the device offline.
type Poller struct {
	registry *Registry
	adapters *Adapters
	timeout  time.Duration
	now      func() time.Time
}

// NewPoller creates a poller. A non-positive timeout selects DefaultStatusTimeout.
func NewPoller(registry *Registry, adapters *Adapters, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = DefaultStatusTimeout
	}
	return &Poller{
		registry: registry,
		adapters: adapters,
		timeout:  timeout,
		now:      time.Now,
	}
}

// CheckOne probes one device and returns the status it was left in. An
// unknown id yields StatusOffline and changes nothing.
func (p *Poller) CheckOne(ctx context.Context, deviceID string) Status {
	d, err := p.registry.Get(deviceID)
	if err != nil {
		log.Debug().Err(err).Str("device_id", deviceID).Msg("Skipping status check")
		return StatusOffline
	}

	online := p.probe(ctx, d)

	status := StatusOffline
	var seen *time.Time
	if online {
		status = StatusOnline
		now := p.now()
		seen = &now
	}

	// The check context may already be spent; persisting must still happen.
	if _, err := p.registry.SetStatus(context.WithoutCancel(ctx), deviceID, status, seen); err != nil {
		log.Warn().Err(err).Str("device_id", deviceID).Msg("Failed to record device status")
	}
	return status
}

// CheckAll probes every registered device concurrently and waits for all of
// them. Each probe has its own timeout, so one hung device delays nothing else.
func (p *Poller) CheckAll(ctx context.Context) map[string]Status {
	devices := p.registry.List()
	results := make([]Status, len(devices))

	var g errgroup.Group
	for i := range devices {
		i := i
		g.Go(func() error {
			results[i] = p.CheckOne(ctx, devices[i].ID)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Status, len(devices))
	for i, d := range devices {
		out[d.ID] = results[i]
	}
	return out
}

// Run calls CheckAll every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("Status poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Status poller stopped")
			return
		case <-ticker.C:
			results := p.CheckAll(ctx)
			online := 0
			for _, s := range results {
				if s == StatusOnline {
					online++
				}
			}
			log.Debug().Int("devices", len(results)).Int("online", online).Msg("Status poll complete")
		}
	}
}

// probe runs the adapter health check, converting errors and panics into offline.
func (p *Poller) probe(ctx context.Context, d *Device) (online bool) {
	logger := log.With().Str("device_id", d.ID).Str("protocol", string(d.Protocol)).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Status check panicked")
			online = false
		}
	}()

	adapter, err := p.adapters.For(d.Protocol)
	if err != nil {
		logger.Debug().Err(err).Msg("No adapter for status check")
		return false
	}

	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ok, err := adapter.CheckStatus(checkCtx, d)
	if err != nil {
		logger.Debug().Err(err).Msg("Status check failed")
		return false
	}
	return ok
}
