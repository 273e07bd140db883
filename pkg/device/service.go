package device

import (
	"context"

	"github.com/rs/zerolog/log"
)

// TaskRunner runs named background work and reports failures itself.
type TaskRunner interface {
	Submit(name string, task func(ctx context.Context) error) bool
}

// Service is the entry point used by the REST and agent-tool layers.
type Service struct {
	Registry *Registry
	Executor *Executor
	Poller   *Poller
	Events   *Hub

	tasks TaskRunner
}

// NewService wires the core components together. tasks may be nil, in which
// case the status check after AddDevice is skipped.
func NewService(registry *Registry, executor *Executor, poller *Poller, events *Hub, tasks TaskRunner) *Service {
	return &Service{
		Registry: registry,
		Executor: executor,
		Poller:   poller,
		Events:   events,
		tasks:    tasks,
	}
}

// AddDevice registers a device and schedules its first status check.
func (s *Service) AddDevice(ctx context.Context, spec Spec) (*Device, error) {
	d, err := s.Registry.Add(ctx, spec)
	if err != nil {
		return nil, err
	}

	if s.tasks != nil {
		id := d.ID
		if !s.tasks.Submit("initial-status-check", func(ctx context.Context) error {
			s.Poller.CheckOne(ctx, id)
			return nil
		}) {
			log.Warn().Str("device_id", id).Msg("Initial status check not scheduled")
		}
	}
	return d, nil
}

// GetDevice returns a device by id.
func (s *Service) GetDevice(id string) (*Device, error) {
	return s.Registry.Get(id)
}

// ListDevices returns all devices.
func (s *Service) ListDevices() []Device {
	return s.Registry.List()
}

// UpdateDevice shallow-merges patch into a device.
func (s *Service) UpdateDevice(ctx context.Context, id string, patch Patch) (*Device, error) {
	return s.Registry.Update(ctx, id, patch)
}

// RemoveDevice deletes a device and its execution history.
func (s *Service) RemoveDevice(ctx context.Context, id string) (bool, error) {
	removed, err := s.Registry.Remove(ctx, id)
	if removed {
		s.Executor.Forget(id)
	}
	return removed, err
}

// ExecuteCommand runs a command against a device.
func (s *Service) ExecuteCommand(ctx context.Context, deviceID, commandID string, params map[string]any) (*Execution, error) {
	return s.Executor.Execute(ctx, deviceID, commandID, params)
}

// CheckStatus probes one device.
func (s *Service) CheckStatus(ctx context.Context, deviceID string) (*Device, error) {
	if _, err := s.Registry.Get(deviceID); err != nil {
		return nil, err
	}
	s.Poller.CheckOne(ctx, deviceID)
	return s.Registry.Get(deviceID)
}

// CheckAll probes every device.
func (s *Service) CheckAll(ctx context.Context) map[string]Status {
	return s.Poller.CheckAll(ctx)
}
