package device

import (
	"context"
	"errors"
	"sync"
)

var errStoreDown = errors.New("store down")

// memStore is an in-memory Store whose writes can be made to fail.
type memStore struct {
	mu      sync.Mutex
	devices map[string]Device
	failing bool
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{devices: map[string]Device{}}
}

func (s *memStore) LoadDevices(context.Context) ([]Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	return out, nil
}

func (s *memStore) SaveDevice(ctx context.Context, d *Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.devices[d.ID] = *d.Clone()
	return nil
}

func (s *memStore) DeleteDevice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	delete(s.devices, id)
	return nil
}

func (s *memStore) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *memStore) stored(id string) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	return d, ok
}

// funcAdapter adapts plain functions to the Adapter interface.
type funcAdapter struct {
	check func(ctx context.Context, d *Device) (bool, error)
	send  func(ctx context.Context, d *Device, cmd *Command, params map[string]any) (any, error)
}

func (a *funcAdapter) CheckStatus(ctx context.Context, d *Device) (bool, error) {
	if a.check == nil {
		return true, nil
	}
	return a.check(ctx, d)
}

func (a *funcAdapter) Send(ctx context.Context, d *Device, cmd *Command, params map[string]any) (any, error) {
	if a.send == nil {
		return map[string]any{"ok": true}, nil
	}
	return a.send(ctx, d, cmd, params)
}

func lampSpec() Spec {
	return Spec{
		Name:        "Desk Lamp",
		Type:        TypeSmartLight,
		Protocol:    ProtocolHTTP,
		APIEndpoint: "http://lamp.local",
		Commands: []Command{
			{ID: "toggle", Name: "Toggle"},
			{
				ID:   "brightness",
				Name: "Set brightness",
				Parameters: []Parameter{
					{Name: "level", Type: ParamNumber, Required: true},
					{Name: "fade", Type: ParamNumber, Default: float64(200)},
				},
			},
		},
	}
}
