package device

import (
	"context"
	"fmt"
	"sync"
)

// Adapter reaches a device over one transport. Implementations own their
// timeouts and cancellation.
type Adapter interface {
	// CheckStatus reports whether the device answers its health probe.
	CheckStatus(ctx context.Context, d *Device) (bool, error)

	// Send delivers a command with the supplied arguments and returns the
	// device's reply.
	Send(ctx context.Context, d *Device, cmd *Command, params map[string]any) (any, error)
}

// Adapters maps protocols to the adapter that serves them.
type Adapters struct {
	mu       sync.RWMutex
	adapters map[Protocol]Adapter
}

// NewAdapters creates an empty adapter set.
func NewAdapters() *Adapters {
	return &Adapters{adapters: make(map[Protocol]Adapter)}
}

// Register binds an adapter to a protocol, replacing any previous binding.
func (a *Adapters) Register(p Protocol, adapter Adapter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.adapters[p] = adapter
}

// For returns the adapter bound to p.
func (a *Adapters) For(p Protocol) (Adapter, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	adapter, ok := a.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProtocolUnimplemented, p)
	}
	return adapter, nil
}
