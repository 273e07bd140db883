package adapter

import (
	"context"
	"fmt"

	"github.com/urmzd/devicehub/pkg/device"
)

// Unimplemented is a placeholder adapter for protocols that have no working
// transport yet (websocket, serial, bluetooth). Every call fails with
// device.ErrProtocolUnimplemented.
type Unimplemented struct {
	protocol device.Protocol
}

// NewUnimplemented creates a placeholder adapter for protocol.
func NewUnimplemented(protocol device.Protocol) *Unimplemented {
	return &Unimplemented{protocol: protocol}
}

func (a *Unimplemented) CheckStatus(ctx context.Context, d *device.Device) (bool, error) {
	return false, fmt.Errorf("%w: %s", device.ErrProtocolUnimplemented, a.protocol)
}

func (a *Unimplemented) Send(ctx context.Context, d *device.Device, cmd *device.Command, params map[string]any) (any, error) {
	return nil, fmt.Errorf("%w: %s", device.ErrProtocolUnimplemented, a.protocol)
}
