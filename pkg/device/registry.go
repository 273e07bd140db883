package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store persists device records keyed by id.
type Store interface {
	// LoadDevices returns every stored device. Unreadable records are skipped.
	LoadDevices(ctx context.Context) ([]Device, error)

	// SaveDevice inserts or replaces one device atomically.
	SaveDevice(ctx context.Context, d *Device) error

	// DeleteDevice removes a device. Deleting an absent id is not an error.
	DeleteDevice(ctx context.Context, id string) error
}

// Registry is the in-memory source of truth for devices. Every mutation is
// persisted before the call returns; a failed persist undoes the mutation.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
	store   Store
	events  *Hub
	now     func() time.Time
}

// NewRegistry creates an empty registry backed by store. events may be nil.
func NewRegistry(store Store, events *Hub) *Registry {
	return &Registry{
		devices: make(map[string]*Device),
		store:   store,
		events:  events,
		now:     time.Now,
	}
}

// Load replaces the in-memory devices with the store contents. A store that
// cannot be read leaves the registry empty; the failure is only logged.
func (r *Registry) Load(ctx context.Context) int {
	devices, err := r.store.LoadDevices(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load devices, starting with an empty registry")
		devices = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i].Clone()
		if d.ID == "" {
			continue
		}
		normalize(d)
		r.devices[d.ID] = d
	}
	return len(r.devices)
}

// Add registers a new device. The id is generated unless spec carries one.
// New devices start offline with no lastSeen.
func (r *Registry) Add(ctx context.Context, spec Spec) (*Device, error) {
	d := &Device{
		ID:           spec.ID,
		Name:         spec.Name,
		Type:         spec.Type,
		Manufacturer: spec.Manufacturer,
		Model:        spec.Model,
		IPAddress:    spec.IPAddress,
		MACAddress:   spec.MACAddress,
		Protocol:     spec.Protocol,
		APIEndpoint:  spec.APIEndpoint,
		APIKey:       spec.APIKey,
		Status:       StatusOffline,
		Capabilities: spec.Capabilities,
		CurrentState: spec.CurrentState,
		Commands:     spec.Commands,
		CreatedAt:    r.now().UTC(),
	}
	if d.Type == "" {
		d.Type = TypeCustom
	}
	normalize(d)
	if err := validate(d); err != nil {
		return nil, err
	}
	d = d.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if d.ID == "" {
		for {
			d.ID = uuid.NewString()
			if _, taken := r.devices[d.ID]; !taken {
				break
			}
		}
	} else if _, taken := r.devices[d.ID]; taken {
		return nil, fmt.Errorf("device %q: %w", d.ID, ErrAlreadyExists)
	}

	r.devices[d.ID] = d
	if err := r.store.SaveDevice(ctx, d); err != nil {
		delete(r.devices, d.ID)
		return nil, fmt.Errorf("failed to persist device: %w", err)
	}

	log.Info().Str("device_id", d.ID).Str("name", d.Name).Str("protocol", string(d.Protocol)).Msg("Device added")
	r.events.Publish(Event{Type: EventDeviceAdded, DeviceID: d.ID, Device: d.Clone()})
	return d.Clone(), nil
}

// Get returns a copy of the device with the given id.
func (r *Registry) Get(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %q: %w", id, ErrNotFound)
	}
	return d.Clone(), nil
}

// List returns copies of all devices ordered by creation time.
func (r *Registry) List() []Device {
	r.mu.RLock()
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Update shallow-merges patch into the device and persists it.
func (r *Registry) Update(ctx context.Context, id string, patch Patch) (*Device, error) {
	return r.mutate(ctx, id, EventDeviceUpdated, func(d *Device) error {
		applyPatch(d, patch)
		normalize(d)
		return validate(d)
	})
}

// Remove deletes a device. It reports false when the id is unknown.
func (r *Registry) Remove(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return false, nil
	}

	delete(r.devices, id)
	if err := r.store.DeleteDevice(ctx, id); err != nil {
		r.devices[id] = d
		return false, fmt.Errorf("failed to persist device removal: %w", err)
	}

	log.Info().Str("device_id", id).Msg("Device removed")
	r.events.Publish(Event{Type: EventDeviceRemoved, DeviceID: id})
	return true, nil
}

// SetStatus records a reachability result. lastSeen is only advanced when
// seen is non-nil.
func (r *Registry) SetStatus(ctx context.Context, id string, status Status, seen *time.Time) (*Device, error) {
	var changed bool
	d, err := r.mutate(ctx, id, "", func(d *Device) error {
		changed = d.Status != status
		d.Status = status
		if seen != nil {
			t := seen.UTC()
			d.LastSeen = &t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		r.events.Publish(Event{Type: EventStatusChanged, DeviceID: id, Device: d.Clone()})
	}
	return d, nil
}

// mutate applies fn to a working copy and commits it only if fn and the
// persist both succeed.
func (r *Registry) mutate(ctx context.Context, id, eventType string, fn func(d *Device) error) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %q: %w", id, ErrNotFound)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt

	if err := r.store.SaveDevice(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to persist device: %w", err)
	}
	r.devices[id] = next

	if eventType != "" {
		r.events.Publish(Event{Type: eventType, DeviceID: id, Device: next.Clone()})
	}
	return next.Clone(), nil
}

func applyPatch(d *Device, p Patch) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Type != nil {
		d.Type = *p.Type
	}
	if p.Manufacturer != nil {
		d.Manufacturer = *p.Manufacturer
	}
	if p.Model != nil {
		d.Model = *p.Model
	}
	if p.IPAddress != nil {
		d.IPAddress = *p.IPAddress
	}
	if p.MACAddress != nil {
		d.MACAddress = *p.MACAddress
	}
	if p.Protocol != nil {
		d.Protocol = *p.Protocol
	}
	if p.APIEndpoint != nil {
		d.APIEndpoint = *p.APIEndpoint
	}
	if p.APIKey != nil {
		d.APIKey = *p.APIKey
	}
	if p.Capabilities != nil {
		d.Capabilities = *p.Capabilities
	}
	if p.CurrentState != nil {
		d.CurrentState = *p.CurrentState
	}
	if p.Commands != nil {
		d.Commands = *p.Commands
	}
}

func normalize(d *Device) {
	if d.Status == "" {
		d.Status = StatusOffline
	}
	if d.Capabilities == nil {
		d.Capabilities = []string{}
	}
	if d.CurrentState == nil {
		d.CurrentState = map[string]any{}
	}
	if d.Commands == nil {
		d.Commands = []Command{}
	}
	for i := range d.Commands {
		if d.Commands[i].Parameters == nil {
			d.Commands[i].Parameters = []Parameter{}
		}
	}
}

func validate(d *Device) error {
	if d.Name == "" {
		return Validationf("device name is required")
	}
	if !d.Type.Valid() {
		return Validationf("unknown device type %q", d.Type)
	}
	if !d.Protocol.Valid() {
		return Validationf("unknown protocol %q", d.Protocol)
	}

	seen := make(map[string]bool, len(d.Commands))
	for _, cmd := range d.Commands {
		if cmd.ID == "" {
			return Validationf("command id is required")
		}
		if seen[cmd.ID] {
			return Validationf("duplicate command id %q", cmd.ID)
		}
		seen[cmd.ID] = true

		switch cmd.Method {
		case "", "GET", "POST", "PUT", "DELETE":
		default:
			return Validationf("command %q: unsupported method %q", cmd.ID, cmd.Method)
		}
		for _, p := range cmd.Parameters {
			if p.Name == "" {
				return Validationf("command %q: parameter name is required", cmd.ID)
			}
			switch p.Type {
			case ParamString, ParamNumber, ParamBoolean, ParamArray, ParamObject:
			default:
				return Validationf("command %q: parameter %q has unknown type %q", cmd.ID, p.Name, p.Type)
			}
		}
	}
	return nil
}
