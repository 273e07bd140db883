package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns unique ids and starts offline", func(t *testing.T) {
		r := NewRegistry(newMemStore(), nil)

		seen := map[string]bool{}
		for i := 0; i < 50; i++ {
			d, err := r.Add(ctx, lampSpec())
			require.NoError(t, err)
			assert.NotEmpty(t, d.ID)
			assert.False(t, seen[d.ID], "duplicate id %s", d.ID)
			seen[d.ID] = true

			assert.Equal(t, StatusOffline, d.Status)
			assert.Nil(t, d.LastSeen)
			assert.False(t, d.CreatedAt.IsZero())
		}
		assert.Equal(t, 50, r.Len())
	})

	t.Run("honours an explicit id once", func(t *testing.T) {
		r := NewRegistry(newMemStore(), nil)
		spec := lampSpec()
		spec.ID = "lamp-1"

		d, err := r.Add(ctx, spec)
		require.NoError(t, err)
		assert.Equal(t, "lamp-1", d.ID)

		_, err = r.Add(ctx, spec)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("defaults the type to custom", func(t *testing.T) {
		r := NewRegistry(newMemStore(), nil)
		d, err := r.Add(ctx, Spec{Name: "Thing", Protocol: ProtocolMQTT})
		require.NoError(t, err)
		assert.Equal(t, TypeCustom, d.Type)
		assert.NotNil(t, d.Commands)
		assert.NotNil(t, d.CurrentState)
	})

	t.Run("rejects invalid specs", func(t *testing.T) {
		r := NewRegistry(newMemStore(), nil)

		cases := map[string]Spec{
			"missing name":      {Type: TypeSensor, Protocol: ProtocolHTTP},
			"unknown type":      {Name: "x", Type: "toaster", Protocol: ProtocolHTTP},
			"unknown protocol":  {Name: "x", Type: TypeSensor, Protocol: "zigbee"},
			"duplicate command": {Name: "x", Type: TypeSensor, Protocol: ProtocolHTTP, Commands: []Command{{ID: "a"}, {ID: "a"}}},
			"bad method":        {Name: "x", Type: TypeSensor, Protocol: ProtocolHTTP, Commands: []Command{{ID: "a", Method: "PATCH"}}},
			"bad param type":    {Name: "x", Type: TypeSensor, Protocol: ProtocolHTTP, Commands: []Command{{ID: "a", Parameters: []Parameter{{Name: "p", Type: "date"}}}}},
		}
		for name, spec := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := r.Add(ctx, spec)
				assert.ErrorIs(t, err, ErrValidation)
			})
		}
		assert.Equal(t, 0, r.Len())
	})

	t.Run("does not keep a device that failed to persist", func(t *testing.T) {
		store := newMemStore()
		store.setFailing(true)
		r := NewRegistry(store, nil)

		_, err := r.Add(ctx, lampSpec())
		assert.ErrorIs(t, err, errStoreDown)
		assert.Equal(t, 0, r.Len())
	})
}

func TestRegistry_GetReturnsCopies(t *testing.T) {
	r := NewRegistry(newMemStore(), nil)
	d, err := r.Add(context.Background(), lampSpec())
	require.NoError(t, err)

	got, err := r.Get(d.ID)
	require.NoError(t, err)
	got.Name = "mutated"
	got.Commands[0].ID = "mutated"

	again, err := r.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", again.Name)
	assert.Equal(t, "toggle", again.Commands[0].ID)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Update(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	r := NewRegistry(store, nil)

	d, err := r.Add(ctx, lampSpec())
	require.NoError(t, err)

	name := "Reading Lamp"
	updated, err := r.Update(ctx, d.ID, Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Reading Lamp", updated.Name)
	assert.Equal(t, ProtocolHTTP, updated.Protocol)
	assert.Equal(t, d.CreatedAt, updated.CreatedAt)

	stored, ok := store.stored(d.ID)
	require.True(t, ok)
	assert.Equal(t, "Reading Lamp", stored.Name)

	t.Run("rolls back when persisting fails", func(t *testing.T) {
		store.setFailing(true)
		defer store.setFailing(false)

		other := "Broken"
		_, err := r.Update(ctx, d.ID, Patch{Name: &other})
		assert.ErrorIs(t, err, errStoreDown)

		got, err := r.Get(d.ID)
		require.NoError(t, err)
		assert.Equal(t, "Reading Lamp", got.Name)
	})

	t.Run("validates the merged device", func(t *testing.T) {
		bad := Protocol("carrier-pigeon")
		_, err := r.Update(ctx, d.ID, Patch{Protocol: &bad})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := r.Update(ctx, "missing", Patch{Name: &name})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRegistry_Remove(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	r := NewRegistry(store, nil)

	d, err := r.Add(ctx, lampSpec())
	require.NoError(t, err)

	store.setFailing(true)
	removed, err := r.Remove(ctx, d.ID)
	assert.Error(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, r.Len())
	store.setFailing(false)

	removed, err = r.Remove(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.Remove(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, ok := store.stored(d.ID)
	assert.False(t, ok)
}

func TestRegistry_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("restores stored devices", func(t *testing.T) {
		store := newMemStore()
		first := NewRegistry(store, nil)
		_, err := first.Add(ctx, lampSpec())
		require.NoError(t, err)

		second := NewRegistry(store, nil)
		assert.Equal(t, 1, second.Load(ctx))
		assert.Len(t, second.List(), 1)
	})

	t.Run("treats an unreadable store as empty", func(t *testing.T) {
		store := newMemStore()
		store.loadErr = errStoreDown
		r := NewRegistry(store, nil)
		assert.Equal(t, 0, r.Load(ctx))
	})
}

func TestRegistry_ListOrder(t *testing.T) {
	r := NewRegistry(newMemStore(), nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(-tick) * time.Minute)
	}

	a, _ := r.Add(context.Background(), Spec{Name: "a", Protocol: ProtocolHTTP})
	b, _ := r.Add(context.Background(), Spec{Name: "b", Protocol: ProtocolHTTP})

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestRegistry_SetStatus(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	events := hub.Subscribe()
	defer hub.Unsubscribe(events)

	r := NewRegistry(newMemStore(), hub)
	d, err := r.Add(ctx, lampSpec())
	require.NoError(t, err)
	assert.Equal(t, EventDeviceAdded, (<-events).Type)

	seen := time.Now()
	got, err := r.SetStatus(ctx, d.ID, StatusOnline, &seen)
	require.NoError(t, err)
	assert.Equal(t, StatusOnline, got.Status)
	require.NotNil(t, got.LastSeen)
	assert.True(t, got.LastSeen.Equal(seen))

	evt := <-events
	assert.Equal(t, EventStatusChanged, evt.Type)
	assert.Equal(t, d.ID, evt.DeviceID)

	got, err = r.SetStatus(ctx, d.ID, StatusOffline, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, got.Status)
	require.NotNil(t, got.LastSeen, "offline keeps the last sighting")
	assert.True(t, got.LastSeen.Equal(seen))
}
