// Package app builds the object graph shared by the REST and MCP binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/devicehub/pkg/adapter"
	"github.com/urmzd/devicehub/pkg/config"
	"github.com/urmzd/devicehub/pkg/db"
	"github.com/urmzd/devicehub/pkg/device"
	"github.com/urmzd/devicehub/pkg/device/schema"
	"github.com/urmzd/devicehub/pkg/store"
	"github.com/urmzd/devicehub/pkg/vendors/hue"
	"github.com/urmzd/devicehub/pkg/vendors/kasa"
	"github.com/urmzd/devicehub/pkg/vendors/nest"
	"github.com/urmzd/devicehub/pkg/vendors/ring"
	"github.com/urmzd/devicehub/pkg/worker"
)

// Storage backends.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

// Options selects where devices live and how the app is configured.
type Options struct {
	Store      string // StoreSQLite (default) or StoreFile
	DBPath     string
	Profile    string // activated (and created if missing) before loading; empty keeps the active one
	StorePath  string
	Config     *config.Config
	HTTPClient *http.Client
}

// App holds every long-lived component.
type App struct {
	Config    *config.Config
	DB        *db.DB     // nil with the file store
	Profile   *db.Config // nil with the file store
	Service   *device.Service
	Adapters  *device.Adapters
	Validator *schema.Validator
	Pool      *worker.Pool

	MQTT *adapter.MQTT // nil when no broker is configured
	Hue  *hue.Client
	Nest *nest.Client
	Ring *ring.Client
	Kasa *kasa.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Build opens storage, loads the registry and wires adapters, executor,
// poller and vendor clients. Nothing touches the network until Start.
func Build(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	a := &App{Config: cfg}

	st, err := a.openStore(ctx, opts)
	if err != nil {
		return nil, err
	}

	events := device.NewHub()
	registry := device.NewRegistry(st, events)
	n := registry.Load(ctx)
	log.Info().Int("devices", n).Msg("Device registry loaded")

	a.Adapters = device.NewAdapters()
	httpAdapter := adapter.NewHTTP(httpClient, cfg.HTTP.StatusTimeout, cfg.HTTP.CommandTimeout)
	a.Adapters.Register(device.ProtocolHTTP, httpAdapter)
	a.Adapters.Register(device.ProtocolWiFi, httpAdapter)
	for _, p := range []device.Protocol{device.ProtocolWebSocket, device.ProtocolSerial, device.ProtocolBluetooth} {
		a.Adapters.Register(p, adapter.NewUnimplemented(p))
	}

	if cfg.MQTT.Broker != "" {
		a.MQTT = adapter.NewMQTT(adapter.MQTTConfig{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientID,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			BaseTopic:      cfg.MQTT.BaseTopic,
			QoS:            byte(cfg.MQTT.QoS),
			ConnectTimeout: cfg.MQTT.ConnectTimeout,
		}, httpClient)
		a.Adapters.Register(device.ProtocolMQTT, a.MQTT)
	} else {
		a.Adapters.Register(device.ProtocolMQTT, adapter.NewUnimplemented(device.ProtocolMQTT))
	}

	a.Validator = schema.NewValidator()
	executor := device.NewExecutor(registry, a.Adapters,
		device.WithExecutionTimeout(cfg.Executor.Timeout),
		device.WithParameterValidator(a.Validator),
		device.WithEvents(events),
	)
	poller := device.NewPoller(registry, a.Adapters, cfg.Poller.StatusTimeout)
	a.Pool = worker.NewPool(cfg.Poller.Workers, cfg.Poller.QueueSize, cfg.Poller.StatusTimeout+time.Second)
	a.Service = device.NewService(registry, executor, poller, events, a.Pool)

	a.Hue = hue.NewClient(httpClient, cfg.Hue.BridgeIP, cfg.Hue.Username)
	a.Nest = nest.NewClient(httpClient, "", cfg.Nest.ProjectID, cfg.Nest.AccessToken)
	a.Ring = ring.NewClient(httpClient)
	if cfg.Ring.RefreshToken != "" {
		// Expired on purpose so the first call refreshes it.
		a.Ring.SetToken(&ring.Token{RefreshToken: cfg.Ring.RefreshToken, ExpiresAt: time.Unix(1, 0)})
	}
	a.Kasa = kasa.NewClient(httpClient, "")
	if cfg.Kasa.Token != "" {
		a.Kasa.SetToken(cfg.Kasa.Token)
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context, opts Options) (device.Store, error) {
	switch opts.Store {
	case StoreFile:
		fs := store.NewFileStore(opts.StorePath)
		log.Info().Str("path", fs.Path()).Msg("Using file device store")
		return fs, nil
	case "", StoreSQLite:
	default:
		return nil, fmt.Errorf("unknown store %q", opts.Store)
	}

	database, err := db.Open(opts.DBPath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", database.Path()).Msg("Database opened")

	if err := database.Migrate(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	if err := database.Bootstrap(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to bootstrap database: %w", err)
	}

	if opts.Profile != "" {
		if _, err := database.UseProfile(ctx, opts.Profile); err != nil {
			_ = database.Close()
			return nil, err
		}
	}

	profile, err := database.ActiveConfig(ctx)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to load active profile: %w", err)
	}
	log.Info().
		Str("profile", profile.Profile.Name).
		Str("timezone", profile.Profile.Timezone).
		Msg("Profile loaded")

	a.DB = database
	a.Profile = profile
	return database.Devices(profile.Profile.ID), nil
}

// ListenAddress is the REST address: the config override, else the address
// stored in the active profile.
func (a *App) ListenAddress() string {
	if a.Config.HTTP.Addr != "" {
		return a.Config.HTTP.Addr
	}
	if a.Profile != nil {
		return a.Profile.APIAddress()
	}
	return db.DefaultAPIAddress
}

// Start connects the MQTT adapter, signs in to vendor clouds in the
// background and starts periodic polling. It returns immediately.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	if a.MQTT != nil {
		a.startMQTT(ctx)
	}

	if a.Config.Ring.Username != "" && a.Config.Ring.Password != "" && a.Config.Ring.RefreshToken == "" {
		a.Pool.Submit("ring-login", func(ctx context.Context) error {
			_, err := a.Ring.Login(ctx, a.Config.Ring.Username, a.Config.Ring.Password, "")
			if errors.Is(err, ring.ErrTwoFactorRequired) {
				log.Warn().Msg("Ring requires a two-factor code; configure ring.refresh_token instead")
				return nil
			}
			return err
		})
	}
	if a.Config.Kasa.Username != "" && a.Config.Kasa.Password != "" && a.Config.Kasa.Token == "" {
		a.Pool.Submit("kasa-login", func(ctx context.Context) error {
			_, err := a.Kasa.Login(ctx, a.Config.Kasa.Username, a.Config.Kasa.Password)
			return err
		})
	}

	if interval := a.Config.Poller.Interval; interval > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.Service.Poller.Run(ctx, interval)
		}()
	}
}

func (a *App) startMQTT(ctx context.Context) {
	if err := a.MQTT.WatchAvailability(); err != nil {
		log.Warn().Err(err).Msg("Failed to watch MQTT availability")
	}

	connectCtx, cancel := context.WithTimeout(ctx, a.Config.MQTT.ConnectTimeout)
	defer cancel()
	if err := a.MQTT.Connect(connectCtx); err != nil {
		// paho keeps retrying; discovery configs below wait in the offline queue.
		log.Warn().Err(err).Str("broker", a.Config.MQTT.Broker).Msg("MQTT broker unavailable, publishes will be queued")
	} else {
		log.Info().Str("broker", a.Config.MQTT.Broker).Msg("MQTT connected")
	}

	if !a.Config.MQTT.Discovery {
		return
	}
	for _, d := range a.Service.ListDevices() {
		if d.Protocol != device.ProtocolMQTT {
			continue
		}
		if err := a.MQTT.PublishDiscovery(ctx, adapter.DiscoveryFor(&d, a.MQTT.DeviceTopic(&d))); err != nil {
			log.Warn().Err(err).Str("device_id", d.ID).Msg("Failed to publish discovery config")
		}
	}
}

// Close stops polling, drains background jobs and releases connections.
func (a *App) Close(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	var errs []error
	if err := a.Pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("worker pool: %w", err))
	}
	if a.MQTT != nil {
		a.MQTT.Disconnect()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}
