package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// DefaultAPIAddress is used when the active profile has no stored address.
const DefaultAPIAddress = "0.0.0.0:8080"

var ErrNoActiveProfile = errors.New("no active profile found")

// Config is the runtime settings stored for the active profile.
type Config struct {
	Profile   *Profile
	APIServer *APIServer
}

// APIAddress returns the REST listen address.
func (c *Config) APIAddress() string {
	if c.APIServer == nil {
		return DefaultAPIAddress
	}
	return c.APIServer.Address()
}

// ActiveConfig loads the settings of the active profile.
func (db *DB) ActiveConfig(ctx context.Context) (*Config, error) {
	profile, err := db.Profiles().GetActive(ctx)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, ErrNoActiveProfile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active profile: %w", err)
	}

	apiServer, err := db.APIServers().Get(ctx, profile.ID)
	if err != nil && !errors.Is(err, ErrAPIServerNotFound) {
		return nil, fmt.Errorf("failed to get api server config: %w", err)
	}

	return &Config{Profile: profile, APIServer: apiServer}, nil
}

// UseProfile makes the named profile active, creating it with a default
// listen address when it does not exist yet.
func (db *DB) UseProfile(ctx context.Context, name string) (*Profile, error) {
	profiles := db.Profiles()
	p, err := profiles.GetByName(ctx, name)
	if errors.Is(err, ErrProfileNotFound) {
		p = &Profile{Name: name, Timezone: detectTimezone()}
		if err := profiles.Create(ctx, p); err != nil {
			return nil, err
		}
		host, port := splitDefaultAddress()
		if err := db.APIServers().Put(ctx, &APIServer{ProfileID: p.ID, Host: host, Port: port}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up profile %q: %w", name, err)
	}

	if err := profiles.SetActive(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("failed to activate profile %q: %w", name, err)
	}
	p.IsActive = true
	return p, nil
}

func splitDefaultAddress() (string, int) {
	host, port, _ := net.SplitHostPort(DefaultAPIAddress)
	n, _ := strconv.Atoi(port)
	return host, n
}
