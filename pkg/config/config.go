// Package config loads the integration settings that are not kept in the
// database: protocol timeouts, the MQTT broker, vendor credentials and logging.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML file.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Executor ExecutorConfig `yaml:"executor"`
	Poller   PollerConfig   `yaml:"poller"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Hue      HueConfig      `yaml:"hue"`
	Nest     NestConfig     `yaml:"nest"`
	Ring     RingConfig     `yaml:"ring"`
	Kasa     KasaConfig     `yaml:"kasa"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig bounds calls made by the HTTP device adapter. Addr overrides the
// listen address stored in the active profile.
type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	StatusTimeout  time.Duration `yaml:"status_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// ExecutorConfig bounds a whole command execution.
type ExecutorConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// PollerConfig controls periodic status checks. A zero interval disables polling.
type PollerConfig struct {
	Interval      time.Duration `yaml:"interval"`
	StatusTimeout time.Duration `yaml:"status_timeout"`
	Workers       int           `yaml:"workers"`
	QueueSize     int           `yaml:"queue_size"`
}

// MQTTConfig selects the broker. An empty broker disables the MQTT adapter;
// an http(s) URL selects the HTTP publish bridge.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	BaseTopic      string        `yaml:"base_topic"`
	QoS            int           `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Discovery      bool          `yaml:"discovery"`
}

type HueConfig struct {
	BridgeIP string `yaml:"bridge_ip"`
	Username string `yaml:"username"`
}

type NestConfig struct {
	ProjectID   string `yaml:"project_id"`
	AccessToken string `yaml:"access_token"`
}

type RingConfig struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	RefreshToken string `yaml:"refresh_token"`
}

type KasaConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
}

// LoggingConfig configures zerolog. File enables a rotating log file next to
// the console output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			StatusTimeout:  5 * time.Second,
			CommandTimeout: 30 * time.Second,
		},
		Executor: ExecutorConfig{Timeout: 30 * time.Second},
		Poller: PollerConfig{
			Interval:      time.Minute,
			StatusTimeout: 5 * time.Second,
			Workers:       4,
			QueueSize:     64,
		},
		MQTT: MQTTConfig{
			ClientID:       "devicehub",
			BaseTopic:      "devicehub",
			QoS:            1,
			ConnectTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets secrets stay out of the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEVICEHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("DEVICEHUB_NEST_TOKEN"); v != "" {
		cfg.Nest.AccessToken = v
	}
	if v := os.Getenv("DEVICEHUB_RING_PASSWORD"); v != "" {
		cfg.Ring.Password = v
	}
	if v := os.Getenv("DEVICEHUB_KASA_PASSWORD"); v != "" {
		cfg.Kasa.Password = v
	}
	if v := os.Getenv("DEVICEHUB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.HTTP.StatusTimeout <= 0 {
		errs = append(errs, "http.status_timeout must be positive")
	}
	if c.HTTP.CommandTimeout <= 0 {
		errs = append(errs, "http.command_timeout must be positive")
	}
	if c.Executor.Timeout <= 0 {
		errs = append(errs, "executor.timeout must be positive")
	}
	if c.Poller.Interval < 0 {
		errs = append(errs, "poller.interval must not be negative")
	}
	if c.Poller.Workers < 1 {
		errs = append(errs, "poller.workers must be at least 1")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
