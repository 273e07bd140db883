package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/devicehub/pkg/device"
	"github.com/urmzd/devicehub/pkg/httpclient"
)

var (
	// ErrConnectionFailed is returned when the broker connection cannot be established.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a message cannot be handed to the broker.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid qos")
)

const (
	maxPayloadSize           = 1 << 20
	maxQoS                   = 2
	defaultBaseTopic         = "devicehub"
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250
	defaultRetryInterval     = 10 * time.Second
	discoveryPrefix          = "homeassistant"
)

// MQTTConfig configures the MQTT adapter. A Broker with an http:// or
// https:// scheme is treated as an HTTP publish bridge instead of a broker.
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	BaseTopic      string
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// MQTTClient is the subset of the paho client used by the adapter.
type MQTTClient interface {
	Connect() pahomqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Message is one outbound publish.
type Message struct {
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
	QoS     byte   `json:"qos"`
	Retain  bool   `json:"retain"`
}

// PublishOptions controls delivery of a publish.
type PublishOptions struct {
	QoS    byte
	Retain bool
}

// MessageCallback receives messages for a subscribed topic.
type MessageCallback func(topic string, payload []byte)

type subscription struct {
	qos      byte
	callback MessageCallback
}

// MQTT publishes device commands to a broker. While disconnected, publishes
// are queued without bound and flushed in FIFO order whenever a connection
// is established, including paho's automatic reconnects.
type MQTT struct {
	cfg    MQTTConfig
	client MQTTClient
	bridge *httpclient.Client

	mu        sync.Mutex
	connected bool
	queue     []Message

	// sendMu keeps queued messages ahead of anything published after Connect.
	sendMu sync.Mutex

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	availMu      sync.RWMutex
	availability map[string]bool
}

// NewMQTT creates an adapter for cfg. For a regular broker a paho client is
// created but not connected; call Connect.
func NewMQTT(cfg MQTTConfig, httpClient *http.Client) *MQTT {
	a := newMQTT(cfg)
	if isHTTPURL(a.cfg.Broker) {
		a.bridge = httpclient.New(httpClient, "mqtt-bridge")
		return a
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(a.cfg.Broker)
	opts.SetClientID(a.cfg.ClientID)
	if a.cfg.Username != "" {
		opts.SetUsername(a.cfg.Username)
		opts.SetPassword(a.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(defaultRetryInterval)
	opts.SetConnectTimeout(a.cfg.ConnectTimeout)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		a.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		a.handleDisconnect(err)
	})
	a.client = pahomqtt.NewClient(opts)
	return a
}

// NewMQTTWithClient creates an adapter over an existing client.
func NewMQTTWithClient(cfg MQTTConfig, client MQTTClient) *MQTT {
	a := newMQTT(cfg)
	a.client = client
	return a
}

func newMQTT(cfg MQTTConfig) *MQTT {
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = defaultBaseTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "devicehub-" + uuid.NewString()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	return &MQTT{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
		availability:  make(map[string]bool),
	}
}

// Connect connects to the broker (a no-op for an HTTP bridge) and then
// flushes the offline queue in publish order. If a queued message fails the
// adapter goes back to disconnected with that message at the queue head.
// When the broker is unreachable paho keeps retrying in the background and
// the queue is flushed once it gets through.
func (a *MQTT) Connect(ctx context.Context) error {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	if a.client != nil && !a.client.IsConnected() {
		token := a.client.Connect()
		if !waitToken(ctx, token, a.cfg.ConnectTimeout) {
			return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, a.cfg.ConnectTimeout)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
	}

	return a.establish(ctx)
}

// handleConnect runs on every successful paho (re)connect.
func (a *MQTT) handleConnect() {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	if a.IsConnected() {
		return
	}
	if err := a.establish(context.Background()); err != nil {
		log.Warn().Err(err).Str("broker", a.cfg.Broker).Msg("MQTT reconnected but queue flush failed")
	}
}

// establish marks the adapter connected, restores subscriptions and flushes
// the offline queue. The caller holds sendMu.
func (a *MQTT) establish(ctx context.Context) error {
	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()

	a.restoreSubscriptions()
	log.Info().Str("broker", a.cfg.Broker).Msg("MQTT adapter connected")

	flushed := 0
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			a.mu.Unlock()
			break
		}
		msg := a.queue[0]
		a.queue = a.queue[1:]
		a.mu.Unlock()

		if err := a.send(ctx, msg); err != nil {
			a.mu.Lock()
			a.queue = append([]Message{msg}, a.queue...)
			a.connected = false
			a.mu.Unlock()
			return fmt.Errorf("flush offline queue: %w", err)
		}
		flushed++
	}

	if flushed > 0 {
		log.Info().Int("messages", flushed).Msg("Flushed MQTT offline queue")
	}
	return nil
}

// Disconnect marks the adapter offline and closes the broker connection.
// Later publishes are queued.
func (a *MQTT) Disconnect() {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()

	if a.client != nil {
		a.client.Disconnect(defaultDisconnectQuiesce)
	}
}

// IsConnected reports the adapter's connection state.
func (a *MQTT) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// QueueLen returns the number of messages waiting for a connection.
func (a *MQTT) QueueLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

func (a *MQTT) handleDisconnect(err error) {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	log.Warn().Err(err).Str("broker", a.cfg.Broker).Msg("MQTT connection lost")
}

// Publish sends payload to topic, or queues it while disconnected. Payloads
// that are not []byte or string are JSON encoded.
func (a *MQTT) Publish(ctx context.Context, topic string, payload any, opts PublishOptions) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if opts.QoS > maxQoS {
		return ErrInvalidQoS
	}
	data, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if len(data) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(data), maxPayloadSize)
	}

	msg := Message{Topic: topic, Payload: data, QoS: opts.QoS, Retain: opts.Retain}
	if a.enqueueIfOffline(msg) {
		return nil
	}

	a.sendMu.Lock()
	defer a.sendMu.Unlock()
	// A flush that failed while we waited leaves older messages queued.
	if a.enqueueIfOffline(msg) {
		return nil
	}
	return a.send(ctx, msg)
}

func (a *MQTT) enqueueIfOffline(msg Message) bool {
	a.mu.Lock()
	if a.connected {
		a.mu.Unlock()
		return false
	}
	a.queue = append(a.queue, msg)
	depth := len(a.queue)
	a.mu.Unlock()
	log.Debug().Str("topic", msg.Topic).Int("queued", depth).Msg("MQTT disconnected, message queued")
	return true
}

func (a *MQTT) send(ctx context.Context, msg Message) error {
	if a.bridge != nil {
		_, err := a.bridge.Do(ctx, httpclient.Request{
			Method: http.MethodPost,
			URL:    httpclient.JoinURL(a.cfg.Broker, "/publish"),
			Body: map[string]any{
				"topic":   msg.Topic,
				"payload": string(msg.Payload),
				"qos":     msg.QoS,
				"retain":  msg.Retain,
			},
			BearerToken: a.cfg.Password,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		return nil
	}

	token := a.client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
	if !waitToken(ctx, token, a.cfg.PublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, a.cfg.PublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers callback for topic. Broker delivery only happens over
// a real broker connection; the HTTP bridge has no inbound path.
func (a *MQTT) Subscribe(topic string, qos byte, callback MessageCallback) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	a.subMu.Lock()
	a.subscriptions[topic] = subscription{qos: qos, callback: callback}
	a.subMu.Unlock()

	if a.client != nil && a.IsConnected() {
		token := a.client.Subscribe(topic, qos, wrapCallback(callback))
		if !token.WaitTimeout(a.cfg.PublishTimeout) {
			return fmt.Errorf("mqtt: subscribe %s: timeout", topic)
		}
		return token.Error()
	}
	return nil
}

func (a *MQTT) restoreSubscriptions() {
	if a.client == nil {
		return
	}

	a.subMu.RLock()
	defer a.subMu.RUnlock()

	for topic, sub := range a.subscriptions {
		token := a.client.Subscribe(topic, sub.qos, wrapCallback(sub.callback))
		if !token.WaitTimeout(a.cfg.PublishTimeout) {
			log.Warn().Str("topic", topic).Dur("timeout", a.cfg.PublishTimeout).Msg("MQTT resubscribe timed out")
			continue
		}
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("MQTT resubscribe failed")
		}
	}
}

func wrapCallback(callback MessageCallback) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("topic", msg.Topic()).Msg("MQTT handler panic recovered")
			}
		}()
		callback(msg.Topic(), msg.Payload())
	}
}

// WatchAvailability tracks "online"/"offline" payloads on each device's
// availability topic and uses them in CheckStatus.
func (a *MQTT) WatchAvailability() error {
	return a.Subscribe(a.cfg.BaseTopic+"/+/availability", 0, func(topic string, payload []byte) {
		parts := strings.Split(topic, "/")
		if len(parts) < 3 {
			return
		}
		id := parts[len(parts)-2]
		online := strings.EqualFold(strings.TrimSpace(string(payload)), "online")

		a.availMu.Lock()
		a.availability[id] = online
		a.availMu.Unlock()
	})
}

// DeviceTopic is the root topic of a device: its apiEndpoint when that holds
// a topic, otherwise {baseTopic}/{deviceId}.
func (a *MQTT) DeviceTopic(d *device.Device) string {
	if d.APIEndpoint != "" && !strings.Contains(d.APIEndpoint, "://") {
		return strings.TrimRight(d.APIEndpoint, "/")
	}
	return a.cfg.BaseTopic + "/" + d.ID
}

func (a *MQTT) CheckStatus(ctx context.Context, d *device.Device) (bool, error) {
	if !a.IsConnected() {
		return false, fmt.Errorf("mqtt: %w", device.ErrNotConnected)
	}

	a.availMu.RLock()
	online, known := a.availability[d.ID]
	a.availMu.RUnlock()
	if known {
		return online, nil
	}
	return true, nil
}

// Send publishes the arguments as JSON to {deviceTopic}/{endpoint or command id}.
func (a *MQTT) Send(ctx context.Context, d *device.Device, cmd *device.Command, params map[string]any) (any, error) {
	suffix := strings.Trim(cmd.Endpoint, "/")
	if suffix == "" {
		suffix = cmd.ID
	}
	topic := a.DeviceTopic(d) + "/" + suffix

	if params == nil {
		params = map[string]any{}
	}
	queued := !a.IsConnected()
	if err := a.Publish(ctx, topic, params, PublishOptions{QoS: a.cfg.QoS}); err != nil {
		return nil, err
	}
	return map[string]any{"topic": topic, "queued": queued}, nil
}

// TurnOn publishes {"state":"ON"} to {deviceTopic}/set.
func (a *MQTT) TurnOn(ctx context.Context, deviceTopic string) error {
	return a.Publish(ctx, deviceTopic+"/set", map[string]any{"state": "ON"}, PublishOptions{QoS: a.cfg.QoS})
}

// TurnOff publishes {"state":"OFF"} to {deviceTopic}/set.
func (a *MQTT) TurnOff(ctx context.Context, deviceTopic string) error {
	return a.Publish(ctx, deviceTopic+"/set", map[string]any{"state": "OFF"}, PublishOptions{QoS: a.cfg.QoS})
}

// SetBrightness publishes the level to {deviceTopic}/brightness/set.
func (a *MQTT) SetBrightness(ctx context.Context, deviceTopic string, brightness int) error {
	return a.Publish(ctx, deviceTopic+"/brightness/set", strconv.Itoa(brightness), PublishOptions{QoS: a.cfg.QoS})
}

// SetRGBColor publishes {"r","g","b"} to {deviceTopic}/rgb/set.
func (a *MQTT) SetRGBColor(ctx context.Context, deviceTopic string, r, g, b uint8) error {
	return a.Publish(ctx, deviceTopic+"/rgb/set", map[string]any{"r": r, "g": g, "b": b}, PublishOptions{QoS: a.cfg.QoS})
}

// SetTemperature publishes the setpoint to {deviceTopic}/temperature/set.
func (a *MQTT) SetTemperature(ctx context.Context, deviceTopic string, celsius float64) error {
	return a.Publish(ctx, deviceTopic+"/temperature/set", strconv.FormatFloat(celsius, 'f', -1, 64), PublishOptions{QoS: a.cfg.QoS})
}

// DiscoveryConfig describes an entity announced through Home Assistant MQTT discovery.
type DiscoveryConfig struct {
	Component    string // light, switch, sensor, climate, ...
	DeviceID     string
	Name         string
	StateTopic   string
	CommandTopic string
	Manufacturer string
	Model        string
	Extra        map[string]any
}

// DiscoveryTopic returns homeassistant/{component}/{deviceId}/config.
func DiscoveryTopic(component, deviceID string) string {
	return discoveryPrefix + "/" + component + "/" + deviceID + "/config"
}

// DiscoveryFor derives a discovery config from a registered device whose
// root topic is topic.
func DiscoveryFor(d *device.Device, topic string) DiscoveryConfig {
	component := "switch"
	switch d.Type {
	case device.TypeSmartLight:
		component = "light"
	case device.TypeSensor:
		component = "sensor"
	}
	cfg := DiscoveryConfig{
		Component:    component,
		DeviceID:     d.ID,
		Name:         d.Name,
		StateTopic:   topic + "/state",
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
	}
	if component != "sensor" {
		cfg.CommandTopic = topic + "/set"
	}
	return cfg
}

// PublishDiscovery writes a retained discovery config for the entity.
func (a *MQTT) PublishDiscovery(ctx context.Context, cfg DiscoveryConfig) error {
	if cfg.Component == "" || cfg.DeviceID == "" {
		return device.Validationf("discovery requires a component and device id")
	}

	payload := map[string]any{
		"name":               cfg.Name,
		"unique_id":          cfg.DeviceID,
		"availability_topic": a.cfg.BaseTopic + "/" + cfg.DeviceID + "/availability",
		"device": map[string]any{
			"identifiers":  []string{cfg.DeviceID},
			"name":         cfg.Name,
			"manufacturer": cfg.Manufacturer,
			"model":        cfg.Model,
		},
	}
	if cfg.StateTopic != "" {
		payload["state_topic"] = cfg.StateTopic
	}
	if cfg.CommandTopic != "" {
		payload["command_topic"] = cfg.CommandTopic
	}
	for k, v := range cfg.Extra {
		payload[k] = v
	}

	return a.Publish(ctx, DiscoveryTopic(cfg.Component, cfg.DeviceID), payload, PublishOptions{QoS: a.cfg.QoS, Retain: true})
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte{}, nil
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		return json.Marshal(p)
	}
}

// waitToken waits for a paho token, giving up at timeout or when ctx ends.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
