package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/devicehub/pkg/device"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMessage struct {
	pahomqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	failTopic  string
	failSub    string
	onPublish  func(topic string) error
	published  []Message
	handlers   map[string]pahomqtt.MessageHandler
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]pahomqtt.MessageHandler)}
}

func (c *fakeClient) Connect() pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr == nil {
		c.connected = true
	}
	return newToken(c.connectErr)
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	if c.onPublish != nil {
		if err := c.onPublish(topic); err != nil {
			return newToken(err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if topic == c.failTopic {
		return newToken(errors.New("broker rejected"))
	}
	c.published = append(c.published, Message{Topic: topic, Payload: payload.([]byte), QoS: qos, Retain: retained})
	return newToken(nil)
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if topic == c.failSub {
		return newToken(errors.New("not authorized"))
	}
	c.handlers[topic] = callback
	return newToken(nil)
}

// dropSession mimics a broker that lost the session: paho is connected
// again but holds no subscriptions.
func (c *fakeClient) dropSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.handlers = make(map[string]pahomqtt.MessageHandler)
}

func (c *fakeClient) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[topic]
	return ok
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeClient) deliver(filter, topic, payload string) {
	c.mu.Lock()
	h := c.handlers[filter]
	c.mu.Unlock()
	h(nil, fakeMessage{topic: topic, payload: []byte(payload)})
}

func (c *fakeClient) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.published))
	for _, m := range c.published {
		out = append(out, m.Topic)
	}
	return out
}

func TestMQTTQueuesWhileDisconnected(t *testing.T) {
	client := newFakeClient()
	a := NewMQTTWithClient(MQTTConfig{Broker: "tcp://broker:1883", QoS: 1}, client)
	ctx := context.Background()

	require.NoError(t, a.Publish(ctx, "home/a", "1", PublishOptions{}))
	require.NoError(t, a.Publish(ctx, "home/b", "2", PublishOptions{}))
	require.NoError(t, a.Publish(ctx, "home/c", "3", PublishOptions{}))
	assert.Equal(t, 3, a.QueueLen())
	assert.Empty(t, client.topics())

	require.NoError(t, a.Connect(ctx))
	assert.True(t, a.IsConnected())
	assert.Equal(t, 0, a.QueueLen())
	assert.Equal(t, []string{"home/a", "home/b", "home/c"}, client.topics())

	require.NoError(t, a.Publish(ctx, "home/d", "4", PublishOptions{}))
	assert.Equal(t, []string{"home/a", "home/b", "home/c", "home/d"}, client.topics())
}

func TestMQTTFlushStopsAtFailure(t *testing.T) {
	client := newFakeClient()
	client.failTopic = "home/b"
	a := NewMQTTWithClient(MQTTConfig{Broker: "tcp://broker:1883"}, client)
	ctx := context.Background()

	for _, topic := range []string{"home/a", "home/b", "home/c"} {
		require.NoError(t, a.Publish(ctx, topic, "x", PublishOptions{}))
	}

	err := a.Connect(ctx)
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.False(t, a.IsConnected())
	assert.Equal(t, 2, a.QueueLen())

	client.failTopic = ""
	require.NoError(t, a.Connect(ctx))
	assert.Equal(t, []string{"home/a", "home/b", "home/c"}, client.topics())
}

func TestMQTTReconnectFlushesQueue(t *testing.T) {
	client := newFakeClient()
	a := NewMQTTWithClient(MQTTConfig{Broker: "tcp://broker:1883", BaseTopic: "home"}, client)
	ctx := context.Background()

	require.NoError(t, a.WatchAvailability())
	require.NoError(t, a.Connect(ctx))
	require.NoError(t, a.Publish(ctx, "home/a", "1", PublishOptions{}))

	a.handleDisconnect(errors.New("EOF"))
	assert.False(t, a.IsConnected())
	require.NoError(t, a.Publish(ctx, "home/b", "2", PublishOptions{}))
	require.NoError(t, a.Publish(ctx, "home/c", "3", PublishOptions{}))
	assert.Equal(t, 2, a.QueueLen())

	client.dropSession()
	a.handleConnect()

	assert.True(t, a.IsConnected())
	assert.Equal(t, 0, a.QueueLen())
	assert.Equal(t, []string{"home/a", "home/b", "home/c"}, client.topics())
	assert.True(t, client.subscribed("home/+/availability"))

	d := &device.Device{ID: "plug-1", Protocol: device.ProtocolMQTT}
	client.deliver("home/+/availability", "home/plug-1/availability", "offline")
	online, err := a.CheckStatus(ctx, d)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestMQTTRetryAfterFailedStart(t *testing.T) {
	client := newFakeClient()
	client.connectErr = errors.New("refused")
	a := NewMQTTWithClient(MQTTConfig{Broker: "tcp://broker:1883"}, client)
	ctx := context.Background()

	require.NoError(t, a.Publish(ctx, "home/a", "1", PublishOptions{}))
	assert.ErrorIs(t, a.Connect(ctx), ErrConnectionFailed)

	client.dropSession()
	a.handleConnect()

	assert.True(t, a.IsConnected())
	assert.Equal(t, []string{"home/a"}, client.topics())
}

func TestMQTTHandleConnectIgnoresConnectedAdapter(t *testing.T) {
	client := newFakeClient()
	a := NewMQTTWithClient(MQTTConfig{Broker: "tcp://broker:1883"}, client)
	require.NoError(t, a.Connect(context.Background()))

	a.handleConnect()
	assert.True(t, a.IsConnected())
	assert.Empty(t, client.topics())
}

func TestMQTTPublishDuringFailedFlushStaysBehindQueue(t *testing.T) {
	client := newFakeClient()
	a := NewMQTTWithClient(MQTTConfig{Broker: "tcp://broker:1883"}, client)
	ctx := context.Background()

	require.NoError(t, a.Publish(ctx, "home/a", "1", PublishOptions{}))
	require.NoError(t, a.Publish(ctx, "home/b", "2", PublishOptions{}))

	late := make(chan error, 1)
	client.onPublish = func(topic string) error {
		if topic != "home/a" {
			return nil
		}
		go func() { late <- a.Publish(ctx, "home/z", "3", PublishOptions{}) }()
		time.Sleep(20 * time.Millisecond)
		return errors.New("broker went away")
	}

	assert.ErrorIs(t, a.Connect(ctx), ErrPublishFailed)
	require.NoError(t, <-late)

	a.mu.Lock()
	queued := make([]string, 0, len(a.queue))
	for _, m := range a.queue {
		queued = append(queued, m.Topic)
	}
	a.mu.Unlock()

	assert.Equal(t, []string{"home/a", "home/b", "home/z"}, queued)
	assert.Empty(t, client.topics())
}

func TestMQTTResubscribeFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	client := newFakeClient()
	a := NewMQTTWithClient(MQTTConfig{Broker: "tcp://broker:1883"}, client)
	noop := func(string, []byte) {}
	require.NoError(t, a.Subscribe("home/locked", 0, noop))
	require.NoError(t, a.Subscribe("home/open", 0, noop))

	client.failSub = "home/locked"
	require.NoError(t, a.Connect(context.Background()))

	assert.True(t, client.subscribed("home/open"))
	assert.False(t, client.subscribed("home/locked"))
	assert.Contains(t, buf.String(), "MQTT resubscribe failed")
	assert.Contains(t, buf.String(), "home/locked")
}

func TestNewMQTTRetriesConnection(t *testing.T) {
	a := NewMQTT(MQTTConfig{Broker: "tcp://127.0.0.1:1883"}, nil)
	client, ok := a.client.(pahomqtt.Client)
	require.True(t, ok)

	opts := client.OptionsReader()
	assert.True(t, opts.AutoReconnect())
	assert.True(t, opts.ConnectRetry())
	assert.Equal(t, defaultRetryInterval, opts.ConnectRetryInterval())
}

func TestMQTTConnectFailure(t *testing.T) {
	client := newFakeClient()
	client.connectErr = errors.New("refused")
	a := NewMQTTWithClient(MQTTConfig{Broker: "tcp://broker:1883"}, client)

	err := a.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.False(t, a.IsConnected())
}

func TestMQTTPublishValidation(t *testing.T) {
	a := NewMQTTWithClient(MQTTConfig{}, newFakeClient())
	ctx := context.Background()

	assert.ErrorIs(t, a.Publish(ctx, "", "x", PublishOptions{}), ErrInvalidTopic)
	assert.ErrorIs(t, a.Publish(ctx, "t", "x", PublishOptions{QoS: 3}), ErrInvalidQoS)
	assert.ErrorIs(t, a.Publish(ctx, "t", make([]byte, maxPayloadSize+1), PublishOptions{}), ErrPublishFailed)
}

func TestMQTTSend(t *testing.T) {
	client := newFakeClient()
	a := NewMQTTWithClient(MQTTConfig{BaseTopic: "home", QoS: 1}, client)
	ctx := context.Background()
	d := &device.Device{ID: "plug-1"}

	result, err := a.Send(ctx, d, &device.Command{ID: "power"}, map[string]any{"on": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"topic": "home/plug-1/power", "queued": true}, result)

	require.NoError(t, a.Connect(ctx))
	require.Len(t, client.published, 1)
	assert.JSONEq(t, `{"on":true}`, string(client.published[0].Payload))
	assert.Equal(t, byte(1), client.published[0].QoS)

	custom := &device.Device{ID: "x", APIEndpoint: "zigbee2mqtt/kitchen/"}
	result, err = a.Send(ctx, custom, &device.Command{ID: "on", Endpoint: "/set"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"topic": "zigbee2mqtt/kitchen/set", "queued": false}, result)
}

func TestMQTTCheckStatus(t *testing.T) {
	client := newFakeClient()
	a := NewMQTTWithClient(MQTTConfig{BaseTopic: "home"}, client)
	ctx := context.Background()
	d := &device.Device{ID: "plug-1"}

	_, err := a.CheckStatus(ctx, d)
	assert.ErrorIs(t, err, device.ErrNotConnected)

	require.NoError(t, a.WatchAvailability())
	require.NoError(t, a.Connect(ctx))

	online, err := a.CheckStatus(ctx, d)
	require.NoError(t, err)
	assert.True(t, online, "unknown availability counts as online")

	client.deliver("home/+/availability", "home/plug-1/availability", "offline")
	online, err = a.CheckStatus(ctx, d)
	require.NoError(t, err)
	assert.False(t, online)

	client.deliver("home/+/availability", "home/plug-1/availability", "ONLINE")
	online, err = a.CheckStatus(ctx, d)
	require.NoError(t, err)
	assert.True(t, online)
}

func TestMQTTConvenienceTopics(t *testing.T) {
	client := newFakeClient()
	a := NewMQTTWithClient(MQTTConfig{}, client)
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))

	require.NoError(t, a.TurnOn(ctx, "lamp"))
	require.NoError(t, a.TurnOff(ctx, "lamp"))
	require.NoError(t, a.SetBrightness(ctx, "lamp", 128))
	require.NoError(t, a.SetRGBColor(ctx, "lamp", 255, 0, 10))
	require.NoError(t, a.SetTemperature(ctx, "stat", 21.5))

	assert.Equal(t, []string{"lamp/set", "lamp/set", "lamp/brightness/set", "lamp/rgb/set", "stat/temperature/set"}, client.topics())
	assert.Equal(t, `{"state":"ON"}`, string(client.published[0].Payload))
	assert.Equal(t, "128", string(client.published[2].Payload))
	assert.Equal(t, "21.5", string(client.published[4].Payload))
}

func TestMQTTPublishDiscovery(t *testing.T) {
	client := newFakeClient()
	a := NewMQTTWithClient(MQTTConfig{BaseTopic: "home"}, client)
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))

	d := &device.Device{ID: "lamp-1", Name: "Desk Lamp", Type: device.TypeSmartLight, Manufacturer: "Acme"}
	cfg := DiscoveryFor(d, a.DeviceTopic(d))
	assert.Equal(t, "light", cfg.Component)
	assert.Equal(t, "home/lamp-1/set", cfg.CommandTopic)

	require.NoError(t, a.PublishDiscovery(ctx, cfg))
	require.Len(t, client.published, 1)

	msg := client.published[0]
	assert.Equal(t, "homeassistant/light/lamp-1/config", msg.Topic)
	assert.True(t, msg.Retain)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "home/lamp-1/availability", payload["availability_topic"])
	assert.Equal(t, "home/lamp-1/state", payload["state_topic"])

	sensor := DiscoveryFor(&device.Device{ID: "t1", Type: device.TypeSensor}, "home/t1")
	assert.Equal(t, "sensor", sensor.Component)
	assert.Empty(t, sensor.CommandTopic)

	assert.ErrorIs(t, a.PublishDiscovery(ctx, DiscoveryConfig{}), device.ErrValidation)
}

func TestMQTTBridge(t *testing.T) {
	var (
		mu       sync.Mutex
		received []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/publish", r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		received = append(received, body)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	a := NewMQTT(MQTTConfig{Broker: srv.URL + "/", BaseTopic: "home"}, srv.Client())
	ctx := context.Background()

	require.NoError(t, a.Publish(ctx, "home/queued", "early", PublishOptions{}))
	require.NoError(t, a.Connect(ctx))
	require.NoError(t, a.Publish(ctx, "home/live", map[string]any{"v": 1}, PublishOptions{QoS: 2, Retain: true}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "home/queued", received[0]["topic"])
	assert.Equal(t, "early", received[0]["payload"])
	assert.Equal(t, "home/live", received[1]["topic"])
	assert.Equal(t, `{"v":1}`, received[1]["payload"])
	assert.Equal(t, float64(2), received[1]["qos"])
	assert.Equal(t, true, received[1]["retain"])
}

func TestMQTTBridgeFailureKeepsQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewMQTT(MQTTConfig{Broker: srv.URL}, srv.Client())
	ctx := context.Background()
	require.NoError(t, a.Publish(ctx, "t", "x", PublishOptions{}))

	err := a.Connect(ctx)
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.Equal(t, 1, a.QueueLen())
}
