// Package mcp exposes the device service as Model Context Protocol tools.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urmzd/devicehub/pkg/adapter"
	"github.com/urmzd/devicehub/pkg/device"
	"github.com/urmzd/devicehub/pkg/vendors/hue"
	"github.com/urmzd/devicehub/pkg/vendors/kasa"
)

// Publisher is the MQTT adapter surface used by mqtt_publish and get_health.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any, opts adapter.PublishOptions) error
	IsConnected() bool
	QueueLen() int
}

// HueClient controls lights through a paired Hue bridge.
type HueClient interface {
	Discover(ctx context.Context) ([]hue.Bridge, error)
	SetLightState(ctx context.Context, lightID string, state hue.LightState) error
	SetGroupAction(ctx context.Context, groupID string, state hue.LightState) error
}

// NestClient controls Nest thermostats.
type NestClient interface {
	SetMode(ctx context.Context, name, mode string) error
	SetEco(ctx context.Context, name string, on bool) error
	SetTemperature(ctx context.Context, name string, celsius float64) error
}

// RingClient controls Ring sirens.
type RingClient interface {
	SetSiren(ctx context.Context, deviceID string, on bool, duration int) error
}

// KasaClient switches Kasa plugs through the cloud.
type KasaClient interface {
	DeviceList(ctx context.Context) ([]kasa.Device, error)
	SetRelayState(ctx context.Context, d kasa.Device, on bool) error
}

// Dependencies are the components exposed as tools. Vendor tools are only
// registered when their client is set.
type Dependencies struct {
	Service *device.Service
	MQTT    Publisher
	Hue     HueClient
	Nest    NestClient
	Ring    RingClient
	Kasa    KasaClient
}

// Server wraps the MCP server with device control tools
type Server struct {
	mcpServer *server.MCPServer
	deps      Dependencies
	tools     []string
}

// NewServer creates a new MCP server for device control
func NewServer(deps Dependencies, version string) *Server {
	s := &Server{deps: deps}

	s.mcpServer = server.NewMCPServer(
		"devicehub",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	s.registerTools()

	return s
}

// Tools returns the names of the registered tools in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
	s.tools = append(s.tools, tool.Name)
}

// ServeStdio serves MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
