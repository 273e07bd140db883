package mcp

import "github.com/mark3labs/mcp-go/mcp"

func (s *Server) registerTools() {
	s.addTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check the health of the device hub and its MQTT broker connection"),
		),
		s.handleGetHealth,
	)

	s.addTool(
		mcp.NewTool("list_devices",
			mcp.WithDescription("List all registered devices with their status and declared commands"),
		),
		s.handleListDevices,
	)

	s.addTool(
		mcp.NewTool("get_device",
			mcp.WithDescription("Get a registered device by id"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Device id")),
		),
		s.handleGetDevice,
	)

	s.addTool(
		mcp.NewTool("add_device",
			mcp.WithDescription("Register a device. Its status is checked in the background right after."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
			mcp.WithString("protocol", mcp.Required(),
				mcp.Description("Transport used to reach the device"),
				mcp.Enum("http", "mqtt", "websocket", "serial", "bluetooth", "wifi"),
			),
			mcp.WithString("type",
				mcp.Description("Device type (default custom)"),
				mcp.Enum("3d_printer", "smart_light", "smart_plug", "camera", "sensor", "thermostat",
					"robot", "arduino", "esp32", "raspberry_pi", "custom"),
			),
			mcp.WithString("id", mcp.Description("Explicit device id (generated when omitted)")),
			mcp.WithString("apiEndpoint", mcp.Description("Base URL for http/wifi devices, topic root for mqtt devices")),
			mcp.WithString("apiKey", mcp.Description("Bearer token sent to the device")),
			mcp.WithString("manufacturer", mcp.Description("Manufacturer")),
			mcp.WithString("model", mcp.Description("Model")),
			mcp.WithString("ipAddress", mcp.Description("IP address")),
			mcp.WithString("macAddress", mcp.Description("MAC address")),
			mcp.WithArray("capabilities", mcp.Description("Capability tags"), mcp.WithStringItems()),
			mcp.WithArray("commands",
				mcp.Description("Commands as objects with id, name, description, parameters[{name,type,required,default}], endpoint and method"),
			),
		),
		s.handleAddDevice,
	)

	s.addTool(
		mcp.NewTool("update_device",
			mcp.WithDescription("Change fields of a registered device. Only the supplied fields change."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Device id")),
			mcp.WithString("name", mcp.Description("New display name")),
			mcp.WithString("apiEndpoint", mcp.Description("New endpoint")),
			mcp.WithString("apiKey", mcp.Description("New bearer token")),
			mcp.WithString("manufacturer", mcp.Description("New manufacturer")),
			mcp.WithString("model", mcp.Description("New model")),
			mcp.WithArray("capabilities", mcp.Description("Replacement capability tags"), mcp.WithStringItems()),
			mcp.WithObject("currentState", mcp.Description("Replacement current state")),
			mcp.WithArray("commands", mcp.Description("Replacement command list")),
		),
		s.handleUpdateDevice,
	)

	s.addTool(
		mcp.NewTool("remove_device",
			mcp.WithDescription("Remove a device and its execution history"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Device id")),
		),
		s.handleRemoveDevice,
	)

	s.addTool(
		mcp.NewTool("execute_command",
			mcp.WithDescription("Run one of a device's declared commands. Arguments are checked against the command's parameters."),
			mcp.WithString("device_id", mcp.Required(), mcp.Description("Device id")),
			mcp.WithString("command_id", mcp.Required(), mcp.Description("Command id")),
			mcp.WithObject("parameters", mcp.Description("Command arguments")),
		),
		s.handleExecuteCommand,
	)

	s.addTool(
		mcp.NewTool("check_device_status",
			mcp.WithDescription("Probe a device now and report whether it is online"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Device id")),
		),
		s.handleCheckDeviceStatus,
	)

	s.addTool(
		mcp.NewTool("check_all_devices",
			mcp.WithDescription("Probe every registered device concurrently"),
		),
		s.handleCheckAllDevices,
	)

	s.addTool(
		mcp.NewTool("list_executions",
			mcp.WithDescription("List the commands run against a device since the hub started"),
			mcp.WithString("device_id", mcp.Required(), mcp.Description("Device id")),
		),
		s.handleListExecutions,
	)

	if s.deps.MQTT != nil {
		s.addTool(
			mcp.NewTool("mqtt_publish",
				mcp.WithDescription("Publish a message to the MQTT broker. Messages are queued while the broker is unreachable."),
				mcp.WithString("topic", mcp.Required(), mcp.Description("Topic")),
				mcp.WithString("payload", mcp.Required(), mcp.Description("Message payload (JSON text or plain string)")),
				mcp.WithNumber("qos", mcp.Description("Quality of service 0-2 (default 0)"), mcp.Min(0), mcp.Max(2)),
				mcp.WithBoolean("retain", mcp.Description("Retain the message on the broker")),
			),
			s.handleMQTTPublish,
		)
	}

	if s.deps.Hue != nil {
		s.addTool(
			mcp.NewTool("hue_discover_bridges",
				mcp.WithDescription("Find Philips Hue bridges on the local network"),
			),
			s.handleHueDiscoverBridges,
		)
		s.addTool(
			mcp.NewTool("hue_set_light",
				mcp.WithDescription("Change a Hue light or group. Unset fields are left unchanged."),
				mcp.WithString("light_id", mcp.Required(), mcp.Description("Light id, or group id when group is true")),
				mcp.WithBoolean("group", mcp.Description("Treat light_id as a group id")),
				mcp.WithBoolean("on", mcp.Description("Power state")),
				mcp.WithNumber("brightness", mcp.Description("Brightness percent 0-100"), mcp.Min(0), mcp.Max(100)),
				mcp.WithString("color", mcp.Description("Colour as #rrggbb")),
				mcp.WithNumber("kelvin", mcp.Description("Colour temperature in Kelvin (2000-6500)")),
			),
			s.handleHueSetLight,
		)
	}

	if s.deps.Nest != nil {
		s.addTool(
			mcp.NewTool("nest_set_mode",
				mcp.WithDescription("Set a Nest thermostat mode"),
				mcp.WithString("device_name", mcp.Required(), mcp.Description("Device resource name or id")),
				mcp.WithString("mode", mcp.Required(),
					mcp.Description("Thermostat mode; ECO turns manual eco on, ECO_OFF turns it off"),
					mcp.Enum("HEAT", "COOL", "HEATCOOL", "OFF", "ECO", "ECO_OFF"),
				),
			),
			s.handleNestSetMode,
		)
		s.addTool(
			mcp.NewTool("nest_set_temperature",
				mcp.WithDescription("Set a Nest thermostat setpoint for its current mode"),
				mcp.WithString("device_name", mcp.Required(), mcp.Description("Device resource name or id")),
				mcp.WithNumber("celsius", mcp.Required(), mcp.Description("Setpoint in Celsius (9-32)")),
			),
			s.handleNestSetTemperature,
		)
	}

	if s.deps.Ring != nil {
		s.addTool(
			mcp.NewTool("ring_set_siren",
				mcp.WithDescription("Sound or silence the siren of a Ring camera"),
				mcp.WithString("device_id", mcp.Required(), mcp.Description("Ring device id")),
				mcp.WithBoolean("on", mcp.Required(), mcp.Description("Siren on or off")),
				mcp.WithNumber("duration", mcp.Description("Seconds to sound the siren (default 30)")),
			),
			s.handleRingSetSiren,
		)
	}

	if s.deps.Kasa != nil {
		s.addTool(
			mcp.NewTool("kasa_set_power",
				mcp.WithDescription("Switch a Kasa smart plug on or off"),
				mcp.WithString("device", mcp.Required(), mcp.Description("Kasa device id or alias")),
				mcp.WithBoolean("on", mcp.Required(), mcp.Description("Power state")),
			),
			s.handleKasaSetPower,
		)
	}
}
