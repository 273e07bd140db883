// Package docs holds the registered OpenAPI document served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/devices": {
            "get": {
                "tags": [
                    "devices"
                ],
                "summary": "List all devices",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.ListDevicesResponse"
                        }
                    }
                },
                "description": "Returns every registered device in registration order"
            },
            "post": {
                "tags": [
                    "devices"
                ],
                "summary": "Register a device",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/types.DeviceResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid device",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Device id already in use",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Persistence error",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                },
                "description": "Registers a device and schedules its first status check",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Device to register",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/device.Spec"
                        }
                    }
                ]
            }
        },
        "/devices/{id}": {
            "get": {
                "tags": [
                    "devices"
                ],
                "summary": "Get device details",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.DeviceResponse"
                        }
                    },
                    "404": {
                        "description": "Device not found",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Device id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            },
            "patch": {
                "tags": [
                    "devices"
                ],
                "summary": "Update a device",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.DeviceResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Device not found",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Persistence error",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                },
                "description": "Shallow-merges the supplied fields into the device. The id and creation time never change.",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "Device id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Fields to change",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/device.Patch"
                        }
                    }
                ]
            },
            "delete": {
                "tags": [
                    "devices"
                ],
                "summary": "Remove a device",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.RemoveDeviceResponse"
                        }
                    },
                    "404": {
                        "description": "Device not found",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Persistence error",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                },
                "description": "Deletes the device and its execution history",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Device id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/devices/{id}/commands/{commandId}": {
            "post": {
                "tags": [
                    "commands"
                ],
                "summary": "Execute a device command",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.ExecutionResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid arguments",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Device or command not found",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "501": {
                        "description": "Protocol not implemented",
                        "schema": {
                            "$ref": "#/definitions/types.ExecutionResponse"
                        }
                    },
                    "502": {
                        "description": "Device error",
                        "schema": {
                            "$ref": "#/definitions/types.ExecutionResponse"
                        }
                    },
                    "504": {
                        "description": "Device timed out",
                        "schema": {
                            "$ref": "#/definitions/types.ExecutionResponse"
                        }
                    }
                },
                "description": "Runs a declared command through the device's protocol adapter. A failed\ninvocation still returns the recorded execution.",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "Device id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Command id",
                        "name": "commandId",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Command arguments",
                        "name": "request",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/types.ExecuteCommandRequest"
                        }
                    }
                ]
            }
        },
        "/devices/{id}/executions": {
            "get": {
                "tags": [
                    "commands"
                ],
                "summary": "List executions for a device",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.ListExecutionsResponse"
                        }
                    },
                    "404": {
                        "description": "Device not found",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                },
                "description": "Returns the executions recorded for the device since startup, oldest first",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Device id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/devices/{id}/status": {
            "post": {
                "tags": [
                    "status"
                ],
                "summary": "Probe a device",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.DeviceStatusResponse"
                        }
                    },
                    "404": {
                        "description": "Device not found",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                },
                "description": "Runs the protocol health probe now and returns the resulting status",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Device id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/events": {
            "get": {
                "tags": [
                    "events"
                ],
                "summary": "Subscribe to device events",
                "produces": [
                    "text/event-stream"
                ],
                "responses": {
                    "200": {
                        "description": "SSE event stream",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "description": "Server-Sent Events stream of device_added, device_updated, device_removed,\nstatus_changed and execution_updated events"
            }
        },
        "/executions/{id}": {
            "get": {
                "tags": [
                    "commands"
                ],
                "summary": "Get an execution",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.ExecutionResponse"
                        }
                    },
                    "404": {
                        "description": "Execution not found",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Execution id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/health": {
            "get": {
                "tags": [
                    "health"
                ],
                "summary": "Health check",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Service is healthy",
                        "schema": {
                            "$ref": "#/definitions/types.HealthResponse"
                        }
                    },
                    "503": {
                        "description": "MQTT broker disconnected",
                        "schema": {
                            "$ref": "#/definitions/types.HealthResponse"
                        }
                    }
                },
                "description": "Returns the health of the API and the MQTT broker connection"
            }
        },
        "/hue/bridges": {
            "get": {
                "tags": [
                    "integrations"
                ],
                "summary": "Discover Hue bridges",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.HueBridgesResponse"
                        }
                    },
                    "502": {
                        "description": "Discovery service error",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "504": {
                        "description": "Discovery timed out",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/hue/pair": {
            "post": {
                "tags": [
                    "integrations"
                ],
                "summary": "Pair with a Hue bridge",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.HuePairResponse"
                        }
                    },
                    "400": {
                        "description": "No bridge configured",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "428": {
                        "description": "Link button not pressed",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "502": {
                        "description": "Bridge error",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                },
                "description": "Press the bridge link button first. Returns the application username.",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Bridge address and device type",
                        "name": "request",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/types.HuePairRequest"
                        }
                    }
                ]
            }
        },
        "/serial/ports": {
            "get": {
                "tags": [
                    "integrations"
                ],
                "summary": "List serial ports",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.SerialPortsResponse"
                        }
                    },
                    "500": {
                        "description": "Port enumeration failed",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                },
                "description": "Lists serial ports on the host, for registering serial-protocol boards"
            }
        },
        "/status": {
            "post": {
                "tags": [
                    "status"
                ],
                "summary": "Probe every device",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.CheckAllResponse"
                        }
                    }
                },
                "description": "Probes all devices concurrently. One failing probe never affects the others."
            }
        }
    },
    "definitions": {
        "device.Type": {
            "type": "string",
            "enum": [
                "3d_printer",
                "smart_light",
                "smart_plug",
                "camera",
                "sensor",
                "thermostat",
                "robot",
                "arduino",
                "esp32",
                "raspberry_pi",
                "custom"
            ]
        },
        "device.Protocol": {
            "type": "string",
            "enum": [
                "http",
                "mqtt",
                "websocket",
                "serial",
                "bluetooth",
                "wifi"
            ]
        },
        "device.Status": {
            "type": "string",
            "enum": [
                "online",
                "offline",
                "error"
            ]
        },
        "device.ExecutionStatus": {
            "type": "string",
            "enum": [
                "pending",
                "executing",
                "completed",
                "failed"
            ]
        },
        "device.Parameter": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "string",
                        "number",
                        "boolean",
                        "array",
                        "object"
                    ]
                },
                "required": {
                    "type": "boolean"
                },
                "default": {}
            }
        },
        "device.Command": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "parameters": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/device.Parameter"
                    }
                },
                "endpoint": {
                    "type": "string"
                },
                "method": {
                    "type": "string"
                }
            }
        },
        "device.Device": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "type": {
                    "$ref": "#/definitions/device.Type"
                },
                "manufacturer": {
                    "type": "string"
                },
                "model": {
                    "type": "string"
                },
                "ipAddress": {
                    "type": "string"
                },
                "macAddress": {
                    "type": "string"
                },
                "protocol": {
                    "$ref": "#/definitions/device.Protocol"
                },
                "apiEndpoint": {
                    "type": "string"
                },
                "apiKey": {
                    "type": "string"
                },
                "capabilities": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "currentState": {
                    "type": "object",
                    "additionalProperties": true
                },
                "commands": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/device.Command"
                    }
                },
                "id": {
                    "type": "string"
                },
                "status": {
                    "$ref": "#/definitions/device.Status"
                },
                "lastSeen": {
                    "type": "string"
                },
                "createdAt": {
                    "type": "string"
                }
            }
        },
        "device.Spec": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "type": {
                    "$ref": "#/definitions/device.Type"
                },
                "manufacturer": {
                    "type": "string"
                },
                "model": {
                    "type": "string"
                },
                "ipAddress": {
                    "type": "string"
                },
                "macAddress": {
                    "type": "string"
                },
                "protocol": {
                    "$ref": "#/definitions/device.Protocol"
                },
                "apiEndpoint": {
                    "type": "string"
                },
                "apiKey": {
                    "type": "string"
                },
                "capabilities": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "currentState": {
                    "type": "object",
                    "additionalProperties": true
                },
                "commands": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/device.Command"
                    }
                },
                "id": {
                    "type": "string"
                }
            }
        },
        "device.Patch": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "type": {
                    "$ref": "#/definitions/device.Type"
                },
                "manufacturer": {
                    "type": "string"
                },
                "model": {
                    "type": "string"
                },
                "ipAddress": {
                    "type": "string"
                },
                "macAddress": {
                    "type": "string"
                },
                "protocol": {
                    "$ref": "#/definitions/device.Protocol"
                },
                "apiEndpoint": {
                    "type": "string"
                },
                "apiKey": {
                    "type": "string"
                },
                "capabilities": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "currentState": {
                    "type": "object",
                    "additionalProperties": true
                },
                "commands": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/device.Command"
                    }
                }
            }
        },
        "device.Execution": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "deviceId": {
                    "type": "string"
                },
                "commandId": {
                    "type": "string"
                },
                "parameters": {
                    "type": "object",
                    "additionalProperties": true
                },
                "timestamp": {
                    "type": "string"
                },
                "status": {
                    "$ref": "#/definitions/device.ExecutionStatus"
                },
                "result": {},
                "error": {
                    "type": "string"
                },
                "history": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/device.ExecutionStatus"
                    }
                }
            }
        },
        "hue.Bridge": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "internalipaddress": {
                    "type": "string"
                },
                "port": {
                    "type": "integer"
                }
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string"
                },
                "devices": {
                    "type": "integer"
                },
                "mqtt": {
                    "type": "string"
                },
                "mqtt_queued": {
                    "type": "integer"
                },
                "timestamp": {
                    "type": "string"
                }
            }
        },
        "types.ListDevicesResponse": {
            "type": "object",
            "properties": {
                "devices": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/device.Device"
                    }
                },
                "count": {
                    "type": "integer"
                }
            }
        },
        "types.DeviceResponse": {
            "type": "object",
            "properties": {
                "device": {
                    "$ref": "#/definitions/device.Device"
                }
            }
        },
        "types.RemoveDeviceResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "removed": {
                    "type": "boolean"
                }
            }
        },
        "types.ExecuteCommandRequest": {
            "type": "object",
            "properties": {
                "parameters": {
                    "type": "object",
                    "additionalProperties": true
                }
            }
        },
        "types.ExecutionResponse": {
            "type": "object",
            "properties": {
                "execution": {
                    "$ref": "#/definitions/device.Execution"
                },
                "error": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "types.ListExecutionsResponse": {
            "type": "object",
            "properties": {
                "executions": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/device.Execution"
                    }
                },
                "count": {
                    "type": "integer"
                }
            }
        },
        "types.DeviceStatusResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "status": {
                    "$ref": "#/definitions/device.Status"
                },
                "lastSeen": {
                    "type": "string"
                }
            }
        },
        "types.CheckAllResponse": {
            "type": "object",
            "properties": {
                "statuses": {
                    "type": "object",
                    "additionalProperties": {
                        "$ref": "#/definitions/device.Status"
                    }
                },
                "count": {
                    "type": "integer"
                }
            }
        },
        "types.SerialPortsResponse": {
            "type": "object",
            "properties": {
                "ports": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        },
        "types.HueBridgesResponse": {
            "type": "object",
            "properties": {
                "bridges": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/hue.Bridge"
                    }
                }
            }
        },
        "types.HuePairRequest": {
            "type": "object",
            "properties": {
                "bridge_ip": {
                    "type": "string"
                },
                "device_type": {
                    "type": "string"
                }
            }
        },
        "types.HuePairResponse": {
            "type": "object",
            "properties": {
                "username": {
                    "type": "string"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "DeviceHub API",
	Description:      "REST API for registering and controlling IoT devices",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
