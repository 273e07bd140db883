package adapter

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
)

// SerialPorts lists the serial ports present on this host, for registering
// serial-protocol devices (Arduino, ESP32).
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
