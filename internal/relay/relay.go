// Package relay drives the analog radio relay over a serial port
// (spec.md §4.2). It mirrors the teacher's fail-soft philosophy toward
// hardware I/O: webrtc/client.go's pumpRTP retries rather than crashing
// when a downstream write briefly fails, and cmd/servo/main.go falls back
// to a no-op bus when /dev/i2c-1 doesn't exist. The Driver does the same
// for a missing or vanished serial port — it disables itself and keeps
// serving audio.
package relay

import (
	"io"
	"log"
	"sync"

	"go.bug.st/serial"
)

const (
	cmdOn  = "A1"
	cmdOff = "A0"
)

// port is the slice of go.bug.st/serial.Port this driver actually needs;
// narrowing it lets tests substitute a fake without modeling the full
// serial API (modem status bits, DTR/RTS, break signals, …).
type port interface {
	io.Writer
	io.Closer
}

// Driver owns the serial port. All writes are serialized through its
// mutex, matching spec.md §5 ("Serial port: owned by the Relay Driver;
// all writes serialized there").
type Driver struct {
	mu       sync.Mutex
	port     port
	disabled bool
	on       bool
}

// Open attempts to open portName at baud. If it fails, the Driver is
// returned in disabled mode: TurnOn/TurnOff become no-ops and the error is
// logged once, never propagated — spec.md §4.2 requires hardware failure
// to degrade gracefully rather than crash the server.
func Open(portName string, baud int) *Driver {
	d := &Driver{}
	if portName == "" {
		d.disabled = true
		log.Printf("[relay] no RELAY_PORT configured; relay disabled")
		return d
	}
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(portName, mode)
	if err != nil {
		log.Printf("[relay] open %s failed, disabling relay: %v", portName, err)
		d.disabled = true
		return d
	}
	d.port = p
	log.Printf("[relay] opened %s at %d baud", portName, baud)
	return d
}

// newWithPort builds a Driver around an already-open port, used by tests
// to exercise write-failure degradation without a real device.
func newWithPort(p port) *Driver {
	return &Driver{port: p}
}

// Disabled reports whether the driver is operating in no-op mode.
func (d *Driver) Disabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disabled
}

// TurnOn energizes the relay. Called on every floor grant to a web-sourced
// holder (never for the external/VOX holder or the server mic — spec.md §4.2).
func (d *Driver) TurnOn() {
	d.write(cmdOn, true)
}

// TurnOff de-energizes the relay. Called on every release or timeout.
func (d *Driver) TurnOff() {
	d.write(cmdOff, false)
}

// IsOn reports the last commanded state, for the dashboard/diagnostics.
func (d *Driver) IsOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on
}

func (d *Driver) write(token string, state bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disabled {
		return
	}
	d.on = state
	if _, err := d.port.Write([]byte(token)); err != nil {
		log.Printf("[relay] write %q failed, disabling relay for remainder of run: %v", token, err)
		d.disabled = true
		_ = d.port.Close()
		d.port = nil
	}
}

// Close releases the underlying port, if any.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port != nil {
		_ = d.port.Close()
		d.port = nil
	}
}
