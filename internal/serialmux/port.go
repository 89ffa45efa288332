package serialmux

import (
	"io"

	"go.bug.st/serial"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// Transmitter delivers single-byte severity codes to the actuator.
type Transmitter interface {
	Send(code byte) error
	Close() error
}

// PortOpener opens a serial port at path with the given mode. Tests replace
// it to avoid touching real devices.
type PortOpener func(path string, mode *serial.Mode) (SerialPorter, error)

// OpenSerialPort opens a real device through go.bug.st/serial.
func OpenSerialPort(path string, mode *serial.Mode) (SerialPorter, error) {
	return serial.Open(path, mode)
}
