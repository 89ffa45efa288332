package serialmux

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the actuator firmware's Serial.begin rate.
const DefaultBaudRate = 9600

// DefaultResetDelayMS covers the bootloader run after an Arduino-class board
// resets on port open. Codes written before it ends are lost.
const DefaultResetDelayMS = 2000

const maxResetDelayMS = 10000

// PortOptions describes the serial connection parameters used when opening
// the actuator port.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
	// ResetDelayMS is how long to wait after opening before the first write.
	// Zero means DefaultResetDelayMS; a negative value disables the wait.
	ResetDelayMS int `json:"reset_delay_ms"`
}

// DefaultPortOptions returns 9600 8N1 with the microcontroller reset delay.
func DefaultPortOptions() PortOptions {
	return PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N", ResetDelayMS: DefaultResetDelayMS}
}

// Normalise validates the options and applies defaults for any unset values.
func (o PortOptions) Normalise() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	opts.Parity = parity

	switch {
	case opts.ResetDelayMS == 0:
		opts.ResetDelayMS = DefaultResetDelayMS
	case opts.ResetDelayMS < 0:
		opts.ResetDelayMS = -1
	case opts.ResetDelayMS > maxResetDelayMS:
		return opts, fmt.Errorf("invalid reset delay %dms: at most %dms", opts.ResetDelayMS, maxResetDelayMS)
	}
	return opts, nil
}

// ResetDelay returns the wait after opening the port, zero when disabled or
// when the options are invalid.
func (o PortOptions) ResetDelay() time.Duration {
	n, err := o.Normalise()
	if err != nil || n.ResetDelayMS < 0 {
		return 0
	}
	return time.Duration(n.ResetDelayMS) * time.Millisecond
}

// Equal reports whether two PortOptions describe the same serial configuration.
func (o PortOptions) Equal(other PortOptions) bool {
	a, errA := o.Normalise()
	b, errB := other.Normalise()
	if errA != nil || errB != nil {
		return false
	}
	return a == b
}

// String renders the options in the usual 9600 8N1 shorthand.
func (o PortOptions) String() string {
	n, err := o.Normalise()
	if err != nil {
		return fmt.Sprintf("invalid(%d %d%s%d)", o.BaudRate, o.DataBits, o.Parity, o.StopBits)
	}
	return fmt.Sprintf("%d %d%s%d", n.BaudRate, n.DataBits, n.Parity, n.StopBits)
}

// SerialMode converts the port options into the serial.Mode structure required by
// go.bug.st/serial when opening a port.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalise()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch opts.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}

	return mode, nil
}
