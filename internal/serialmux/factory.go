package serialmux

import (
	"fmt"
	"time"

	"github.com/banshee-data/drowsiness.monitor/internal/monitoring"
)

// settle waits out the board reset after open. Tests replace it.
var settle = time.Sleep

// NewRealSerialMux opens the actuator port at path and wraps it in a SerialMux.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	return OpenSerialMux(OpenSerialPort, path, opts)
}

// OpenSerialMux is NewRealSerialMux with an injectable opener. After a
// successful open it blocks for the options' reset delay.
func OpenSerialMux(open PortOpener, path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if d := opts.ResetDelay(); d > 0 {
		monitoring.Logf("serialmux: waiting %v for %s to reset", d, path)
		settle(d)
	}

	return NewSerialMux(port), nil
}
