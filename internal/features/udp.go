package features

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/drowsiness.monitor/internal/monitoring"
	"github.com/banshee-data/drowsiness.monitor/internal/timeutil"
)

// maxDatagram fits a full mesh record with margin.
const maxDatagram = 64 * 1024

// ListenerStats counts datagrams seen by a UDPListener.
type ListenerStats struct {
	Received uint64 `json:"received"`
	Decoded  uint64 `json:"decoded"`
	Invalid  uint64 `json:"invalid"`
	Dropped  uint64 `json:"dropped"`
}

// UDPListener receives one JSON record per datagram from a landmark
// producer running in another process.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	clock       timeutil.Clock
	conn        *net.UDPConn

	received    atomic.Uint64
	decoded     atomic.Uint64
	invalid     atomic.Uint64
	dropped     atomic.Uint64
	invalidOnce monitoring.Once
}

// UDPListenerConfig contains configuration options for the UDP listener
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Clock       timeutil.Clock
}

// NewUDPListener creates a new UDP listener with the provided configuration
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		clock:       clock,
	}
}

// Listen binds the socket. Start calls it if it has not been called.
func (l *UDPListener) Listen() error {
	if l.conn != nil {
		return nil
	}
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("Warning: Failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}
	l.conn = conn
	return nil
}

// LocalAddr returns the bound address, or nil before Listen.
func (l *UDPListener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Start receives datagrams and forwards decoded inputs to out until ctx is
// cancelled. Inputs are dropped, not queued, when out is full: a stale frame
// is worth less than the next one.
func (l *UDPListener) Start(ctx context.Context, out chan<- Input) error {
	if err := l.Listen(); err != nil {
		return err
	}
	conn := l.conn
	defer conn.Close()

	monitoring.Logf("features: UDP listener started on %s", conn.LocalAddr())
	go l.logStats(ctx)

	buffer := make([]byte, maxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Short deadline so cancellation is observed.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			monitoring.Logf("features: UDP read error: %v", err)
			continue
		}
		l.received.Add(1)

		in, err := Decode(buffer[:n], l.clock)
		if err != nil {
			l.invalid.Add(1)
			l.invalidOnce.Logf("features: invalid datagram from %v: %v", addr, err)
			continue
		}
		l.decoded.Add(1)

		select {
		case out <- in:
		default:
			l.dropped.Add(1)
		}
	}
}

// Stats returns the datagram counters.
func (l *UDPListener) Stats() ListenerStats {
	return ListenerStats{
		Received: l.received.Load(),
		Decoded:  l.decoded.Load(),
		Invalid:  l.invalid.Load(),
		Dropped:  l.dropped.Load(),
	}
}

func (l *UDPListener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := l.Stats()
			monitoring.Logf("features: udp received=%d decoded=%d invalid=%d dropped=%d",
				s.Received, s.Decoded, s.Invalid, s.Dropped)
			l.invalidOnce.Reset()
		}
	}
}
