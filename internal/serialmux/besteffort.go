package serialmux

import (
	"sync/atomic"

	"github.com/banshee-data/drowsiness.monitor/internal/monitoring"
)

// BestEffort wraps a Transmitter so that delivery failures never reach the
// caller. The first failure of an outage and the following recovery are each
// logged once.
type BestEffort struct {
	tx      Transmitter
	outage  monitoring.Once
	sent    atomic.Uint64
	failed  atomic.Uint64
	lastErr atomic.Value // string
}

// DeliveryStats counts attempted deliveries.
type DeliveryStats struct {
	Sent      uint64 `json:"sent"`
	Failed    uint64 `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

// NewBestEffort wraps tx. A nil tx behaves like a DisabledSerialMux.
func NewBestEffort(tx Transmitter) *BestEffort {
	if tx == nil {
		tx = NewDisabledSerialMux()
	}
	return &BestEffort{tx: tx}
}

// Send forwards code and always returns nil.
func (b *BestEffort) Send(code byte) error {
	if err := b.tx.Send(code); err != nil {
		b.failed.Add(1)
		b.lastErr.Store(err.Error())
		b.outage.Logf("actuator unavailable, continuing without it: %v", err)
		return nil
	}
	b.sent.Add(1)
	if b.outage.Reset() {
		monitoring.Logf("actuator link recovered")
	}
	return nil
}

// Close closes the wrapped transmitter.
func (b *BestEffort) Close() error {
	return b.tx.Close()
}

// Stats returns the delivery counters.
func (b *BestEffort) Stats() DeliveryStats {
	s := DeliveryStats{Sent: b.sent.Load(), Failed: b.failed.Load()}
	if v, ok := b.lastErr.Load().(string); ok {
		s.LastError = v
	}
	return s
}
