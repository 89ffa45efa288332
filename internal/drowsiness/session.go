package drowsiness

import (
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/drowsiness.monitor/internal/monitoring"
)

// ErrNoCandidate is returned when calibration is requested before any face
// frame has supplied a baseline candidate.
var ErrNoCandidate = errors.New("no baseline candidate available")

// Transmitter delivers one severity code to the actuator. Implementations are
// best effort; the session never lets a delivery error escape a frame.
type Transmitter interface {
	Send(code byte) error
}

type nopTransmitter struct{}

func (nopTransmitter) Send(byte) error { return nil }

// Config holds the startup-time constants of a session.
type Config struct {
	Thresholds      Thresholds
	Bounds          Bounds
	HeartbeatFrames int
	DefaultBaseline float64
}

// DefaultConfig returns the stock session configuration.
func DefaultConfig() Config {
	return Config{
		Thresholds:      DefaultThresholds(),
		Bounds:          DefaultBounds(),
		HeartbeatFrames: DefaultHeartbeatFrames,
		DefaultBaseline: DefaultBaseline,
	}
}

// Frame is one frame of input. FaceDetected false means the extractor lost
// the face; Sample is ignored apart from its timestamp.
type Frame struct {
	Sample       FeatureSample
	FaceDetected bool
}

// FrameReport describes everything the session did for one frame.
type FrameReport struct {
	Seq          uint64
	At           time.Time
	FaceDetected bool
	Sample       FeatureSample
	Signal       AnomalySignal

	Level         Level
	PreviousLevel Level
	Elapsed       time.Duration

	Decision  Decision
	Delivered bool

	Calibration Calibration
	// Recalibrated is set when a queued calibration was applied at the start
	// of this frame.
	Recalibrated bool
}

// Transitioned reports whether the level changed on this frame.
func (r FrameReport) Transitioned() bool {
	return r.Level != r.PreviousLevel
}

// Snapshot is an immutable view of the session published after each frame.
type Snapshot struct {
	Seq          uint64        `json:"seq"`
	At           time.Time     `json:"at"`
	Level        Level         `json:"level"`
	Status       string        `json:"status"`
	Code         string        `json:"code"`
	Cause        Cause         `json:"cause"`
	Elapsed      time.Duration `json:"elapsed_ns"`
	FaceDetected bool          `json:"face_detected"`
	EyeOpenness  float64       `json:"eye_openness"`
	Deviation    float64       `json:"deviation"`
	Baseline     float64       `json:"baseline"`
	Calibrated   bool          `json:"calibrated"`
	LastSent     string        `json:"last_sent,omitempty"`
	Sent         uint64        `json:"sent"`
	Delivered    uint64        `json:"delivered"`
}

// Session owns all per-driver state: calibration, escalation and link
// discipline. ProcessFrame must be called from a single goroutine; the only
// call that may interleave from elsewhere is RequestCalibration, which is
// queued and applied at the next frame boundary.
type Session struct {
	cfg  Config
	tx   Transmitter
	esc  *Escalation
	link *LinkScheduler

	calibration  Calibration
	candidate    float64
	hasCandidate bool
	seq          uint64
	sent         uint64
	delivered    uint64

	pendingMu sync.Mutex
	pending   bool

	snapMu sync.RWMutex
	snap   Snapshot

	noFace monitoring.Once
}

// NewSession creates a session. A nil transmitter is replaced by a no-op one.
func NewSession(cfg Config, tx Transmitter) *Session {
	if tx == nil {
		tx = nopTransmitter{}
	}
	s := &Session{
		cfg:         cfg,
		tx:          tx,
		esc:         NewEscalation(cfg.Bounds),
		link:        NewLinkScheduler(cfg.HeartbeatFrames),
		calibration: NewCalibration(cfg.DefaultBaseline),
	}
	s.snap = Snapshot{
		Level:    Safe,
		Status:   Safe.Label(),
		Code:     string(Safe.Code()),
		Cause:    CauseNone,
		Baseline: s.calibration.Baseline,
	}
	return s
}

// RequestCalibration queues a calibration command. It is safe to call from
// any goroutine.
func (s *Session) RequestCalibration() {
	s.pendingMu.Lock()
	s.pending = true
	s.pendingMu.Unlock()
}

func (s *Session) takePending() bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	p := s.pending
	s.pending = false
	return p
}

// Calibrate anchors the baseline to the most recent face frame's candidate.
// It must only be called from the frame-processing goroutine, between frames.
// Without a candidate the calibration is left unchanged.
func (s *Session) Calibrate() error {
	if !s.hasCandidate {
		return ErrNoCandidate
	}
	s.calibration.Calibrate(s.candidate)
	monitoring.Logf("calibrated head-droop baseline to %.3f", s.candidate)
	return nil
}

// Calibration returns the current calibration state.
func (s *Session) Calibration() Calibration {
	return s.calibration
}

// ProcessFrame runs detector, escalation and link scheduling for one frame
// and hands the scheduled code to the transmitter.
// A frame without a face holds the level, and link scheduling still runs on
// it so heartbeats continue.
func (s *Session) ProcessFrame(f Frame) FrameReport {
	s.seq++
	report := FrameReport{
		Seq:           s.seq,
		At:            f.Sample.Timestamp,
		FaceDetected:  f.FaceDetected,
		PreviousLevel: s.esc.Level(),
	}

	if s.takePending() {
		if err := s.Calibrate(); err != nil {
			monitoring.Logf("calibration ignored: %v", err)
		} else {
			report.Recalibrated = true
		}
	}

	if f.FaceDetected {
		if s.noFace.Reset() {
			monitoring.Logf("face reacquired at frame %d", s.seq)
		}
		report.Sample = f.Sample
		report.Signal = Detect(f.Sample, s.calibration, s.cfg.Thresholds)
		report.Level = s.esc.Update(report.Signal.Any, f.Sample.Timestamp)
		s.candidate = f.Sample.BaselineCandidate
		s.hasCandidate = true
	} else {
		s.noFace.Logf("no face detected at frame %d, holding level %s", s.seq, s.esc.Level())
		report.Level = s.esc.Hold()
	}
	report.Elapsed = s.esc.Elapsed()
	report.Calibration = s.calibration

	report.Decision = s.link.Schedule(report.Level)
	if report.Decision.Send {
		s.sent++
		if err := s.tx.Send(report.Decision.Code); err == nil {
			report.Delivered = true
			s.delivered++
		}
	}

	s.publish(report)
	return report
}

func (s *Session) publish(r FrameReport) {
	snap := Snapshot{
		Seq:          r.Seq,
		At:           r.At,
		Level:        r.Level,
		Status:       r.Level.Label(),
		Code:         string(r.Decision.Code),
		Cause:        r.Signal.Cause(),
		Elapsed:      r.Elapsed,
		FaceDetected: r.FaceDetected,
		EyeOpenness:  r.Sample.EyeOpenness,
		Deviation:    r.Signal.Deviation,
		Baseline:     r.Calibration.Baseline,
		Calibrated:   r.Calibration.Calibrated,
		Sent:         s.sent,
		Delivered:    s.delivered,
	}
	if last := s.link.State().LastSent; last != 0 {
		snap.LastSent = string(last)
	}

	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()
}

// Snapshot returns the state published after the most recent frame. It is
// safe to call from any goroutine.
func (s *Session) Snapshot() Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}
