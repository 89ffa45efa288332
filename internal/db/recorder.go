package db

import (
	"context"
	"sync/atomic"

	"github.com/banshee-data/drowsiness.monitor/internal/drowsiness"
	"github.com/banshee-data/drowsiness.monitor/internal/monitoring"
)

// Recorder persists frame reports off the frame loop. Observe never blocks;
// a single Run goroutine owns all writes.
type Recorder struct {
	db          *DB
	sessionID   string
	sampleEvery uint64
	queue       chan drowsiness.FrameReport

	dropped  atomic.Uint64
	written  atomic.Uint64
	dropOnce monitoring.Once
	failOnce monitoring.Once
}

// NewRecorder creates a recorder for one session. sampleEvery = 0 records
// transitions and calibrations only.
func NewRecorder(db *DB, sessionID string, sampleEvery, buffer int) *Recorder {
	if buffer < 1 {
		buffer = 1
	}
	if sampleEvery < 0 {
		sampleEvery = 0
	}
	return &Recorder{
		db:          db,
		sessionID:   sessionID,
		sampleEvery: uint64(sampleEvery),
		queue:       make(chan drowsiness.FrameReport, buffer),
	}
}

// SessionID returns the session the recorder writes to.
func (r *Recorder) SessionID() string { return r.sessionID }

func (r *Recorder) wants(rep drowsiness.FrameReport) bool {
	if rep.Transitioned() || rep.Recalibrated {
		return true
	}
	return r.sampleEvery > 0 && rep.Seq%r.sampleEvery == 0
}

// Observe queues rep if it carries anything worth storing. When the queue is
// full the report is dropped; the first drop is logged.
func (r *Recorder) Observe(rep drowsiness.FrameReport) {
	if !r.wants(rep) {
		return
	}
	select {
	case r.queue <- rep:
	default:
		r.dropped.Add(1)
		r.dropOnce.Logf("recorder: queue full, dropping frame reports")
	}
}

// Run writes queued reports until ctx is cancelled, then drains what is
// already queued.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case rep := <-r.queue:
			r.write(rep)
		case <-ctx.Done():
			for {
				select {
				case rep := <-r.queue:
					r.write(rep)
				default:
					return nil
				}
			}
		}
	}
}

// Stats returns the number of written and dropped reports.
func (r *Recorder) Stats() (written, dropped uint64) {
	return r.written.Load(), r.dropped.Load()
}

func (r *Recorder) write(rep drowsiness.FrameReport) {
	if err := r.store(rep); err != nil {
		r.failOnce.Logf("recorder: write failed: %v", err)
		return
	}
	r.failOnce.Reset()
	r.written.Add(1)
}

func (r *Recorder) store(rep drowsiness.FrameReport) error {
	if rep.Recalibrated {
		if err := r.db.RecordCalibration(CalibrationRecord{
			SessionID: r.sessionID,
			At:        rep.At,
			Baseline:  rep.Calibration.Baseline,
		}); err != nil {
			return err
		}
	}
	if rep.Transitioned() {
		if err := r.db.RecordTransition(Transition{
			SessionID: r.sessionID,
			At:        rep.At,
			From:      rep.PreviousLevel,
			To:        rep.Level,
			Cause:     rep.Signal.Cause(),
			ElapsedMS: rep.Elapsed.Milliseconds(),
		}); err != nil {
			return err
		}
	}
	if r.sampleEvery > 0 && rep.Seq%r.sampleEvery == 0 {
		return r.db.RecordSample(Sample{
			SessionID: r.sessionID,
			Seq:       rep.Seq,
			At:        rep.At,
			EAR:       rep.Sample.EyeOpenness,
			Droop:     rep.Sample.HeadDroop,
			Deviation: rep.Signal.Deviation,
			Face:      rep.FaceDetected,
			Level:     rep.Level,
			Code:      string(rep.Decision.Code),
			Sent:      rep.Decision.Send,
		})
	}
	return nil
}
