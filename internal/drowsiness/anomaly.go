package drowsiness

import "time"

// Default detector thresholds.
const (
	DefaultEARThreshold   = 0.21
	DefaultDroopThreshold = 0.3
)

// FeatureSample is the per-frame feature vector produced by the extractor.
type FeatureSample struct {
	// EyeOpenness is the eye aspect ratio; smaller means more closed.
	EyeOpenness float64
	// HeadDroop is the upper/lower face ratio; larger means more bowed.
	HeadDroop float64
	// BaselineCandidate is the raw head-droop value a calibration command
	// would adopt as the neutral posture.
	BaselineCandidate float64
	Timestamp         time.Time
}

// Thresholds are the fixed detector limits.
type Thresholds struct {
	EAR   float64
	Droop float64
}

// DefaultThresholds returns the stock detector limits.
func DefaultThresholds() Thresholds {
	return Thresholds{EAR: DefaultEARThreshold, Droop: DefaultDroopThreshold}
}

// Cause names which signal made a frame anomalous. It is for display and
// logging only.
type Cause string

const (
	CauseNone Cause = "none"
	CauseEyes Cause = "eyes"
	CauseHead Cause = "head"
	CauseBoth Cause = "both"
)

// AnomalySignal is the detector output for one frame.
type AnomalySignal struct {
	EyesClosed bool
	HeadDown   bool
	Any        bool
	// Deviation is HeadDroop minus the calibrated baseline.
	Deviation float64
}

// Cause classifies the signal; both signals together take priority.
func (a AnomalySignal) Cause() Cause {
	switch {
	case a.EyesClosed && a.HeadDown:
		return CauseBoth
	case a.EyesClosed:
		return CauseEyes
	case a.HeadDown:
		return CauseHead
	default:
		return CauseNone
	}
}

// Detect compares a sample against the thresholds and the calibration
// baseline. An uncalibrated Calibration still carries the default baseline.
func Detect(s FeatureSample, c Calibration, th Thresholds) AnomalySignal {
	deviation := s.HeadDroop - c.Baseline
	sig := AnomalySignal{
		EyesClosed: s.EyeOpenness < th.EAR,
		HeadDown:   deviation > th.Droop,
		Deviation:  deviation,
	}
	sig.Any = sig.EyesClosed || sig.HeadDown
	return sig
}
