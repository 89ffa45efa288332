package drowsiness

// DefaultBaseline is the neutral head-droop ratio assumed before the operator
// calibrates.
const DefaultBaseline = 1.5

// Calibration holds the operator's neutral head-droop baseline for a session.
type Calibration struct {
	Baseline   float64
	Calibrated bool
}

// NewCalibration returns an uncalibrated store anchored at defaultBaseline.
func NewCalibration(defaultBaseline float64) Calibration {
	return Calibration{Baseline: defaultBaseline}
}

// Calibrate re-anchors the baseline to candidate. The candidate is not
// validated: the operator is expected to be looking straight ahead.
func (c *Calibration) Calibrate(candidate float64) {
	c.Baseline = candidate
	c.Calibrated = true
}
