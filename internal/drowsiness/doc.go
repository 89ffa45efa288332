// Package drowsiness classifies sustained eye closure or head droop into an
// escalating severity level and schedules delivery of that level to an
// actuator.
//
// A Session owns the per-driver state. Each frame flows through Detect
// (thresholds against the calibrated baseline), Escalation (wall-clock time
// the anomaly has persisted) and LinkScheduler (change-triggered sends plus a
// frame-count heartbeat) before the resulting code reaches a Transmitter.
package drowsiness
