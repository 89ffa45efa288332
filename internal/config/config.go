package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/drowsiness.monitor/internal/drowsiness"
	"github.com/banshee-data/drowsiness.monitor/internal/serialmux"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/monitor.defaults.json"

// MonitorConfig is the startup configuration of the monitor. Every field is
// optional; the Get* accessors fall back to the built-in defaults, so a
// partial file only overrides what it names. Values are fixed for the life of
// the process.
type MonitorConfig struct {
	// Detector thresholds
	EARThreshold    *float64 `json:"ear_threshold,omitempty"`
	DroopThreshold  *float64 `json:"droop_threshold,omitempty"`
	DefaultBaseline *float64 `json:"default_baseline,omitempty"`

	// Escalation bounds, duration strings like "2s"
	FatigueAfter   *string `json:"fatigue_after,omitempty"`
	CriticalAfter  *string `json:"critical_after,omitempty"`
	EmergencyAfter *string `json:"emergency_after,omitempty"`

	// Link discipline
	HeartbeatFrames *int `json:"heartbeat_frames,omitempty"`

	// Storage
	SampleEvery    *int `json:"sample_every,omitempty"`
	RecorderBuffer *int `json:"recorder_buffer,omitempty"`

	// Actuator
	SerialPort *string                `json:"serial_port,omitempty"`
	Serial     *serialmux.PortOptions `json:"serial,omitempty"`
}

// EmptyConfig returns a MonitorConfig with all fields unset.
func EmptyConfig() *MonitorConfig {
	return &MonitorConfig{}
}

// LoadConfig loads a MonitorConfig from a JSON file.
func LoadConfig(path string) (*MonitorConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 64 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// working directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *MonitorConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *MonitorConfig) Validate() error {
	if c.EARThreshold != nil && (*c.EARThreshold <= 0 || *c.EARThreshold >= 1) {
		return fmt.Errorf("ear_threshold must be between 0 and 1, got %f", *c.EARThreshold)
	}
	if c.DroopThreshold != nil && *c.DroopThreshold <= 0 {
		return fmt.Errorf("droop_threshold must be positive, got %f", *c.DroopThreshold)
	}
	if c.DefaultBaseline != nil && *c.DefaultBaseline <= 0 {
		return fmt.Errorf("default_baseline must be positive, got %f", *c.DefaultBaseline)
	}

	for name, v := range map[string]*string{
		"fatigue_after":   c.FatigueAfter,
		"critical_after":  c.CriticalAfter,
		"emergency_after": c.EmergencyAfter,
	} {
		if v == nil || *v == "" {
			continue
		}
		if _, err := time.ParseDuration(*v); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
	}
	if err := c.Bounds().Validate(); err != nil {
		return err
	}

	if c.HeartbeatFrames != nil && *c.HeartbeatFrames < 1 {
		return fmt.Errorf("heartbeat_frames must be at least 1, got %d", *c.HeartbeatFrames)
	}
	if c.SampleEvery != nil && *c.SampleEvery < 0 {
		return fmt.Errorf("sample_every must be non-negative, got %d", *c.SampleEvery)
	}
	if c.RecorderBuffer != nil && *c.RecorderBuffer < 1 {
		return fmt.Errorf("recorder_buffer must be at least 1, got %d", *c.RecorderBuffer)
	}
	if c.Serial != nil {
		if _, err := c.Serial.Normalise(); err != nil {
			return fmt.Errorf("invalid serial options: %w", err)
		}
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetEARThreshold returns the ear_threshold value or the default.
func (c *MonitorConfig) GetEARThreshold() float64 {
	if c.EARThreshold == nil {
		return drowsiness.DefaultEARThreshold
	}
	return *c.EARThreshold
}

// GetDroopThreshold returns the droop_threshold value or the default.
func (c *MonitorConfig) GetDroopThreshold() float64 {
	if c.DroopThreshold == nil {
		return drowsiness.DefaultDroopThreshold
	}
	return *c.DroopThreshold
}

// GetDefaultBaseline returns the default_baseline value or the default.
func (c *MonitorConfig) GetDefaultBaseline() float64 {
	if c.DefaultBaseline == nil {
		return drowsiness.DefaultBaseline
	}
	return *c.DefaultBaseline
}

// Bounds returns the escalation bounds, defaulting each unset bound.
func (c *MonitorConfig) Bounds() drowsiness.Bounds {
	def := drowsiness.DefaultBounds()
	return drowsiness.Bounds{
		Fatigue:   durationOr(c.FatigueAfter, def.Fatigue),
		Critical:  durationOr(c.CriticalAfter, def.Critical),
		Emergency: durationOr(c.EmergencyAfter, def.Emergency),
	}
}

// GetHeartbeatFrames returns the heartbeat_frames value or the default.
func (c *MonitorConfig) GetHeartbeatFrames() int {
	if c.HeartbeatFrames == nil {
		return drowsiness.DefaultHeartbeatFrames
	}
	return *c.HeartbeatFrames
}

// GetSampleEvery returns how many frames pass between stored samples. Zero
// disables sample storage.
func (c *MonitorConfig) GetSampleEvery() int {
	if c.SampleEvery == nil {
		return 5
	}
	return *c.SampleEvery
}

// GetRecorderBuffer returns the recorder queue length or the default.
func (c *MonitorConfig) GetRecorderBuffer() int {
	if c.RecorderBuffer == nil {
		return 256
	}
	return *c.RecorderBuffer
}

// GetSerialPort returns the actuator device path or the default.
func (c *MonitorConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyACM0"
	}
	return *c.SerialPort
}

// GetSerialOptions returns the serial options, or the microcontroller
// defaults when unset.
func (c *MonitorConfig) GetSerialOptions() serialmux.PortOptions {
	if c.Serial == nil {
		return serialmux.DefaultPortOptions()
	}
	return *c.Serial
}

// SessionConfig assembles the drowsiness session constants.
func (c *MonitorConfig) SessionConfig() drowsiness.Config {
	return drowsiness.Config{
		Thresholds: drowsiness.Thresholds{
			EAR:   c.GetEARThreshold(),
			Droop: c.GetDroopThreshold(),
		},
		Bounds:          c.Bounds(),
		HeartbeatFrames: c.GetHeartbeatFrames(),
		DefaultBaseline: c.GetDefaultBaseline(),
	}
}

// Effective returns a copy with every field set to the value in force, for
// recording alongside a session.
func (c *MonitorConfig) Effective() *MonitorConfig {
	b := c.Bounds()
	fatigue, critical, emergency := b.Fatigue.String(), b.Critical.String(), b.Emergency.String()
	ear, droop, baseline := c.GetEARThreshold(), c.GetDroopThreshold(), c.GetDefaultBaseline()
	heartbeat, sampleEvery, buffer := c.GetHeartbeatFrames(), c.GetSampleEvery(), c.GetRecorderBuffer()
	port := c.GetSerialPort()
	serial, err := c.GetSerialOptions().Normalise()
	if err != nil {
		serial = c.GetSerialOptions()
	}
	return &MonitorConfig{
		EARThreshold:    &ear,
		DroopThreshold:  &droop,
		DefaultBaseline: &baseline,
		FatigueAfter:    &fatigue,
		CriticalAfter:   &critical,
		EmergencyAfter:  &emergency,
		HeartbeatFrames: &heartbeat,
		SampleEvery:     &sampleEvery,
		RecorderBuffer:  &buffer,
		SerialPort:      &port,
		Serial:          &serial,
	}
}
