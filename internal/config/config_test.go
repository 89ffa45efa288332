package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drowsiness.monitor/internal/drowsiness"
	"github.com/banshee-data/drowsiness.monitor/internal/serialmux"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, drowsiness.DefaultConfig(), cfg.SessionConfig())
	assert.Equal(t, 5, cfg.GetSampleEvery())
	assert.Equal(t, 256, cfg.GetRecorderBuffer())
	assert.Equal(t, "/dev/ttyACM0", cfg.GetSerialPort())
	assert.Equal(t, serialmux.DefaultPortOptions(), cfg.GetSerialOptions())
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	assert.Equal(t, EmptyConfig().SessionConfig(), cfg.SessionConfig())
	assert.Equal(t, EmptyConfig().GetSampleEvery(), cfg.GetSampleEvery())
	assert.Equal(t, EmptyConfig().GetRecorderBuffer(), cfg.GetRecorderBuffer())
	assert.True(t, cfg.GetSerialOptions().Equal(serialmux.DefaultPortOptions()))
	assert.Equal(t, 1.5, cfg.GetDefaultBaseline())
	assert.Equal(t, 2*time.Second, cfg.GetSerialOptions().ResetDelay())
}

func TestLoadConfig_PartialOverride(t *testing.T) {
	path := writeConfig(t, "monitor.json", `{
  "ear_threshold": 0.18,
  "critical_after": "6s",
  "heartbeat_frames": 15,
  "serial_port": "/dev/ttyUSB1",
  "serial": {"baud_rate": 115200}
}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	sc := cfg.SessionConfig()
	assert.Equal(t, 0.18, sc.Thresholds.EAR)
	assert.Equal(t, drowsiness.DefaultDroopThreshold, sc.Thresholds.Droop)
	assert.Equal(t, drowsiness.Bounds{Fatigue: 2 * time.Second, Critical: 6 * time.Second, Emergency: 10 * time.Second}, sc.Bounds)
	assert.Equal(t, 15, sc.HeartbeatFrames)
	assert.Equal(t, "/dev/ttyUSB1", cfg.GetSerialPort())
	assert.Equal(t, 115200, cfg.GetSerialOptions().BaudRate)
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "monitor.yaml", `{}`, ".json extension"},
		{"bad json", "monitor.json", `{"ear_threshold":`, "parse config JSON"},
		{"ear out of range", "monitor.json", `{"ear_threshold": 1.5}`, "ear_threshold"},
		{"droop not positive", "monitor.json", `{"droop_threshold": 0}`, "droop_threshold"},
		{"baseline not positive", "monitor.json", `{"default_baseline": -1}`, "default_baseline"},
		{"bad duration", "monitor.json", `{"fatigue_after": "soon"}`, "fatigue_after"},
		{"bounds out of order", "monitor.json", `{"critical_after": "12s"}`, "must exceed"},
		{"heartbeat zero", "monitor.json", `{"heartbeat_frames": 0}`, "heartbeat_frames"},
		{"negative sampling", "monitor.json", `{"sample_every": -1}`, "sample_every"},
		{"buffer zero", "monitor.json", `{"recorder_buffer": 0}`, "recorder_buffer"},
		{"bad parity", "monitor.json", `{"serial": {"parity": "X"}}`, "serial options"},
		{"reset delay too long", "monitor.json", `{"serial": {"reset_delay_ms": 60000}}`, "reset delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadConfig_TooLarge(t *testing.T) {
	body := `{"serial_port": "` + strings.Repeat("x", 70*1024) + `"}`
	_, err := LoadConfig(writeConfig(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestSampleEveryZeroDisables(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "monitor.json", `{"sample_every": 0}`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.GetSampleEvery())
}

func TestEffective(t *testing.T) {
	ear := 0.25
	cfg := &MonitorConfig{EARThreshold: &ear}

	eff := cfg.Effective()
	require.NotNil(t, eff.EARThreshold)
	assert.Equal(t, 0.25, *eff.EARThreshold)
	assert.Equal(t, "2s", *eff.FatigueAfter)
	assert.Equal(t, "10s", *eff.EmergencyAfter)
	assert.Equal(t, 30, *eff.HeartbeatFrames)
	assert.Equal(t, "/dev/ttyACM0", *eff.SerialPort)
	assert.Equal(t, 9600, eff.Serial.BaudRate)
	assert.Equal(t, serialmux.DefaultResetDelayMS, eff.Serial.ResetDelayMS)
	require.NoError(t, eff.Validate())
	assert.Equal(t, cfg.SessionConfig(), eff.SessionConfig())
}
