package features

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drowsiness.monitor/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestDecode_Features(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)

	in, err := Decode([]byte(`{"ear":0.12,"droop":1.3,"droop_raw":1.28}`), clock)
	require.NoError(t, err)
	assert.False(t, in.IsCommand())
	assert.True(t, in.Frame.FaceDetected)
	assert.Equal(t, 0.12, in.Frame.Sample.EyeOpenness)
	assert.Equal(t, 1.3, in.Frame.Sample.HeadDroop)
	assert.Equal(t, 1.28, in.Frame.Sample.BaselineCandidate)
	assert.Equal(t, epoch, in.Frame.Sample.Timestamp, "no ts uses the clock")
}

func TestDecode_TimestampAndCandidateDefault(t *testing.T) {
	in, err := Decode([]byte(`{"ts":1772352000.5,"ear":0.3,"droop":1.1}`), timeutil.NewMockClock(epoch))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1772352000, 500_000_000).UTC(), in.Frame.Sample.Timestamp)
	assert.Equal(t, 1.1, in.Frame.Sample.BaselineCandidate)
}

func TestDecode_NoFace(t *testing.T) {
	in, err := Decode([]byte(`{"face":false}`), timeutil.NewMockClock(epoch))
	require.NoError(t, err)
	assert.False(t, in.Frame.FaceDetected)
	assert.Equal(t, epoch, in.Frame.Sample.Timestamp)
}

func TestDecode_Landmarks(t *testing.T) {
	mesh := syntheticMesh(0.1, 0.1, 1.4)
	body, err := json.Marshal(map[string]any{"landmarks": mesh})
	require.NoError(t, err)

	in, err := Decode(body, timeutil.NewMockClock(epoch))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, in.Frame.Sample.EyeOpenness, 1e-9)
	assert.InDelta(t, 1.4, in.Frame.Sample.HeadDroop, 1e-9)

	// An explicit ear overrides the derived value.
	body, err = json.Marshal(map[string]any{"landmarks": mesh, "ear": 0.33})
	require.NoError(t, err)
	in, err = Decode(body, timeutil.NewMockClock(epoch))
	require.NoError(t, err)
	assert.Equal(t, 0.33, in.Frame.Sample.EyeOpenness)
}

func TestDecode_NormalisedLandmarksScaled(t *testing.T) {
	// Normalised mesh of a 2:1 frame: x squeezed by the width.
	mesh := syntheticMesh(0.2, 0.2, 1.0)
	for i := range mesh {
		mesh[i].X /= 200
		mesh[i].Y /= 100
	}
	body, err := json.Marshal(map[string]any{"landmarks": mesh, "width": 200, "height": 100})
	require.NoError(t, err)

	in, err := Decode(body, timeutil.NewMockClock(epoch))
	require.NoError(t, err)
	assert.InDelta(t, 0.2, in.Frame.Sample.EyeOpenness, 1e-9)
}

func TestDecode_Commands(t *testing.T) {
	for raw, want := range map[string]Command{
		`{"cmd":"calibrate"}`: CommandCalibrate,
		`{"cmd":"C"}`:         CommandCalibrate,
		`{"cmd":"quit"}`:      CommandQuit,
		`{"cmd":"q"}`:         CommandQuit,
	} {
		in, err := Decode([]byte(raw), timeutil.NewMockClock(epoch))
		require.NoError(t, err, raw)
		assert.True(t, in.IsCommand())
		assert.Equal(t, want, in.Command, raw)
	}
}

func TestDecode_Errors(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	for _, raw := range []string{
		``,
		`{}`,
		`{"ear":0.2}`,
		`{"cmd":"dance"}`,
	} {
		_, err := Decode([]byte(raw), clock)
		assert.ErrorIs(t, err, ErrUnknownRecord, "%q", raw)
	}

	_, err := Decode([]byte(`not json`), clock)
	assert.Error(t, err)

	_, err = Decode([]byte(`{"landmarks":[[0,0]]}`), clock)
	assert.Error(t, err)
}
