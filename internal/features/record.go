package features

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/banshee-data/drowsiness.monitor/internal/drowsiness"
	"github.com/banshee-data/drowsiness.monitor/internal/timeutil"
)

// ErrUnknownRecord is returned for input that is neither a frame nor a
// known command.
var ErrUnknownRecord = errors.New("unknown feature record")

// Command is an operator action carried in the input stream.
type Command string

const (
	CommandNone      Command = ""
	CommandCalibrate Command = "calibrate"
	CommandQuit      Command = "quit"
)

// Record is one line (or datagram) of upstream input. A record carries
// either precomputed features (ear, droop), raw landmarks from which they are
// derived, face=false for a frame without a detected face, or a cmd.
type Record struct {
	Timestamp *float64   `json:"ts,omitempty"`
	EAR       *float64   `json:"ear,omitempty"`
	Droop     *float64   `json:"droop,omitempty"`
	DroopRaw  *float64   `json:"droop_raw,omitempty"`
	Landmarks []Landmark `json:"landmarks,omitempty"`
	Width     float64    `json:"width,omitempty"`
	Height    float64    `json:"height,omitempty"`
	Face      *bool      `json:"face,omitempty"`
	Cmd       string     `json:"cmd,omitempty"`
}

// Input is a decoded record: a frame, or a command when Command is set.
type Input struct {
	Frame   drowsiness.Frame
	Command Command
}

// IsCommand reports whether the input is an operator command.
func (in Input) IsCommand() bool { return in.Command != CommandNone }

func parseCommand(s string) (Command, error) {
	switch c := Command(strings.ToLower(strings.TrimSpace(s))); c {
	case CommandCalibrate, CommandQuit:
		return c, nil
	case "c":
		return CommandCalibrate, nil
	case "q":
		return CommandQuit, nil
	default:
		return CommandNone, fmt.Errorf("%w: command %q", ErrUnknownRecord, s)
	}
}

// unixTime converts fractional unix seconds.
func unixTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// Decode parses one JSON record. Records without a timestamp are stamped
// with clock.Now().
func Decode(line []byte, clock timeutil.Clock) (Input, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Input{}, fmt.Errorf("%w: empty line", ErrUnknownRecord)
	}

	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Input{}, fmt.Errorf("decode record: %w", err)
	}
	return rec.Input(clock)
}

// Input converts the record into a frame or command.
func (r Record) Input(clock timeutil.Clock) (Input, error) {
	if r.Cmd != "" {
		cmd, err := parseCommand(r.Cmd)
		if err != nil {
			return Input{}, err
		}
		return Input{Command: cmd}, nil
	}

	at := clock.Now()
	if r.Timestamp != nil {
		at = unixTime(*r.Timestamp)
	}

	if r.Face != nil && !*r.Face {
		return Input{Frame: drowsiness.Frame{Sample: drowsiness.FeatureSample{Timestamp: at}}}, nil
	}

	sample, err := r.sample()
	if err != nil {
		return Input{}, err
	}
	sample.Timestamp = at
	return Input{Frame: drowsiness.Frame{Sample: sample, FaceDetected: true}}, nil
}

func (r Record) sample() (drowsiness.FeatureSample, error) {
	var s drowsiness.FeatureSample

	var ear, droop *float64
	if len(r.Landmarks) > 0 {
		points := r.Landmarks
		if r.Width > 0 && r.Height > 0 {
			points = Scale(points, r.Width, r.Height)
		}
		e, err := MeanEAR(points)
		if err != nil {
			return s, err
		}
		d, err := HeadDroopRatio(points)
		if err != nil {
			return s, err
		}
		ear, droop = &e, &d
	}
	// Explicit features win over derived ones.
	if r.EAR != nil {
		ear = r.EAR
	}
	if r.Droop != nil {
		droop = r.Droop
	}
	if ear == nil || droop == nil {
		return s, fmt.Errorf("%w: need ear and droop, or landmarks", ErrUnknownRecord)
	}

	s.EyeOpenness = *ear
	s.HeadDroop = *droop
	s.BaselineCandidate = *droop
	if r.DroopRaw != nil {
		s.BaselineCandidate = *r.DroopRaw
	}
	for _, v := range []float64{s.EyeOpenness, s.HeadDroop, s.BaselineCandidate} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return s, fmt.Errorf("%w: non-finite feature", ErrUnknownRecord)
		}
	}
	return s, nil
}
