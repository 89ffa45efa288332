package drowsiness

import (
	"fmt"
	"strings"
)

// Level is the escalating severity reported for the driver. Levels are
// ordered: a larger value is always more severe.
type Level int

const (
	Safe Level = iota
	Detecting
	Fatigue
	Critical
	Emergency
)

// Levels returns every level in ascending severity.
func Levels() []Level {
	return []Level{Safe, Detecting, Fatigue, Critical, Emergency}
}

func (l Level) String() string {
	switch l {
	case Safe:
		return "Safe"
	case Detecting:
		return "Detecting"
	case Fatigue:
		return "Fatigue"
	case Critical:
		return "Critical"
	case Emergency:
		return "Emergency"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Label is the operator-facing status text shown alongside the level.
func (l Level) Label() string {
	switch l {
	case Safe:
		return "OK - eyes open"
	case Detecting:
		return "blink / closing"
	case Fatigue:
		return "fatigue (2s)"
	case Critical:
		return "alert (5s)"
	case Emergency:
		return "calling emergency"
	default:
		return "unknown"
	}
}

// Code returns the one-byte command sent to the actuator for this level.
// Safe and Detecting share 'A' so that a blink never drives the actuator.
func (l Level) Code() byte {
	switch {
	case l >= Emergency:
		return 'D'
	case l == Critical:
		return 'C'
	case l == Fatigue:
		return 'B'
	default:
		return 'A'
	}
}

// ValidCode reports whether b is a code the actuator understands.
func ValidCode(b byte) bool {
	return b >= 'A' && b <= 'D'
}

// ParseLevel parses the String form of a level, case-insensitively.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels() {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return Safe, fmt.Errorf("unknown level %q", s)
}

// MarshalText implements encoding.TextMarshaler so levels serialise by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
