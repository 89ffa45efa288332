// Package features turns face-mesh landmarks and upstream feature records into
// drowsiness frames.
package features

import (
	"encoding/json"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Face-mesh landmark indices, MediaPipe numbering. The eye sets are ordered
// p1..p6: outer corner, two upper lid points, inner corner, two lower lid
// points.
var (
	LeftEye  = [6]int{362, 385, 387, 263, 373, 380}
	RightEye = [6]int{33, 160, 158, 133, 153, 144}
)

const (
	Glabella = 168
	NoseTip  = 1
	Chin     = 152
)

// minLowerFace floors the nose to chin height, in pixels, so a chin
// tucked onto the nose still yields a finite droop ratio.
const minLowerFace = 0.1

// ErrDegenerate is returned when the eye ratio's denominator is zero.
var ErrDegenerate = errors.New("degenerate landmark geometry")

// Landmark is one face-mesh point. Only X and Y take part in the ratios.
type Landmark struct {
	X, Y, Z float64
}

// UnmarshalJSON accepts [x, y] or [x, y, z].
func (l *Landmark) UnmarshalJSON(b []byte) error {
	var v []float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch len(v) {
	case 2:
		*l = Landmark{X: v[0], Y: v[1]}
	case 3:
		*l = Landmark{X: v[0], Y: v[1], Z: v[2]}
	default:
		return fmt.Errorf("landmark needs 2 or 3 coordinates, got %d", len(v))
	}
	return nil
}

// MarshalJSON writes the [x, y, z] form.
func (l Landmark) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{l.X, l.Y, l.Z})
}

func (l Landmark) vec() r2.Vec { return r2.Vec{X: l.X, Y: l.Y} }

func dist(a, b Landmark) float64 {
	return r2.Norm(r2.Sub(a.vec(), b.vec()))
}

// Scale maps normalised [0,1] coordinates to pixels. Ratios are only
// meaningful on a square grid, so normalised input from a non-square frame
// should be scaled first.
func Scale(points []Landmark, width, height float64) []Landmark {
	out := make([]Landmark, len(points))
	for i, p := range points {
		out[i] = Landmark{X: p.X * width, Y: p.Y * height, Z: p.Z}
	}
	return out
}

func pick(points []Landmark, idx int) (Landmark, error) {
	if idx < 0 || idx >= len(points) {
		return Landmark{}, fmt.Errorf("landmark %d out of range (have %d)", idx, len(points))
	}
	return points[idx], nil
}

// EyeAspectRatio computes (|p2-p6| + |p3-p5|) / (2|p1-p4|) for one eye.
func EyeAspectRatio(points []Landmark, eye [6]int) (float64, error) {
	var p [6]Landmark
	for i, idx := range eye {
		pt, err := pick(points, idx)
		if err != nil {
			return 0, err
		}
		p[i] = pt
	}
	horizontal := dist(p[0], p[3])
	if horizontal == 0 {
		return 0, fmt.Errorf("eye width: %w", ErrDegenerate)
	}
	return (dist(p[1], p[5]) + dist(p[2], p[4])) / (2 * horizontal), nil
}

// MeanEAR averages the eye aspect ratio of both eyes.
func MeanEAR(points []Landmark) (float64, error) {
	left, err := EyeAspectRatio(points, LeftEye)
	if err != nil {
		return 0, fmt.Errorf("left eye: %w", err)
	}
	right, err := EyeAspectRatio(points, RightEye)
	if err != nil {
		return 0, fmt.Errorf("right eye: %w", err)
	}
	return (left + right) / 2, nil
}

// HeadDroopRatio is the vertical glabella to nose height over the nose to
// chin height. It grows as the head tips forward and the lower face
// foreshortens. Only Y takes part, and the lower height is floored at
// minLowerFace.
func HeadDroopRatio(points []Landmark) (float64, error) {
	glabella, err := pick(points, Glabella)
	if err != nil {
		return 0, err
	}
	nose, err := pick(points, NoseTip)
	if err != nil {
		return 0, err
	}
	chin, err := pick(points, Chin)
	if err != nil {
		return 0, err
	}
	upper := nose.Y - glabella.Y
	lower := chin.Y - nose.Y
	if lower < minLowerFace {
		lower = minLowerFace
	}
	return upper / lower, nil
}
