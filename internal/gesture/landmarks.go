package gesture

import "math"

// Landmark is a single facial landmark in normalised image coordinates.
// X grows rightward and Y grows downward, both in [0, 1] with the origin at
// the top-left corner of the frame.
type Landmark struct {
	X float64
	Y float64
}

// LandmarkCount is the number of points in a complete face landmark sequence
// (the 468-point face mesh plus 10 iris refinement points).
const LandmarkCount = 478

// Well-known landmark indices. The detector contract guarantees stable
// index semantics across frames.
const (
	// AnchorIndex is the nose tip, used as the pointer anchor.
	AnchorIndex = 1
	// UpperLipIndex and LowerLipIndex are the inner-lip vertical pair.
	UpperLipIndex = 13
	LowerLipIndex = 14
	// MouthCornerLeftIndex and MouthCornerRightIndex span the mouth width.
	MouthCornerLeftIndex  = 78
	MouthCornerRightIndex = 308
)

// RatioEpsilon guards the mouth-ratio denominator against degenerate
// (zero-width) mouth geometry.
const RatioEpsilon = 1e-6

// ValidSequence reports whether lm is a complete landmark sequence. Partial
// sequences carry no index guarantees and are treated as no detection.
func ValidSequence(lm []Landmark) bool {
	return len(lm) == LandmarkCount
}

// MouthOpenRatio returns the inner-lip gap normalised by mouth width.
// The ratio is scale-invariant: it does not change as the face moves
// closer to or further from the camera.
func MouthOpenRatio(lm []Landmark) float64 {
	gap := dist(lm[UpperLipIndex], lm[LowerLipIndex])
	width := dist(lm[MouthCornerLeftIndex], lm[MouthCornerRightIndex])
	return gap / (width + RatioEpsilon)
}

// dist returns the Euclidean distance between two landmarks.
func dist(a, b Landmark) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
