package gesture

// ChangeGate suppresses pointer broadcasts whose quantised coordinates match
// the previously emitted position. A stationary subject therefore produces
// silence on the wire, not a 30 Hz stream of identical moves.
type ChangeGate struct {
	lastX, lastY float64
	hasLast      bool
}

// ShouldEmit reports whether the position differs from the last emitted one
// at wire resolution. When it returns true the position is recorded as the
// new comparison point; suppressed positions leave the gate untouched, so
// equality is always judged against the last value a client actually saw.
// The first offered position always emits.
func (g *ChangeGate) ShouldEmit(x, y float64) bool {
	x = Quantize(x)
	y = Quantize(y)
	if g.hasLast && x == g.lastX && y == g.lastY {
		return false
	}
	g.lastX = x
	g.lastY = y
	g.hasLast = true
	return true
}
