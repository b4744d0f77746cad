package gesture

import "testing"

func TestChangeGateFirstPositionEmits(t *testing.T) {
	var g ChangeGate
	if !g.ShouldEmit(0.5, 0.5) {
		t.Fatal("first position should always emit")
	}
}

func TestChangeGateSuppressesIdenticalPositions(t *testing.T) {
	var g ChangeGate
	g.ShouldEmit(0.5234, 0.4821)

	for i := 0; i < 5; i++ {
		if g.ShouldEmit(0.5234, 0.4821) {
			t.Fatalf("identical position emitted on repeat %d", i)
		}
	}
	if !g.ShouldEmit(0.5235, 0.4821) {
		t.Fatal("single-axis change should emit")
	}
	if !g.ShouldEmit(0.5235, 0.4820) {
		t.Fatal("other-axis change should emit")
	}
}

func TestChangeGateComparesAtWireResolution(t *testing.T) {
	var g ChangeGate
	g.ShouldEmit(0.5234, 0.4821)

	// Differences below the fourth decimal place are invisible on the wire
	// and must not emit.
	if g.ShouldEmit(0.52341, 0.48209) {
		t.Fatal("sub-resolution jitter emitted")
	}
	if !g.ShouldEmit(0.52346, 0.4821) {
		t.Fatal("change at wire resolution should emit")
	}
}

func TestChangeGateComparesAgainstLastEmitted(t *testing.T) {
	var g ChangeGate
	g.ShouldEmit(0.5000, 0.5000)

	// A suppressed offer must not become the comparison point: offering the
	// original position again still compares equal to what clients last saw.
	if g.ShouldEmit(0.50004, 0.5) { // Quantises to 0.5000
		t.Fatal("sub-resolution offer emitted")
	}
	if g.ShouldEmit(0.5, 0.5) {
		t.Fatal("position clients already saw emitted again")
	}
}
