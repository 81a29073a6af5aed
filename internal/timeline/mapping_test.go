package timeline

import (
	"math"
	"testing"

	"github.com/ripplecut/ripplecut/internal/segment"
)

const tolerance = 1e-9

func TestRealToVirtual_SnapsInsideSilence(t *testing.T) {
	m := NewMapper([]segment.Interval{{Start: 5, End: 15}}, ModeFragmented)

	// Inside the silence: snap to its start minus the offset accumulated so far.
	if got := m.RealToVirtual(12); math.Abs(got-5) > tolerance {
		t.Errorf("expected 5, got %v", got)
	}
	// Past the silence: the full 10s collapse applies.
	if got := m.RealToVirtual(20); math.Abs(got-10) > tolerance {
		t.Errorf("expected 10, got %v", got)
	}
	// Before the silence: untouched.
	if got := m.RealToVirtual(3); math.Abs(got-3) > tolerance {
		t.Errorf("expected 3, got %v", got)
	}
}

func TestVirtualToReal_WalksSpeechSpans(t *testing.T) {
	m := NewMapper([]segment.Interval{{Start: 5, End: 15}, {Start: 20, End: 25}}, ModeFragmented)

	if got := m.VirtualToReal(2); math.Abs(got-2) > tolerance {
		t.Errorf("expected 2, got %v", got)
	}
	// Virtual 7 is 2s into the speech span that starts at real 15.
	if got := m.VirtualToReal(7); math.Abs(got-17) > tolerance {
		t.Errorf("expected 17, got %v", got)
	}
	// Past the last silence.
	if got := m.VirtualToReal(12); math.Abs(got-27) > tolerance {
		t.Errorf("expected 27, got %v", got)
	}
}

func TestMapping_RoundTripOutsideSilences(t *testing.T) {
	silences := []segment.Interval{
		{Start: 3, End: 8},
		{Start: 12, End: 13},
		{Start: 40, End: 55.5},
	}
	m := NewMapper(silences, ModeFragmented)

	outside := func(t float64) bool {
		for _, s := range silences {
			if t > s.Start && t < s.End {
				return false
			}
		}
		return true
	}

	for probe := 0.0; probe < 80; probe += 0.37 {
		if !outside(probe) {
			continue
		}
		got := m.VirtualToReal(m.RealToVirtual(probe))
		if math.Abs(got-probe) > 1e-6 {
			t.Fatalf("round trip broke at t=%v: got %v", probe, got)
		}
	}
}

func TestMapping_ContinuousModeIsIdentity(t *testing.T) {
	m := NewMapper([]segment.Interval{{Start: 5, End: 15}}, ModeContinuous)
	for _, probe := range []float64{0, 7, 12, 100} {
		if got := m.RealToVirtual(probe); got != probe {
			t.Errorf("RealToVirtual(%v) = %v in continuous mode", probe, got)
		}
		if got := m.VirtualToReal(probe); got != probe {
			t.Errorf("VirtualToReal(%v) = %v in continuous mode", probe, got)
		}
	}
}

func TestMapping_UnmergedInputIsNormalized(t *testing.T) {
	// Overlapping cuts behave the same as their merged form.
	a := NewMapper([]segment.Interval{{Start: 5, End: 10}, {Start: 8, End: 15}}, ModeFragmented)
	b := NewMapper([]segment.Interval{{Start: 5, End: 15}}, ModeFragmented)
	for _, probe := range []float64{0, 4, 9, 16, 30} {
		if math.Abs(a.RealToVirtual(probe)-b.RealToVirtual(probe)) > tolerance {
			t.Errorf("mapper differs from merged form at t=%v", probe)
		}
	}
}
