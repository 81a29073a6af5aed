package timeline

import (
	"math"
	"testing"

	"github.com/ripplecut/ripplecut/internal/segment"
)

func confirmedAt(pairs ...[2]float64) []segment.Confirmed {
	out := make([]segment.Confirmed, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, segment.NewConfirmed(p[0], p[1]))
	}
	return out
}

func pendingAt(pairs ...[2]float64) []segment.Pending {
	out := make([]segment.Pending, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, segment.NewPending(p[0], p[1], -50))
	}
	return out
}

func TestModel_StatsScenario(t *testing.T) {
	// originalDuration=100, confirmed=[{10,20}], pending=[{30,35}]
	// -> currentBase=90, remaining=85, cutCount=2.
	m := NewModel(100)
	if err := m.Apply(Mutation{Track: TrackConfirmed, Confirmed: confirmedAt([2]float64{10, 20})}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Apply(Mutation{Track: TrackPending, Pending: pendingAt([2]float64{30, 35})}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := m.Stats()
	if stats.CurrentBase != 90 {
		t.Errorf("expected currentBase 90, got %v", stats.CurrentBase)
	}
	if stats.Remaining != 85 {
		t.Errorf("expected remaining 85, got %v", stats.Remaining)
	}
	if stats.CutCount != 2 {
		t.Errorf("expected cutCount 2, got %d", stats.CutCount)
	}
}

func TestModel_StatsInvariant(t *testing.T) {
	m := NewModel(60)
	_ = m.Apply(Mutation{Track: TrackConfirmed, Confirmed: confirmedAt(
		[2]float64{0, 10}, [2]float64{5, 25}, [2]float64{50, 59},
	)})
	_ = m.Apply(Mutation{Track: TrackPending, Pending: pendingAt(
		[2]float64{20, 30}, [2]float64{40, 45},
	)})

	stats := m.Stats()
	if stats.Remaining < 0 || stats.Remaining > stats.CurrentBase || stats.CurrentBase > stats.OriginalDuration {
		t.Errorf("stats invariant violated: %+v", stats)
	}
}

func TestModel_SpeechClips(t *testing.T) {
	m := NewModel(100)
	_ = m.Apply(Mutation{Track: TrackConfirmed, Confirmed: confirmedAt(
		[2]float64{10, 20}, [2]float64{50, 60},
	)})

	clips := m.SpeechClips()
	if len(clips) != 3 {
		t.Fatalf("expected 3 clips, got %d: %v", len(clips), clips)
	}

	want := []Clip{
		{Start: 0, End: 10, Duration: 10, VirtualStart: 0},
		{Start: 20, End: 50, Duration: 30, VirtualStart: 10},
		{Start: 60, End: 100, Duration: 40, VirtualStart: 40},
	}
	for i, c := range clips {
		if math.Abs(c.Start-want[i].Start) > tolerance ||
			math.Abs(c.End-want[i].End) > tolerance ||
			math.Abs(c.VirtualStart-want[i].VirtualStart) > tolerance {
			t.Errorf("clip %d: expected %+v, got %+v", i, want[i], c)
		}
	}
	for i := 1; i < len(clips); i++ {
		if clips[i].VirtualStart <= clips[i-1].VirtualStart {
			t.Errorf("virtual starts not strictly increasing: %v", clips)
		}
	}
}

func TestModel_LeadingCutHasNoEmptyHeadClip(t *testing.T) {
	m := NewModel(30)
	_ = m.Apply(Mutation{Track: TrackConfirmed, Confirmed: confirmedAt([2]float64{0, 5})})

	clips := m.SpeechClips()
	if len(clips) != 1 {
		t.Fatalf("expected 1 clip, got %d: %v", len(clips), clips)
	}
	if clips[0].Start != 5 || clips[0].VirtualStart != 0 {
		t.Errorf("unexpected clip: %+v", clips[0])
	}
}

func TestModel_ApplyUnknownTrack(t *testing.T) {
	m := NewModel(10)
	if err := m.Apply(Mutation{Track: Track("playhead")}); err != ErrUnknownTrack {
		t.Errorf("expected ErrUnknownTrack, got %v", err)
	}
}

func TestModel_SkipHistoryDoesNotPush(t *testing.T) {
	m := NewModel(100)
	_ = m.Apply(Mutation{Track: TrackConfirmed, Confirmed: confirmedAt([2]float64{10, 20})})
	depth := m.HistoryLen()

	// An ephemeral drag preview must not grow the stack.
	_ = m.Apply(Mutation{
		Track:       TrackConfirmed,
		Confirmed:   confirmedAt([2]float64{10, 21}),
		SkipHistory: true,
	})
	if m.HistoryLen() != depth {
		t.Errorf("expected history depth %d, got %d", depth, m.HistoryLen())
	}
}

func TestModel_UndoRestoresConfirmedAndSensitivity(t *testing.T) {
	m := NewModel(100)
	_ = m.Apply(Mutation{Track: TrackPending, Pending: pendingAt([2]float64{10, 20})})
	if err := m.Commit(0.7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Confirmed()) != 1 {
		t.Fatalf("expected 1 confirmed segment after commit")
	}
	if m.Sensitivity() != 0.7 {
		t.Fatalf("expected committed sensitivity 0.7, got %v", m.Sensitivity())
	}

	if !m.Undo() {
		t.Fatal("expected undo to succeed")
	}
	if len(m.Confirmed()) != 0 {
		t.Errorf("expected confirmed list restored to empty, got %v", m.Confirmed())
	}
	if m.Sensitivity() != 0 {
		t.Errorf("expected sensitivity restored to 0, got %v", m.Sensitivity())
	}
}

func TestModel_UndoOnEmptyStackIsNoOp(t *testing.T) {
	m := NewModel(100)
	if m.Undo() {
		t.Error("expected undo on empty history to report false")
	}
}

func TestModel_CommitClearsPending(t *testing.T) {
	m := NewModel(100)
	_ = m.Apply(Mutation{Track: TrackPending, Pending: pendingAt([2]float64{10, 20}, [2]float64{15, 30})})
	_ = m.Commit(0.5)

	if len(m.Pending()) != 0 {
		t.Errorf("expected pending cleared, got %v", m.Pending())
	}
	confirmed := m.Confirmed()
	if len(confirmed) != 1 || confirmed[0].Start != 10 || confirmed[0].End != 30 {
		t.Errorf("expected merged confirmed [{10,30}], got %v", confirmed)
	}
}

func TestModel_VirtualDurationByMode(t *testing.T) {
	m := NewModel(100)
	_ = m.Apply(Mutation{Track: TrackConfirmed, Confirmed: confirmedAt([2]float64{10, 20})})
	_ = m.Apply(Mutation{Track: TrackPending, Pending: pendingAt([2]float64{30, 35})})

	if got := m.VirtualDuration(); got != 85 {
		t.Errorf("fragmented virtual duration: expected 85, got %v", got)
	}
	m.SetMode(ModeContinuous)
	if got := m.VirtualDuration(); got != 90 {
		t.Errorf("continuous virtual duration: expected 90, got %v", got)
	}
}

func TestModel_DerivedRecomputeOnVersionChange(t *testing.T) {
	m := NewModel(100)
	_ = m.Apply(Mutation{Track: TrackConfirmed, Confirmed: confirmedAt([2]float64{10, 20})})
	v1 := m.Version()
	if m.Stats().CurrentBase != 90 {
		t.Fatal("unexpected base")
	}

	_ = m.Apply(Mutation{Track: TrackConfirmed, Confirmed: confirmedAt([2]float64{10, 40})})
	if m.Version() == v1 {
		t.Error("expected version bump on mutation")
	}
	if m.Stats().CurrentBase != 70 {
		t.Errorf("expected recomputed base 70, got %v", m.Stats().CurrentBase)
	}
}

func TestModel_NonFiniteDurationGuard(t *testing.T) {
	m := NewModel(math.Inf(1))
	if m.OriginalDuration() != 0 {
		t.Errorf("expected non-finite duration defaulted to 0, got %v", m.OriginalDuration())
	}
}
