package timeline

import (
	"errors"
	"math"
	"sync"

	"github.com/ripplecut/ripplecut/internal/segment"
)

// Track identifies which segment list a mutation or selection targets.
type Track string

const (
	// TrackMedia is the media row itself (speech clips / whole item).
	TrackMedia Track = "media"
	// TrackConfirmed is the confirmed cut list.
	TrackConfirmed Track = "confirmed"
	// TrackPending is the pending cut list.
	TrackPending Track = "pending"
)

// ErrUnknownTrack is returned when a mutation names a track the model does
// not own.
var ErrUnknownTrack = errors.New("timeline: unknown mutation track")

// Stats are the derived timeline statistics. All fields are recomputed from
// scratch whenever either segment list changes.
type Stats struct {
	// OriginalDuration is the media duration in seconds.
	OriginalDuration float64 `json:"originalDuration"`
	// CurrentBase is OriginalDuration minus the merged confirmed cuts.
	CurrentBase float64 `json:"currentBase"`
	// Remaining is OriginalDuration minus the merged union of confirmed and
	// pending cuts: the duration the export would produce right now.
	Remaining float64 `json:"remaining"`
	// TotalCutDuration is the total time removed by confirmed and pending cuts.
	TotalCutDuration float64 `json:"totalCutDuration"`
	// CutCount is the number of merged cut regions.
	CutCount int `json:"cutCount"`
}

// Clip is a derived maximal span of kept material between confirmed cuts,
// carrying its offset on the collapsed virtual timeline.
type Clip struct {
	// Start is the clip's real-time start in seconds.
	Start float64 `json:"start"`
	// End is the clip's real-time end in seconds.
	End float64 `json:"end"`
	// Duration is End minus Start.
	Duration float64 `json:"duration"`
	// VirtualStart is the clip's offset on the collapsed timeline.
	VirtualStart float64 `json:"virtualStart"`
}

// Mutation is the single entry point payload for changing the model's
// segment lists. Exactly one of Confirmed/Pending is consulted, selected by
// Track. SkipHistory marks ephemeral mutations (live drag previews) that
// must not produce undo entries.
type Mutation struct {
	Track       Track
	Confirmed   []segment.Confirmed
	Pending     []segment.Pending
	SkipHistory bool
}

// derived caches the computed values for one model version.
type derived struct {
	version  uint64
	silences []segment.Interval
	stats    Stats
	clips    []Clip
}

// Model owns the confirmed and pending cut lists for one media file and is
// their only writer. Everything else the renderer needs (stats, clips,
// mapping) is derived from an immutable snapshot and memoized against a
// version counter bumped on every mutation.
type Model struct {
	mu sync.Mutex

	originalDuration float64
	confirmed        []segment.Confirmed
	pending          []segment.Pending
	sensitivity      float64
	mode             Mode

	history   *History
	version   uint64
	memo      derived
	memoValid bool
}

// NewModel creates a model for a media file of the given duration, in
// fragmented (ripple) presentation mode. Non-finite durations are treated
// as zero rather than propagated into layout arithmetic.
func NewModel(originalDuration float64, opts ...Option) *Model {
	if !isFinite(originalDuration) || originalDuration < 0 {
		originalDuration = 0
	}
	m := &Model{
		originalDuration: originalDuration,
		mode:             ModeFragmented,
		history:          NewHistory(DefaultHistoryLimit),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Option configures a Model at construction time.
type Option func(*Model)

// WithHistoryLimit overrides the undo stack cap. A non-positive limit falls
// back to DefaultHistoryLimit.
func WithHistoryLimit(limit int) Option {
	return func(m *Model) {
		m.history = NewHistory(limit)
	}
}

// Apply is the single mutation entry point. Confirmed-list mutations push a
// history snapshot first unless SkipHistory is set; pending-list mutations
// never touch history.
func (m *Model) Apply(mut Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch mut.Track {
	case TrackConfirmed:
		if !mut.SkipHistory {
			m.history.Push(Snapshot{Confirmed: m.confirmed, Sensitivity: m.sensitivity})
		}
		m.confirmed = cloneConfirmed(mut.Confirmed)
	case TrackPending:
		m.pending = clonePending(mut.Pending)
	default:
		return ErrUnknownTrack
	}

	m.version++
	return nil
}

// Commit promotes the pending cuts into the confirmed list and clears the
// pending list. The sensitivity that produced the pending set is recorded so
// undo can restore the pair atomically.
func (m *Model) Commit(sensitivity float64) error {
	m.mu.Lock()
	combined := append(segment.Intervals(m.confirmed), segment.PendingIntervals(m.pending)...)
	merged := segment.Merge(combined)
	next := make([]segment.Confirmed, 0, len(merged))
	for _, iv := range merged {
		next = append(next, segment.Confirmed{ID: reuseID(m.confirmed, iv), Interval: iv})
	}
	m.mu.Unlock()

	if err := m.Apply(Mutation{Track: TrackConfirmed, Confirmed: next}); err != nil {
		return err
	}
	if err := m.Apply(Mutation{Track: TrackPending, Pending: nil}); err != nil {
		return err
	}

	m.mu.Lock()
	m.sensitivity = sensitivity
	m.version++
	m.mu.Unlock()
	return nil
}

// Undo pops the most recent snapshot and restores the confirmed list and
// committed sensitivity together. It reports false on an empty stack and
// leaves the model untouched.
func (m *Model) Undo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.history.Pop()
	if !ok {
		return false
	}
	m.confirmed = cloneConfirmed(snap.Confirmed)
	m.sensitivity = snap.Sensitivity
	m.version++
	return true
}

// SetMode switches the presentation mode.
func (m *Model) SetMode(mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode != m.mode && (mode == ModeFragmented || mode == ModeContinuous) {
		m.mode = mode
		m.version++
	}
}

// Mode returns the current presentation mode.
func (m *Model) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// OriginalDuration returns the media duration in seconds.
func (m *Model) OriginalDuration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.originalDuration
}

// Sensitivity returns the committed detection sensitivity.
func (m *Model) Sensitivity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sensitivity
}

// HistoryLen returns the current undo stack depth.
func (m *Model) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Len()
}

// Confirmed returns a copy of the confirmed segment list.
func (m *Model) Confirmed() []segment.Confirmed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneConfirmed(m.confirmed)
}

// Pending returns a copy of the pending segment list.
func (m *Model) Pending() []segment.Pending {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePending(m.pending)
}

// Silences returns the merged confirmed cut intervals.
func (m *Model) Silences() []segment.Interval {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.derive()
	out := make([]segment.Interval, len(d.silences))
	copy(out, d.silences)
	return out
}

// Stats returns the derived timeline statistics.
func (m *Model) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.derive().stats
}

// SpeechClips returns the derived kept spans between confirmed cuts, ordered
// by real start with strictly increasing virtual offsets.
func (m *Model) SpeechClips() []Clip {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.derive()
	out := make([]Clip, len(d.clips))
	copy(out, d.clips)
	return out
}

// Mapper returns a real/virtual converter for the current confirmed cuts and
// presentation mode.
func (m *Model) Mapper() Mapper {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.derive()
	if m.mode == ModeContinuous {
		return Mapper{identity: true}
	}
	return Mapper{silences: d.silences}
}

// VirtualDuration is the duration the renderer lays the timeline out
// against: the post-cut remaining duration in fragmented mode, the current
// base in continuous mode.
func (m *Model) VirtualDuration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.derive()
	if m.mode == ModeFragmented {
		return d.stats.Remaining
	}
	return d.stats.CurrentBase
}

// Version returns the mutation counter; it changes whenever either segment
// list, the mode or the committed sensitivity changes.
func (m *Model) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// derive recomputes stats, silences and clips when the memoized version is
// stale. Derivations are always whole-snapshot recomputations; nothing is
// patched incrementally. Callers must hold m.mu.
func (m *Model) derive() derived {
	if m.memoValid && m.memo.version == m.version {
		return m.memo
	}

	silences := segment.Merge(segment.Intervals(m.confirmed))
	combined := segment.Merge(append(segment.Intervals(m.confirmed), segment.PendingIntervals(m.pending)...))

	totalConfirmed := segment.Total(silences)
	totalCombined := segment.Total(combined)

	stats := Stats{
		OriginalDuration: m.originalDuration,
		CurrentBase:      clamp(m.originalDuration-totalConfirmed, 0, m.originalDuration),
		Remaining:        clamp(m.originalDuration-totalCombined, 0, m.originalDuration),
		TotalCutDuration: math.Min(totalCombined, m.originalDuration),
		CutCount:         len(combined),
	}
	if stats.Remaining > stats.CurrentBase {
		stats.Remaining = stats.CurrentBase
	}

	m.memo = derived{
		version:  m.version,
		silences: silences,
		stats:    stats,
		clips:    buildClips(silences, m.originalDuration),
	}
	m.memoValid = true
	return m.memo
}

// buildClips walks the merged cuts and emits one clip per gap, including the
// trailing tail up to the original duration.
func buildClips(silences []segment.Interval, originalDuration float64) []Clip {
	clips := make([]Clip, 0, len(silences)+1)
	var cursor float64
	var virtual float64
	for _, seg := range silences {
		if seg.Start > cursor+segment.MinWidth {
			c := Clip{Start: cursor, End: seg.Start, Duration: seg.Start - cursor, VirtualStart: virtual}
			clips = append(clips, c)
			virtual += c.Duration
		}
		if seg.End > cursor {
			cursor = seg.End
		}
	}
	if cursor < originalDuration-segment.MinWidth {
		clips = append(clips, Clip{
			Start:        cursor,
			End:          originalDuration,
			Duration:     originalDuration - cursor,
			VirtualStart: virtual,
		})
	}
	return clips
}

func cloneConfirmed(segs []segment.Confirmed) []segment.Confirmed {
	out := make([]segment.Confirmed, len(segs))
	copy(out, segs)
	return out
}

func clonePending(segs []segment.Pending) []segment.Pending {
	out := make([]segment.Pending, len(segs))
	copy(out, segs)
	return out
}

// reuseID keeps the ID of a confirmed segment whose interval survives a
// merge unchanged, so an in-flight gesture addressing it stays valid.
func reuseID(prev []segment.Confirmed, iv segment.Interval) string {
	for _, s := range prev {
		if s.Start == iv.Start && s.End == iv.End {
			return s.ID
		}
	}
	return segment.NewConfirmed(iv.Start, iv.End).ID
}

func clamp(v, lo, hi float64) float64 {
	if !isFinite(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
