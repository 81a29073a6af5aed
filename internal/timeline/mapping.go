// Package timeline owns the ripple-edit timeline model: the confirmed and
// pending cut lists, the real/virtual time mapping built from merged cuts,
// derived statistics and speech clips, and the bounded undo history.
package timeline

import (
	"github.com/ripplecut/ripplecut/internal/segment"
)

// Mode selects how real time is presented on the virtual timeline.
type Mode string

const (
	// ModeFragmented collapses confirmed cuts so no gap remains (ripple edit).
	ModeFragmented Mode = "fragmented"
	// ModeContinuous presents the original timeline without compression.
	ModeContinuous Mode = "continuous"
)

// Mapper converts between real-time coordinates on the original media and
// virtual coordinates on the collapsed timeline. The zero value maps
// identically; build one with NewMapper from the confirmed cut list.
type Mapper struct {
	silences []segment.Interval
	identity bool
}

// NewMapper builds a Mapper over the merged confirmed cuts. In continuous
// mode the mapping is the identity in both directions: compression is a
// presentation policy, not a property of the cut set.
func NewMapper(confirmed []segment.Interval, mode Mode) Mapper {
	if mode == ModeContinuous {
		return Mapper{identity: true}
	}
	return Mapper{silences: segment.Merge(confirmed)}
}

// RealToVirtual maps a real-time position to the collapsed timeline.
// A position inside a removed region snaps to the virtual instant
// immediately preceding the gap.
func (m Mapper) RealToVirtual(t float64) float64 {
	if m.identity {
		return t
	}
	var offset float64
	for _, seg := range m.silences {
		if seg.End <= t {
			offset += seg.Width()
			continue
		}
		if t >= seg.Start {
			return seg.Start - offset
		}
		break
	}
	return t - offset
}

// VirtualToReal maps a collapsed-timeline position back to real time.
// For any t outside a removed region, VirtualToReal(RealToVirtual(t)) == t.
func (m Mapper) VirtualToReal(v float64) float64 {
	if m.identity {
		return v
	}
	var virtualSoFar float64
	var lastEnd float64
	for _, seg := range m.silences {
		speech := seg.Start - lastEnd
		if v < virtualSoFar+speech {
			return lastEnd + (v - virtualSoFar)
		}
		virtualSoFar += speech
		lastEnd = seg.End
	}
	return lastEnd + (v - virtualSoFar)
}

// CollapsedDuration returns how much time the mapper removes in total.
func (m Mapper) CollapsedDuration() float64 {
	if m.identity {
		return 0
	}
	return segment.Total(m.silences)
}
