// Package tempo converts between symbolic tick positions and wall-clock
// seconds under piecewise-constant tempo.
package tempo

import (
	"math"
	"sort"
)

// MinBPM is the floor applied to every tempo value to keep divisions safe.
const MinBPM = 1e-3

// Change describes a tempo change taking effect at a tick position.
type Change struct {
	Tick int
	BPM  float64
}

// Normalize deduplicates changes by tick (last write wins), sorts them
// ascending and anchors the list at tick 0 using the first change's tempo.
// Tempo values are floored at MinBPM and ticks at zero.
func Normalize(changes []Change) []Change {
	dedup := make(map[int]float64, len(changes))
	for _, c := range changes {
		tick := max(0, c.Tick)
		dedup[tick] = math.Max(MinBPM, c.BPM)
	}
	if len(dedup) == 0 {
		return nil
	}
	out := make([]Change, 0, len(dedup)+1)
	for tick, bpm := range dedup {
		out = append(out, Change{Tick: tick, BPM: bpm})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	if out[0].Tick > 0 {
		out = append([]Change{{Tick: 0, BPM: out[0].BPM}}, out...)
	}
	return out
}

// First returns the tempo of the earliest change, or def when the list is
// empty after normalization.
func First(changes []Change, def float64) float64 {
	normalized := Normalize(changes)
	if len(normalized) == 0 {
		return math.Max(MinBPM, def)
	}
	return normalized[0].BPM
}

// Slowest returns the slowest tempo present, or def when the list is empty.
func Slowest(changes []Change, def float64) float64 {
	var slowest float64
	found := false
	for _, c := range changes {
		bpm := math.Max(MinBPM, c.BPM)
		if !found || bpm < slowest {
			slowest = bpm
			found = true
		}
	}
	if !found {
		return math.Max(MinBPM, def)
	}
	return slowest
}

// NormalizeTo rescales changes so the first tempo equals target while
// preserving the ratios between successive tempos. An empty input produces a
// single change at tick 0 with the target tempo. Consecutive entries that end
// up within 1e-6 of each other collapse into one.
func NormalizeTo(target float64, changes []Change) []Change {
	desired := math.Max(MinBPM, target)
	normalized := Normalize(changes)
	if len(normalized) == 0 {
		return []Change{{Tick: 0, BPM: desired}}
	}
	scale := desired / normalized[0].BPM

	out := make([]Change, 0, len(normalized))
	for _, c := range normalized {
		scaled := math.Max(MinBPM, c.BPM*scale)
		if n := len(out); n > 0 && math.Abs(out[n-1].BPM-scaled) <= 1e-6 {
			continue
		}
		out = append(out, Change{Tick: c.Tick, BPM: scaled})
	}
	return out
}

// Equal reports whether two change lists describe the same tempo profile
// within a 1e-6 tempo tolerance.
func Equal(a, b []Change) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Tick != b[i].Tick || math.Abs(a[i].BPM-b[i].BPM) > 1e-6 {
			return false
		}
	}
	return true
}
