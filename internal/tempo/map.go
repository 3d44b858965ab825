package tempo

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptyTempoInput is returned when a Map is built without any tempo data.
// Callers must always supply at least a default tempo at tick 0.
var ErrEmptyTempoInput = errors.New("tempo: no tempo changes supplied")

type segment struct {
	startTick      int
	bpm            float64
	ticksPerSecond float64
	secondsAtStart float64
}

// Map is an immutable piecewise-constant mapping between ticks and elapsed
// seconds. Segments are monotonically increasing in both start tick and
// start seconds.
type Map struct {
	ppq      int
	segments []segment
	ticks    []int
}

// NewMap builds a Map from the given pulses-per-quarter value and tempo
// changes. The changes are normalized first (see Normalize).
func NewMap(ppq int, changes []Change) (*Map, error) {
	normalized := Normalize(changes)
	if len(normalized) == 0 {
		return nil, ErrEmptyTempoInput
	}
	if ppq < 1 {
		ppq = 1
	}

	m := &Map{ppq: ppq}
	elapsed := 0.0
	lastTick := normalized[0].Tick
	lastTPS := ticksPerSecond(normalized[0].BPM, ppq)
	m.segments = append(m.segments, segment{
		startTick:      lastTick,
		bpm:            normalized[0].BPM,
		ticksPerSecond: lastTPS,
		secondsAtStart: 0,
	})
	m.ticks = append(m.ticks, lastTick)

	for _, c := range normalized[1:] {
		elapsed += float64(c.Tick-lastTick) / lastTPS
		lastTick = c.Tick
		lastTPS = ticksPerSecond(c.BPM, ppq)
		m.segments = append(m.segments, segment{
			startTick:      lastTick,
			bpm:            c.BPM,
			ticksPerSecond: lastTPS,
			secondsAtStart: elapsed,
		})
		m.ticks = append(m.ticks, lastTick)
	}
	return m, nil
}

func ticksPerSecond(bpm float64, ppq int) float64 {
	return math.Max((math.Max(MinBPM, bpm)/60.0)*float64(ppq), 1e-6)
}

// PPQ returns the pulses-per-quarter value the map was built with.
func (m *Map) PPQ() int { return m.ppq }

func (m *Map) segmentAt(tick int) segment {
	idx := sort.SearchInts(m.ticks, max(0, tick)+1) - 1
	if idx < 0 {
		idx = 0
	}
	return m.segments[idx]
}

// TempoAt returns the tempo in effect at the given tick.
func (m *Map) TempoAt(tick int) float64 {
	return m.segmentAt(tick).bpm
}

// TicksPerSecondAt returns the tick rate in effect at the given tick.
func (m *Map) TicksPerSecondAt(tick int) float64 {
	return m.segmentAt(tick).ticksPerSecond
}

// SecondsAt returns the elapsed seconds at the given tick.
func (m *Map) SecondsAt(tick int) float64 {
	seg := m.segmentAt(tick)
	offset := max(0, tick-seg.startTick)
	return seg.secondsAtStart + float64(offset)/seg.ticksPerSecond
}

// DurationBetween returns the seconds elapsed between two ticks, or 0 when
// end does not lie after start.
func (m *Map) DurationBetween(startTick, endTick int) float64 {
	if endTick <= startTick {
		return 0
	}
	return m.SecondsAt(endTick) - m.SecondsAt(startTick)
}

// TickAtSeconds returns the fractional tick position for an elapsed time.
// Times before the first segment clamp to its start tick; times past the
// last segment extrapolate linearly with the final tick rate.
func (m *Map) TickAtSeconds(seconds float64) float64 {
	target := math.Max(0, seconds)
	first := m.segments[0]
	if target <= first.secondsAtStart {
		return float64(first.startTick)
	}
	idx := sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].secondsAtStart > target
	}) - 1
	if idx < 0 {
		idx = 0
	}
	seg := m.segments[idx]
	offset := target - seg.secondsAtStart
	if offset <= 0 {
		return float64(seg.startTick)
	}
	return float64(seg.startTick) + offset*seg.ticksPerSecond
}

// SecondsToTick is the integer inverse of SecondsAt.
func (m *Map) SecondsToTick(seconds float64) int {
	tick := int(math.Round(m.TickAtSeconds(seconds)))
	return max(0, tick)
}

// TickToSample converts a tick position into a sample index at the given
// sample rate.
func (m *Map) TickToSample(tick, sampleRate int) int {
	rate := max(1, sampleRate)
	return int(math.Round(m.SecondsAt(tick) * float64(rate)))
}
