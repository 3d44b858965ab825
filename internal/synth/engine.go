// Package synth renders note events into 16-bit mono PCM audio using
// additive synthesis with a per-program timbre table.
package synth

import (
	"math"
	"sync"

	"go.uber.org/zap"
)

// Event is a single note: onset and duration in ticks, MIDI pitch and GM
// program number. Events are immutable once produced.
type Event struct {
	OnsetTick     int
	DurationTicks int
	Pitch         int
	Program       int
}

// DefaultCacheCap bounds the note-segment cache. On overflow the cache is
// cleared wholesale rather than evicted by recency.
const DefaultCacheCap = 2048

// TempoKey quantizes a tempo to a cache key, stabilizing floating-point
// lookups across renders.
func TempoKey(bpm float64) int {
	return int(math.Round(math.Max(bpm, 1e-3) * 1000.0))
}

type segmentKey struct {
	program       int
	pitch         int
	durationTicks int
	tempoKey      int
	ppq           int
	sampleRate    int
}

// CacheInfo reports note-segment cache statistics.
type CacheInfo struct {
	Hits   int
	Misses int
	Size   int
}

// Engine synthesizes note segments with a bounded result cache. The cache is
// guarded by a single mutex serializing the whole lookup-or-compute path,
// trading parallelism for simplicity.
type Engine struct {
	mu       sync.Mutex
	cache    map[segmentKey][]float64
	hits     int
	misses   int
	cacheCap int

	log *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCacheCap overrides the note-segment cache capacity.
func WithCacheCap(entries int) Option {
	return func(e *Engine) {
		if entries > 0 {
			e.cacheCap = entries
		}
	}
}

// NewEngine creates a synthesis engine. A nil logger disables diagnostics.
func NewEngine(log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		cache:    make(map[segmentKey][]float64),
		cacheCap: DefaultCacheCap,
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CacheInfo returns current cache statistics.
func (e *Engine) CacheInfo() CacheInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CacheInfo{Hits: e.hits, Misses: e.misses, Size: len(e.cache)}
}

// ClearCache drops all cached segments and resets the counters.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[segmentKey][]float64)
	e.hits = 0
	e.misses = 0
}

// NoteSegment returns the synthesized waveform for one note. The returned
// slice is shared with the cache and must not be modified. tempoKey is a
// quantized tempo as produced by TempoKey.
func (e *Engine) NoteSegment(program, pitch, durationTicks, tempoKey, ppq, sampleRate int) []float64 {
	key := segmentKey{
		program:       program,
		pitch:         pitch,
		durationTicks: durationTicks,
		tempoKey:      tempoKey,
		ppq:           ppq,
		sampleRate:    sampleRate,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if segment, ok := e.cache[key]; ok {
		e.hits++
		return segment
	}
	e.misses++

	segment := synthesizeSegment(program, pitch, durationTicks, tempoKey, ppq, sampleRate)
	if len(e.cache) > e.cacheCap {
		e.log.Debug("note segment cache overflow, clearing",
			zap.Int("entries", len(e.cache)))
		e.cache = make(map[segmentKey][]float64)
	}
	e.cache[key] = segment
	return segment
}

func synthesizeSegment(program, pitch, durationTicks, tempoKey, ppq, sampleRate int) []float64 {
	ticks := max(1, durationTicks)
	tempoUnits := max(1, tempoKey)
	quarters := max(1, ppq)
	bpm := float64(tempoUnits) / 1000.0
	ticksPerSecond := math.Max((bpm/60.0)*float64(quarters), 1e-6)
	segmentSeconds := float64(ticks) / ticksPerSecond
	length := max(1, int(math.Round(segmentSeconds*float64(sampleRate))))

	frequency := MIDIToFrequency(pitch)
	if frequency <= 0 {
		return make([]float64, length)
	}

	patch := PatchForProgram(program)
	baseStep := 2 * math.Pi * frequency / float64(sampleRate)
	vibratoStep := 0.0
	if patch.VibratoHz != 0 {
		vibratoStep = 2 * math.Pi * patch.VibratoHz / float64(sampleRate)
	}
	gain := patch.Gain * pitchGain(pitch)

	attack := max(1, min(length, int(float64(length)*patch.AttackRatio)))
	release := max(1, min(length, int(float64(length)*patch.ReleaseRatio)))
	attackScale := 1.0 / float64(attack)
	releaseScale := 1.0 / float64(release)
	releaseStart := max(0, length-release)

	segment := make([]float64, length)
	basePhase := 0.0
	vibratoPhase := 0.0
	for i := 0; i < length; i++ {
		envelope := 1.0
		switch {
		case i < attack:
			envelope = float64(i) * attackScale
		case i >= releaseStart:
			envelope = float64(length-i) * releaseScale
		}

		vibratoScale := 1.0
		if patch.VibratoDepth != 0 && vibratoStep != 0 {
			vibratoScale += patch.VibratoDepth * math.Sin(vibratoPhase)
			vibratoPhase += vibratoStep
		}

		value := 0.0
		for _, h := range patch.Harmonics {
			value += math.Sin(basePhase*h.Multiple) * h.Amplitude
		}
		segment[i] = value * envelope * gain

		stepScale := vibratoScale
		if stepScale < 0 {
			stepScale = 0
		}
		basePhase += baseStep * stepScale
	}
	return segment
}
