package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNoteSegment_CacheDeterminism(t *testing.T) {
	e := NewEngine(zap.NewNop())

	first := e.NoteSegment(0, 69, 480, TempoKey(120), 480, 22050)
	second := e.NoteSegment(0, 69, 480, TempoKey(120), 480, 22050)

	require.Equal(t, first, second)
	info := e.CacheInfo()
	assert.Equal(t, 1, info.Hits)
	assert.Equal(t, 1, info.Misses)
	assert.Equal(t, 1, info.Size)
}

func TestNoteSegment_LengthFollowsTempo(t *testing.T) {
	e := NewEngine(zap.NewNop())

	// One quarter note: 0.5s at 120 bpm, 1s at 60 bpm.
	atSlow := e.NoteSegment(0, 60, 480, TempoKey(60), 480, 22050)
	atFast := e.NoteSegment(0, 60, 480, TempoKey(120), 480, 22050)

	assert.Equal(t, 22050, len(atSlow))
	assert.Equal(t, 11025, len(atFast))
}

func TestNoteSegment_InvalidPitchIsSilent(t *testing.T) {
	e := NewEngine(zap.NewNop())

	segment := e.NoteSegment(0, -1, 480, TempoKey(120), 480, 22050)

	require.NotEmpty(t, segment)
	for _, v := range segment {
		require.Zero(t, v)
	}
}

func TestNoteSegment_CacheOverflowClearsWholesale(t *testing.T) {
	e := NewEngine(zap.NewNop(), WithCacheCap(4))

	for pitch := 60; pitch < 66; pitch++ {
		e.NoteSegment(0, pitch, 10, TempoKey(120), 480, 8000)
	}

	info := e.CacheInfo()
	assert.Equal(t, 6, info.Misses)
	// The fifth insert overflowed the cap of 4 and cleared the map first.
	assert.Less(t, info.Size, 5)
}

func TestClearCache(t *testing.T) {
	e := NewEngine(zap.NewNop())
	e.NoteSegment(0, 69, 480, TempoKey(120), 480, 22050)

	e.ClearCache()

	assert.Equal(t, CacheInfo{}, e.CacheInfo())
}

func TestMIDIToFrequency(t *testing.T) {
	assert.InDelta(t, 440.0, MIDIToFrequency(69), 1e-9)
	assert.InDelta(t, 880.0, MIDIToFrequency(81), 1e-9)
	assert.Zero(t, MIDIToFrequency(-1))
	assert.Zero(t, MIDIToFrequency(128))
}

func TestPatchForProgram_Buckets(t *testing.T) {
	assert.Equal(t, pianoPatch.Gain, PatchForProgram(0).Gain)
	assert.Equal(t, flutePatch.VibratoDepth, PatchForProgram(79).VibratoDepth)
	assert.Equal(t, stringsPatch.AttackRatio, PatchForProgram(48).AttackRatio)
	// Clamped out-of-range programs resolve to the outer buckets.
	assert.Equal(t, pianoPatch.Gain, PatchForProgram(-5).Gain)
	assert.Equal(t, defaultPatch.Gain, PatchForProgram(300).Gain)
}
