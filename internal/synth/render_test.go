package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/llehouerou/arpeggio/internal/tempo"
)

func testConfig() RenderConfig {
	return RenderConfig{
		SampleRate: 22050,
		Amplitude:  0.45,
		ChunkSize:  4096,
		Metronome:  MetronomeSettings{BeatsPerMeasure: 4, BeatUnit: 4},
	}
}

func TestRenderEvents_EndToEnd(t *testing.T) {
	e := NewEngine(zap.NewNop())
	events := []Event{
		{OnsetTick: 0, DurationTicks: 480, Pitch: 69, Program: 79},
		{OnsetTick: 480, DurationTicks: 480, Pitch: 71, Program: 79},
	}

	pcm, tm, err := e.RenderEvents(events, 120, 480, testConfig(), nil, nil)

	require.NoError(t, err)
	require.NotEmpty(t, pcm)
	assert.Zero(t, len(pcm)%2)
	assert.InDelta(t, 1.0, tm.SecondsAt(960), 1e-9)
}

func TestRenderEvents_SilenceIsZeroLength(t *testing.T) {
	e := NewEngine(zap.NewNop())
	// Out-of-range pitches synthesize to silence, so the peak stays at zero.
	events := []Event{{OnsetTick: 0, DurationTicks: 480, Pitch: 200, Program: 0}}

	pcm, tm, err := e.RenderEvents(events, 120, 480, testConfig(), nil, nil)

	require.NoError(t, err)
	assert.Empty(t, pcm)
	require.NotNil(t, tm)
}

func TestRenderEvents_NoEvents(t *testing.T) {
	e := NewEngine(zap.NewNop())
	var got []float64
	progress := func(v float64) { got = append(got, v) }

	pcm, tm, err := e.RenderEvents(nil, 120, 480, testConfig(), progress, nil)

	require.NoError(t, err)
	assert.Empty(t, pcm)
	require.NotNil(t, tm)
	require.Equal(t, []float64{1.0}, got)
}

func TestRenderEvents_ProgressMonotoneEndingAtOne(t *testing.T) {
	e := NewEngine(zap.NewNop())
	events := []Event{
		{OnsetTick: 0, DurationTicks: 480, Pitch: 60, Program: 0},
		{OnsetTick: 480, DurationTicks: 960, Pitch: 64, Program: 40},
	}
	cfg := testConfig()
	cfg.Metronome.Enabled = true

	var reports []float64
	_, _, err := e.RenderEvents(events, 120, 480, cfg, func(v float64) {
		reports = append(reports, v)
	}, nil)

	require.NoError(t, err)
	require.NotEmpty(t, reports)
	last := -1.0
	for _, v := range reports {
		require.GreaterOrEqual(t, v, last)
		require.LessOrEqual(t, v, 1.0)
		last = v
	}
	assert.Equal(t, 1.0, reports[len(reports)-1])
}

func TestRenderEvents_PeakNormalization(t *testing.T) {
	e := NewEngine(zap.NewNop())
	events := []Event{{OnsetTick: 0, DurationTicks: 480, Pitch: 69, Program: 0}}
	cfg := testConfig()
	cfg.Amplitude = 0.5

	pcm, _, err := e.RenderEvents(events, 120, 480, cfg, nil, nil)

	require.NoError(t, err)
	peak := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	assert.InDelta(t, 0.5*32767, float64(peak), 1.0)
}

func TestRenderEvents_MetronomeExtendsMix(t *testing.T) {
	e := NewEngine(zap.NewNop())
	events := []Event{{OnsetTick: 0, DurationTicks: 1920, Pitch: 69, Program: 0}}

	plain, _, err := e.RenderEvents(events, 120, 480, testConfig(), nil, nil)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Metronome.Enabled = true
	clicked, _, err := e.RenderEvents(events, 120, 480, cfg, nil, nil)
	require.NoError(t, err)

	require.Equal(t, len(plain), len(clicked))
	assert.NotEqual(t, plain, clicked)
}

func TestRenderEvents_VariableTempoPlacement(t *testing.T) {
	e := NewEngine(zap.NewNop())
	changes := []tempo.Change{{Tick: 0, BPM: 120}, {Tick: 480, BPM: 60}}
	events := []Event{
		{OnsetTick: 0, DurationTicks: 480, Pitch: 69, Program: 0},
		{OnsetTick: 480, DurationTicks: 480, Pitch: 71, Program: 0},
	}

	pcm, tm, err := e.RenderEvents(events, 120, 480, testConfig(), nil, changes)

	require.NoError(t, err)
	require.NotEmpty(t, pcm)
	// Second note spans 480..960 ticks: 0.5s..1.5s at the slower tempo.
	assert.InDelta(t, 1.5, tm.SecondsAt(960), 1e-9)
	wantSamples := int(float64(testConfig().SampleRate) * (1.5 + 0.5))
	assert.Equal(t, wantSamples*2, len(pcm))
}

func TestTempoKey_QuantizesMillibpm(t *testing.T) {
	assert.Equal(t, 120000, TempoKey(120))
	assert.Equal(t, 120000, TempoKey(120.0000001))
	assert.Equal(t, 1, TempoKey(0))
}
