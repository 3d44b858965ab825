package preview

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/llehouerou/arpeggio/internal/synth"
	"github.com/llehouerou/arpeggio/internal/tempo"
)

func testEvents() []synth.Event {
	return []synth.Event{
		{OnsetTick: 0, DurationTicks: 480, Pitch: 69, Program: 79},
		{OnsetTick: 480, DurationTicks: 480, Pitch: 71, Program: 79},
	}
}

func loadedController(t *testing.T) (*Controller, *MockRenderer) {
	t.Helper()
	m := NewMockRenderer()
	c := NewController(m, zap.NewNop())
	c.Load(testEvents(), 480, 120, nil, 4, 4)
	return c, m
}

func TestLoad_ResetsState(t *testing.T) {
	c, m := loadedController(t)

	st := c.State()
	assert.True(t, st.IsLoaded)
	assert.False(t, st.IsPlaying)
	assert.Zero(t, st.PositionTick)
	assert.Equal(t, 960, st.DurationTick)
	// One 4/4 measure at ppq 480 is 1920 ticks; 960 rounds up to it.
	assert.Equal(t, 1920, st.TrackEndTick)
	assert.Equal(t, LoopRegion{Enabled: false, StartTick: 0, EndTick: 1920}, st.Loop)
	assert.Equal(t, 1, m.UpdateSourceCalls())
	assert.Equal(t, 1, m.PrepareCalls())
}

func TestLoad_SameContentSkipsRerender(t *testing.T) {
	c, m := loadedController(t)

	c.Load(testEvents(), 480, 120, nil, 4, 4)

	assert.Equal(t, 1, m.UpdateSourceCalls())
	assert.Equal(t, 1, m.PrepareCalls())
	// Metronome and time signature still get re-applied.
	assert.Len(t, m.MetronomeCalls(), 2)
}

func TestLoad_ChangedContentRerenders(t *testing.T) {
	c, m := loadedController(t)

	events := append(testEvents(), synth.Event{OnsetTick: 960, DurationTicks: 480, Pitch: 72})
	c.Load(events, 480, 120, nil, 4, 4)

	assert.Equal(t, 2, m.UpdateSourceCalls())
	assert.Equal(t, 2, m.PrepareCalls())
}

func TestTogglePlayback_StartAndPause(t *testing.T) {
	c, m := loadedController(t)

	require.True(t, c.TogglePlayback())
	assert.True(t, c.State().IsPlaying)
	assert.Equal(t, []int{0}, m.StartCalls())

	require.False(t, c.TogglePlayback())
	assert.False(t, c.State().IsPlaying)
	assert.Equal(t, 1, m.PauseCalls())
}

func TestTogglePlayback_NoBackend(t *testing.T) {
	c, m := loadedController(t)
	m.SetAvailable(false)

	assert.False(t, c.TogglePlayback())
	st := c.State()
	assert.False(t, st.IsPlaying)
	assert.NotEmpty(t, st.LastError)
	assert.Empty(t, m.StartCalls())
}

func TestTogglePlayback_StartFailure(t *testing.T) {
	c, m := loadedController(t)
	m.SetStartError(errors.New("device busy"))

	assert.False(t, c.TogglePlayback())
	st := c.State()
	assert.False(t, st.IsPlaying)
	assert.Contains(t, st.LastError, "device busy")
}

func TestTogglePlayback_AtEndSeeksToStart(t *testing.T) {
	c, m := loadedController(t)
	c.SeekTo(960)

	require.True(t, c.TogglePlayback())

	assert.Zero(t, c.State().PositionTick)
	assert.Equal(t, []int{0}, m.StartCalls())
}

func TestAdvance_FlatTempo(t *testing.T) {
	c, _ := loadedController(t)
	require.True(t, c.TogglePlayback())

	// 960 ticks/s flat rate: half a second is 480 ticks.
	c.Advance(0.5)

	assert.Equal(t, 480, c.State().PositionTick)
}

func TestAdvance_AccumulatesFractionalTicks(t *testing.T) {
	c, _ := loadedController(t)
	require.True(t, c.TogglePlayback())

	// Each call is worth 0.48 ticks; the remainder must carry over.
	for i := 0; i < 3; i++ {
		c.Advance(0.0005)
	}

	assert.Equal(t, 1, c.State().PositionTick)
}

func TestAdvance_UsesTempoMap(t *testing.T) {
	c, m := loadedController(t)
	tm, err := tempo.NewMap(480, []tempo.Change{{Tick: 0, BPM: 120}, {Tick: 480, BPM: 60}})
	require.NoError(t, err)
	m.SetTempoMap(tm)
	require.True(t, c.TogglePlayback())

	// 0.5s reaches tick 480, the remaining 0.5s at 60 bpm adds 240 ticks.
	c.Advance(1.0)

	assert.Equal(t, 720, c.State().PositionTick)
}

func TestAdvance_LoopWrap(t *testing.T) {
	c, m := loadedController(t)
	c.SetLoop(true, 120, 240)
	require.True(t, c.TogglePlayback())
	c.SeekTo(230)

	// 40 ticks' worth of time at 960 ticks/s.
	c.Advance(40.0 / 960.0)

	assert.Equal(t, 150, c.State().PositionTick)
	seeks := m.SeekCalls()
	require.NotEmpty(t, seeks)
	assert.Equal(t, 150, seeks[len(seeks)-1])
}

func TestAdvance_LoopWrapLargeJump(t *testing.T) {
	c, _ := loadedController(t)
	c.SetLoop(true, 120, 240)
	require.True(t, c.TogglePlayback())
	c.SeekTo(230)

	// Several loop lengths in one step still land inside the region.
	c.Advance(400.0 / 960.0)

	pos := c.State().PositionTick
	assert.GreaterOrEqual(t, pos, 120)
	assert.Less(t, pos, 240)
}

func TestAdvance_StopsAtTrackEnd(t *testing.T) {
	c, m := loadedController(t)
	require.True(t, c.TogglePlayback())
	c.SeekTo(950)

	c.Advance(1.0)

	st := c.State()
	assert.Equal(t, 960, st.PositionTick)
	assert.False(t, st.IsPlaying)
	assert.Equal(t, 1, m.StopCalls())
}

func TestAdvance_InertWhileResumePending(t *testing.T) {
	c, m := loadedController(t)
	m.SetStartPending(true)
	require.True(t, c.TogglePlayback())

	c.Advance(0.5)
	assert.Zero(t, c.State().PositionTick)

	// Once the render lands, advancing works again.
	m.Listener().RenderComplete(true)
	c.Advance(0.5)
	assert.Equal(t, 480, c.State().PositionTick)
}

func TestSeekTo_Clamps(t *testing.T) {
	c, _ := loadedController(t)

	c.SeekTo(-50)
	assert.Zero(t, c.State().PositionTick)

	c.SeekTo(5000)
	assert.Equal(t, 1920, c.State().PositionTick)

	c.SetLoop(true, 120, 240)
	c.SeekTo(600)
	assert.Equal(t, 240, c.State().PositionTick)
	c.SeekTo(10)
	assert.Equal(t, 120, c.State().PositionTick)
}

func TestSetTempo_RescalesChanges(t *testing.T) {
	m := NewMockRenderer()
	c := NewController(m, zap.NewNop())
	changes := []tempo.Change{{Tick: 0, BPM: 120}, {Tick: 480, BPM: 60}}
	c.Load(testEvents(), 480, 120, changes, 4, 4)

	c.SetTempo(240)

	calls := m.TempoCalls()
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	assert.InDelta(t, 240.0, last.BPM, 1e-9)
	require.Len(t, last.Changes, 2)
	assert.InDelta(t, 240.0, last.Changes[0].BPM, 1e-9)
	assert.InDelta(t, 120.0, last.Changes[1].BPM, 1e-9)
}

func TestSetTempo_WhilePlayingRestarts(t *testing.T) {
	c, m := loadedController(t)
	require.True(t, c.TogglePlayback())
	c.Advance(0.25)

	c.SetTempo(90)

	calls := m.StartCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, 240, calls[1])
	assert.True(t, c.State().IsPlaying)
}

func TestSetMetronome_Rerenders(t *testing.T) {
	c, m := loadedController(t)
	prepares := m.PrepareCalls()

	c.SetMetronome(true)

	assert.True(t, c.State().MetronomeEnabled)
	assert.Equal(t, prepares+1, m.PrepareCalls())

	// No change, no re-render.
	c.SetMetronome(true)
	assert.Equal(t, prepares+1, m.PrepareCalls())
}

func TestSetLoop_NeverRerenders(t *testing.T) {
	c, m := loadedController(t)
	prepares := m.PrepareCalls()

	c.SetLoop(true, 120, 240)
	c.SetLoop(false, 0, 0)

	assert.Equal(t, prepares, m.PrepareCalls())
	assert.Equal(t, 1, m.UpdateSourceCalls())
}

func TestSetLoop_MovesCursorIntoRegion(t *testing.T) {
	c, _ := loadedController(t)
	c.SeekTo(600)

	c.SetLoop(true, 120, 240)

	assert.Equal(t, 120, c.State().PositionTick)
}

func TestSetVolume_NativeBackend(t *testing.T) {
	c, m := loadedController(t)
	require.True(t, c.TogglePlayback())

	c.SetVolume(0.5)

	assert.InDelta(t, 0.5, c.State().Volume, 1e-9)
	assert.Equal(t, []float64{0.5}, m.VolumeCalls())
	// Native volume control means no restart.
	assert.Len(t, m.StartCalls(), 1)
}

func TestSetVolume_RestartsFileBackend(t *testing.T) {
	c, m := loadedController(t)
	m.SetVolumeLive(false)
	require.True(t, c.TogglePlayback())
	c.Advance(0.25)

	c.SetVolume(0.5)

	calls := m.StartCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, 240, calls[1])
}

func TestRenderCallbacks_TrackProgress(t *testing.T) {
	c, m := loadedController(t)

	l := m.Listener()
	require.NotNil(t, l)
	l.RenderStarted()
	assert.True(t, c.State().IsRendering)

	l.RenderProgress(0.4)
	assert.InDelta(t, 0.4, c.State().RenderProgress, 1e-9)

	l.RenderComplete(true)
	st := c.State()
	assert.False(t, st.IsRendering)
	assert.InDelta(t, 1.0, st.RenderProgress, 1e-9)
}

func TestRenderFailure_ClearsPendingResume(t *testing.T) {
	c, m := loadedController(t)
	m.SetStartPending(true)
	require.True(t, c.TogglePlayback())

	m.Listener().RenderComplete(false)

	st := c.State()
	assert.False(t, st.IsPlaying)
	assert.Equal(t, "render failed", st.LastError)
	assert.Equal(t, 1, m.StopCalls())
}

func TestObserver_ReceivesStateCopies(t *testing.T) {
	c, _ := loadedController(t)
	var seen []State
	c.SetRenderObserver(func(s State) { seen = append(seen, s) })

	c.SetVolume(0.7)

	require.NotEmpty(t, seen)
	assert.InDelta(t, 0.7, seen[len(seen)-1].Volume, 1e-9)
}

func TestSignature_Stability(t *testing.T) {
	a := Signature(testEvents(), 480, nil)
	b := Signature(testEvents(), 480, nil)
	assert.Equal(t, a, b)

	changed := Signature(testEvents(), 960, nil)
	assert.NotEqual(t, a, changed)

	withChanges := Signature(testEvents(), 480, []tempo.Change{{Tick: 0, BPM: 90}})
	assert.NotEqual(t, a, withChanges)
}

func TestNullRenderer_StartFails(t *testing.T) {
	c := NewController(NullRenderer{}, zap.NewNop())
	c.Load(testEvents(), 480, 120, nil, 4, 4)

	assert.False(t, c.TogglePlayback())
	assert.NotEmpty(t, c.State().LastError)
}
