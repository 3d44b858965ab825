package preview

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/llehouerou/arpeggio/internal/synth"
	"github.com/llehouerou/arpeggio/internal/tempo"
)

const (
	defaultPPQ             = 480
	defaultTempoBPM        = 120.0
	defaultBeatsPerMeasure = 4
	defaultBeatUnit        = 4
)

// Controller is the playback state machine exposed to the UI layer. All
// public methods are safe for concurrent use; render callbacks arrive on the
// worker goroutine and mutate the same state under the controller lock.
type Controller struct {
	renderer Renderer
	log      *zap.Logger

	mu            sync.Mutex
	state         State
	sourceChanges []tempo.Change
	signature     uint64
	hasSignature  bool
	resumePending bool
	tickRemainder float64
	observer      func(State)
}

// NewController creates a controller over the given renderer.
func NewController(renderer Renderer, log *zap.Logger) *Controller {
	if renderer == nil {
		renderer = NullRenderer{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		renderer: renderer,
		log:      log,
		state: State{
			PPQ:             defaultPPQ,
			TempoBPM:        defaultTempoBPM,
			BeatsPerMeasure: defaultBeatsPerMeasure,
			BeatUnit:        defaultBeatUnit,
			Volume:          1.0,
		},
	}
	renderer.SetListener(NewRenderTracker(
		c.onRenderStarted, c.onRenderProgress, c.onRenderComplete))
	return c
}

// State returns a copy of the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetRenderObserver registers a callback invoked with a state copy after
// every state change. The callback runs on whichever goroutine caused the
// change and must not call back into the controller.
func (c *Controller) SetRenderObserver(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

func (c *Controller) notifyLocked() {
	if c.observer != nil {
		c.observer(c.state)
	}
}

// Load replaces the arrangement. A changed content signature triggers an
// asynchronous re-render; reloading identical content only re-applies the
// metronome and time signature. State resets to loaded, stopped, position 0.
func (c *Controller) Load(
	events []synth.Event,
	ppq int,
	tempoBPM float64,
	changes []tempo.Change,
	beatsPerMeasure, beatUnit int,
) {
	if ppq <= 0 {
		ppq = defaultPPQ
	}
	if beatsPerMeasure <= 0 {
		beatsPerMeasure = defaultBeatsPerMeasure
	}
	if beatUnit <= 0 {
		beatUnit = defaultBeatUnit
	}
	if tempoBPM <= 0 {
		tempoBPM = tempo.First(changes, defaultTempoBPM)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsPlaying {
		c.renderer.Pause()
		c.state.IsPlaying = false
	}
	c.resumePending = false
	c.tickRemainder = 0

	sig := Signature(events, ppq, changes)
	changed := !c.hasSignature || sig != c.signature
	c.signature = sig
	c.hasSignature = true
	c.sourceChanges = append([]tempo.Change(nil), changes...)

	duration := 0
	for _, ev := range events {
		if end := ev.OnsetTick + ev.DurationTicks; end > duration {
			duration = end
		}
	}

	c.state.IsLoaded = true
	c.state.PositionTick = 0
	c.state.DurationTick = duration
	c.state.TrackEndTick = roundUpToMeasure(duration, ppq, beatsPerMeasure, beatUnit)
	c.state.PPQ = ppq
	c.state.TempoBPM = tempoBPM
	c.state.BeatsPerMeasure = beatsPerMeasure
	c.state.BeatUnit = beatUnit
	c.state.Loop = LoopRegion{Enabled: false, StartTick: 0, EndTick: c.state.TrackEndTick}
	c.state.LastError = ""

	if changed {
		c.renderer.UpdateSource(events, ppq, tempoBPM, changes)
	}
	c.renderer.SetTempo(tempoBPM, tempo.NormalizeTo(tempoBPM, changes))
	c.renderer.SetMetronome(c.metronomeSettingsLocked())
	if changed {
		c.renderer.Prepare(false)
	}
	c.notifyLocked()
}

// roundUpToMeasure rounds a tick count up to the next whole measure boundary.
func roundUpToMeasure(ticks, ppq, beatsPerMeasure, beatUnit int) int {
	beatTicks := int(math.Round(float64(ppq*4) / float64(max(1, beatUnit))))
	measureTicks := max(1, beatsPerMeasure*beatTicks)
	if ticks <= 0 {
		return 0
	}
	measures := (ticks + measureTicks - 1) / measureTicks
	return measures * measureTicks
}

func (c *Controller) metronomeSettingsLocked() synth.MetronomeSettings {
	return synth.MetronomeSettings{
		Enabled:         c.state.MetronomeEnabled,
		BeatsPerMeasure: c.state.BeatsPerMeasure,
		BeatUnit:        c.state.BeatUnit,
	}
}

// TogglePlayback starts or pauses playback and returns whether playback is
// running afterwards.
func (c *Controller) TogglePlayback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsLoaded {
		return false
	}
	if c.state.IsPlaying {
		c.renderer.Pause()
		c.state.IsPlaying = false
		c.resumePending = false
		c.notifyLocked()
		return false
	}
	if !c.renderer.Available() {
		c.state.LastError = "no audio backend available"
		c.notifyLocked()
		return false
	}

	end := c.activeEndLocked()
	if c.state.PositionTick >= end {
		c.state.PositionTick = c.activeStartLocked()
		c.tickRemainder = 0
	}

	pending, err := c.renderer.Start(c.state.PositionTick)
	if err != nil {
		c.state.LastError = err.Error()
		c.notifyLocked()
		return false
	}
	c.state.IsPlaying = true
	c.state.LastError = ""
	c.resumePending = pending
	c.tickRemainder = 0
	c.notifyLocked()
	return true
}

func (c *Controller) activeStartLocked() int {
	if c.state.Loop.Enabled && c.state.Loop.EndTick > c.state.Loop.StartTick {
		return c.state.Loop.StartTick
	}
	return 0
}

func (c *Controller) activeEndLocked() int {
	if c.state.Loop.Enabled && c.state.Loop.EndTick > c.state.Loop.StartTick {
		return c.state.Loop.EndTick
	}
	return c.state.DurationTick
}

// Advance moves the playback cursor by elapsed wall time. A fractional-tick
// remainder accumulates across calls so sub-tick advances are not lost. The
// call is inert while a resume is pending on an in-flight render.
func (c *Controller) Advance(elapsedSeconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsLoaded || !c.state.IsPlaying || c.resumePending || elapsedSeconds <= 0 {
		return
	}

	exact := float64(c.state.PositionTick) + c.tickRemainder
	var next float64
	if tm := c.renderer.TempoMap(); tm != nil {
		next = tm.TickAtSeconds(secondsAtFloat(tm, exact) + elapsedSeconds)
	} else {
		next = exact + elapsedSeconds*c.renderer.TicksPerSecond()
	}

	newTick := int(math.Floor(next))
	c.tickRemainder = next - float64(newTick)

	loop := c.state.Loop
	if loop.Enabled && loop.EndTick > loop.StartTick && newTick >= loop.EndTick {
		length := loop.EndTick - loop.StartTick
		for newTick >= loop.EndTick {
			newTick -= length
		}
		if newTick < loop.StartTick {
			newTick = loop.StartTick
		}
		c.state.PositionTick = newTick
		c.renderer.Seek(newTick)
		c.notifyLocked()
		return
	}

	if !loop.Enabled && newTick >= c.state.DurationTick {
		c.state.PositionTick = c.state.DurationTick
		c.state.IsPlaying = false
		c.tickRemainder = 0
		c.renderer.Stop()
		c.notifyLocked()
		return
	}

	c.state.PositionTick = newTick
	c.notifyLocked()
}

// secondsAtFloat extends Map.SecondsAt to fractional ticks.
func secondsAtFloat(tm *tempo.Map, ticks float64) float64 {
	whole := int(math.Floor(ticks))
	frac := ticks - float64(whole)
	return tm.SecondsAt(whole) + frac/tm.TicksPerSecondAt(whole)
}

// SeekTo clamps the tick into the track and the active loop region, then
// forwards it to the renderer.
func (c *Controller) SeekTo(tick int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsLoaded {
		return
	}
	if tick < 0 {
		tick = 0
	}
	if tick > c.state.TrackEndTick {
		tick = c.state.TrackEndTick
	}
	if loop := c.state.Loop; loop.Enabled && loop.EndTick > loop.StartTick {
		if tick < loop.StartTick {
			tick = loop.StartTick
		}
		if tick > loop.EndTick {
			tick = loop.EndTick
		}
	}

	c.state.PositionTick = tick
	c.tickRemainder = 0
	c.renderer.Seek(tick)
	c.notifyLocked()
}

// SetTempo rescales the source tempo changes so their first tempo equals the
// requested one and re-renders; live playback restarts from the current
// position once the fresh buffer is ready.
func (c *Controller) SetTempo(bpm float64) {
	if bpm <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.TempoBPM = bpm
	c.renderer.SetTempo(bpm, tempo.NormalizeTo(bpm, c.sourceChanges))
	c.restartOrPrepareLocked()
	c.notifyLocked()
}

// SetMetronome toggles the click overlay, which is baked into the PCM and so
// requires a re-render.
func (c *Controller) SetMetronome(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.MetronomeEnabled == enabled {
		return
	}
	c.state.MetronomeEnabled = enabled
	c.renderer.SetMetronome(c.metronomeSettingsLocked())
	c.restartOrPrepareLocked()
	c.notifyLocked()
}

// restartOrPrepareLocked re-renders toward the current target: live playback
// restarts through the renderer (resume pending until the render lands),
// otherwise the render is just scheduled.
func (c *Controller) restartOrPrepareLocked() {
	if !c.state.IsLoaded {
		return
	}
	if c.state.IsPlaying {
		pending, err := c.renderer.Start(c.state.PositionTick)
		if err != nil {
			c.state.LastError = err.Error()
			c.state.IsPlaying = false
			c.resumePending = false
			return
		}
		c.resumePending = pending
		return
	}
	c.renderer.Prepare(false)
}

// SetLoop updates the loop region. Looping is cursor logic only and never
// triggers a re-render.
func (c *Controller) SetLoop(enabled bool, startTick, endTick int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if startTick < 0 {
		startTick = 0
	}
	if endTick > c.state.TrackEndTick {
		endTick = c.state.TrackEndTick
	}
	if endTick < startTick {
		endTick = startTick
	}
	c.state.Loop = LoopRegion{Enabled: enabled, StartTick: startTick, EndTick: endTick}

	if enabled && endTick > startTick &&
		(c.state.PositionTick < startTick || c.state.PositionTick >= endTick) {
		c.state.PositionTick = startTick
		c.tickRemainder = 0
		if c.state.IsPlaying {
			c.renderer.Seek(startTick)
		}
	}
	c.notifyLocked()
}

// SetVolume adjusts output level. Backends without native volume control get
// a playback restart with a rescaled buffer copy; the PCM is never
// re-rendered for volume.
func (c *Controller) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Volume = level
	applied := c.renderer.SetVolume(level)
	if !applied && c.state.IsPlaying {
		pending, err := c.renderer.Start(c.state.PositionTick)
		if err != nil {
			c.state.LastError = err.Error()
			c.state.IsPlaying = false
			c.resumePending = false
		} else {
			c.resumePending = pending
		}
	}
	c.notifyLocked()
}

// Close stops playback and shuts the renderer down.
func (c *Controller) Close() {
	c.mu.Lock()
	c.state.IsPlaying = false
	c.resumePending = false
	c.mu.Unlock()
	c.renderer.Close()
}

func (c *Controller) onRenderStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsRendering = true
	c.state.RenderProgress = 0
	c.notifyLocked()
}

func (c *Controller) onRenderProgress(fraction float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsRendering = true
	c.state.RenderProgress = fraction
	c.notifyLocked()
}

// onRenderComplete clears the rendering flag. On success a pending resume is
// considered handled, the renderer restarts playback on its own. On failure
// the pending resume is abandoned: playback drops back to stopped and the
// error is surfaced instead of leaving the controller stuck.
func (c *Controller) onRenderComplete(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.IsRendering = false
	c.state.RenderProgress = 1.0
	if success {
		c.resumePending = false
		c.notifyLocked()
		return
	}

	c.state.LastError = "render failed"
	if c.resumePending {
		c.resumePending = false
		c.state.IsPlaying = false
		c.renderer.Stop()
	}
	c.notifyLocked()
}
