package preview

import (
	"errors"

	"github.com/llehouerou/arpeggio/internal/render"
	"github.com/llehouerou/arpeggio/internal/synth"
	"github.com/llehouerou/arpeggio/internal/tempo"
)

// ErrNoBackend is returned when playback is requested without a usable audio
// backend.
var ErrNoBackend = errors.New("preview: no audio backend available")

// Renderer is the audio side consumed by the Controller: it keeps a rendered
// buffer in step with the current source and target parameters and plays it.
type Renderer interface {
	Available() bool

	// UpdateSource replaces the arrangement and stops any live playback.
	UpdateSource(events []synth.Event, ppq int, tempoBPM float64, changes []tempo.Change)

	// Prepare schedules a render toward the current target parameters.
	// Returns true if a render was scheduled.
	Prepare(force bool) bool

	// Start plays from the given tick. When the buffer is not ready yet, the
	// render is scheduled and playback resumes once the worker goes idle; the
	// pending flag reports that case.
	Start(fromTick int) (pending bool, err error)

	Pause()
	Stop()

	// Seek restarts live playback from the given tick; a no-op otherwise.
	Seek(tick int)

	SetTempo(bpm float64, changes []tempo.Change)
	SetMetronome(settings synth.MetronomeSettings)

	// SetVolume returns true when the new level took effect on live playback
	// without needing a restart.
	SetVolume(level float64) bool

	SetListener(l render.Listener)

	// TempoMap returns the map the live buffer was rendered with, or nil.
	TempoMap() *tempo.Map
	// TicksPerSecond is the flat fallback rate for position tracking.
	TicksPerSecond() float64

	Close()
}

// NullRenderer is the stand-in used when no audio backend could be built.
// Everything is a no-op and Start fails.
type NullRenderer struct{}

func (NullRenderer) Available() bool { return false }

func (NullRenderer) UpdateSource([]synth.Event, int, float64, []tempo.Change) {}

func (NullRenderer) Prepare(bool) bool { return false }

func (NullRenderer) Start(int) (bool, error) { return false, ErrNoBackend }

func (NullRenderer) Pause() {}

func (NullRenderer) Stop() {}

func (NullRenderer) Seek(int) {}

func (NullRenderer) SetTempo(float64, []tempo.Change) {}

func (NullRenderer) SetMetronome(synth.MetronomeSettings) {}

func (NullRenderer) SetVolume(float64) bool { return true }

func (NullRenderer) SetListener(render.Listener) {}

func (NullRenderer) TempoMap() *tempo.Map { return nil }

func (NullRenderer) TicksPerSecond() float64 { return 0 }

func (NullRenderer) Close() {}

var _ Renderer = NullRenderer{}
