// Package render owns the background goroutine that keeps a rendered PCM
// buffer consistent with fast-changing playback parameters. Every scheduled
// job carries a generation number; a finished job publishes its result only
// if its generation still matches the worker's current one, so a stale render
// can never replace a fresher buffer.
package render

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/arpeggio/internal/synth"
	"github.com/llehouerou/arpeggio/internal/tempo"
)

const (
	queueCapacity  = 1024
	tempoTolerance = 1e-6
)

// Listener observes the lifecycle of render jobs. Callbacks run on the worker
// goroutine and only for jobs whose generation is still current; panics are
// recovered and logged, never allowed to kill the worker.
type Listener interface {
	RenderStarted()
	RenderProgress(fraction float64)
	RenderComplete(success bool)
}

// RenderFunc produces a PCM buffer for the given events and parameters.
type RenderFunc func(
	events []synth.Event,
	tempoBPM float64,
	ppq int,
	cfg synth.RenderConfig,
	progress func(float64),
	changes []tempo.Change,
) ([]byte, *tempo.Map, error)

// Request describes one EnsureBuffer call.
type Request struct {
	Tempo     float64
	Changes   []tempo.Change
	Metronome synth.MetronomeSettings
	Force     bool
	Wait      bool
	Listener  Listener
}

// Snapshot is the published result of the most recent matching render.
// TicksPerSecond falls back to a flat estimate from the source tempo while no
// buffer is valid.
type Snapshot struct {
	Valid          bool
	Generation     uint64
	Buffer         []byte
	TempoMap       *tempo.Map
	TicksPerSecond float64
	SampleRate     int
	Tempo          float64
	Metronome      synth.MetronomeSettings
}

type job struct {
	generation uint64
	events     []synth.Event
	ppq        int
	tempo      float64
	changes    []tempo.Change
	cfg        synth.RenderConfig
	listener   Listener
}

// Worker serializes synthesis on a single background goroutine fed by a FIFO
// job queue. At most one job executes at a time; superseded jobs still run to
// completion but their results are dropped by the generation check.
type Worker struct {
	render RenderFunc
	cfg    synth.RenderConfig
	log    *zap.Logger

	mu      sync.Mutex
	events  []synth.Event
	ppq     int
	tempo   float64
	changes []tempo.Change
	flatTPS float64

	generation uint64
	pending    int
	ready      chan struct{}
	closed     bool

	scheduledValid     bool
	scheduledTempo     float64
	scheduledMetronome synth.MetronomeSettings
	scheduledChanges   []tempo.Change

	bufValid      bool
	bufGeneration uint64
	buffer        []byte
	tempoMap      *tempo.Map
	sampleRate    int
	bufTempo      float64
	bufMetronome  synth.MetronomeSettings
	bufChanges    []tempo.Change

	jobs chan job
	quit chan struct{}
	done chan struct{}
}

// Option configures a Worker.
type Option func(*Worker)

// WithRenderFunc overrides the synthesis function, mainly for tests.
func WithRenderFunc(fn RenderFunc) Option {
	return func(w *Worker) {
		if fn != nil {
			w.render = fn
		}
	}
}

// NewWorker creates a worker rendering through the given engine and starts
// its background goroutine. A nil logger disables diagnostics.
func NewWorker(engine *synth.Engine, cfg synth.RenderConfig, log *zap.Logger, opts ...Option) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	ready := make(chan struct{})
	close(ready)
	w := &Worker{
		cfg:   cfg,
		log:   log,
		ppq:   480,
		tempo: 120,
		ready: ready,
		jobs:  make(chan job, queueCapacity),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if engine != nil {
		w.render = engine.RenderEvents
	}
	for _, opt := range opts {
		opt(w)
	}
	w.flatTPS = flatTicksPerSecond(w.tempo, w.ppq)
	go w.loop()
	return w
}

func flatTicksPerSecond(bpm float64, ppq int) float64 {
	return math.Max(bpm, tempo.MinBPM) / 60.0 * float64(max(1, ppq))
}

// UpdateSource replaces the events backing future renders. The published
// buffer is invalidated and any in-flight job is superseded.
func (w *Worker) UpdateSource(events []synth.Event, ppq int, tempoBPM float64, changes []tempo.Change) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append([]synth.Event(nil), events...)
	w.ppq = max(1, ppq)
	w.tempo = tempoBPM
	w.changes = append([]tempo.Change(nil), changes...)
	w.flatTPS = flatTicksPerSecond(tempoBPM, w.ppq)
	w.generation++
	w.bufValid = false
	w.buffer = nil
	w.tempoMap = nil
	w.scheduledValid = false
}

// EnsureBuffer schedules a render toward the requested target unless one is
// already in flight for the same target or the live buffer already matches
// it. Returns true if a new render was scheduled. With Wait set the call
// blocks until the worker is idle again.
func (w *Worker) EnsureBuffer(req Request) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}

	needed := req.Force
	if !needed {
		switch {
		case w.scheduledValid && targetMatches(w.scheduledTempo, w.scheduledMetronome, w.scheduledChanges, req):
		case !w.scheduledValid && w.bufValid && targetMatches(w.bufTempo, w.bufMetronome, w.bufChanges, req):
		default:
			needed = true
		}
	}

	var j job
	if needed {
		w.generation++
		if w.pending == 0 {
			w.ready = make(chan struct{})
		}
		w.pending++
		w.scheduledValid = true
		w.scheduledTempo = req.Tempo
		w.scheduledMetronome = req.Metronome
		w.scheduledChanges = append([]tempo.Change(nil), req.Changes...)

		cfg := w.cfg
		cfg.Metronome = req.Metronome
		j = job{
			generation: w.generation,
			events:     append([]synth.Event(nil), w.events...),
			ppq:        w.ppq,
			tempo:      req.Tempo,
			changes:    append([]tempo.Change(nil), req.Changes...),
			cfg:        cfg,
			listener:   req.Listener,
		}
	}
	ready := w.ready
	w.mu.Unlock()

	if needed {
		w.jobs <- j
	}
	if req.Wait {
		<-ready
	}
	return needed
}

func targetMatches(bpm float64, met synth.MetronomeSettings, changes []tempo.Change, req Request) bool {
	if math.Abs(bpm-req.Tempo) > tempoTolerance {
		return false
	}
	if !metronomeEqual(met, req.Metronome) {
		return false
	}
	return tempo.Equal(changes, req.Changes)
}

func metronomeEqual(a, b synth.MetronomeSettings) bool {
	if !a.Enabled && !b.Enabled {
		return true
	}
	return a == b
}

// Snapshot returns the most recently published render result.
func (w *Worker) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{
		Valid:          w.bufValid,
		Generation:     w.bufGeneration,
		TicksPerSecond: w.flatTPS,
		SampleRate:     w.cfg.SampleRate,
	}
	if w.bufValid {
		s.Buffer = w.buffer
		s.TempoMap = w.tempoMap
		s.SampleRate = w.sampleRate
		s.Tempo = w.bufTempo
		s.Metronome = w.bufMetronome
		s.TicksPerSecond = flatTicksPerSecond(w.bufTempo, w.ppq)
	}
	return s
}

// Ready returns a channel that is closed while the worker is idle. It is
// replaced with an open one whenever a render is scheduled, so callers must
// re-fetch it per wait.
func (w *Worker) Ready() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready
}

// Generation returns the current generation counter.
func (w *Worker) Generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generation
}

// Shutdown refuses new requests, lets an in-flight job finish and discards
// jobs still sitting in the queue, then waits at most timeout for the worker
// goroutine to exit.
func (w *Worker) Shutdown(timeout time.Duration) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.quit)
	select {
	case <-w.done:
	case <-time.After(timeout):
		w.log.Warn("render worker did not stop in time", zap.Duration("timeout", timeout))
	}
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			w.drain()
			return
		default:
		}
		select {
		case <-w.quit:
			w.drain()
			return
		case j := <-w.jobs:
			w.run(j)
		}
	}
}

// drain discards jobs still queued at shutdown. Each queued job holds one
// pending count, so the idle channel must still be closed for Wait callers
// and resume goroutines blocked on Ready.
func (w *Worker) drain() {
	discarded := 0
	for {
		w.mu.Lock()
		idle := w.pending == 0
		w.mu.Unlock()
		if idle {
			break
		}
		// pending > 0 here means a send on w.jobs has happened or is
		// imminent; no job is in flight once loop has seen quit.
		<-w.jobs
		discarded++
		w.mu.Lock()
		w.pending--
		if w.pending == 0 {
			w.scheduledValid = false
			close(w.ready)
		}
		w.mu.Unlock()
	}
	if discarded > 0 {
		w.log.Debug("discarded queued render jobs at shutdown", zap.Int("count", discarded))
	}
}

func (w *Worker) current(generation uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return generation == w.generation
}

func (w *Worker) run(j job) {
	if j.listener != nil && w.current(j.generation) {
		w.notify(j.listener.RenderStarted)
	}

	progress := func(fraction float64) {
		if j.listener == nil || !w.current(j.generation) {
			return
		}
		w.notify(func() { j.listener.RenderProgress(fraction) })
	}

	buffer, tm, err := w.render(j.events, j.tempo, j.ppq, j.cfg, progress, j.changes)

	w.mu.Lock()
	matches := j.generation == w.generation
	if matches {
		if err != nil {
			w.bufValid = false
			w.buffer = nil
			w.tempoMap = nil
		} else {
			w.bufValid = true
			w.bufGeneration = j.generation
			w.buffer = buffer
			w.tempoMap = tm
			w.sampleRate = j.cfg.SampleRate
			w.bufTempo = j.tempo
			w.bufMetronome = j.cfg.Metronome
			w.bufChanges = j.changes
		}
	}
	w.pending--
	if w.pending == 0 {
		w.scheduledValid = false
		close(w.ready)
	}
	w.mu.Unlock()

	if err != nil {
		w.log.Warn("render failed",
			zap.Uint64("generation", j.generation),
			zap.Error(err))
	}
	if j.listener != nil && matches {
		w.notify(func() { j.listener.RenderComplete(err == nil) })
	}
}

func (w *Worker) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("render listener panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
