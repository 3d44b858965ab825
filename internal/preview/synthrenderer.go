package preview

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/arpeggio/internal/audio"
	"github.com/llehouerou/arpeggio/internal/render"
	"github.com/llehouerou/arpeggio/internal/synth"
	"github.com/llehouerou/arpeggio/internal/tempo"
)

const shutdownTimeout = 2 * time.Second

// SynthRenderer ties the render worker to an audio backend. It keeps the
// target parameters for EnsureBuffer requests and restarts playback once the
// worker goes idle when a start was requested mid-render.
type SynthRenderer struct {
	worker *render.Worker
	player audio.Player
	log    *zap.Logger

	mu        sync.Mutex
	tempo     float64
	changes   []tempo.Change
	metronome synth.MetronomeSettings
	volume    float64
	listener  render.Listener
	handle    audio.Handle
	resumeSeq int
	closed    bool
}

// NewSynthRenderer creates the renderer. A nil player makes it unavailable
// for playback while still able to render buffers.
func NewSynthRenderer(worker *render.Worker, player audio.Player, log *zap.Logger) *SynthRenderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SynthRenderer{
		worker: worker,
		player: player,
		log:    log,
		tempo:  120,
		volume: 1.0,
	}
}

func (r *SynthRenderer) Available() bool { return r.player != nil }

func (r *SynthRenderer) SetListener(l render.Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = l
}

func (r *SynthRenderer) UpdateSource(events []synth.Event, ppq int, tempoBPM float64, changes []tempo.Change) {
	r.mu.Lock()
	r.tempo = tempoBPM
	r.changes = append([]tempo.Change(nil), changes...)
	r.resumeSeq++
	handle := r.handle
	r.handle = nil
	r.mu.Unlock()

	if handle != nil {
		handle.Stop()
	}
	r.worker.UpdateSource(events, ppq, tempoBPM, changes)
}

func (r *SynthRenderer) requestLocked() render.Request {
	return render.Request{
		Tempo:     r.tempo,
		Changes:   append([]tempo.Change(nil), r.changes...),
		Metronome: r.metronome,
		Listener:  r.listener,
	}
}

func (r *SynthRenderer) Prepare(force bool) bool {
	r.mu.Lock()
	req := r.requestLocked()
	r.mu.Unlock()
	req.Force = force
	return r.worker.EnsureBuffer(req)
}

func (r *SynthRenderer) Start(fromTick int) (bool, error) {
	if r.player == nil {
		return false, ErrNoBackend
	}

	r.mu.Lock()
	r.resumeSeq++
	seq := r.resumeSeq
	handle := r.handle
	r.handle = nil
	req := r.requestLocked()
	r.mu.Unlock()

	if handle != nil {
		handle.Stop()
	}
	r.worker.EnsureBuffer(req)

	select {
	case <-r.worker.Ready():
		snap := r.worker.Snapshot()
		if !snap.Valid {
			return false, errors.New("preview: no rendered audio available")
		}
		return false, r.play(fromTick, snap)
	default:
		go r.resumeWhenReady(seq, fromTick)
		return true, nil
	}
}

// resumeWhenReady blocks on the worker's idle signal and starts playback if
// this resume was not superseded in the meantime.
func (r *SynthRenderer) resumeWhenReady(seq, fromTick int) {
	<-r.worker.Ready()

	r.mu.Lock()
	stale := r.closed || seq != r.resumeSeq
	r.mu.Unlock()
	if stale {
		return
	}

	snap := r.worker.Snapshot()
	if !snap.Valid {
		// The render failed; the listener already reported it.
		return
	}
	if err := r.play(fromTick, snap); err != nil {
		r.log.Warn("resume playback failed", zap.Error(err))
	}
}

func (r *SynthRenderer) play(fromTick int, snap render.Snapshot) error {
	offset := startOffset(snap, fromTick)
	if offset >= len(snap.Buffer) {
		return nil
	}
	pcm := snap.Buffer[offset:]

	r.mu.Lock()
	level := r.volume
	r.mu.Unlock()

	if vc, ok := r.player.(audio.VolumeControl); ok {
		vc.SetVolume(level)
	} else if level < 1 {
		pcm = scalePCM(pcm, level)
	}

	handle, err := r.player.Play(pcm, snap.SampleRate)
	if err != nil {
		return fmt.Errorf("playback start: %w", err)
	}

	r.mu.Lock()
	r.handle = handle
	r.mu.Unlock()
	return nil
}

// startOffset maps a tick to a byte offset in the buffer, through the
// rendered tempo map when present and the flat rate otherwise.
func startOffset(snap render.Snapshot, fromTick int) int {
	var sample int
	switch {
	case snap.TempoMap != nil:
		sample = snap.TempoMap.TickToSample(fromTick, snap.SampleRate)
	case snap.TicksPerSecond > 0:
		sample = int(math.Round(float64(fromTick) / snap.TicksPerSecond * float64(snap.SampleRate)))
	}
	if sample < 0 {
		sample = 0
	}
	offset := sample * 2
	if offset > len(snap.Buffer) {
		offset = len(snap.Buffer)
	}
	return offset
}

func (r *SynthRenderer) Pause() { r.stopHandle() }

func (r *SynthRenderer) Stop() { r.stopHandle() }

func (r *SynthRenderer) stopHandle() {
	r.mu.Lock()
	r.resumeSeq++
	handle := r.handle
	r.handle = nil
	r.mu.Unlock()

	if handle != nil {
		handle.Stop()
	}
}

func (r *SynthRenderer) Seek(tick int) {
	r.mu.Lock()
	live := r.handle != nil
	r.mu.Unlock()
	if !live {
		return
	}

	snap := r.worker.Snapshot()
	if !snap.Valid {
		return
	}
	r.stopHandle()
	if err := r.play(tick, snap); err != nil {
		r.log.Warn("seek playback failed", zap.Error(err))
	}
}

func (r *SynthRenderer) SetTempo(bpm float64, changes []tempo.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tempo = bpm
	r.changes = append([]tempo.Change(nil), changes...)
}

func (r *SynthRenderer) SetMetronome(settings synth.MetronomeSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metronome = settings
}

func (r *SynthRenderer) SetVolume(level float64) bool {
	r.mu.Lock()
	r.volume = level
	live := r.handle != nil
	r.mu.Unlock()

	if r.player == nil {
		return true
	}
	if vc, ok := r.player.(audio.VolumeControl); ok {
		vc.SetVolume(level)
		return true
	}
	// File-based backends need a restart with a rescaled copy.
	return !live
}

func (r *SynthRenderer) TempoMap() *tempo.Map {
	return r.worker.Snapshot().TempoMap
}

func (r *SynthRenderer) TicksPerSecond() float64 {
	return r.worker.Snapshot().TicksPerSecond
}

func (r *SynthRenderer) Close() {
	r.mu.Lock()
	r.closed = true
	r.resumeSeq++
	handle := r.handle
	r.handle = nil
	r.mu.Unlock()

	if handle != nil {
		handle.Stop()
	}
	r.worker.Shutdown(shutdownTimeout)
	if r.player != nil {
		r.player.StopAll()
	}
}

// scalePCM returns a copy of the buffer with every sample scaled by level.
func scalePCM(pcm []byte, level float64) []byte {
	out := make([]byte, len(pcm))
	for i := 0; i+1 < len(pcm); i += 2 {
		v := float64(int16(uint16(pcm[i])|uint16(pcm[i+1])<<8)) * level
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(math.Round(v))))
	}
	return out
}

var _ Renderer = (*SynthRenderer)(nil)
