package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"go.uber.org/zap"
)

// pcmStreamer streams a mono 16-bit little-endian buffer as stereo float
// samples. It is not safe for concurrent use; the speaker mixer is the only
// reader.
type pcmStreamer struct {
	data []byte
	pos  int
}

func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	n := 0
	for i := range samples {
		if s.pos+1 >= len(s.data) {
			break
		}
		v := float64(int16(uint16(s.data[s.pos])|uint16(s.data[s.pos+1])<<8)) / 32768.0
		samples[i][0] = v
		samples[i][1] = v
		s.pos += 2
		n++
	}
	return n, n > 0
}

func (s *pcmStreamer) Err() error { return nil }

var speakerInitialized bool

// SpeakerPlayer plays PCM directly through the speaker mixer. The speaker is
// initialized once at the first buffer's sample rate; later buffers at other
// rates are resampled to it.
type SpeakerPlayer struct {
	mu          sync.Mutex
	initRate    beep.SampleRate
	volumeLevel float64
	current     *speakerHandle
	log         *zap.Logger
}

// NewSpeakerPlayer creates the buffer-based backend.
func NewSpeakerPlayer(log *zap.Logger) *SpeakerPlayer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SpeakerPlayer{volumeLevel: 1.0, log: log}
}

func (p *SpeakerPlayer) Name() string { return "speaker" }

// Probe opens the output device ahead of playback so backend selection can
// tell whether a speaker exists at all. Without it the first Play would be
// the first point of failure.
func (p *SpeakerPlayer) Probe(sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if speakerInitialized {
		return nil
	}
	rate := beep.SampleRate(sampleRate)
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return fmt.Errorf("speaker init: %w", err)
	}
	speakerInitialized = true
	p.initRate = rate
	return nil
}

// Play starts the buffer and returns a handle for it. Any previous playback
// through this player is stopped first.
func (p *SpeakerPlayer) Play(pcm []byte, sampleRate int) (Handle, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyBuffer
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCurrentLocked()

	rate := beep.SampleRate(sampleRate)
	if !speakerInitialized {
		if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
			p.stopAllLocked()
			return nil, fmt.Errorf("speaker init: %w", err)
		}
		speakerInitialized = true
		p.initRate = rate
	}

	var streamer beep.Streamer = &pcmStreamer{data: pcm}
	if rate != p.initRate {
		streamer = beep.Resample(4, rate, p.initRate, streamer)
	}

	volume := &effects.Volume{
		Streamer: &beep.Ctrl{Streamer: streamer},
		Base:     2,
		Volume:   levelToVolume(p.volumeLevel),
		Silent:   p.volumeLevel <= 0,
	}

	handle := &speakerHandle{player: p, volume: volume}
	p.current = handle

	speaker.Play(beep.Seq(volume, beep.Callback(func() {
		// The callback runs under the speaker lock; release needs p.mu, so
		// hop to a goroutine to keep the lock order one-way.
		go p.release(handle)
	})))
	return handle, nil
}

// SetVolume adjusts the output level of current and future playback.
func (p *SpeakerPlayer) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.volumeLevel = level
	if p.current != nil {
		speaker.Lock()
		p.current.volume.Volume = levelToVolume(level)
		p.current.volume.Silent = level <= 0
		speaker.Unlock()
	}
}

// StopAll clears the speaker mixer.
func (p *SpeakerPlayer) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopAllLocked()
}

func (p *SpeakerPlayer) stopCurrentLocked() {
	if p.current == nil {
		return
	}
	p.current.markStopped()
	p.current = nil
	if speakerInitialized {
		speaker.Clear()
	}
}

func (p *SpeakerPlayer) stopAllLocked() {
	if p.current != nil {
		p.current.markStopped()
		p.current = nil
	}
	if speakerInitialized {
		speaker.Clear()
	}
}

func (p *SpeakerPlayer) release(h *speakerHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == h {
		p.current = nil
	}
	h.markStopped()
}

// levelToVolume maps a 0..1 level onto beep's base-2 logarithmic scale, where
// 0 is unity gain and each -1 halves the amplitude.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}

type speakerHandle struct {
	player *SpeakerPlayer
	volume *effects.Volume
	once   sync.Once
}

func (h *speakerHandle) Stop() {
	h.once.Do(func() {
		h.player.mu.Lock()
		defer h.player.mu.Unlock()
		if h.player.current == h {
			h.player.current = nil
			speaker.Clear()
		}
	})
}

func (h *speakerHandle) markStopped() {
	h.once.Do(func() {})
}

var (
	_ Player        = (*SpeakerPlayer)(nil)
	_ VolumeControl = (*SpeakerPlayer)(nil)
)
