// Package audio turns rendered PCM buffers into audible output. Several
// interchangeable backends implement the Player contract; Failover composes
// them into a chain with sticky preference for whichever backend works.
package audio

import (
	"errors"
	"time"
)

// PCM buffers are mono, 16-bit signed little-endian samples.

var (
	// ErrNoPlayerAvailable is returned when every backend in a chain failed.
	ErrNoPlayerAvailable = errors.New("audio: no playback backend available")
	// ErrEmptyBuffer is returned when an empty PCM buffer is played.
	ErrEmptyBuffer = errors.New("audio: empty PCM buffer")
)

// Handle controls one in-flight playback. Stop is idempotent.
type Handle interface {
	Stop()
}

// Player plays a PCM buffer. A failed Play returns a nil handle and an error
// after the player has cleaned up after itself.
type Player interface {
	Name() string
	Play(pcm []byte, sampleRate int) (Handle, error)
	StopAll()
}

// VolumeControl is implemented by players that can scale their output
// natively instead of requiring pre-scaled PCM.
type VolumeControl interface {
	SetVolume(level float64)
}

// BufferDuration returns the wall-clock length of a mono 16-bit buffer.
func BufferDuration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(pcm) / 2
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}
