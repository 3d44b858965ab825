//go:build !windows

package audio

import (
	"errors"

	"go.uber.org/zap"
)

// SystemSoundPlayer is only available on Windows.
type SystemSoundPlayer struct{}

// NewSystemSoundPlayer always fails off Windows so backend selection skips it.
func NewSystemSoundPlayer(_ *zap.Logger) (*SystemSoundPlayer, error) {
	return nil, errors.New("audio: system sound playback requires windows")
}

func (p *SystemSoundPlayer) Name() string { return "systemsound" }

func (p *SystemSoundPlayer) Play(_ []byte, _ int) (Handle, error) {
	return nil, ErrNoPlayerAvailable
}

func (p *SystemSoundPlayer) StopAll() {}

var _ Player = (*SystemSoundPlayer)(nil)
