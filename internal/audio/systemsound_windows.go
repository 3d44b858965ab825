//go:build windows

package audio

import (
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

var (
	winmm         = windows.NewLazySystemDLL("winmm.dll")
	procPlaySound = winmm.NewProc("PlaySoundW")
)

const (
	sndAsync    = 0x0001
	sndPurge    = 0x0040
	sndFilename = 0x00020000
)

const systemSoundMaxLinger = 60 * time.Second

// SystemSoundPlayer plays buffers through the Windows PlaySound API. Each
// buffer goes to a temp WAV file played asynchronously; a best-effort timer
// deletes the file once playback must have finished.
type SystemSoundPlayer struct {
	log *zap.Logger

	mu      sync.Mutex
	handles map[*systemSoundHandle]struct{}
}

// NewSystemSoundPlayer fails when winmm.dll or PlaySoundW is unavailable.
func NewSystemSoundPlayer(log *zap.Logger) (*SystemSoundPlayer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := procPlaySound.Find(); err != nil {
		return nil, fmt.Errorf("audio: PlaySound unavailable: %w", err)
	}
	return &SystemSoundPlayer{
		log:     log,
		handles: make(map[*systemSoundHandle]struct{}),
	}, nil
}

func (p *SystemSoundPlayer) Name() string { return "systemsound" }

func (p *SystemSoundPlayer) Play(pcm []byte, sampleRate int) (Handle, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyBuffer
	}

	file, err := WriteTempWAV(pcm, sampleRate)
	if err != nil {
		return nil, err
	}

	ptr, err := windows.UTF16PtrFromString(file)
	if err != nil {
		os.Remove(file)
		return nil, err
	}
	ret, _, _ := procPlaySound.Call(uintptr(unsafe.Pointer(ptr)), 0, sndFilename|sndAsync)
	if ret == 0 {
		os.Remove(file)
		return nil, fmt.Errorf("audio: PlaySound failed for %s", file)
	}

	linger := BufferDuration(pcm, sampleRate) + 500*time.Millisecond
	if linger < 500*time.Millisecond {
		linger = 500 * time.Millisecond
	}
	if linger > systemSoundMaxLinger {
		linger = systemSoundMaxLinger
	}

	h := &systemSoundHandle{player: p, file: file}
	h.timer = time.AfterFunc(linger, h.expire)
	p.mu.Lock()
	p.handles[h] = struct{}{}
	p.mu.Unlock()
	return h, nil
}

// StopAll purges the PlaySound queue and releases every outstanding handle.
func (p *SystemSoundPlayer) StopAll() {
	p.mu.Lock()
	handles := make([]*systemSoundHandle, 0, len(p.handles))
	for h := range p.handles {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

func (p *SystemSoundPlayer) forget(h *systemSoundHandle) {
	p.mu.Lock()
	delete(p.handles, h)
	p.mu.Unlock()
}

func purgePlaySound() {
	procPlaySound.Call(0, 0, sndPurge)
}

type systemSoundHandle struct {
	player *SystemSoundPlayer
	file   string
	timer  *time.Timer
	once   sync.Once
}

func (h *systemSoundHandle) Stop() {
	h.once.Do(func() {
		if h.timer != nil {
			h.timer.Stop()
		}
		purgePlaySound()
		os.Remove(h.file)
		h.player.forget(h)
	})
}

// expire runs when the playback window has passed; the sound already ended on
// its own, so no purge is needed.
func (h *systemSoundHandle) expire() {
	h.once.Do(func() {
		os.Remove(h.file)
		h.player.forget(h)
	})
}

var _ Player = (*SystemSoundPlayer)(nil)
