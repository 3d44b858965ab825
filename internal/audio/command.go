package audio

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

type commandSpec struct {
	name string
	args []string
}

// Ranked by preference; the first executable found on PATH wins.
var commandCandidates = []commandSpec{
	{name: "afplay"},
	{name: "aplay", args: []string{"-q"}},
	{name: "paplay"},
	{name: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
}

const commandKillGrace = 500 * time.Millisecond

// CommandPlayer plays buffers by writing them to a temp WAV file and spawning
// an external command-line player against it.
type CommandPlayer struct {
	path string
	args []string
	log  *zap.Logger

	mu      sync.Mutex
	handles map[*commandHandle]struct{}
}

// NewCommandPlayer probes the ranked candidate list, or just the override
// when one is given, and fails if no executable is found.
func NewCommandPlayer(log *zap.Logger, override string) (*CommandPlayer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	candidates := commandCandidates
	if override != "" {
		candidates = []commandSpec{{name: override}}
	}
	for _, c := range candidates {
		path, err := exec.LookPath(c.name)
		if err != nil {
			continue
		}
		log.Debug("command audio player found",
			zap.String("command", c.name),
			zap.String("path", path))
		return &CommandPlayer{
			path:    path,
			args:    c.args,
			log:     log,
			handles: make(map[*commandHandle]struct{}),
		}, nil
	}
	return nil, fmt.Errorf("audio: no command-line player on PATH")
}

func (p *CommandPlayer) Name() string { return "command" }

// Play writes a temp WAV and spawns the player process. The handle owns the
// process; a watcher goroutine removes the file once the process exits.
func (p *CommandPlayer) Play(pcm []byte, sampleRate int) (Handle, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyBuffer
	}

	file, err := WriteTempWAV(pcm, sampleRate)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(p.path, append(append([]string(nil), p.args...), file)...)
	if err := cmd.Start(); err != nil {
		os.Remove(file)
		return nil, fmt.Errorf("spawn %s: %w", p.path, err)
	}

	h := &commandHandle{player: p, cmd: cmd, file: file, exited: make(chan struct{})}
	p.mu.Lock()
	p.handles[h] = struct{}{}
	p.mu.Unlock()

	go h.watch()
	return h, nil
}

// StopAll stops every outstanding process started by this player.
func (p *CommandPlayer) StopAll() {
	p.mu.Lock()
	handles := make([]*commandHandle, 0, len(p.handles))
	for h := range p.handles {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

func (p *CommandPlayer) forget(h *commandHandle) {
	p.mu.Lock()
	delete(p.handles, h)
	p.mu.Unlock()
}

type commandHandle struct {
	player *CommandPlayer
	cmd    *exec.Cmd
	file   string
	exited chan struct{}
	once   sync.Once
}

func (h *commandHandle) watch() {
	h.cmd.Wait()
	close(h.exited)
	os.Remove(h.file)
	h.player.forget(h)
}

// Stop requests graceful termination, escalates to a kill after a short
// grace period, and removes the temp file.
func (h *commandHandle) Stop() {
	h.once.Do(func() {
		if proc := h.cmd.Process; proc != nil {
			proc.Signal(os.Interrupt)
			select {
			case <-h.exited:
			case <-time.After(commandKillGrace):
				proc.Kill()
			}
		}
		os.Remove(h.file)
		h.player.forget(h)
	})
}

var _ Player = (*CommandPlayer)(nil)
