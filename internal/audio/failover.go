package audio

import (
	"sync"

	"go.uber.org/zap"
)

// Failover holds an ordered list of players. Play tries each in order; the
// first to succeed moves to the front of the list, and a player that fails is
// stopped and removed for the rest of the process's lifetime.
type Failover struct {
	mu      sync.Mutex
	players []Player
	log     *zap.Logger
}

// NewFailover builds a chain over the given players, in preference order.
func NewFailover(log *zap.Logger, players ...Player) *Failover {
	if log == nil {
		log = zap.NewNop()
	}
	return &Failover{players: players, log: log}
}

func (f *Failover) Name() string { return "failover" }

func (f *Failover) Play(pcm []byte, sampleRate int) (Handle, error) {
	f.mu.Lock()
	chain := append([]Player(nil), f.players...)
	f.mu.Unlock()

	for _, p := range chain {
		h, err := p.Play(pcm, sampleRate)
		if err != nil || h == nil {
			f.log.Warn("audio backend failed, dropping from chain",
				zap.String("backend", p.Name()),
				zap.Error(err))
			p.StopAll()
			f.remove(p)
			continue
		}
		f.promote(p)
		return h, nil
	}
	return nil, ErrNoPlayerAvailable
}

// StopAll forwards to every remaining player.
func (f *Failover) StopAll() {
	f.mu.Lock()
	chain := append([]Player(nil), f.players...)
	f.mu.Unlock()

	for _, p := range chain {
		p.StopAll()
	}
}

// SetVolume forwards to every remaining player that supports it.
func (f *Failover) SetVolume(level float64) {
	f.mu.Lock()
	chain := append([]Player(nil), f.players...)
	f.mu.Unlock()

	for _, p := range chain {
		if vc, ok := p.(VolumeControl); ok {
			vc.SetVolume(level)
		}
	}
}

// Remaining reports how many players are still in the chain.
func (f *Failover) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players)
}

func (f *Failover) promote(target Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.players {
		if p == target {
			copy(f.players[1:i+1], f.players[:i])
			f.players[0] = target
			return
		}
	}
}

func (f *Failover) remove(target Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.players {
		if p == target {
			f.players = append(f.players[:i], f.players[i+1:]...)
			return
		}
	}
}

var (
	_ Player        = (*Failover)(nil)
	_ VolumeControl = (*Failover)(nil)
)
