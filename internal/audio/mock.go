package audio

import (
	"errors"
	"sync"
)

// Mock is a test double for Player.
type Mock struct {
	mu        sync.Mutex
	name      string
	failing   bool
	volume    float64
	playCalls int
	stopAlls  int
	handles   []*MockHandle
}

// NewMock creates a mock player for testing.
func NewMock(name string) *Mock {
	return &Mock{name: name, volume: 1.0}
}

func (m *Mock) Name() string { return m.name }

func (m *Mock) Play(pcm []byte, sampleRate int) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playCalls++
	if m.failing {
		return nil, errors.New("mock: play failed")
	}
	h := &MockHandle{}
	m.handles = append(m.handles, h)
	return h, nil
}

func (m *Mock) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopAlls++
	for _, h := range m.handles {
		h.Stop()
	}
}

func (m *Mock) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = level
}

// Test helpers

func (m *Mock) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

func (m *Mock) PlayCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCalls
}

func (m *Mock) StopAllCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopAlls
}

func (m *Mock) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *Mock) Handles() []*MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockHandle(nil), m.handles...)
}

// MockHandle records whether Stop was called.
type MockHandle struct {
	mu      sync.Mutex
	stopped bool
}

func (h *MockHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
}

func (h *MockHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

var (
	_ Player        = (*Mock)(nil)
	_ VolumeControl = (*Mock)(nil)
)
