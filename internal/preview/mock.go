package preview

import (
	"sync"

	"github.com/llehouerou/arpeggio/internal/render"
	"github.com/llehouerou/arpeggio/internal/synth"
	"github.com/llehouerou/arpeggio/internal/tempo"
)

// TempoCall records one SetTempo invocation on the mock.
type TempoCall struct {
	BPM     float64
	Changes []tempo.Change
}

// MockRenderer is a test double for Renderer.
type MockRenderer struct {
	mu sync.Mutex

	available    bool
	startPending bool
	startErr     error
	tempoMap     *tempo.Map
	tps          float64
	volumeLive   bool

	listener       render.Listener
	updateSources  int
	prepareCalls   int
	startCalls     []int
	pauseCalls     int
	stopCalls      int
	seekCalls      []int
	tempoCalls     []TempoCall
	metronomeCalls []synth.MetronomeSettings
	volumeCalls    []float64
	closed         bool
}

// NewMockRenderer creates an available mock with a flat tick rate.
func NewMockRenderer() *MockRenderer {
	return &MockRenderer{available: true, tps: 960, volumeLive: true}
}

func (m *MockRenderer) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *MockRenderer) UpdateSource([]synth.Event, int, float64, []tempo.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateSources++
}

func (m *MockRenderer) Prepare(bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prepareCalls++
	return true
}

func (m *MockRenderer) Start(fromTick int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls = append(m.startCalls, fromTick)
	if m.startErr != nil {
		return false, m.startErr
	}
	return m.startPending, nil
}

func (m *MockRenderer) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseCalls++
}

func (m *MockRenderer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
}

func (m *MockRenderer) Seek(tick int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekCalls = append(m.seekCalls, tick)
}

func (m *MockRenderer) SetTempo(bpm float64, changes []tempo.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tempoCalls = append(m.tempoCalls, TempoCall{BPM: bpm, Changes: append([]tempo.Change(nil), changes...)})
}

func (m *MockRenderer) SetMetronome(settings synth.MetronomeSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metronomeCalls = append(m.metronomeCalls, settings)
}

func (m *MockRenderer) SetVolume(level float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumeCalls = append(m.volumeCalls, level)
	return m.volumeLive
}

func (m *MockRenderer) SetListener(l render.Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

func (m *MockRenderer) TempoMap() *tempo.Map {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tempoMap
}

func (m *MockRenderer) TicksPerSecond() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tps
}

func (m *MockRenderer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Test helpers

func (m *MockRenderer) SetAvailable(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = v
}

func (m *MockRenderer) SetStartPending(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startPending = v
}

func (m *MockRenderer) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

func (m *MockRenderer) SetTempoMap(tm *tempo.Map) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tempoMap = tm
}

func (m *MockRenderer) SetTicksPerSecond(tps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tps = tps
}

func (m *MockRenderer) SetVolumeLive(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumeLive = v
}

func (m *MockRenderer) Listener() render.Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listener
}

func (m *MockRenderer) UpdateSourceCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSources
}

func (m *MockRenderer) PrepareCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prepareCalls
}

func (m *MockRenderer) StartCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.startCalls...)
}

func (m *MockRenderer) PauseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauseCalls
}

func (m *MockRenderer) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

func (m *MockRenderer) SeekCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.seekCalls...)
}

func (m *MockRenderer) TempoCalls() []TempoCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TempoCall(nil), m.tempoCalls...)
}

func (m *MockRenderer) MetronomeCalls() []synth.MetronomeSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]synth.MetronomeSettings(nil), m.metronomeCalls...)
}

func (m *MockRenderer) VolumeCalls() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.volumeCalls...)
}

var _ Renderer = (*MockRenderer)(nil)
