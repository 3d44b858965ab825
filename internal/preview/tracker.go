package preview

import "github.com/llehouerou/arpeggio/internal/render"

// RenderTracker adapts worker listener callbacks into plain functions. The
// worker only invokes listeners whose job generation is still current, so the
// callbacks here always describe the freshest render.
type RenderTracker struct {
	onStarted  func()
	onProgress func(float64)
	onComplete func(success bool)
}

// NewRenderTracker wires the three callbacks; any of them may be nil.
func NewRenderTracker(started func(), progress func(float64), complete func(bool)) *RenderTracker {
	return &RenderTracker{onStarted: started, onProgress: progress, onComplete: complete}
}

func (t *RenderTracker) RenderStarted() {
	if t.onStarted != nil {
		t.onStarted()
	}
}

func (t *RenderTracker) RenderProgress(fraction float64) {
	if t.onProgress != nil {
		t.onProgress(fraction)
	}
}

func (t *RenderTracker) RenderComplete(success bool) {
	if t.onComplete != nil {
		t.onComplete(success)
	}
}

var _ render.Listener = (*RenderTracker)(nil)
