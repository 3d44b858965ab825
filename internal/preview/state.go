// Package preview coordinates rendering and playback of an arrangement: the
// Controller state machine drives a Renderer, which ties the render worker to
// an audio backend.
package preview

// LoopRegion is a tick range playback repeats within when enabled. A disabled
// loop means the playback range is the whole track.
type LoopRegion struct {
	Enabled   bool
	StartTick int
	EndTick   int
}

// State is the observable playback state. It is owned exclusively by the
// Controller and mutated only through its command methods and render
// callbacks; callers get copies.
type State struct {
	IsLoaded         bool
	IsPlaying        bool
	PositionTick     int
	DurationTick     int
	TrackEndTick     int
	PPQ              int
	TempoBPM         float64
	BeatsPerMeasure  int
	BeatUnit         int
	MetronomeEnabled bool
	Loop             LoopRegion
	Volume           float64
	LastError        string
	IsRendering      bool
	RenderProgress   float64
}
