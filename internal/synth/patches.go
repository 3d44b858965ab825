package synth

// Harmonic is one partial of a patch: a frequency multiple and its amplitude.
type Harmonic struct {
	Multiple  float64
	Amplitude float64
}

// Patch is a timbre definition selected by General-MIDI program number.
// Attack and release ratios are fractions of the note length; vibrato
// perturbs the phase increment sinusoidally.
type Patch struct {
	Harmonics    []Harmonic
	AttackRatio  float64
	ReleaseRatio float64
	Gain         float64
	VibratoHz    float64
	VibratoDepth float64
}

var (
	defaultPatch = Patch{
		Harmonics:   []Harmonic{{1, 1}},
		AttackRatio: 0.02, ReleaseRatio: 0.1, Gain: 1.0,
	}
	pianoPatch = Patch{
		Harmonics:   []Harmonic{{1, 1}, {2, 0.35}, {3, 0.2}},
		AttackRatio: 0.01, ReleaseRatio: 0.35, Gain: 1.1,
	}
	malletPatch = Patch{
		Harmonics:   []Harmonic{{1, 1}, {2, 0.6}, {3, 0.3}},
		AttackRatio: 0.005, ReleaseRatio: 0.25, Gain: 1.0,
	}
	organPatch = Patch{
		Harmonics:   []Harmonic{{1, 1}, {2, 0.9}, {3, 0.7}, {4, 0.5}},
		AttackRatio: 0.02, ReleaseRatio: 0.08, Gain: 0.9,
	}
	guitarPatch = Patch{
		Harmonics:   []Harmonic{{1, 1}, {2, 0.55}, {3, 0.25}},
		AttackRatio: 0.01, ReleaseRatio: 0.28, Gain: 0.9,
	}
	bassPatch = Patch{
		Harmonics:   []Harmonic{{1, 1}, {2, 0.4}, {3, 0.15}},
		AttackRatio: 0.02, ReleaseRatio: 0.22, Gain: 1.0,
	}
	stringsPatch = Patch{
		Harmonics:   []Harmonic{{1, 0.9}, {2, 0.45}, {3, 0.2}},
		AttackRatio: 0.08, ReleaseRatio: 0.35, Gain: 0.95,
		VibratoHz: 5.0, VibratoDepth: 0.003,
	}
	brassPatch = Patch{
		Harmonics:   []Harmonic{{1, 1}, {2, 0.6}, {3, 0.3}},
		AttackRatio: 0.04, ReleaseRatio: 0.28, Gain: 1.05,
	}
	reedPatch = Patch{
		Harmonics:   []Harmonic{{1, 1}, {2, 0.5}, {3, 0.25}},
		AttackRatio: 0.05, ReleaseRatio: 0.25, Gain: 0.95,
		VibratoHz: 5.5, VibratoDepth: 0.004,
	}
	flutePatch = Patch{
		Harmonics:   []Harmonic{{1, 1}, {2, 0.12}},
		AttackRatio: 0.03, ReleaseRatio: 0.18, Gain: 0.9,
		VibratoHz: 5.5, VibratoDepth: 0.006,
	}
	synthLeadPatch = Patch{
		Harmonics:   []Harmonic{{1, 1}, {2, 0.7}, {3, 0.5}, {4, 0.3}},
		AttackRatio: 0.01, ReleaseRatio: 0.12, Gain: 1.0,
	}
	synthPadPatch = Patch{
		Harmonics:   []Harmonic{{1, 1}, {2, 0.7}, {3, 0.4}},
		AttackRatio: 0.08, ReleaseRatio: 0.45, Gain: 1.0,
		VibratoHz: 4.0, VibratoDepth: 0.005,
	}
	pluckedPatch = Patch{
		Harmonics:   []Harmonic{{1, 1}, {2, 0.4}, {4, 0.2}},
		AttackRatio: 0.005, ReleaseRatio: 0.2, Gain: 0.9,
	}
)

// patchBuckets maps the sixteen GM program buckets (8 programs each) to
// their patches. Bucket 6 reuses strings for ensemble programs.
var patchBuckets = [16]Patch{
	pianoPatch,
	malletPatch,
	organPatch,
	guitarPatch,
	bassPatch,
	stringsPatch,
	stringsPatch,
	brassPatch,
	reedPatch,
	flutePatch,
	synthLeadPatch,
	synthPadPatch,
	pluckedPatch,
	defaultPatch,
	defaultPatch,
	defaultPatch,
}

// PatchForProgram returns the timbre patch for a GM program number.
// Programs outside 0..127 clamp into range.
func PatchForProgram(program int) Patch {
	program = min(127, max(0, program))
	return patchBuckets[program/8]
}
