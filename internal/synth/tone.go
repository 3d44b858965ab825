package synth

import "math"

const (
	midiA4      = 69
	frequencyA4 = 440.0
)

// MIDIToFrequency returns the equal-temperament frequency in Hz for a MIDI
// pitch number, or 0 for pitches outside the 0..127 range.
func MIDIToFrequency(pitch int) float64 {
	if pitch < 0 || pitch > 127 {
		return 0
	}
	return frequencyA4 * math.Pow(2, float64(pitch-midiA4)/12.0)
}

// pitchGain compensates the perceived loudness of low notes: below A4 the
// gain grows with the frequency ratio to the 0.35 power, capped at 3.
func pitchGain(pitch int) float64 {
	frequency := MIDIToFrequency(pitch)
	if frequency <= 0 {
		return 1
	}
	ratio := frequencyA4 / frequency
	if ratio <= 1 {
		return 1
	}
	return math.Min(3.0, math.Pow(ratio, 0.35))
}
