// Package pitch converts between frequency in Hz and MIDI note numbers,
// the two pitch representations the arrangement pipeline moves between.
package pitch

import "math"

// FrequencyToMIDI converts a frequency in Hz to a fractional MIDI note
// number, A4 = 440Hz = 69.
func FrequencyToMIDI(freqHz float64) float64 {
	return 69 + 12*math.Log2(freqHz/440.0)
}

// MIDIToFrequency converts a MIDI note number to a frequency in Hz.
func MIDIToFrequency(midi int) float64 {
	return 440.0 * math.Pow(2, float64(midi-69)/12.0)
}
