// Package orchestrate spreads a chord progression across instrumental
// voices, folding each chord tone into that voice's register.
package orchestrate

import (
	"github.com/cwbudde/maestro-core/internal/pitch"
	"github.com/cwbudde/maestro-core/notes"
)

// register is a voice's inclusive MIDI note range.
type register struct{ low, high int }

// registers lists every role's playable MIDI range. Only bass and piano
// are populated by Voice today; pad and lead are carried for a future
// voicing role without disturbing this table's shape.
var registers = map[string]register{
	"bass":  {28, 48}, // E1-C3
	"piano": {50, 96}, // D3-C7
	"pad":   {40, 84},
	"lead":  {60, 108},
}

const (
	bassIntensity  = 0.9
	pianoIntensity = 0.7
)

// Orchestrator folds chord tones into fixed instrumental registers,
// counting how many notes it has assigned to each role.
type Orchestrator struct {
	occupancy map[string]int
}

// New creates an Orchestrator.
func New() *Orchestrator {
	return &Orchestrator{occupancy: make(map[string]int)}
}

// Occupancy returns how many notes have been assigned to role so far.
func (o *Orchestrator) Occupancy(role string) int {
	return o.occupancy[role]
}

// fit folds midi into role's register by repeatedly stepping an octave at
// a time, and records the assignment.
func (o *Orchestrator) fit(midi int, role string) int {
	r := registers[role]
	for midi < r.low {
		midi += 12
	}
	for midi > r.high {
		midi -= 12
	}
	o.occupancy[role]++
	return midi
}

// chordTones returns a triad's root, third, and fifth as pitch classes.
func chordTones(c notes.Chord) [3]int {
	third := 4
	if c.Quality == notes.Minor {
		third = 3
	}
	root := int(c.Root)
	return [3]int{root, (root + third) % 12, (root + 7) % 12}
}

// Voice spreads chords (one per element of durations) across a bass part
// (the chord's root, one note per chord) and a piano part (every chord
// tone, each chord's duration split evenly across its tones). The raw
// melody is not produced here: the caller injects it as parts["melody"].
func (o *Orchestrator) Voice(chords []notes.Chord, durations []float64) map[string]notes.Part {
	bass := notes.Part{}
	piano := notes.Part{}

	for i, c := range chords {
		dur := 1.0
		if i < len(durations) {
			dur = durations[i]
		}

		tones := chordTones(c)
		bassMIDI := o.fit(tones[0], "bass")
		bass.Notes = append(bass.Notes, pitch.MIDIToFrequency(bassMIDI))
		bass.Durations = append(bass.Durations, dur)
		bass.Intensities = append(bass.Intensities, bassIntensity)

		perTone := dur / float64(len(tones))
		for _, pc := range tones {
			pianoMIDI := o.fit(pc, "piano")
			piano.Notes = append(piano.Notes, pitch.MIDIToFrequency(pianoMIDI))
			piano.Durations = append(piano.Durations, perTone)
			piano.Intensities = append(piano.Intensities, pianoIntensity)
		}
	}

	return map[string]notes.Part{
		"bass":  bass,
		"piano": piano,
	}
}
