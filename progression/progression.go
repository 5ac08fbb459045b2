// Package progression turns a key and a target beat count into a sequence
// of concrete chords, either by repeating a genre's Roman-numeral template
// or by walking a tonic/subdominant/dominant function Markov chain.
package progression

import (
	"math/rand"

	"github.com/cwbudde/maestro-core/notes"
)

// GenreTemplates lists the Roman-numeral progression each supported genre
// repeats/truncates to fit the requested bar count.
var GenreTemplates = map[string][]string{
	"pop":       {"I", "V", "vi", "IV"},
	"rock":      {"I", "IV", "V"},
	"blues":     {"I", "IV", "I", "V"},
	"jazz":      {"ii", "V", "I"},
	"classical": {"I", "vi", "ii", "V"},
	"funk":      {"I", "bVII", "IV", "I"},
}

// functionMarkov is the T/S/D transition table, expanded into a flat
// weighted slice so a single uniform draw picks the next function: T
// favors S:D:T at 3:2:1, S favors D:T at 4:1, D favors T:S at 5:1.
var functionMarkov = map[notes.Function][]notes.Function{
	notes.Tonic:       {notes.Subdominant, notes.Subdominant, notes.Subdominant, notes.Dominant, notes.Dominant, notes.Tonic},
	notes.Subdominant: {notes.Dominant, notes.Dominant, notes.Dominant, notes.Dominant, notes.Tonic},
	notes.Dominant:    {notes.Tonic, notes.Tonic, notes.Tonic, notes.Tonic, notes.Tonic, notes.Subdominant},
}

// numeralsByFunction lists every Roman numeral the Markov fallback can
// produce for a given function, in a fixed canonical order: index 0 is
// what temperature=0 always picks, and the full slice is what temperature=1
// samples from uniformly.
var numeralsByFunction = map[notes.Function][]string{
	notes.Tonic:       {"I", "i", "vi", "VI", "III", "iii"},
	notes.Subdominant: {"ii", "II", "IV", "iv"},
	notes.Dominant:    {"V", "v", "vii°", "VII"},
}

// romanDegree is a Roman numeral's semitone offset from the tonic and the
// quality of the chord it names. Case already encodes quality (uppercase
// major, lowercase minor); vii° is diminished in the source but is
// collapsed to Minor here since nothing downstream in the arrangement
// pipeline distinguishes a diminished triad from a minor one.
type romanDegree struct {
	interval int
	quality  notes.Quality
}

// romanTable covers every numeral GenreTemplates and numeralsByFunction can
// produce. bVII and VII both resolve to the flattened-seventh chord per the
// redesign: root (tonic+10)%12, major quality — the source's music21-backed
// resolver would derive this from proper scale-degree arithmetic, but
// nothing else in this pipeline needs a general Roman-numeral parser.
var romanTable = map[string]romanDegree{
	"I":    {0, notes.Major},
	"i":    {0, notes.Minor},
	"ii":   {2, notes.Minor},
	"II":   {2, notes.Major},
	"iii":  {4, notes.Minor},
	"III":  {4, notes.Major},
	"IV":   {5, notes.Major},
	"iv":   {5, notes.Minor},
	"V":    {7, notes.Major},
	"v":    {7, notes.Minor},
	"vi":   {9, notes.Minor},
	"VI":   {9, notes.Major},
	"vii°": {11, notes.Minor},
	"VII":  {10, notes.Major},
	"bVII": {10, notes.Major},
}

// ChordOf resolves a Roman numeral against key into a concrete chord. An
// unrecognized numeral falls back to the tonic triad.
func ChordOf(numeral string, key notes.Key) notes.Chord {
	deg, ok := romanTable[numeral]
	if !ok {
		return notes.Chord{Root: key.Tonic, Quality: modeQuality(key.Mode)}
	}
	root := notes.PitchClass(((int(key.Tonic) + deg.interval) % 12))
	return notes.Chord{Root: root, Quality: deg.quality}
}

func modeQuality(m notes.Mode) notes.Quality {
	if m == notes.MinorMode {
		return notes.Minor
	}
	return notes.Major
}

// Synth generates chord progressions for a fixed genre template, or via the
// function-Markov fallback when genre is unrecognized (including the empty
// string).
type Synth struct {
	genre       string
	temperature float64
	rng         *rand.Rand
}

// New creates a Synth. temperature is clamped to [0,1].
func New(genre string, temperature float64, rng *rand.Rand) *Synth {
	if temperature < 0 {
		temperature = 0
	}
	if temperature > 1 {
		temperature = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Synth{genre: genre, temperature: temperature, rng: rng}
}

// barBeats converts a time signature to a beat-per-bar count, matching the
// source's `num * (4/den)` conversion to quarter-note beats.
func barBeats(meterNum, meterDen int) float64 {
	if meterNum <= 0 || meterDen <= 0 {
		return 4.0
	}
	return float64(meterNum) * (4.0 / float64(meterDen))
}

func barCount(beats float64, meterNum, meterDen int) int {
	n := int(beats/barBeats(meterNum, meterDen) + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}

// Next produces one chord per bar spanning beats beats of key, using the
// genre template if one was configured, else the function-Markov fallback.
func (s *Synth) Next(key notes.Key, beats float64, meterNum, meterDen int) []notes.Chord {
	n := barCount(beats, meterNum, meterDen)

	var numerals []string
	if tpl, ok := GenreTemplates[s.genre]; ok {
		numerals = repeatToLength(tpl, n)
	} else {
		numerals = s.walkMarkov(n)
	}

	chords := make([]notes.Chord, len(numerals))
	for i, rn := range numerals {
		chords[i] = ChordOf(rn, key)
	}
	return chords
}

func repeatToLength(tpl []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = tpl[i%len(tpl)]
	}
	return out
}

// walkMarkov steps the tonic/subdominant/dominant function chain n times,
// starting from tonic, and picks one Roman numeral per step. temperature
// scales how the numeral is picked within the chosen function's candidates:
// at 0 it always takes the canonical (index-0) numeral for that function,
// at 1 it draws uniformly among all of them, and values between blend the
// two by chance.
func (s *Synth) walkMarkov(n int) []string {
	numerals := make([]string, n)
	prevFn := notes.Tonic
	for i := 0; i < n; i++ {
		weighted := functionMarkov[prevFn]
		fn := weighted[s.rng.Intn(len(weighted))]

		candidates := numeralsByFunction[fn]
		if s.rng.Float64() < s.temperature {
			numerals[i] = candidates[s.rng.Intn(len(candidates))]
		} else {
			numerals[i] = candidates[0]
		}
		prevFn = fn
	}
	return numerals
}
