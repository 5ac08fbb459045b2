// Package harmony estimates a key, a per-beat chord sequence, and each
// chord's harmonic function from a raw stream of melodic note events.
package harmony

import (
	"math"

	"github.com/cwbudde/maestro-core/internal/pitch"
	"github.com/cwbudde/maestro-core/internal/vecmath"
	"github.com/cwbudde/maestro-core/notes"
)

// krumhanslMajor and krumhanslMinor are the Krumhansl-Kessler key profiles:
// the perceived stability of each pitch class relative to a major or minor
// tonic, indexed by semitone distance from the tonic.
var (
	krumhanslMajor = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	krumhanslMinor = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// chordTemplate is one of the 24 candidate triads a beat window is scored
// against: a root pitch class, a quality, and the three pitch classes the
// triad covers.
type chordTemplate struct {
	root    notes.PitchClass
	quality notes.Quality
	pcs     [3]int
}

// templates lists every major triad (root 0..11) followed by every minor
// triad (root 0..11), the same fixed order harmonic.py's dict comprehension
// produces (major block, then minor block, both in pitch-class order). The
// order matters: it is the tie-break of last resort below.
var templates = buildTemplates()

func buildTemplates() [24]chordTemplate {
	var t [24]chordTemplate
	for i := 0; i < 12; i++ {
		t[i] = chordTemplate{root: notes.PitchClass(i), quality: notes.Major, pcs: [3]int{i, (i + 4) % 12, (i + 7) % 12}}
	}
	for i := 0; i < 12; i++ {
		t[12+i] = chordTemplate{root: notes.PitchClass(i), quality: notes.Minor, pcs: [3]int{i, (i + 3) % 12, (i + 7) % 12}}
	}
	return t
}

func pitchClassOf(freqHz float64) int {
	midi := int(math.Round(pitch.FrequencyToMIDI(freqHz)))
	return ((midi % 12) + 12) % 12
}

// center subtracts the mean from every element, returning a new slice.
func center(v []float64) []float64 {
	sum := vecmath.Sum(v)
	mean := sum / float64(len(v))
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x - mean
	}
	return out
}

// correlate computes the Pearson correlation coefficient between two
// mean-centered vectors via the dot-product form, matching the standard
// Krumhansl-Schmuckler key-finding correlation.
func correlate(hist, profile []float64) float64 {
	h := center(hist)
	p := center(profile)
	num := vecmath.DotProduct(h, p)
	denom := math.Sqrt(vecmath.DotProduct(h, h) * vecmath.DotProduct(p, p))
	if denom == 0 {
		return 0
	}
	return num / denom
}

func rotate(profile [12]float64, tonic int) []float64 {
	out := make([]float64, 12)
	for pc := 0; pc < 12; pc++ {
		out[pc] = profile[((pc-tonic)%12+12)%12]
	}
	return out
}

// EstimateKey correlates the duration-weighted pitch-class histogram of
// events against all 24 rotated major/minor Krumhansl profiles and returns
// the best-correlated key.
func EstimateKey(events []notes.Event) notes.Key {
	hist := make([]float64, 12)
	for _, e := range events {
		if e.IsRest() {
			continue
		}
		hist[pitchClassOf(e.FrequencyHz)] += e.DurationBeats
	}

	bestTonic, bestMode := 0, notes.MajorMode
	bestScore := math.Inf(-1)
	for tonic := 0; tonic < 12; tonic++ {
		if score := correlate(hist, rotate(krumhanslMajor, tonic)); score > bestScore {
			bestScore, bestTonic, bestMode = score, tonic, notes.MajorMode
		}
		if score := correlate(hist, rotate(krumhanslMinor, tonic)); score > bestScore {
			bestScore, bestTonic, bestMode = score, tonic, notes.MinorMode
		}
	}
	return notes.Key{Tonic: notes.PitchClass(bestTonic), Mode: bestMode}
}

// matchWindow scores window's pitch-class histogram against every triad
// template and returns the winner. Ties are broken by preferring the
// template rooted at the key's tonic (major before minor, since that is
// templates' fixed iteration order); any remaining tie keeps the first
// template encountered, matching the source's plain "score > best" scan.
func matchWindow(window []int, key notes.Key) notes.Chord {
	if len(window) == 0 {
		return notes.Chord{Root: key.Tonic, Quality: modeQuality(key.Mode)}
	}

	hist := make([]int, 12)
	for _, pc := range window {
		hist[pc]++
	}

	bestScore := -1
	var tied []chordTemplate
	for _, tpl := range templates {
		score := hist[tpl.pcs[0]] + hist[tpl.pcs[1]] + hist[tpl.pcs[2]]
		switch {
		case score > bestScore:
			bestScore = score
			tied = []chordTemplate{tpl}
		case score == bestScore:
			tied = append(tied, tpl)
		}
	}

	for _, tpl := range tied {
		if tpl.root == key.Tonic {
			return notes.Chord{Root: tpl.root, Quality: tpl.quality}
		}
	}
	return notes.Chord{Root: tied[0].root, Quality: tied[0].quality}
}

func modeQuality(m notes.Mode) notes.Quality {
	if m == notes.MinorMode {
		return notes.Minor
	}
	return notes.Major
}

// functionOf assigns a chord its harmonic role by semitone interval from
// the key's tonic. This is the interval-space form of the Roman-numeral
// rule (V or vii° -> dominant; ii or IV -> subdominant; else tonic): in a
// major key V sits 7 semitones above the tonic and vii° sits 11, while ii
// sits 2 and IV sits 5, so scoring by interval reproduces the same
// classification without naming scale degrees.
func functionOf(chord notes.Chord, tonic notes.PitchClass) notes.Function {
	interval := ((int(chord.Root) - int(tonic)) % 12 + 12) % 12
	switch interval {
	case 7, 11:
		return notes.Dominant
	case 2, 5:
		return notes.Subdominant
	default:
		return notes.Tonic
	}
}

// Describe runs the full key/chord/function analysis over a melodic span:
// estimate the key, partition the span into integer-beat windows, match
// each window's pitch-class histogram against the 24 triad templates, and
// assign each resulting chord a harmonic function.
func Describe(events []notes.Event) notes.Analysis {
	key := EstimateKey(events)

	type timedPC struct {
		beat int
		pc   int
	}
	var timed []timedPC
	t := 0.0
	total := 0.0
	for _, e := range events {
		if !e.IsRest() {
			timed = append(timed, timedPC{beat: int(math.Floor(t)), pc: pitchClassOf(e.FrequencyHz)})
		}
		t += e.DurationBeats
		total = t
	}

	totalBeats := int(math.Ceil(total))
	analysis := notes.Analysis{Key: key}
	for b := 0; b < totalBeats; b++ {
		var window []int
		for _, tp := range timed {
			if tp.beat == b {
				window = append(window, tp.pc)
			}
		}
		chord := matchWindow(window, key)
		analysis.Chords = append(analysis.Chords, chord)
		analysis.Functions = append(analysis.Functions, functionOf(chord, key.Tonic))
		analysis.Durations = append(analysis.Durations, 1.0)
	}
	return analysis
}
