// Package compositor loads the melody file repository and tracks per-hand
// playhead state, handing the arrangement pipeline a steady stream of note
// events to analyze and orchestrate.
package compositor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cwbudde/maestro-core/notes"
)

const defaultIntensity = 0.8

var (
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentPattern  = regexp.MustCompile(`//[^\n]*`)
)

// stripComments removes /* block */ and //line comments from a JSONC
// melody file before it is handed to encoding/json.
func stripComments(text string) string {
	text = blockCommentPattern.ReplaceAllString(text, "")
	text = lineCommentPattern.ReplaceAllString(text, "")
	return text
}

// melodyFile is the on-disk JSONC schema for a melody.
type melodyFile struct {
	Title         string          `json:"title"`
	Tempo         *float64        `json:"tempo"`
	TimeSignature string          `json:"time_signature"`
	Hands         [][]melodyEvent `json:"hands"`
	Notes         []melodyEvent   `json:"notes"`
}

// knownMelodyKeys are the fields melodyFile interprets directly; every
// other top-level key is preserved verbatim in a melody's opaque metadata
// map, matching the source's "everything except hands/notes" capture.
var knownMelodyKeys = map[string]bool{"hands": true, "notes": true}

type melodyEvent struct {
	Frequency     *float64 `json:"frequency"`
	DurationBeats *float64 `json:"duration_beats"`
	Duration      *float64 `json:"duration"`
	Intensity     *float64 `json:"intensity"`
}

func (e melodyEvent) toNote() (notes.Event, bool) {
	if e.Frequency == nil {
		return notes.Event{}, false
	}
	dur := 1.0
	switch {
	case e.DurationBeats != nil:
		dur = *e.DurationBeats
	case e.Duration != nil:
		dur = *e.Duration
	}
	intensity := defaultIntensity
	if e.Intensity != nil {
		intensity = *e.Intensity
	}
	return notes.Event{FrequencyHz: *e.Frequency, DurationBeats: dur, Intensity: intensity}, true
}

type melodyRecord struct {
	notes.Melody
}

// Compositor is the melody repository and per-hand playback cursor. It is
// not safe for concurrent use from multiple goroutines without external
// synchronization; the maestro scheduler owns exactly one compositor per
// zone.
type Compositor struct {
	repoPath string
	melodies map[string]melodyRecord
	rng      *rand.Rand
	log      *slog.Logger

	currentName  string
	currentHands [][]notes.Event
	idxs         []int
}

// Option configures a Compositor at construction time.
type Option func(*Compositor)

// WithLogger overrides the default (slog.Default()) logger a Compositor
// reports skipped/malformed melody files to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compositor) { c.log = l }
}

// Load scans repoPath for *.json melody files and returns a Compositor
// ready to Start any of them. Parse failures for individual files are
// non-fatal: the file is skipped and logged at Warn.
func Load(repoPath string, opts ...Option) (*Compositor, error) {
	entries, err := os.ReadDir(repoPath)
	if err != nil {
		return nil, fmt.Errorf("compositor: read %s: %w", repoPath, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	c := &Compositor{
		repoPath: repoPath,
		melodies: make(map[string]melodyRecord),
		rng:      rand.New(rand.NewSource(1)),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, fn := range names {
		name := strings.TrimSuffix(fn, filepath.Ext(fn))
		rec, err := loadMelodyFile(filepath.Join(repoPath, fn))
		if err != nil {
			c.log.Warn("compositor: skipping malformed melody file", "file", fn, "error", err)
			continue // matching the source's tolerant scan
		}
		if len(rec.Hands) == 0 {
			continue
		}
		c.melodies[name] = rec
	}
	return c, nil
}

func loadMelodyFile(path string) (melodyRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return melodyRecord{}, err
	}

	var mf melodyFile
	if err := json.Unmarshal([]byte(stripComments(string(raw))), &mf); err != nil {
		return melodyRecord{}, err
	}

	handsRaw := mf.Hands
	if len(handsRaw) == 0 && len(mf.Notes) > 0 {
		handsRaw = [][]melodyEvent{mf.Notes}
	}

	rec := melodyRecord{Melody: notes.Melody{Title: mf.Title, MeterNum: 4, MeterDen: 4}}
	for _, hand := range handsRaw {
		var evs []notes.Event
		for _, e := range hand {
			if n, ok := e.toNote(); ok {
				evs = append(evs, n)
			}
		}
		if len(evs) > 0 {
			rec.Hands = append(rec.Hands, evs)
		}
	}
	if len(rec.Hands) == 0 {
		return melodyRecord{}, fmt.Errorf("compositor: no valid events in %s", path)
	}

	if mf.Tempo != nil {
		rec.Tempo = *mf.Tempo
	}
	if mf.TimeSignature != "" {
		if num, den, ok := parseMeter(mf.TimeSignature); ok {
			rec.MeterNum, rec.MeterDen = num, den
		}
	}

	var rawMap map[string]any
	if err := json.Unmarshal([]byte(stripComments(string(raw))), &rawMap); err == nil {
		extra := make(map[string]any, len(rawMap))
		for k, v := range rawMap {
			if !knownMelodyKeys[k] {
				extra[k] = v
			}
		}
		rec.Extra = extra
	}
	return rec, nil
}

func parseMeter(sig string) (num, den int, ok bool) {
	parts := strings.SplitN(sig, "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	n, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	d, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return 0, 0, false
	}
	return n, d, true
}

// Names returns every successfully-loaded melody name, sorted.
func (c *Compositor) Names() []string {
	out := make([]string, 0, len(c.melodies))
	for name := range c.melodies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Start begins a fresh run through the named melody's hands, resetting
// every hand's playhead to 0. An unknown name leaves the compositor with
// no current hands (next_event then returns a single silent rest, matching
// the source's empty-hands fallback).
func (c *Compositor) Start(name string) {
	c.currentName = name
	rec := c.melodies[name]
	c.currentHands = rec.Hands
	c.idxs = make([]int, len(rec.Hands))
}

// NextEvent returns one event per hand and advances each hand's playhead
// modulo that hand's length. Hands of different lengths desynchronize
// polymetrically by design. Never allocates after Start except for the
// returned slices themselves.
func (c *Compositor) NextEvent() (freqs, durations, intensities []float64) {
	if len(c.currentHands) == 0 {
		return []float64{0}, []float64{1}, []float64{0}
	}
	freqs = make([]float64, len(c.currentHands))
	durations = make([]float64, len(c.currentHands))
	intensities = make([]float64, len(c.currentHands))
	for hi, hand := range c.currentHands {
		e := hand[c.idxs[hi]]
		freqs[hi] = e.FrequencyHz
		durations[hi] = e.DurationBeats
		intensities[hi] = e.Intensity
		c.idxs[hi] = (c.idxs[hi] + 1) % len(hand)
	}
	return freqs, durations, intensities
}

// GetFullSequence returns the entire first hand's sequence, for the
// harmonic analyser's lookahead.
func (c *Compositor) GetFullSequence() []notes.Event {
	if len(c.currentHands) == 0 {
		return nil
	}
	return append([]notes.Event(nil), c.currentHands[0]...)
}

// GetTempo returns the current melody's tempo, or def if it has none.
func (c *Compositor) GetTempo(def float64) float64 {
	rec, ok := c.melodies[c.currentName]
	if !ok || rec.Tempo == 0 {
		return def
	}
	return rec.Tempo
}

// GetMeter returns the current melody's time signature, defaulting to 4/4.
func (c *Compositor) GetMeter() (num, den int) {
	rec, ok := c.melodies[c.currentName]
	if !ok {
		return 4, 4
	}
	return rec.MeterNum, rec.MeterDen
}

// Sprinkle returns a Bernoulli trial with success probability p, used by
// higher layers for stochastic accents.
func (c *Compositor) Sprinkle(p float64) bool {
	return c.rng.Float64() < p
}

// BlockEvent is one gathered note event, timestamped by its beat offset
// within the block.
type BlockEvent struct {
	TimeBeats   float64
	Notes       []float64
	Durations   []float64
	Intensities []float64
}

// NextBlockEvents gathers events until the accumulated duration (measured
// as the average duration across hands per step) reaches beats.
func (c *Compositor) NextBlockEvents(beats float64) []BlockEvent {
	var events []BlockEvent
	timeAcc := 0.0
	for timeAcc < beats {
		freqs, durs, ints := c.NextEvent()
		events = append(events, BlockEvent{TimeBeats: timeAcc, Notes: freqs, Durations: durs, Intensities: ints})
		sum := 0.0
		for _, d := range durs {
			sum += d
		}
		timeAcc += sum / float64(len(durs))
	}
	return events
}

// TransitionProbability returns the crossfade probability for a melody
// swap that has blocksRemaining blocks left before it must complete.
// Redesigned per the source's degenerate off-by-one (a first-call
// probability of 1/N would divide by the total transition-block count
// including calls not yet made, always yielding zero on the first call):
// this uses 1/(blocksRemaining+1) so the first call already carries a
// non-zero chance and the probability rises smoothly to 1 on the last
// call.
func (c *Compositor) TransitionProbability(blocksRemaining int) float64 {
	if blocksRemaining < 0 {
		blocksRemaining = 0
	}
	return 1.0 / float64(blocksRemaining+1)
}
