// Package arrangement wires the harmonic-analysis, progression,
// orchestration, and auto-mix stages into the one-call-per-block pipeline
// the maestro scheduler drives.
package arrangement

import (
	"math/rand"
	"sync"

	"github.com/cwbudde/maestro-core/automix"
	"github.com/cwbudde/maestro-core/compositor"
	"github.com/cwbudde/maestro-core/harmony"
	"github.com/cwbudde/maestro-core/notes"
	"github.com/cwbudde/maestro-core/orchestrate"
	"github.com/cwbudde/maestro-core/progression"
)

// Engine runs one arrangement pass per block: gather melody, analyze,
// progress, orchestrate, auto-mix. It holds no per-block state itself —
// all continuity lives in the Compositor it reads from.
type Engine struct {
	compositor *compositor.Compositor
	progress   *progression.Synth
	orchestra  *orchestrate.Orchestrator
	mixer      *automix.AutoMixer
}

// New creates an Engine over c, generating progressions in genre (empty
// string selects the function-Markov fallback) and auto-mixing toward
// targetLUFS at sampleRate.
func New(c *compositor.Compositor, genre string, temperature float64, targetLUFS float64, sampleRate int, rngSeed int64) *Engine {
	return &Engine{
		compositor: c,
		progress:   progression.New(genre, temperature, deterministicRand(rngSeed)),
		orchestra:  orchestrate.New(),
		mixer:      automix.New(targetLUFS, sampleRate),
	}
}

func deterministicRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// PrepareBlock runs the full analyze -> progress -> orchestrate -> auto-mix
// chain over the next beats worth of melody and returns the resulting
// parts, keyed by role ("bass", "piano", "melody", ...). Muting is not
// checked here: the maestro scheduler is the single place that decides
// whether a block's arrangement is worth computing at all.
func (e *Engine) PrepareBlock(beats float64) map[string]notes.Part {
	raw := e.compositor.NextBlockEvents(beats)
	melody := flatten(raw)

	analysis := harmony.Describe(melody)

	meterNum, meterDen := e.compositor.GetMeter()
	chords := e.progress.Next(analysis.Key, beats, meterNum, meterDen)

	chordDur := beats
	if len(chords) > 0 {
		chordDur = beats / float64(len(chords))
	}
	chordDurs := make([]float64, len(chords))
	for i := range chordDurs {
		chordDurs[i] = chordDur
	}

	parts := e.orchestra.Voice(chords, chordDurs)
	parts["melody"] = melodyPart(melody)

	return e.mixer.Autoset(parts, nil)
}

func flatten(events []compositor.BlockEvent) []notes.Event {
	var out []notes.Event
	for _, be := range events {
		for i, f := range be.Notes {
			dur, intensity := 1.0, 0.8
			if i < len(be.Durations) {
				dur = be.Durations[i]
			}
			if i < len(be.Intensities) {
				intensity = be.Intensities[i]
			}
			out = append(out, notes.Event{FrequencyHz: f, DurationBeats: dur, Intensity: intensity})
		}
	}
	return out
}

func melodyPart(events []notes.Event) notes.Part {
	p := notes.Part{
		Notes:       make([]float64, len(events)),
		Durations:   make([]float64, len(events)),
		Intensities: make([]float64, len(events)),
	}
	for i, e := range events {
		p.Notes[i] = e.FrequencyHz
		p.Durations[i] = e.DurationBeats
		p.Intensities[i] = e.Intensity
	}
	return p
}

// BlockQueue is a bounded FIFO of prepared blocks: PrepareBlock's output is
// pushed onto it ahead of when it is needed, and the oldest entry is
// dropped once the queue exceeds its capacity, so a slow analysis pass
// never grows memory unbounded.
type BlockQueue struct {
	mu    sync.Mutex
	items []map[string]notes.Part
	max   int
}

// NewBlockQueue creates a BlockQueue holding at most max prepared blocks.
func NewBlockQueue(max int) *BlockQueue {
	if max < 1 {
		max = 1
	}
	return &BlockQueue{max: max}
}

// Push appends parts, evicting the oldest entry if the queue is full.
func (q *BlockQueue) Push(parts map[string]notes.Part) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, parts)
	for len(q.items) > q.max {
		q.items = q.items[1:]
	}
}

// Pop removes and returns the oldest prepared block, if any.
func (q *BlockQueue) Pop() (map[string]notes.Part, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	parts := q.items[0]
	q.items = q.items[1:]
	return parts, true
}

// Len reports how many prepared blocks are queued.
func (q *BlockQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// GetNextBlock pops a queued block, preparing one on demand if the queue
// is empty.
func (e *Engine) GetNextBlock(q *BlockQueue, beats float64) map[string]notes.Part {
	if parts, ok := q.Pop(); ok {
		return parts
	}
	return e.PrepareBlock(beats)
}
