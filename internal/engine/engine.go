// Package engine is a reference AudioEngine: it drains an audioengine.Queue,
// keeps one live preset.Instance per active kind, routes each voice through
// an optional per-channel effectchain.Chain for its reverb/chorus sends,
// and mixes the result through a fixed eight-band parametric EQ. It never
// touches a real audio device — it exists so the core and its tests have
// something concrete to drive and render from.
package engine

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cwbudde/maestro-core/audioengine"
	"github.com/cwbudde/maestro-core/dsp/effectchain"
	"github.com/cwbudde/maestro-core/dsp/filter/biquad"
	"github.com/cwbudde/maestro-core/dsp/filter/design"
	"github.com/cwbudde/maestro-core/dsp/filter/design/orfanidis"
	"github.com/cwbudde/maestro-core/preset"
	"github.com/cwbudde/maestro-core/presetregistry"
)

// eqBands are the eight fixed parametric-EQ centers the spectral mixer
// addresses by nearest match, mirroring maestro_mixer.py's fixed band table.
var eqBands = [8]float64{125, 250, 500, 1000, 2000, 4000, 8000, 16000}

const eqQ = 1.0

// melodicEnqueuer is satisfied by preset.Instance implementations that
// accept scheduled notes (currently only the melodic voice kind). It is
// checked with a type assertion rather than added to preset.Instance itself,
// since static/textural kinds have no notion of a note queue.
type melodicEnqueuer interface {
	Enqueue(freqHz, durationSec, intensity float64)
}

type voice struct {
	instance preset.Instance
	kind     string
	// fxLeft/fxRight realize a PlayPreset's enableReverb/enableChorus flags
	// (set by automix.AutoMixer.Autoset) as a per-channel effectchain.Chain.
	// Separate chains per channel avoid a mono reverb/chorus's internal
	// delay state crosstalking between left and right. Both are nil when
	// neither flag was set.
	fxLeft, fxRight *effectchain.Chain
}

// Engine is a reference implementation of audioengine.Engine's consumer
// side: something has to drain the Queue Enqueue posts into. It is not
// itself an audioengine.Engine (that interface is the producer's view);
// Drain reads from a *audioengine.Queue directly.
type Engine struct {
	mu         sync.Mutex
	ctx        preset.Context
	registry   *presetregistry.Registry
	fxRegistry *effectchain.Registry
	voices     map[string]*voice // keyed by preset kind name, one live instance per kind
	eq         [8]*biquad.Section
	eqGain     [8]float64
}

// New creates an Engine rendering at sampleRate against registry. A
// ReloadRegistry command (drained via Drain) calls registry.Reload();
// Engine always looks kinds up through registry rather than caching a
// snapshot of its own.
func New(registry *presetregistry.Registry, sampleRate float64) *Engine {
	e := &Engine{
		ctx:        preset.Context{SampleRate: sampleRate},
		registry:   registry,
		fxRegistry: effectchain.DefaultRegistry(),
		voices:     make(map[string]*voice),
	}
	for i, freq := range eqBands {
		e.eq[i] = biquad.NewSection(eqPeakCoeffs(freq, 0, sampleRate))
	}
	return e
}

// eqPeakCoeffs designs one EQ band's peaking biquad. It prefers the
// Orfanidis-style designer (prescribed band-edge gain, steadier at high
// order) and falls back to the RBJ formula in dsp/filter/design when the
// requested center frequency sits at or above Nyquist, which the fixed
// band table can hit on low sample rates (e.g. the 16000 Hz band at an
// 8000 Hz rate).
func eqPeakCoeffs(freqHz, gainDB, sampleRate float64) biquad.Coefficients {
	c, err := orfanidis.PeakingFromFreqQGain(sampleRate, freqHz, eqQ, gainDB)
	if err != nil {
		return design.Peak(freqHz, gainDB, eqQ, sampleRate)
	}
	return c
}

// Drain applies every command and reload signal currently pending on q,
// without blocking. It is meant to be called once per render block from
// the same goroutine that calls Render.
func (e *Engine) Drain(q *audioengine.Queue) {
	for {
		select {
		case cmd := <-q.Commands():
			e.apply(cmd)
		case <-q.Reloads():
			e.reload()
		default:
			return
		}
	}
}

func (e *Engine) apply(cmd audioengine.Command) {
	switch c := cmd.(type) {
	case audioengine.PlayPreset:
		e.playPreset(c)
	case audioengine.StopPreset:
		e.stopPreset(c)
	case audioengine.SetParam:
		e.setParam(c)
	case audioengine.SetEQGain:
		e.setEQGain(c)
	}
}

func (e *Engine) playPreset(c audioengine.PlayPreset) {
	e.mu.Lock()
	defer e.mu.Unlock()

	params := floatParams(c.Params)
	instance, err := e.registry.Build(e.ctx, c.Preset, preset.DefaultOptions(), params)
	if err != nil {
		return
	}

	reverb, _ := c.Params["enableReverb"].(bool)
	chorus, _ := c.Params["enableChorus"].(bool)

	// audio_maestro.py keys its live voices by preset kind name and lets a
	// later PlayPreset for the same kind silently replace the earlier one;
	// this mirrors that, rather than stacking unbounded instances per kind.
	e.voices[c.Preset] = &voice{
		instance: instance,
		kind:     c.Preset,
		fxLeft:   e.buildVoiceChain(reverb, chorus),
		fxRight:  e.buildVoiceChain(reverb, chorus),
	}

	if enqueuer, ok := instance.(melodicEnqueuer); ok {
		enqueueNotes(enqueuer, c.Params)
	}
}

// voiceGraphNode/voiceGraphConnection/voiceGraphState mirror the JSON shape
// effectchain.Chain.LoadGraph expects (see dsp/effectchain/graph.go's
// unexported graphNode/graphConnection/graphState): a node list plus a
// linear chain of connections. Built fresh per voice since reverb/chorus
// are the only two optional stages and a graph has no cheaper mutation path
// than reloading it.
type voiceGraphNode struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type voiceGraphConnection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type voiceGraphState struct {
	Nodes       []voiceGraphNode       `json:"nodes"`
	Connections []voiceGraphConnection `json:"connections"`
}

// buildVoiceChain wires a preset instance's rendered output through an
// optional reverb node and an optional chorus node, in that order,
// realizing the enableReverb/enableChorus flags automix.AutoMixer.Autoset
// attaches to a part. Returns nil when neither flag is set, so a plain
// voice with no sends skips effectchain.Chain.Process entirely.
func (e *Engine) buildVoiceChain(reverb, chorus bool) *effectchain.Chain {
	if !reverb && !chorus {
		return nil
	}

	nodes := []voiceGraphNode{{ID: effectchain.InputNodeID, Type: effectchain.InputNodeID}}
	var conns []voiceGraphConnection
	prev := effectchain.InputNodeID

	if reverb {
		nodes = append(nodes, voiceGraphNode{ID: "reverb", Type: "reverb"})
		conns = append(conns, voiceGraphConnection{From: prev, To: "reverb"})
		prev = "reverb"
	}
	if chorus {
		nodes = append(nodes, voiceGraphNode{ID: "chorus", Type: "chorus"})
		conns = append(conns, voiceGraphConnection{From: prev, To: "chorus"})
		prev = "chorus"
	}
	nodes = append(nodes, voiceGraphNode{ID: effectchain.OutputNodeID, Type: effectchain.OutputNodeID})
	conns = append(conns, voiceGraphConnection{From: prev, To: effectchain.OutputNodeID})

	raw, err := json.Marshal(voiceGraphState{Nodes: nodes, Connections: conns})
	if err != nil {
		return nil
	}

	chain := effectchain.New(effectchain.Context{SampleRate: e.ctx.SampleRate}, e.fxRegistry)
	if err := chain.LoadGraph(string(raw)); err != nil {
		return nil
	}
	return chain
}

// floatParams coerces a PlayPreset's untyped param map down to the
// float64-only shape preset.Instance.Configure and registry.Build expect,
// dropping any entry that isn't a plain number (e.g. the "notes"/
// "durations"/"intensities" slices a melodic PlayPreset carries).
func floatParams(params map[string]any) map[string]float64 {
	out := make(map[string]float64, len(params))
	for k, v := range params {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}

func enqueueNotes(v melodicEnqueuer, params map[string]any) {
	notes, ok := params["notes"].([]float64)
	if !ok {
		return
	}
	durations, _ := params["durations"].([]float64)
	intensities, _ := params["intensities"].([]float64)
	for i, freq := range notes {
		dur := 1.0
		if i < len(durations) {
			dur = durations[i]
		}
		intensity := 0.8
		if i < len(intensities) {
			intensity = intensities[i]
		}
		v.Enqueue(freq, dur, intensity)
	}
}

func (e *Engine) stopPreset(c audioengine.StopPreset) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.voices[c.Preset]; ok {
		v.instance.RequestStop()
	}
}

func (e *Engine) setParam(c audioengine.SetParam) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.voices[c.Preset]
	if !ok {
		return
	}
	f, ok := c.Value.(float64)
	if !ok {
		return
	}
	_ = v.instance.Configure(map[string]float64{c.Key: f})
}

// setEQGain rebuilds the nearest band's biquad section at the new gain.
// Section has no in-place coefficient update, so a fresh section replaces
// the old one; state (d0/d1) resets along with it, which is inaudible for
// a gain-only change at block boundaries.
func (e *Engine) setEQGain(c audioengine.SetEQGain) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := nearestBand(c.BandHz)
	e.eqGain[i] = c.Gain
	e.eq[i] = biquad.NewSection(eqPeakCoeffs(eqBands[i], c.Gain, e.ctx.SampleRate))
}

func nearestBand(hz float64) int {
	best, bestDist := 0, absDiff(eqBands[0], hz)
	for i := 1; i < len(eqBands); i++ {
		if d := absDiff(eqBands[i], hz); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func (e *Engine) reload() {
	e.registry.Reload()
}

// EQGain reports the currently commanded gain, in dB, of the band nearest
// hz. It exists for tests to observe SetEQGain's effect without decoding
// biquad coefficients.
func (e *Engine) EQGain(hz float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.eqGain[nearestBand(hz)]
}

// ActiveVoices reports the preset kinds with a live (non-Dead) instance.
func (e *Engine) ActiveVoices() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for kind, v := range e.voices {
		if v.instance.Phase() != preset.Dead {
			out = append(out, kind)
		}
	}
	return out
}

// Render sums every active voice's output and passes the mix through the
// EQ bank, returning numSamples of stereo audio. Dead instances are pruned
// after rendering.
func (e *Engine) Render(numSamples int) (left, right []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	left = make([]float64, numSamples)
	right = make([]float64, numSamples)

	for kind, v := range e.voices {
		vl, vr := v.instance.Render(numSamples)
		if v.fxLeft != nil {
			v.fxLeft.Process(vl)
		}
		if v.fxRight != nil {
			v.fxRight.Process(vr)
		}
		for i := 0; i < numSamples && i < len(vl); i++ {
			left[i] += vl[i]
		}
		for i := 0; i < numSamples && i < len(vr); i++ {
			right[i] += vr[i]
		}
		if v.instance.Phase() == preset.Dead {
			delete(e.voices, kind)
		}
	}

	for _, band := range e.eq {
		band.ProcessBlock(left)
		band.ProcessBlock(right)
	}

	return left, right
}

// String reports the engine's sample rate and registered kind count, for
// debugging.
func (e *Engine) String() string {
	return fmt.Sprintf("engine(sampleRate=%.0f, kinds=%d)", e.ctx.SampleRate, len(e.registry.Kinds()))
}
