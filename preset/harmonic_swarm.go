package preset

import (
	"math"

	"github.com/cwbudde/maestro-core/dsp/delay"
)

// HarmonicSwarmKind is the descriptor for a cluster of slightly detuned
// partials, summed to mono and fed through three shared feedback delay
// taps (0.1, 0.2 and 0.3 s). The partials are not panned individually:
// pan_rate and the per-voice pan phases are stored but do not affect the
// output.
var HarmonicSwarmKind = Descriptor{
	Kind:    "harmonic_swarm",
	Factory: newHarmonicSwarm,
	Params: []ParamMeta{
		{Name: "base_freq", Kind: ParamFloat, Default: 110.0, Min: 40, Max: 800},
		{Name: "num_voices", Kind: ParamInt, Default: 6, Min: 2, Max: 12},
		{Name: "freq_ratio", Kind: ParamFloat, Default: 1.01, Min: 1.001, Max: 1.1},
		{Name: "pan_rate", Kind: ParamFloat, Default: 0.05, Min: 0.01, Max: 1},
		{Name: "delay_feedback", Kind: ParamFloat, Default: 0.3, Min: 0, Max: 0.9},
		{Name: "intensity", Kind: ParamFloat, Default: 0.04, Min: 0, Max: 0.3},
	},
}

var harmonicSwarmDelayTimes = [3]float64{0.1, 0.2, 0.3}

type harmonicSwarmVoice struct {
	osc      *phaseOsc
	panPhase float64
}

type harmonicSwarm struct {
	voice *Voice
	chain *Chain

	sampleRate float64
	voices     []harmonicSwarmVoice
	taps       []*delayTap

	baseFreq      float64
	numVoices     int
	freqRatio     float64
	panRate       float64
	delayFeedback float64
	intensity     float64
}

func newHarmonicSwarm(ctx Context, opts Options, params map[string]float64) (Instance, error) {
	h := &harmonicSwarm{
		voice:         NewVoice(ctx.SampleRate, 0.005, 0.4, 4.7),
		chain:         NewChain(ctx, opts.WithKindDefaults(true, 0.3)),
		sampleRate:    ctx.SampleRate,
		baseFreq:      110.0,
		numVoices:     6,
		freqRatio:     1.01,
		panRate:       0.05,
		delayFeedback: 0.3,
		intensity:     0.04,
	}
	if err := h.Configure(params); err != nil {
		return nil, err
	}
	h.rebuildVoices(ctx.SampleRate)
	return h, nil
}

func (h *harmonicSwarm) rebuildVoices(sampleRate float64) {
	h.voices = make([]harmonicSwarmVoice, h.numVoices)
	for i := range h.voices {
		h.voices[i] = harmonicSwarmVoice{
			osc:      newPhaseOsc(sampleRate),
			panPhase: float64(i) * 0.618, // golden-ratio stagger; not read by Render
		}
	}
	h.taps = make([]*delayTap, len(harmonicSwarmDelayTimes))
	for i, dt := range harmonicSwarmDelayTimes {
		h.taps[i] = newDelayTap(sampleRate, dt, h.delayFeedback, 0.4)
	}
}

func (h *harmonicSwarm) Phase() Phase { return h.voice.Phase() }

func (h *harmonicSwarm) Configure(params map[string]float64) error {
	rebuild := false
	if v, ok := params["base_freq"]; ok {
		h.baseFreq = v
	}
	if v, ok := params["num_voices"]; ok {
		if n := int(v); n != h.numVoices {
			h.numVoices = n
			rebuild = true
		}
	}
	if v, ok := params["freq_ratio"]; ok {
		h.freqRatio = v
	}
	if v, ok := params["pan_rate"]; ok {
		h.panRate = v
	}
	if v, ok := params["delay_feedback"]; ok {
		h.delayFeedback = v
		for _, t := range h.taps {
			t.SetFeedback(v)
		}
	}
	if v, ok := params["intensity"]; ok {
		h.intensity = v
	}
	if rebuild {
		h.rebuildVoices(h.sampleRate)
	}
	return nil
}

func (h *harmonicSwarm) RequestStop() { h.voice.RequestStop() }

func (h *harmonicSwarm) Render(n int) (left, right []float64) {
	env := h.voice.Envelope(n)
	mix := make([]float64, n)
	amp := h.intensity / float64(max(1, h.numVoices))

	buf := make([]float64, n)
	for i := range h.voices {
		v := &h.voices[i]
		detune := h.baseFreq * math.Pow(h.freqRatio, float64(i))
		v.osc.Render(detune, amp, buf)
		for s := 0; s < n; s++ {
			mix[s] += buf[s] * env[s]
		}
	}

	delayed := make([]float64, n)
	for _, tap := range h.taps {
		tap.Process(mix, delayed)
	}
	return h.chain.Process(delayed)
}

// delayTap wraps a single feedback delay line, grounded on the per-tap
// mixing used to spread a harmonic swarm across a short echo.
type delayTap struct {
	line     *delay.Line
	feedback float64
	mul      float64
}

func newDelayTap(sampleRate, delaySeconds, feedback, mul float64) *delayTap {
	size := max(1, int(delaySeconds*sampleRate))
	line, err := delay.New(size)
	if err != nil {
		line, _ = delay.New(1)
	}
	return &delayTap{line: line, feedback: feedback, mul: mul}
}

func (t *delayTap) SetFeedback(fb float64) { t.feedback = fb }

// Process reads the delay line at its full length (i.e. exactly one buffer
// cycle ago), adds the result (scaled) into dst, and feeds src back into
// the line with feedback.
func (t *delayTap) Process(src, dst []float64) {
	full := t.line.Len()
	for i, s := range src {
		out := t.line.Read(full)
		dst[i] += out * t.mul
		t.line.Write(s + out*t.feedback)
	}
}
