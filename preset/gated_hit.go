package preset

import (
	"math"

	"github.com/cwbudde/maestro-core/dsp/filter/biquad"
	"github.com/cwbudde/maestro-core/dsp/filter/design"
)

// GatedHitKind is the descriptor for a short percussive hit: an
// exponential pitch-sweep body, a band-passed noise click, and an
// optional sub-oscillator layer, hard-clipped at ±0.9 and gated to a clean
// tail.
var GatedHitKind = Descriptor{
	Kind:    "gated_hit",
	Factory: newGatedHit,
	Params: []ParamMeta{
		{Name: "freq_start", Kind: ParamFloat, Default: 160, Min: 40, Max: 400},
		{Name: "freq_end", Kind: ParamFloat, Default: 45, Min: 20, Max: 200},
		{Name: "click_freq", Kind: ParamFloat, Default: 5000, Min: 1000, Max: 12000},
		{Name: "add_sub", Kind: ParamBool, Default: 1, Min: 0, Max: 1},
		{Name: "intensity", Kind: ParamFloat, Default: 0.68, Min: 0, Max: 1},
	},
}

const gatedHitDuration = 0.6

type gatedHit struct {
	voice *Voice
	chain *Chain

	sampleRate float64
	bodyOsc    *phaseOsc
	subOsc     *phaseOsc
	clickNoise *noiseSource
	clickFreq  float64
	clickBP    *biquad.Section
	lpf        *biquad.Section
	hpf        *biquad.Section

	freqStart  float64
	freqEnd    float64
	addSub     bool
	intensity  float64
	sweepTotal int // total samples for the body's pitch sweep
	renderedAt int
}

func newGatedHit(ctx Context, opts Options, params map[string]float64) (Instance, error) {
	g := &gatedHit{
		voice:      NewVoice(ctx.SampleRate, 0.002, 0.05, gatedHitDuration),
		chain:      NewChain(ctx, opts.WithKindDefaults(false, 0)),
		sampleRate: ctx.SampleRate,
		bodyOsc:    newPhaseOsc(ctx.SampleRate),
		subOsc:     newPhaseOsc(ctx.SampleRate),
		clickNoise: newNoiseSource(11),
		clickFreq:  5000,
		freqStart:  160,
		freqEnd:    45,
		addSub:     true,
		intensity:  0.68,
		sweepTotal: max(1, int(gatedHitDuration*0.89*ctx.SampleRate)),
	}
	g.clickBP = biquad.NewSection(design.Bandpass(g.clickFreq, 10, ctx.SampleRate))
	g.lpf = biquad.NewSection(design.Lowpass(20000, 0.707, ctx.SampleRate))
	g.hpf = biquad.NewSection(design.Highpass(20, 0.707, ctx.SampleRate))

	if err := g.Configure(params); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *gatedHit) Phase() Phase { return g.voice.Phase() }

func (g *gatedHit) Configure(params map[string]float64) error {
	if v, ok := params["freq_start"]; ok {
		g.freqStart = v
	}
	if v, ok := params["freq_end"]; ok {
		g.freqEnd = v
	}
	if v, ok := params["click_freq"]; ok {
		g.clickFreq = v
		g.clickBP = biquad.NewSection(design.Bandpass(v, 10, g.sampleRate))
	}
	if v, ok := params["add_sub"]; ok {
		g.addSub = v != 0
	}
	if v, ok := params["intensity"]; ok {
		g.intensity = v
	}
	return nil
}

func (g *gatedHit) RequestStop() { g.voice.RequestStop() }

func (g *gatedHit) Render(n int) (left, right []float64) {
	env := g.voice.Envelope(n)

	bodyFreq := make([]float64, n)
	for i := 0; i < n; i++ {
		t := math.Min(1, float64(g.renderedAt+i)/float64(g.sweepTotal))
		// exponential sweep, matching the psycho-acoustic punch of a fast pitch drop
		bodyFreq[i] = g.freqStart * math.Pow(g.freqEnd/g.freqStart, t)
	}
	g.renderedAt += n

	body := make([]float64, n)
	g.bodyOsc.RenderVarying(bodyFreq, g.intensity, body)

	click := make([]float64, n)
	g.clickNoise.Render(g.intensity*0.35, click)
	g.clickBP.ProcessBlock(click)

	dry := make([]float64, n)
	for i := 0; i < n; i++ {
		dry[i] = (body[i] + click[i]) * env[i]
	}

	if g.addSub {
		subFreq := math.Max(g.freqEnd*0.5, 20)
		sub := make([]float64, n)
		g.subOsc.Render(subFreq, g.intensity*0.5, sub)
		for i := 0; i < n; i++ {
			dry[i] += sub[i] * env[i]
		}
	}

	g.lpf.ProcessBlock(dry)
	for i, s := range dry {
		dry[i] = clampSample(s)
	}
	g.hpf.ProcessBlock(dry)

	return g.chain.Process(dry)
}

func clampSample(x float64) float64 {
	if x > 0.9 {
		return 0.9
	}
	if x < -0.9 {
		return -0.9
	}
	return x
}
