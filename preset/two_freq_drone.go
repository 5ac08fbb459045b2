package preset

import "math"

// TwoFreqDroneKind is the descriptor for a subtle, always-on dual-sine
// drone whose two oscillators wander in pitch under an independent
// band-limited LFO each.
var TwoFreqDroneKind = Descriptor{
	Kind:    "two_freq_drone",
	Factory: newTwoFreqDrone,
	Params: []ParamMeta{
		{Name: "base_freq", Kind: ParamFloat, Default: 65.4, Min: 20, Max: 400},
		{Name: "ratio", Kind: ParamFloat, Default: 4.0 / 3.0, Min: 1, Max: 3},
		{Name: "drift_speed", Kind: ParamFloat, Default: 0.04, Min: 0.005, Max: 0.5},
		{Name: "drift_amount", Kind: ParamFloat, Default: 0.015, Min: 0, Max: 0.1},
		{Name: "intensity", Kind: ParamFloat, Default: 0.5, Min: 0, Max: 1},
	},
}

type twoFreqDrone struct {
	voice *Voice
	chain *Chain

	sampleRate float64
	oscA, oscB *phaseOsc

	baseFreq    float64
	ratio       float64
	driftSpeed  float64
	driftAmount float64
	intensity   float64

	lfoPhaseA, lfoPhaseB float64
}

func newTwoFreqDrone(ctx Context, opts Options, params map[string]float64) (Instance, error) {
	d := &twoFreqDrone{
		voice:       NewVoice(ctx.SampleRate, 2.0, 2.0, 0),
		chain:       NewChain(ctx, opts.WithKindDefaults(true, 0.3)),
		sampleRate:  ctx.SampleRate,
		oscA:        newPhaseOsc(ctx.SampleRate),
		oscB:        newPhaseOsc(ctx.SampleRate),
		baseFreq:    65.4,
		ratio:       4.0 / 3.0,
		driftSpeed:  0.04,
		driftAmount: 0.015,
		intensity:   0.5,
		lfoPhaseB:   0.37, // decorrelate the two drift LFOs from the start
	}
	if err := d.Configure(params); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *twoFreqDrone) Phase() Phase { return d.voice.Phase() }

func (d *twoFreqDrone) Configure(params map[string]float64) error {
	if v, ok := params["base_freq"]; ok {
		d.baseFreq = v
	}
	if v, ok := params["ratio"]; ok {
		d.ratio = v
	}
	if v, ok := params["drift_speed"]; ok {
		d.driftSpeed = v
	}
	if v, ok := params["drift_amount"]; ok {
		d.driftAmount = v
	}
	if v, ok := params["intensity"]; ok {
		d.intensity = v
	}
	return nil
}

func (d *twoFreqDrone) RequestStop() { d.voice.RequestStop() }

func (d *twoFreqDrone) Render(n int) (left, right []float64) {
	env := d.voice.Envelope(n)
	amp := d.intensity * 0.5

	freqA := make([]float64, n)
	freqB := make([]float64, n)
	lfoStep := 2 * math.Pi * d.driftSpeed / d.sampleRate
	for i := 0; i < n; i++ {
		freqA[i] = d.baseFreq * (1 + d.driftAmount*math.Sin(d.lfoPhaseA))
		freqB[i] = d.baseFreq * d.ratio * (1 + d.driftAmount*math.Sin(d.lfoPhaseB))
		d.lfoPhaseA += lfoStep
		d.lfoPhaseB += lfoStep
	}

	oscA := make([]float64, n)
	oscB := make([]float64, n)
	d.oscA.RenderVarying(freqA, amp, oscA)
	d.oscB.RenderVarying(freqB, amp, oscB)

	dry := make([]float64, n)
	for i := 0; i < n; i++ {
		dry[i] = (oscA[i] + oscB[i]) * env[i]
	}
	return d.chain.Process(dry)
}
