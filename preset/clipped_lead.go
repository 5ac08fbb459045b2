package preset

// ClippedLeadKind is the descriptor for a short, futuristic lead: a sine
// carrier frequency-modulated by a fast sine LFO, clipped to a click-free
// fade envelope.
var ClippedLeadKind = Descriptor{
	Kind:    "clipped_lead",
	Factory: newClippedLead,
	Params: []ParamMeta{
		{Name: "base_freq", Kind: ParamFloat, Default: 300.0, Min: 80, Max: 2000},
		{Name: "mod_depth", Kind: ParamFloat, Default: 10.0, Min: 0, Max: 200},
		{Name: "mod_rate", Kind: ParamFloat, Default: 5.0, Min: 0.5, Max: 40},
		{Name: "intensity", Kind: ParamFloat, Default: 0.9, Min: 0, Max: 1},
	},
}

type clippedLead struct {
	voice  *Voice
	chain  *Chain
	carrOs *phaseOsc
	modOs  *phaseOsc

	baseFreq  float64
	modDepth  float64
	modRate   float64
	intensity float64
}

func newClippedLead(ctx Context, opts Options, params map[string]float64) (Instance, error) {
	c := &clippedLead{
		voice:     NewVoice(ctx.SampleRate, 0.1, 0.5, 0.5),
		chain:     NewChain(ctx, opts),
		carrOs:    newPhaseOsc(ctx.SampleRate),
		modOs:     newPhaseOsc(ctx.SampleRate),
		baseFreq:  300.0,
		modDepth:  10.0,
		modRate:   5.0,
		intensity: 0.9,
	}
	if err := c.Configure(params); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *clippedLead) Phase() Phase { return c.voice.Phase() }

func (c *clippedLead) Configure(params map[string]float64) error {
	if v, ok := params["base_freq"]; ok {
		c.baseFreq = v
	}
	if v, ok := params["mod_depth"]; ok {
		c.modDepth = v
	}
	if v, ok := params["mod_rate"]; ok {
		c.modRate = v
	}
	if v, ok := params["intensity"]; ok {
		c.intensity = v
	}
	return nil
}

func (c *clippedLead) RequestStop() { c.voice.RequestStop() }

func (c *clippedLead) Render(n int) (left, right []float64) {
	env := c.voice.Envelope(n)

	mod := make([]float64, n)
	c.modOs.Render(c.modRate, c.modDepth, mod)

	carrierFreq := make([]float64, n)
	for i, m := range mod {
		carrierFreq[i] = c.baseFreq + m
	}

	dry := make([]float64, n)
	c.carrOs.RenderVarying(carrierFreq, c.intensity, dry)
	for i := range dry {
		dry[i] *= env[i]
	}
	return c.chain.Process(dry)
}
