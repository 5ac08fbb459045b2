package preset

import (
	"github.com/cwbudde/maestro-core/dsp/effects"
	"github.com/cwbudde/maestro-core/dsp/filter/biquad"
	"github.com/cwbudde/maestro-core/dsp/filter/design"
)

// NoiseBedShape selects which filter response shapes a noise bed's floor.
type NoiseBedShape int

const (
	NoiseBedHighpass NoiseBedShape = iota
	NoiseBedBandpass
	NoiseBedBitcrushed
)

// NoiseBedKind is the descriptor for a filtered noise floor: a continuous
// white-noise bed shaped by a highpass, bandpass, or bitcrushed variant
// selected via the "shape" parameter.
var NoiseBedKind = Descriptor{
	Kind:    "noise_bed",
	Factory: newNoiseBed,
	Params: []ParamMeta{
		{Name: "cutoff_hz", Kind: ParamFloat, Default: 800, Min: 100, Max: 8000},
		{Name: "q", Kind: ParamFloat, Default: 0.7, Min: 0.3, Max: 8},
		{Name: "shape", Kind: ParamInt, Default: float64(NoiseBedHighpass), Min: 0, Max: 2},
		{Name: "bit_depth", Kind: ParamFloat, Default: 8, Min: 2, Max: 16},
		{Name: "intensity", Kind: ParamFloat, Default: 0.15, Min: 0, Max: 1},
	},
}

type noiseBed struct {
	voice *Voice
	chain *Chain
	noise *noiseSource

	sampleRate float64
	filter     *biquad.Section
	crusher    *effects.BitCrusher

	shape     NoiseBedShape
	cutoffHz  float64
	q         float64
	bitDepth  float64
	intensity float64
}

func newNoiseBed(ctx Context, opts Options, params map[string]float64) (Instance, error) {
	n := &noiseBed{
		voice:      NewVoice(ctx.SampleRate, 0.05, 0.3, 0),
		chain:      NewChain(ctx, opts),
		noise:      newNoiseSource(7),
		sampleRate: ctx.SampleRate,
		shape:      NoiseBedHighpass,
		cutoffHz:   800,
		q:          0.7,
		bitDepth:   8,
		intensity:  0.15,
	}
	if err := n.Configure(params); err != nil {
		return nil, err
	}
	n.rebuildFilter()
	return n, nil
}

func (n *noiseBed) rebuildFilter() {
	switch n.shape {
	case NoiseBedBandpass:
		n.filter = biquad.NewSection(design.Bandpass(n.cutoffHz, n.q, n.sampleRate))
		n.crusher = nil

	case NoiseBedBitcrushed:
		n.filter = biquad.NewSection(design.Highpass(n.cutoffHz, n.q, n.sampleRate))
		n.crusher, _ = effects.NewBitCrusher(n.sampleRate, effects.WithBitCrusherBitDepth(n.bitDepth))
	default:
		n.filter = biquad.NewSection(design.Highpass(n.cutoffHz, n.q, n.sampleRate))
		n.crusher = nil
	}
}

func (n *noiseBed) Phase() Phase { return n.voice.Phase() }

func (n *noiseBed) Configure(params map[string]float64) error {
	rebuild := false
	if v, ok := params["cutoff_hz"]; ok {
		n.cutoffHz = v
		rebuild = true
	}
	if v, ok := params["q"]; ok {
		n.q = v
		rebuild = true
	}
	if v, ok := params["shape"]; ok {
		if s := NoiseBedShape(int(v)); s != n.shape {
			n.shape = s
			rebuild = true
		}
	}
	if v, ok := params["bit_depth"]; ok {
		n.bitDepth = v
		rebuild = true
	}
	if v, ok := params["intensity"]; ok {
		n.intensity = v
	}
	if rebuild && n.filter != nil {
		n.rebuildFilter()
	}
	return nil
}

func (n *noiseBed) RequestStop() { n.voice.RequestStop() }

func (n *noiseBed) Render(numSamples int) (left, right []float64) {
	env := n.voice.Envelope(numSamples)
	dry := make([]float64, numSamples)
	n.noise.Render(n.intensity, dry)
	n.filter.ProcessBlock(dry)
	if n.crusher != nil {
		n.crusher.ProcessInPlace(dry)
	}
	for i := range dry {
		dry[i] *= env[i]
	}
	return n.chain.Process(dry)
}

