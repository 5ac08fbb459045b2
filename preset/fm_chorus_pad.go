package preset

import (
	"github.com/cwbudde/maestro-core/dsp/effects"
	"github.com/cwbudde/maestro-core/dsp/effects/modulation"
)

// FMChorusPadKind is the descriptor for an FM bell-like pad: a two-operator
// FM carrier fed through its own dedicated chorus and reverb rather than
// the universal sends, since the FM timbre needs a much deeper chorus than
// the default.
var FMChorusPadKind = Descriptor{
	Kind:    "fm_chorus_pad",
	Factory: newFMChorusPad,
	Params: []ParamMeta{
		{Name: "carrier_freq", Kind: ParamFloat, Default: 330.0, Min: 60, Max: 1200},
		{Name: "mod_ratio", Kind: ParamFloat, Default: 2.0, Min: 0.5, Max: 8},
		{Name: "mod_index", Kind: ParamFloat, Default: 5.0, Min: 0, Max: 20},
		{Name: "intensity", Kind: ParamFloat, Default: 0.6, Min: 0, Max: 1},
	},
}

type fmChorusPad struct {
	voice  *Voice
	pan    *Chain
	carrOs *phaseOsc
	modOs  *phaseOsc
	chorus *modulation.Chorus
	reverb *effects.Reverb

	carrierFreq float64
	modRatio    float64
	modIndex    float64
	intensity   float64
}

func newFMChorusPad(ctx Context, opts Options, params map[string]float64) (Instance, error) {
	chorus, err := modulation.NewChorus()
	if err != nil {
		return nil, err
	}
	_ = chorus.SetSampleRate(ctx.SampleRate)
	_ = chorus.SetDepth(1.2)
	_ = chorus.SetMix(0.5)

	reverb := effects.NewReverb()
	reverb.SetRoomSize(0.8)
	reverb.SetDamp(0.4)

	f := &fmChorusPad{
		voice:       NewVoice(ctx.SampleRate, 0.01, 1.0, 4.0),
		pan:         NewChain(ctx, opts.WithKindDefaults(false, 0.2)),
		carrOs:      newPhaseOsc(ctx.SampleRate),
		modOs:       newPhaseOsc(ctx.SampleRate),
		chorus:      chorus,
		reverb:      reverb,
		carrierFreq: 330.0,
		modRatio:    2.0,
		modIndex:    5.0,
		intensity:   0.6,
	}
	if err := f.Configure(params); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *fmChorusPad) Phase() Phase { return f.voice.Phase() }

func (f *fmChorusPad) Configure(params map[string]float64) error {
	if v, ok := params["carrier_freq"]; ok {
		f.carrierFreq = v
	}
	if v, ok := params["mod_ratio"]; ok {
		f.modRatio = v
	}
	if v, ok := params["mod_index"]; ok {
		f.modIndex = v
	}
	if v, ok := params["intensity"]; ok {
		f.intensity = v
	}
	return nil
}

func (f *fmChorusPad) RequestStop() { f.voice.RequestStop() }

func (f *fmChorusPad) Render(n int) (left, right []float64) {
	env := f.voice.Envelope(n)

	modFreq := f.carrierFreq * f.modRatio
	modAmp := f.modIndex * modFreq

	modOut := make([]float64, n)
	f.modOs.Render(modFreq, modAmp, modOut)

	carrierFreq := make([]float64, n)
	for i, m := range modOut {
		carrierFreq[i] = f.carrierFreq + m
	}

	dry := make([]float64, n)
	f.carrOs.RenderVarying(carrierFreq, f.intensity, dry)
	for i := range dry {
		dry[i] *= env[i]
	}

	f.chorus.ProcessInPlace(dry)
	f.reverb.ProcessInPlace(dry)

	return f.pan.Process(dry)
}
