package preset

import (
	"math"
	"math/rand"
)

// phaseOsc is a continuously-running sine oscillator, used where a voice
// spans many Render calls and needs its phase preserved between blocks.
// dsp/signal.Generator produces one-shot buffers that always start at
// phase 0, which is right for automix's stub renders but wrong for a
// voice that must not click between blocks.
type phaseOsc struct {
	sampleRate float64
	phase      float64
}

func newPhaseOsc(sampleRate float64) *phaseOsc {
	return &phaseOsc{sampleRate: sampleRate}
}

// Render fills out with amplitude*sin(2*pi*f*t) at the given frequency
// (which may vary from call to call, e.g. under LFO drift), advancing the
// internal phase.
func (o *phaseOsc) Render(freqHz, amplitude float64, out []float64) {
	step := 2 * math.Pi * freqHz / o.sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(o.phase)
		o.phase += step
		if o.phase > 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}

// RenderVarying is like Render but takes a per-sample frequency curve
// (e.g. an LFO-driven drift or a sweep).
func (o *phaseOsc) RenderVarying(freqHz []float64, amplitude float64, out []float64) {
	for i := range out {
		out[i] = amplitude * math.Sin(o.phase)
		o.phase += 2 * math.Pi * freqHz[i] / o.sampleRate
		if o.phase > 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}

// noiseSource is a seeded, streaming white-noise generator (dsp/signal's
// WhiteNoise regenerates a fresh buffer with a reseeded rand.Rand each
// call, which repeats identical noise every block; a voice needs a single
// continuous noise stream instead).
type noiseSource struct {
	rng *rand.Rand
}

func newNoiseSource(seed int64) *noiseSource {
	return &noiseSource{rng: rand.New(rand.NewSource(seed))}
}

func (n *noiseSource) Render(amplitude float64, out []float64) {
	for i := range out {
		out[i] = (n.rng.Float64()*2 - 1) * amplitude
	}
}
