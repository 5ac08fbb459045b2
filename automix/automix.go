// Package automix renders a quick sine-stub for each instrumental part,
// measures its integrated loudness, and sets the gain and effect-send
// flags the audio engine will apply.
package automix

import (
	"math"
	"math/cmplx"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/maestro-core/audioengine"
	"github.com/cwbudde/maestro-core/dsp/core"
	"github.com/cwbudde/maestro-core/dsp/signal"
	"github.com/cwbudde/maestro-core/internal/pitch"
	"github.com/cwbudde/maestro-core/measure/loudness"
	"github.com/cwbudde/maestro-core/notes"
)

const chorusNoteThreshold = 6
const reverbMIDIThreshold = 60.0

// AutoMixer measures a synthesized stand-in for each part and derives a
// gain and effect-send configuration from it.
type AutoMixer struct {
	targetLUFS float64
	sampleRate int
	gen        *signal.Generator

	// Trim is the optional spectral feedback loop. It is nil by default:
	// Autoset's five gain/send steps run unconditionally, and SpectralFeedback
	// is a separate, additive call a caller opts into by setting Trim.
	Trim *SpectralTrim

	mu    sync.Mutex
	plans map[int]*algofft.Plan[complex128]
}

// New creates an AutoMixer targeting targetLUFS (EBU R128 default is -14)
// at sampleRate Hz.
func New(targetLUFS float64, sampleRate int) *AutoMixer {
	return &AutoMixer{
		targetLUFS: targetLUFS,
		sampleRate: sampleRate,
		gen:        signal.NewGenerator(core.WithSampleRate(float64(sampleRate))),
		plans:      make(map[int]*algofft.Plan[complex128]),
	}
}

// Autoset renders a sine-stub for every part, sets its GainDB to the
// difference between targetLUFS (or the AutoMixer's own default, if nil)
// and the stub's measured integrated loudness, and applies the reverb/
// chorus send heuristics. It returns a fresh map; the input is not
// mutated.
func (a *AutoMixer) Autoset(parts map[string]notes.Part, targetLUFS *float64) map[string]notes.Part {
	tgt := a.targetLUFS
	if targetLUFS != nil {
		tgt = *targetLUFS
	}

	out := make(map[string]notes.Part, len(parts))
	for name, p := range parts {
		samples := a.sineStub(p)

		measured := a.measureLoudness(samples)
		gain := 0.0
		if !math.IsInf(measured, -1) {
			gain = tgt - measured
		}

		p.GainDB = gain
		p.EnableReverb = meanMIDI(p.Notes) > reverbMIDIThreshold
		p.EnableChorus = len(p.Notes) > chorusNoteThreshold
		out[name] = p
	}
	return out
}

// SpectralFeedback is the optional post-render step from maestro_mixer.py:
// it sums every part's stub into a rough stand-in for the mixed block,
// analyzes its spectrum, and proposes per-band SetEQGain commands via
// a.Trim. It returns nil without analyzing anything when a.Trim is nil,
// which is the default — callers opt in by assigning AutoMixer.Trim.
// Autoset's own five steps are unaffected either way.
func (a *AutoMixer) SpectralFeedback(parts map[string]notes.Part) []audioengine.SetEQGain {
	if a.Trim == nil {
		return nil
	}
	mix := a.mixStubs(parts)
	if len(mix) == 0 {
		return nil
	}
	mags := a.spectrum(mix)
	return a.Trim.Propose(mags, nextPowerOf2(len(mix)))
}

// mixStubs sums every part's sineStub into a single buffer, the length of
// the longest stub, standing in for the rendered block SpectralFeedback
// would otherwise need a real audio engine to produce.
func (a *AutoMixer) mixStubs(parts map[string]notes.Part) []float64 {
	var mix []float64
	for _, p := range parts {
		stub := a.sineStub(p)
		if len(stub) > len(mix) {
			grown := make([]float64, len(stub))
			copy(grown, mix)
			mix = grown
		}
		for i, s := range stub {
			mix[i] += s
		}
	}
	return mix
}

// sineStub concatenates one sine tone per (note, duration) pair, giving a
// cheap stand-in signal to measure loudness against without invoking the
// real preset synthesis path.
func (a *AutoMixer) sineStub(p notes.Part) []float64 {
	var out []float64
	for i, freq := range p.Notes {
		dur := 0.0
		if i < len(p.Durations) {
			dur = p.Durations[i]
		}
		n := int(float64(a.sampleRate) * dur)
		if n <= 0 {
			continue
		}
		tone, err := a.gen.Sine(freq, 1.0, n)
		if err != nil {
			continue
		}
		out = append(out, tone...)
	}
	return out
}

// measureLoudness runs a mono ITU-R BS.1770 integrated-loudness pass over
// samples. It returns negative infinity for silence or signals too short
// to gate any block, matching Meter.Integrated's own convention.
func (a *AutoMixer) measureLoudness(samples []float64) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	meter := loudness.NewMeter(loudness.WithSampleRate(float64(a.sampleRate)), loudness.WithChannels(1))
	meter.StartIntegration()
	meter.ProcessBlock(samples)
	meter.StopIntegration()
	return meter.Integrated()
}

// spectrum computes samples' magnitude spectrum via a power-of-two FFT
// plan cached by padded length, so repeated parts of identical length
// reuse the same plan and scratch buffers instead of rebuilding them.
func (a *AutoMixer) spectrum(samples []float64) []float64 {
	if len(samples) == 0 {
		return nil
	}
	fftSize := nextPowerOf2(len(samples))
	plan := a.planFor(fftSize)
	if plan == nil {
		return nil
	}

	in := make([]complex128, fftSize)
	for i, s := range samples {
		in[i] = complex(s, 0)
	}
	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return nil
	}

	bins := fftSize/2 + 1
	mags := make([]float64, bins)
	for k := 0; k < bins; k++ {
		mags[k] = cmplx.Abs(out[k])
	}
	return mags
}

func (a *AutoMixer) planFor(fftSize int) *algofft.Plan[complex128] {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.plans[fftSize]; ok {
		return p
	}
	p, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil
	}
	a.plans[fftSize] = p
	return p
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p == 0 {
		p = 1
	}
	return p
}

func meanMIDI(freqs []float64) float64 {
	if len(freqs) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range freqs {
		sum += pitch.FrequencyToMIDI(f)
	}
	return sum / float64(len(freqs))
}
