package automix

import (
	"math"
	"sync"

	"github.com/cwbudde/maestro-core/audioengine"
)

// spectralBands are the eight fixed parametric-EQ centers the trim addresses
// by nearest bin, mirroring maestro_mixer.py's fixed band table (the same
// table internal/engine consumes on the playback side).
var spectralBands = [8]float64{125, 250, 500, 1000, 2000, 4000, 8000, 16000}

// SpectralTrim is an optional, post-render feedback loop: given a mixed
// block's magnitude spectrum, it proposes per-band EQ gains that push loud
// bands down and leave quiet ones alone, smoothed one-pole across calls so a
// single hot block doesn't yank a band's gain around. It holds no reference
// to an AutoMixer and is safe to share across every zone's rendered mix, or
// to construct one per zone; either way it is nil by default and Autoset
// never invokes it on its own.
type SpectralTrim struct {
	sampleRate int

	mu    sync.Mutex
	gains [8]float64 // linear multipliers, one-pole smoothed, start at unity
}

// NewSpectralTrim creates a SpectralTrim analyzing spectra sampled at
// sampleRate Hz. Assign it to AutoMixer.Trim to opt an AutoMixer into
// SpectralFeedback, or call Propose directly against whatever magnitude
// spectrum a caller already computed.
func NewSpectralTrim(sampleRate int) *SpectralTrim {
	t := &SpectralTrim{sampleRate: sampleRate}
	for i := range t.gains {
		t.gains[i] = 1.0
	}
	return t
}

// Propose derives one SetEQGain command per band from mags, a magnitude
// spectrum of length fftSize/2+1 (spectrum's own return shape). Each band's
// gain is clamped to [0.5,1.0] in the linear domain, same as the source's
// "loud bands only get attenuated, never boosted" policy, then blended
// 80/20 with the band's previous gain before being converted to the dB
// SetEQGain expects.
func (t *SpectralTrim) Propose(mags []float64, fftSize int) []audioengine.SetEQGain {
	if len(mags) == 0 || fftSize <= 0 {
		return nil
	}

	peak := 0.0
	for _, m := range mags {
		if m > peak {
			peak = m
		}
	}
	if peak == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]audioengine.SetEQGain, len(spectralBands))
	for i, center := range spectralBands {
		idx := nearestBin(center, t.sampleRate, fftSize, len(mags))
		target := 1.0 - (mags[idx]/peak)*0.5
		if target < 0.5 {
			target = 0.5
		}
		if target > 1.0 {
			target = 1.0
		}
		t.gains[i] = 0.8*t.gains[i] + 0.2*target
		out[i] = audioengine.SetEQGain{BandHz: center, Gain: linearToDB(t.gains[i])}
	}
	return out
}

// nearestBin maps a center frequency to the closest rfft bin index for an
// fftSize-point transform at sampleRate Hz, clamped into [0, bins).
func nearestBin(center float64, sampleRate, fftSize, bins int) int {
	idx := int(math.Round(center * float64(fftSize) / float64(sampleRate)))
	if idx < 0 {
		idx = 0
	}
	if idx >= bins {
		idx = bins - 1
	}
	return idx
}

func linearToDB(gain float64) float64 {
	if gain <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(gain)
}
