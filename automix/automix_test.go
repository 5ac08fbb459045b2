package automix

import (
	"testing"

	"github.com/cwbudde/maestro-core/notes"
)

func TestAutosetSetsGainTowardTarget(t *testing.T) {
	a := New(-14.0, 8000)
	parts := map[string]notes.Part{
		"bass": {
			Notes:       []float64{110, 110, 110, 110},
			Durations:   []float64{0.5, 0.5, 0.5, 0.5},
			Intensities: []float64{0.9, 0.9, 0.9, 0.9},
		},
	}

	out := a.Autoset(parts, nil)
	bass, ok := out["bass"]
	if !ok {
		t.Fatal("expected bass part in output")
	}
	if bass.GainDB == 0 {
		t.Error("expected a non-zero gain correction for a non-silent stub")
	}
	// input map must not be mutated.
	if parts["bass"].GainDB != 0 {
		t.Error("Autoset must not mutate its input map")
	}
}

func TestAutosetHeuristics(t *testing.T) {
	a := New(-14.0, 8000)
	highLead := make([]float64, 8)
	durs := make([]float64, 8)
	for i := range highLead {
		highLead[i] = 1000 // well above MIDI 60
		durs[i] = 0.1
	}
	parts := map[string]notes.Part{
		"lead": {Notes: highLead, Durations: durs, Intensities: durs},
	}
	out := a.Autoset(parts, nil)
	lead := out["lead"]
	if !lead.EnableReverb {
		t.Error("expected high-register part to enable reverb")
	}
	if !lead.EnableChorus {
		t.Error("expected an 8-note part (>6) to enable chorus")
	}
}

func TestAutosetSilentPartGetsZeroGain(t *testing.T) {
	a := New(-14.0, 8000)
	parts := map[string]notes.Part{
		"empty": {},
	}
	out := a.Autoset(parts, nil)
	if out["empty"].GainDB != 0 {
		t.Errorf("expected zero gain for an empty part, got %v", out["empty"].GainDB)
	}
}

func TestSpectrumCachesPlanByPaddedLength(t *testing.T) {
	a := New(-14.0, 8000)
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i%7) - 3
	}
	first := a.spectrum(samples)
	if len(a.plans) != 1 {
		t.Fatalf("expected exactly one cached plan, got %d", len(a.plans))
	}
	second := a.spectrum(samples)
	if len(a.plans) != 1 {
		t.Fatalf("expected the second call to reuse the cached plan, got %d entries", len(a.plans))
	}
	if len(first) != len(second) {
		t.Errorf("expected consistent spectrum length across calls")
	}
}

func TestNextPowerOf2(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 4, 100: 128, 128: 128, 129: 256}
	for n, want := range cases {
		if got := nextPowerOf2(n); got != want {
			t.Errorf("nextPowerOf2(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestSpectralFeedbackIsNoopWithoutTrim(t *testing.T) {
	a := New(-14.0, 8000)
	parts := map[string]notes.Part{
		"bass": {Notes: []float64{110}, Durations: []float64{0.5}},
	}
	if got := a.SpectralFeedback(parts); got != nil {
		t.Fatalf("expected nil feedback with Trim unset, got %v", got)
	}
}

func TestSpectralFeedbackProposesEveryBand(t *testing.T) {
	a := New(-14.0, 8000)
	a.Trim = NewSpectralTrim(8000)
	parts := map[string]notes.Part{
		"lead": {Notes: []float64{2000, 2000, 2000, 2000}, Durations: []float64{0.2, 0.2, 0.2, 0.2}},
	}
	proposals := a.SpectralFeedback(parts)
	if len(proposals) != len(spectralBands) {
		t.Fatalf("expected one proposal per band, got %d", len(proposals))
	}
	for _, p := range proposals {
		if p.Gain > 0 {
			t.Errorf("band %v: expected a non-boosting gain (<=0 dB), got %v", p.BandHz, p.Gain)
		}
	}
}

func TestSpectralTrimSmoothsTowardSteadyState(t *testing.T) {
	trim := NewSpectralTrim(8000)
	mags := make([]float64, 129)
	mags[32] = 10 // sole peak, landing on the 1000 Hz band's nearest bin at this fft size

	prev := 0.0 // dB, i.e. the pre-call unity gain
	for i := 0; i < 5; i++ {
		proposals := trim.Propose(mags, 256)
		got := proposals[3].Gain // band index 3 is 1000 Hz
		if got > prev {
			t.Fatalf("call %d: gain moved up (%v -> %v), expected monotonic decay toward the clamped target", i, prev, got)
		}
		prev = got
	}
}

func TestSpectralTrimEmptySpectrumProposesNothing(t *testing.T) {
	trim := NewSpectralTrim(8000)
	if got := trim.Propose(nil, 256); got != nil {
		t.Fatalf("expected nil proposals for an empty spectrum, got %v", got)
	}
}
