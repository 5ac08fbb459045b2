package preset

// Voice is the embeddable lifecycle envelope every concrete preset kind
// wraps its signal in. It walks Building -> FadingIn -> Playing ->
// FadingOut -> Dead, producing a per-sample gain curve that guarantees a
// click-free attack and release regardless of what a kind's own signal
// path does. DurationSamples of 0 means "play until RequestStop" (a
// sustained drone); a positive value causes the voice to enter FadingOut
// on its own once that many samples have played.
type Voice struct {
	phase Phase

	attackSamples  int
	releaseSamples int
	durationSamples int // 0 = infinite

	elapsed int // samples spent in the current phase
	played  int // total samples rendered while Playing

	gain float64 // current envelope value, [0,1]
}

// NewVoice creates a voice envelope for the given sample rate, attack and
// release times (seconds, clamped to the click-free minimums), and an
// optional sustain duration in seconds (0 for infinite).
func NewVoice(sampleRate, attackSeconds, releaseSeconds, durationSeconds float64) *Voice {
	attack := clampAttack(attackSeconds)
	release := clampRelease(releaseSeconds)

	v := &Voice{
		phase:          Building,
		attackSamples:  max(1, int(attack*sampleRate)),
		releaseSamples: max(1, int(release*sampleRate)),
	}
	if durationSeconds > 0 {
		v.durationSamples = max(1, int(durationSeconds*sampleRate))
	}
	return v
}

// Phase reports the voice's current lifecycle stage.
func (v *Voice) Phase() Phase {
	return v.phase
}

// RequestStop begins the fade-out immediately, unless the voice is already
// fading out or dead.
func (v *Voice) RequestStop() {
	if v.phase == FadingOut || v.phase == Dead {
		return
	}
	v.phase = FadingOut
	v.elapsed = int((1 - v.gain) * float64(v.releaseSamples))
}

// Envelope advances the lifecycle by numSamples and returns the per-sample
// gain curve to multiply the voice's dry signal by.
func (v *Voice) Envelope(numSamples int) []float64 {
	out := make([]float64, numSamples)
	for i := range out {
		out[i] = v.step()
	}
	return out
}

func (v *Voice) step() float64 {
	switch v.phase {
	case Building:
		v.phase = FadingIn
		v.elapsed = 0
		return v.step()

	case FadingIn:
		v.elapsed++
		v.gain = float64(v.elapsed) / float64(v.attackSamples)
		if v.elapsed >= v.attackSamples {
			v.gain = 1
			v.phase = Playing
			v.elapsed = 0
		}
		return v.gain

	case Playing:
		v.played++
		if v.durationSamples > 0 && v.played >= v.durationSamples {
			v.phase = FadingOut
			v.elapsed = 0
		}
		return 1

	case FadingOut:
		v.elapsed++
		v.gain = 1 - float64(v.elapsed)/float64(v.releaseSamples)
		if v.elapsed >= v.releaseSamples {
			v.gain = 0
			v.phase = Dead
		}
		return v.gain

	default: // Dead
		return 0
	}
}
