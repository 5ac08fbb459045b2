package preset

import (
	"math"

	"github.com/cwbudde/maestro-core/dsp/effects"
	"github.com/cwbudde/maestro-core/dsp/effects/modulation"
	"github.com/cwbudde/maestro-core/dsp/effects/spatial"
	"github.com/cwbudde/maestro-core/dsp/filter/biquad"
	"github.com/cwbudde/maestro-core/dsp/filter/design"
)

// Chain wires the universal send effects (static filter, chorus, reverb)
// and the constant-power pan into stereo, in the fixed order every preset
// kind shares: filter -> chorus -> gain -> pan -> stereo widener ->
// reverb (one reverb per output channel).
type Chain struct {
	opts Options

	filter      *biquad.Section
	chorus      *modulation.Chorus
	widener     *spatial.StereoWidener
	reverbLeft  *effects.Reverb
	reverbRight *effects.Reverb
}

// NewChain builds the send-effect chain for the given options.
func NewChain(ctx Context, opts Options) *Chain {
	c := &Chain{opts: opts}

	if opts.EnableFilter {
		coeffs := design.Lowpass(opts.FilterFreqHz, 0.707, ctx.SampleRate)
		c.filter = biquad.NewSection(coeffs)
	}
	if opts.EnableChorus {
		if ch, err := modulation.NewChorus(); err == nil {
			_ = ch.SetSampleRate(ctx.SampleRate)
			_ = ch.SetDepth(0.8 * opts.StereoWidth)
			_ = ch.SetMix(0.5)
			c.chorus = ch
		}
	}
	if opts.StereoWidth > 0 {
		// StereoWidener's width is 1 = unchanged, 0 = mono; Options.StereoWidth
		// is 0 = unchanged, growing toward 1 = widest, so it shifts by one to
		// land in the widener's [0, 4] range.
		if w, err := spatial.NewStereoWidener(ctx.SampleRate, spatial.WithWidth(1+opts.StereoWidth)); err == nil {
			c.widener = w
		}
	}
	if opts.EnableReverb {
		c.reverbLeft = effects.NewReverb()
		c.reverbLeft.SetRoomSize(0.8)
		c.reverbLeft.SetDamp(0.35)
		c.reverbRight = effects.NewReverb()
		c.reverbRight.SetRoomSize(0.8)
		c.reverbRight.SetDamp(0.35)
	}
	return c
}

// Process runs a mono dry block through the send chain and pans it to
// stereo, returning left/right buffers of the same length.
func (c *Chain) Process(dry []float64) (left, right []float64) {
	buf := make([]float64, len(dry))
	copy(buf, dry)

	if c.filter != nil {
		c.filter.ProcessBlock(buf)
	}
	if c.chorus != nil {
		c.chorus.ProcessInPlace(buf)
	}

	gain := c.opts.GainLinear()
	for i := range buf {
		buf[i] *= gain
	}

	left = make([]float64, len(buf))
	right = make([]float64, len(buf))
	panLeftGain, panRightGain := constantPowerPan(c.opts.PanPos)
	for i, s := range buf {
		left[i] = s * panLeftGain
		right[i] = s * panRightGain
	}

	if c.widener != nil {
		_ = c.widener.ProcessStereoInPlace(left, right)
	}

	if c.reverbLeft != nil {
		c.reverbLeft.ProcessInPlace(left)
		c.reverbRight.ProcessInPlace(right)
	}
	return left, right
}

// constantPowerPan returns the left/right gains for a pan position in
// [-1, 1] using an equal-power law.
func constantPowerPan(pos float64) (left, right float64) {
	pos = math.Max(-1, math.Min(1, pos))
	angle := (pos + 1) * math.Pi / 4 // maps [-1,1] to [0, pi/2]
	return math.Cos(angle), math.Sin(angle)
}
