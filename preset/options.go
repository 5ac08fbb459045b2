package preset

import (
	"fmt"
	"math"
)

// Options holds the universal, kind-independent knobs every preset accepts:
// stereo placement, the always-available send effects, and an optional
// static filter. Individual preset kinds layer their own parameters on top
// via ParamMeta / Configure.
type Options struct {
	PanPos       float64
	StereoWidth  float64
	GainDB       float64
	EnableReverb bool
	EnableChorus bool
	EnableFilter bool
	FilterFreqHz float64
}

// DefaultOptions mirrors the universal defaults every preset kind falls
// back to when a caller does not override them.
func DefaultOptions() Options {
	return Options{
		PanPos:       0,
		StereoWidth:  0,
		GainDB:       0,
		FilterFreqHz: 1200,
	}
}

// Option mutates an Options value under construction.
type Option func(*Options) error

// Apply folds a list of options onto DefaultOptions, returning the first
// validation error encountered, if any.
func Apply(opts ...Option) (Options, error) {
	cfg := DefaultOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return Options{}, err
		}
	}
	return cfg, nil
}

// WithPan sets the static pan position in [-1, 1].
func WithPan(pos float64) Option {
	return func(o *Options) error {
		if math.IsNaN(pos) || pos < -1 || pos > 1 {
			return fmt.Errorf("preset: pan position must be in [-1, 1]: %f", pos)
		}
		o.PanPos = pos
		return nil
	}
}

// WithStereoWidth sets the stereo spread in [0, 1].
func WithStereoWidth(width float64) Option {
	return func(o *Options) error {
		if math.IsNaN(width) || width < 0 || width > 1 {
			return fmt.Errorf("preset: stereo width must be in [0, 1]: %f", width)
		}
		o.StereoWidth = width
		return nil
	}
}

// WithGainDB sets a static gain trim in decibels.
func WithGainDB(db float64) Option {
	return func(o *Options) error {
		if math.IsNaN(db) || math.IsInf(db, 0) {
			return fmt.Errorf("preset: gain must be finite: %f", db)
		}
		o.GainDB = db
		return nil
	}
}

// WithReverb enables the universal reverb send.
func WithReverb(enabled bool) Option {
	return func(o *Options) error {
		o.EnableReverb = enabled
		return nil
	}
}

// WithChorus enables the universal chorus send.
func WithChorus(enabled bool) Option {
	return func(o *Options) error {
		o.EnableChorus = enabled
		return nil
	}
}

// WithFilter enables the universal static filter at the given cutoff.
func WithFilter(freqHz float64) Option {
	return func(o *Options) error {
		if math.IsNaN(freqHz) || freqHz <= 0 {
			return fmt.Errorf("preset: filter frequency must be > 0: %f", freqHz)
		}
		o.EnableFilter = true
		o.FilterFreqHz = freqHz
		return nil
	}
}

// GainLinear converts GainDB to a linear multiplier.
func (o Options) GainLinear() float64 {
	return math.Pow(10, o.GainDB/20)
}

// WithKindDefaults fills in a preset kind's recommended reverb/width
// baseline for callers that left the universal options untouched, mirroring
// the originals' kwargs.setdefault(...) pattern. It never overrides a value
// the caller actually changed from DefaultOptions.
func (o Options) WithKindDefaults(reverb bool, width float64) Options {
	out := o
	if out == DefaultOptions() {
		out.EnableReverb = reverb
		out.StereoWidth = width
	}
	return out
}
