// Package preset defines the DSP preset framework: the build/play/crossfade/
// stop lifecycle every generative voice goes through, the universal options
// every preset kind accepts, and the parameter metadata the maestro scheduler
// walks when it steps a static preset's controls.
package preset

import "math"

// Context carries the environmental information a preset factory needs to
// build its DSP graph.
type Context struct {
	SampleRate float64
}

// Phase is a lifecycle stage of a preset instance.
type Phase int

const (
	Building Phase = iota
	FadingIn
	Playing
	FadingOut
	Dead
)

func (p Phase) String() string {
	switch p {
	case Building:
		return "building"
	case FadingIn:
		return "fading_in"
	case Playing:
		return "playing"
	case FadingOut:
		return "fading_out"
	default:
		return "dead"
	}
}

// Minimum envelope times enforced on every voice to guarantee click-free
// transitions, regardless of what a preset kind requests.
const (
	MinAttack  = 0.005 // seconds
	MinRelease = 0.020 // seconds
)

// Instance is a live preset voice. Render is called once per audio block
// and returns the stereo output for that block; Configure applies a partial
// parameter update (used by the maestro scheduler's random-walk stepping);
// RequestStop begins the fade-out that eventually reaches Dead.
type Instance interface {
	Phase() Phase
	Configure(params map[string]float64) error
	Render(numSamples int) (left, right []float64)
	RequestStop()
}

// Factory builds one Instance for a preset kind.
type Factory func(ctx Context, opts Options, params map[string]float64) (Instance, error)

// ParamKind classifies a parameter for the maestro scheduler's random-walk
// stepping: floats get a proportional offset, ints get a unit step, bools
// flip, and lists are never stepped.
type ParamKind int

const (
	ParamFloat ParamKind = iota
	ParamInt
	ParamBool
)

// ParamMeta describes one steppable parameter of a preset kind: its default
// value and, for numeric kinds, the [Min,Max] range the scheduler clamps to.
// A zero-valued Min/Max means the scheduler derives a symmetric envelope
// from the default (see maestro's stepping rule).
type ParamMeta struct {
	Name    string
	Kind    ParamKind
	Default float64
	Min     float64
	Max     float64
}

// Descriptor is a preset kind's registration record: its name, its factory,
// and the parameters that participate in maestro's random-walk stepping.
type Descriptor struct {
	Kind      string
	Factory   Factory
	Params    []ParamMeta
	IsMelodic bool // true if the kind renders a fixed melody rather than an ambient/static texture
}

// ParamDefaults returns a fresh map of a descriptor's default parameter
// values, suitable as a starting point for Configure.
func (d Descriptor) ParamDefaults() map[string]float64 {
	out := make(map[string]float64, len(d.Params))
	for _, p := range d.Params {
		out[p.Name] = p.Default
	}
	return out
}

// clampAttack enforces the minimum click-free attack time.
func clampAttack(seconds float64) float64 {
	return math.Max(seconds, MinAttack)
}

// clampRelease enforces the minimum click-free release time.
func clampRelease(seconds float64) float64 {
	return math.Max(seconds, MinRelease)
}
