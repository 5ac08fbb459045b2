// Package presetregistry discovers and looks up preset kinds by name. It
// generalizes dsp/effectchain's Factory/Registry pair to the preset
// framework's richer Descriptor (factory plus steppable parameter
// metadata), and keeps three maps — factories, parameter metadata, and
// melodic-ness — in lockstep behind one mutex with an atomic snapshot
// swap on Reload, mirroring the original Python registry's "no background
// polling, reload is on-demand" design without needing its reflection-based
// package scan (Go has no runtime import of arbitrary packages, so kinds
// are registered explicitly instead of discovered).
package presetregistry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cwbudde/maestro-core/preset"
)

var ErrUnknownKind = errors.New("presetregistry: unknown preset kind")

type snapshot struct {
	factories map[string]preset.Factory
	params    map[string][]preset.ParamMeta
	melodic   map[string]bool
}

// Registry maps preset kind names to their descriptors. It is safe for
// concurrent use: Lookup, Params, IsMelodic, Kinds and StaticKinds read
// the current snapshot, while
// Register and Reload build a new one and swap it in under lock.
type Registry struct {
	mu      sync.RWMutex
	current snapshot
	sources []preset.Descriptor // registration order, replayed on Reload
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{current: emptySnapshot()}
}

// NewDefault creates a registry pre-populated with every built-in preset
// kind, mirroring the original registry's automatic package scan of
// core/audio/presets at startup.
func NewDefault() *Registry {
	r := New()
	for _, d := range preset.AllKinds() {
		r.MustRegister(d)
	}
	return r
}

func emptySnapshot() snapshot {
	return snapshot{
		factories: make(map[string]preset.Factory),
		params:    make(map[string][]preset.ParamMeta),
		melodic:   make(map[string]bool),
	}
}

// Register adds or replaces a preset kind's descriptor. If more than one
// descriptor with the same Kind is registered, the later registration
// wins — matching the original's "prefer an explicit BasePreset subclass,
// else fall back to the first locally-declared class" rule collapsed to
// its Go-explicit form: whichever descriptor a caller registers under a
// name is authoritative for that name.
func (r *Registry) Register(d preset.Descriptor) error {
	if d.Kind == "" {
		return errors.New("presetregistry: empty kind name")
	}
	if d.Factory == nil {
		return fmt.Errorf("presetregistry: nil factory for kind %q", d.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = append(r.sources, d)
	r.current = applyAll(r.sources)
	return nil
}

// MustRegister is like Register but panics on error, for use at
// package-init time with statically-known descriptors.
func (r *Registry) MustRegister(d preset.Descriptor) {
	if err := r.Register(d); err != nil {
		panic("presetregistry: " + err.Error())
	}
}

func applyAll(sources []preset.Descriptor) snapshot {
	snap := emptySnapshot()
	for _, d := range sources {
		snap.factories[d.Kind] = d.Factory
		snap.params[d.Kind] = d.Params
		snap.melodic[d.Kind] = d.IsMelodic
	}
	return snap
}

// Reload rebuilds the registry from its recorded registration history.
// With static, explicitly-registered descriptors this is idempotent; it
// exists so a caller that mutates a descriptor's Params slice in place
// between calls (e.g. to widen a Min/Max range at runtime) can force the
// snapshot to pick the change up without restarting the process.
func (r *Registry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = applyAll(r.sources)
}

// Lookup returns the factory registered for kind, or ErrUnknownKind.
func (r *Registry) Lookup(kind string) (preset.Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.current.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return f, nil
}

// Params returns the parameter metadata registered for kind, or
// ErrUnknownKind.
func (r *Registry) Params(kind string) ([]preset.ParamMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.current.params[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return p, nil
}

// IsMelodic reports whether kind is the melody-driven kind (never subject
// to maestro's random-walk parameter stepping).
func (r *Registry) IsMelodic(kind string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.current.melodic[kind]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return m, nil
}

// Build looks up kind and constructs an instance with the given options
// and parameters, falling back to the kind's own defaults for any
// parameter not present in params.
func (r *Registry) Build(ctx preset.Context, kind string, opts preset.Options, params map[string]float64) (preset.Instance, error) {
	factory, err := r.Lookup(kind)
	if err != nil {
		return nil, err
	}

	metas, _ := r.Params(kind)
	merged := make(map[string]float64, len(metas))
	for _, m := range metas {
		merged[m.Name] = m.Default
	}
	for k, v := range params {
		merged[k] = v
	}

	return factory(ctx, opts, merged)
}

// Kinds returns every registered kind name, sorted for deterministic
// iteration (e.g. when the maestro scheduler remaps an orchestrated part
// onto a kind picked at random from the full set).
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.current.factories))
	for k := range r.current.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// StaticKinds returns every registered non-melodic kind name, sorted.
// These are the kinds the maestro scheduler random-walks.
func (r *Registry) StaticKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.current.factories))
	for k, melodic := range r.current.melodic {
		if !melodic {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
