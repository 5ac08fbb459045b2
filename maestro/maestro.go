// Package maestro is the zone-based, block-aligned scheduler that drives
// the audio engine: it launches, steps, and retires presets across named
// zones in tempo-synchronized blocks, random-walking static presets'
// parameters and running the arrangement pipeline for melodic ones.
package maestro

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cwbudde/maestro-core/arrangement"
	"github.com/cwbudde/maestro-core/audioengine"
	"github.com/cwbudde/maestro-core/compositor"
	"github.com/cwbudde/maestro-core/notes"
	"github.com/cwbudde/maestro-core/preset"
	"github.com/cwbudde/maestro-core/presetregistry"
)

const (
	minTempo   = 60.0
	maxTempo   = 240.0
	defaultBPM = 120.0

	// defaultBlockBeats is the block length a zone loop analyzes, orchestrates
	// and renders per iteration, absent an explicit override.
	defaultBlockBeats = 8.0
)

// Zone is a named bundle of preset kinds sharing one control loop and one
// compositor. Invariant: at most one loop runs per zone name at a time;
// leaving a zone cancels its loop and fades out every preset instance it
// owns.
type Zone struct {
	name       string
	kinds      map[string]bool
	arrange    *arrangement.Engine
	blockBeats float64
	cancel     context.CancelFunc
	done       chan struct{}
	params     map[string]map[string]float64 // preset kind -> param name -> current value
}

// SFXEvent is a one-off preset trigger queued between block boundaries.
type SFXEvent struct {
	TimeOffset time.Duration
	Preset     string
	Params     map[string]any
}

// Maestro owns the zone table, the shared tempo/energy LFO state, and the
// single command queue every zone loop posts into. It is safe for
// concurrent use: each exported method takes the lock it needs.
type Maestro struct {
	registry *presetregistry.Registry
	engine   audioengine.Engine
	log      *slog.Logger
	rng      *rand.Rand

	blockBeats float64

	mu         sync.Mutex
	zones      map[string]*Zone
	tempo      float64
	energy     float64
	phase      float64
	lastTick   time.Time
	muted      bool
	sfxPending []SFXEvent
}

// Option configures a Maestro at construction time.
type Option func(*Maestro)

// WithLogger overrides the default (slog.Default()) logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Maestro) { m.log = l }
}

// WithRand overrides the default (time-independent, package-seeded) source
// of randomness, for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(m *Maestro) { m.rng = rng }
}

// WithBlockBeats overrides the block length (default 8 beats) every zone
// entered after this option is applied uses, mainly so tests don't have to
// wait out a full 8-beat sleep between blocks.
func WithBlockBeats(beats float64) Option {
	return func(m *Maestro) { m.blockBeats = beats }
}

// New creates a Maestro posting commands into engine and building presets
// from registry.
func New(registry *presetregistry.Registry, engine audioengine.Engine, opts ...Option) *Maestro {
	m := &Maestro{
		registry:   registry,
		engine:     engine,
		log:        slog.Default(),
		rng:        rand.New(rand.NewSource(1)),
		blockBeats: defaultBlockBeats,
		zones:      make(map[string]*Zone),
		tempo:      defaultBPM,
		energy:     0.7,
		phase:      0.02,
		lastTick:   time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetMuted enables or disables the global mute. While muted, every zone
// loop skips block production and drains to silence by requesting a stop
// of every preset kind it owns, rather than the scattered per-method mute
// guards a hand-copied loop would otherwise need.
func (m *Maestro) SetMuted(muted bool) {
	m.mu.Lock()
	m.muted = muted
	zones := make([]*Zone, 0, len(m.zones))
	for _, z := range m.zones {
		zones = append(zones, z)
	}
	m.mu.Unlock()

	if !muted {
		return
	}
	for _, z := range zones {
		for kind := range z.kinds {
			m.engine.Enqueue(audioengine.StopPreset{Preset: kind, FadeMS: 200})
		}
	}
}

// ReloadRegistry forwards a registry reload to the engine. It is an
// in-process call, not part of the audio command protocol proper — the
// registry itself decides whether a reload actually changes anything.
func (m *Maestro) ReloadRegistry() {
	m.engine.ReloadRegistry()
}

// Muted reports the current mute state.
func (m *Maestro) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// QueueEffect schedules a fire-once preset trigger, folded into whichever
// zone's block loop runs next (matching the original's single shared SFX
// queue drained by whatever loop iteration comes first).
func (m *Maestro) QueueEffect(name string, delay time.Duration, params map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sfxPending = append(m.sfxPending, SFXEvent{TimeOffset: delay, Preset: name, Params: params})
}

func (m *Maestro) drainSFX() []SFXEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sfxPending
	m.sfxPending = nil
	return out
}

// EnterZone cancels any prior loop registered for name (ZoneAlreadyActive:
// replacement semantics, not an error), stores kinds as the new zone's
// preset set, and launches a fresh block loop against c. SetZone is an
// alias for EnterZone.
func (m *Maestro) EnterZone(name string, kinds []string, c *compositor.Compositor, genre string, temperature, targetLUFS float64, sampleRate int) {
	kindSet := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	z := &Zone{
		name:       name,
		kinds:      kindSet,
		arrange:    arrangement.New(c, genre, temperature, targetLUFS, sampleRate, m.randInt63()),
		blockBeats: m.blockBeats,
		cancel:     cancel,
		done:       make(chan struct{}),
		params:     make(map[string]map[string]float64),
	}

	m.mu.Lock()
	m.leaveZoneLocked(name)
	m.zones[name] = z
	m.log.Info("maestro: entered zone", "zone", name, "kinds", kinds)
	m.mu.Unlock()

	go m.zoneLoop(ctx, z, c)
}

// SetZone is an alias for EnterZone.
func (m *Maestro) SetZone(name string, kinds []string, c *compositor.Compositor, genre string, temperature, targetLUFS float64, sampleRate int) {
	m.EnterZone(name, kinds, c, genre, temperature, targetLUFS, sampleRate)
}

// LeaveZone cancels zone's loop and removes it from the zone table. The
// loop's own cleanup fades out its preset instances; LeaveZone does not
// wait for that fade to complete.
func (m *Maestro) LeaveZone(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveZoneLocked(name)
}

// ZoneNames returns every currently entered zone's name, in no particular
// order.
func (m *Maestro) ZoneNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.zones))
	for name := range m.zones {
		out = append(out, name)
	}
	return out
}

func (m *Maestro) leaveZoneLocked(name string) {
	z, ok := m.zones[name]
	if !ok {
		return
	}
	z.cancel()
	delete(m.zones, name)
	m.log.Info("maestro: left zone", "zone", name)
}

// zoneLoop is the per-zone control loop: update globals, step statics,
// arrange-and-render melodics, sleep for one block, repeat. It never
// propagates a panic-worthy error out; recoverable failures are logged and
// the loop continues to the next block.
func (m *Maestro) zoneLoop(ctx context.Context, z *Zone, c *compositor.Compositor) {
	defer close(z.done)
	defer m.fadeOutZone(z)

	if names := c.Names(); len(names) > 0 {
		mel := names[m.randIntn(len(names))]
		c.Start(mel)
		m.log.Debug("maestro: zone starting melody", "zone", z.name, "melody", mel)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if m.Muted() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(z.blockBeats * 60 / m.currentTempo()):
			}
			continue
		}

		m.updateGlobals()

		melodic, static := m.partitionKinds(z.kinds)

		for _, kind := range static {
			params := m.stepParams(z, kind)
			m.engine.Enqueue(audioengine.PlayPreset{Preset: kind, Params: floatsToAny(params)})
		}

		if len(melodic) > 0 {
			parts := z.arrange.PrepareBlock(z.blockBeats)
			m.renderParts(melodic, parts)
		}

		for _, sfx := range m.drainSFX() {
			m.engine.Enqueue(audioengine.PlayPreset{Preset: sfx.Preset, Params: sfx.Params})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(z.blockBeats * 60 / m.currentTempo()):
		}
	}
}

func (m *Maestro) fadeOutZone(z *Zone) {
	for kind := range z.kinds {
		m.engine.Enqueue(audioengine.StopPreset{Preset: kind, FadeMS: 200})
	}
}

// partitionKinds splits a zone's preset set into melodic and static kinds
// per the registry's IsMelodic classification. An unknown kind (dropped
// from the registry since the zone was entered) is silently excluded from
// both — UnknownPreset is a play_preset-time error, not a partition-time
// one.
func (m *Maestro) partitionKinds(kinds map[string]bool) (melodic, static []string) {
	for kind := range kinds {
		isMelodic, err := m.registry.IsMelodic(kind)
		if err != nil {
			m.log.Warn("maestro: dropping unknown preset kind from zone", "kind", kind, "error", err)
			continue
		}
		if isMelodic {
			melodic = append(melodic, kind)
		} else {
			static = append(static, kind)
		}
	}
	return melodic, static
}

// renderParts issues one play_preset for the melody part plus one per
// remapped orchestrated part. The melody part goes to the first
// melodic kind found (there is normally exactly one, melodic_voice); the
// remaining orchestrated parts (bass, piano, ...) are remapped onto a
// preset chosen at random from the full registered kind set, mirroring
// the original scheduler's random part->preset remap — including its
// same-name-collision quirk, where two parts choosing the same kind leave
// only the last one rendered this block.
func (m *Maestro) renderParts(melodic []string, parts map[string]notes.Part) {
	kinds := m.registry.Kinds()
	remapped := make(map[string]notes.Part)

	for role, part := range parts {
		if role == "melody" {
			continue
		}
		if len(kinds) == 0 {
			continue
		}
		target := kinds[m.randIntn(len(kinds))]
		remapped[target] = part
	}

	if melodyPart, ok := parts["melody"]; ok && len(melodic) > 0 {
		m.engine.Enqueue(audioengine.PlayPreset{
			Preset: melodic[0],
			Params: map[string]any{
				"notes":       melodyPart.Notes,
				"durations":   melodyPart.Durations,
				"intensities": melodyPart.Intensities,
				"tempo":       m.currentTempo(),
			},
		})
	}

	for kind, part := range remapped {
		m.engine.Enqueue(audioengine.PlayPreset{
			Preset: kind,
			Params: map[string]any{
				"notes":        part.Notes,
				"durations":    part.Durations,
				"intensities":  part.Intensities,
				"gain_db":      part.GainDB,
				"enableReverb": part.EnableReverb,
				"enableChorus": part.EnableChorus,
			},
		})
	}
}

// updateGlobals advances tempo and energy by the elapsed wall-clock time
// since the last call, per spec: tempo random-walks within [60,240] BPM,
// energy follows a slow phase-driven sine LFO.
func (m *Maestro) updateGlobals() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	dt := now.Sub(m.lastTick)
	m.lastTick = now

	step := m.tempo * (m.rng.Float64()*0.14 - 0.07)
	m.tempo = clamp(m.tempo+(m.rng.Float64()*2-1)*step, minTempo, maxTempo)

	beatTime := 60.0 / m.tempo
	m.phase = math.Mod(m.phase+dt.Seconds()/(32*beatTime), 1.0)
	m.energy = 0.7 + 0.3*math.Sin(2*math.Pi*m.phase)

	return dt
}

func (m *Maestro) currentTempo() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tempo
}

// randFloat, randIntn and randInt63 serialize access to the shared *rand.Rand:
// zone loops run concurrently, and math/rand.Rand is not itself safe for
// concurrent use.
func (m *Maestro) randFloat() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64()
}

func (m *Maestro) randIntn(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Intn(n)
}

func (m *Maestro) randInt63() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Int63()
}

// Energy reports the current global energy LFO value, in [0,1].
func (m *Maestro) Energy() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.energy
}

// stepParams returns z's next parameter dict for kind, random-stepping
// each of the kind's declared parameters from their previous value (the
// kind's registered defaults, the first time it plays in this zone).
func (m *Maestro) stepParams(z *Zone, kind string) map[string]float64 {
	metas, err := m.registry.Params(kind)
	if err != nil {
		return nil
	}

	current, ok := z.params[kind]
	if !ok {
		current = make(map[string]float64, len(metas))
		for _, meta := range metas {
			current[meta.Name] = meta.Default
		}
	}

	next := make(map[string]float64, len(metas))
	for _, meta := range metas {
		next[meta.Name] = m.stepParam(meta, current[meta.Name])
	}
	z.params[kind] = next
	return next
}

// stepParam random-walks one parameter by one block, per spec: an int
// steps by exactly ±1, a float offsets by up to 10% of its magnitude (or
// ±0.1 near zero), and a bool flips outright. Every numeric result is
// clamped to the kind's declared [Min,Max] window, or a symmetric
// [0.5x,2x] envelope around the default when Min and Max are both zero
// (matching ParamMeta's documented convention), or [0,1] when the default
// itself is zero.
func (m *Maestro) stepParam(meta preset.ParamMeta, value float64) float64 {
	switch meta.Kind {
	case preset.ParamBool:
		if value == 0 {
			return 1
		}
		return 0
	case preset.ParamInt:
		lo, hi := paramWindow(meta)
		sign := 1.0
		if m.randFloat() < 0.5 {
			sign = -1
		}
		return clamp(math.Round(value+sign), lo, hi)
	default: // preset.ParamFloat
		lo, hi := paramWindow(meta)
		magnitude := math.Abs(value)
		if magnitude < 1e-9 {
			magnitude = 1
		}
		offset := (m.randFloat()*2 - 1) * 0.1 * magnitude
		stepped := clamp(value+offset, lo, hi)
		return math.Round(stepped*1000) / 1000
	}
}

// paramWindow reports the clamp range for meta: its declared [Min,Max] if
// either is non-zero, else a range derived from the default — [0,1] for a
// zero default, [0.5x,2x] otherwise.
func paramWindow(meta preset.ParamMeta) (lo, hi float64) {
	if meta.Min != 0 || meta.Max != 0 {
		return meta.Min, meta.Max
	}
	if meta.Default == 0 {
		return 0, 1
	}
	if meta.Default < 0 {
		return meta.Default * 2, meta.Default * 0.5
	}
	return meta.Default * 0.5, meta.Default * 2
}

// floatsToAny widens a step result to the untyped params map
// audioengine.PlayPreset carries.
func floatsToAny(params map[string]float64) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
