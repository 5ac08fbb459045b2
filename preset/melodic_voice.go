package preset

// MelodicVoiceKind is the descriptor for the compositor's playback voice:
// a plain sine per note in a pre-supplied sequence of frequency, duration
// and intensity triples, each with its own click-free attack/release. This
// is the only IsMelodic kind; the maestro scheduler never random-walks its
// parameters, since its output is driven entirely by the melody file.
var MelodicVoiceKind = Descriptor{
	Kind:      "melodic_voice",
	Factory:   newMelodicVoice,
	IsMelodic: true,
}

// noteSpec is one scheduled note in a melodic voice's queue.
type noteSpec struct {
	FrequencyHz float64
	DurationSec float64
	Intensity   float64
}

type melodicVoice struct {
	sampleRate float64
	chain      *Chain
	osc        *phaseOsc

	queue      []noteSpec
	current    *Voice
	currentOsc noteSpec
	dead       bool
}

func newMelodicVoice(ctx Context, opts Options, _ map[string]float64) (Instance, error) {
	return &melodicVoice{
		sampleRate: ctx.SampleRate,
		chain:      NewChain(ctx, opts),
		osc:        newPhaseOsc(ctx.SampleRate),
	}, nil
}

// Enqueue schedules a note event to play back-to-back after any notes
// already queued.
func (m *melodicVoice) Enqueue(freqHz, durationSec, intensity float64) {
	m.queue = append(m.queue, noteSpec{FrequencyHz: freqHz, DurationSec: durationSec, Intensity: intensity})
}

func (m *melodicVoice) Phase() Phase {
	if m.dead {
		return Dead
	}
	if m.current == nil {
		return Building
	}
	return m.current.Phase()
}

func (m *melodicVoice) Configure(map[string]float64) error { return nil }

func (m *melodicVoice) RequestStop() {
	if m.current != nil {
		m.current.RequestStop()
	}
	m.queue = nil
}

// Render fills one block from the current note (advancing to the next
// queued note if the current one has finished). A note shorter than the
// block is followed by silence for the rest of the block rather than
// packing the next note into the same call; the next Render call picks it
// up, which costs at most one block of scheduling latency between notes.
func (m *melodicVoice) Render(n int) (left, right []float64) {
	dry := make([]float64, n)

	if m.current == nil || m.current.Phase() == Dead {
		if !m.advance() {
			m.dead = m.current == nil
			return m.chain.Process(dry)
		}
	}

	env := m.current.Envelope(n)
	if m.currentOsc.FrequencyHz > 0 {
		m.osc.Render(m.currentOsc.FrequencyHz, m.currentOsc.Intensity, dry)
	}
	for i := range dry {
		dry[i] *= env[i]
	}
	if m.current.Phase() == Dead {
		m.current = nil
	}
	return m.chain.Process(dry)
}

// advance pops the next queued note and starts its envelope. Returns false
// once the queue is empty.
func (m *melodicVoice) advance() bool {
	if len(m.queue) == 0 {
		return false
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	m.currentOsc = next
	m.current = NewVoice(m.sampleRate, 0.005, 0.02, next.DurationSec)
	return true
}
