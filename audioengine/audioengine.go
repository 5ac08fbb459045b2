// Package audioengine defines the command protocol the core posts to the
// real-time audio engine, and a bounded, non-blocking queue implementing
// that protocol's single cross-thread conduit.
package audioengine

// Command is one of PlayPreset, StopPreset, SetParam, or SetEQGain — the
// only outbound interface from the core to the audio engine.
type Command interface {
	isCommand()
}

// PlayPreset instantiates the named preset with params, fades it in, and
// attaches it to the master bus.
type PlayPreset struct {
	Preset string
	Params map[string]any
}

func (PlayPreset) isCommand() {}

// StopPreset begins a preset's fade-out; the engine destroys the instance
// once the fade completes.
type StopPreset struct {
	Preset string
	FadeMS float64
}

func (StopPreset) isCommand() {}

// SetParam slews a live preset's parameter toward value.
type SetParam struct {
	Preset string
	Key    string
	Value  any
}

func (SetParam) isCommand() {}

// SetEQGain sets one parametric-EQ band's gain, driven by the spectral
// mixer.
type SetEQGain struct {
	BandHz float64
	Gain   float64
}

func (SetEQGain) isCommand() {}

// Engine is what the control loop posts commands into. Enqueue must never
// block: a full queue means the current block's command is dropped
// (EngineBackpressure) rather than delaying the control loop.
type Engine interface {
	Enqueue(cmd Command) bool
	ReloadRegistry()
}

// Queue is a bounded, single-producer/single-consumer, non-blocking
// channel-backed Engine. Enqueue drops the command and reports false when
// the queue is full; the real-time consumer side never blocks either,
// since ProcessSample/Render callbacks must not suspend.
type Queue struct {
	commands chan Command
	reload   chan struct{}
}

// NewQueue creates a Queue that holds at most capacity pending commands.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		commands: make(chan Command, capacity),
		reload:   make(chan struct{}, 1),
	}
}

// Enqueue posts cmd, returning false (EngineBackpressure) if the queue is
// full.
func (q *Queue) Enqueue(cmd Command) bool {
	select {
	case q.commands <- cmd:
		return true
	default:
		return false
	}
}

// ReloadRegistry posts a reload signal, coalescing with any reload already
// pending: reload is idempotent, so a second request before the first is
// consumed need not queue.
func (q *Queue) ReloadRegistry() {
	select {
	case q.reload <- struct{}{}:
	default:
	}
}

// Commands returns the channel a consumer drains posted commands from.
func (q *Queue) Commands() <-chan Command {
	return q.commands
}

// Reloads returns the channel a consumer drains reload signals from.
func (q *Queue) Reloads() <-chan struct{} {
	return q.reload
}

// Len reports how many commands are currently queued.
func (q *Queue) Len() int {
	return len(q.commands)
}
