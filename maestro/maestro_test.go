package maestro

import (
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/maestro-core/audioengine"
	"github.com/cwbudde/maestro-core/compositor"
	"github.com/cwbudde/maestro-core/preset"
	"github.com/cwbudde/maestro-core/presetregistry"
)

// captureEngine is a test double satisfying audioengine.Engine: every
// enqueued command is recorded, safe for concurrent access from a zone
// loop goroutine.
type captureEngine struct {
	mu       sync.Mutex
	commands []audioengine.Command
	reloads  int
}

func (c *captureEngine) Enqueue(cmd audioengine.Command) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, cmd)
	return true
}

func (c *captureEngine) ReloadRegistry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloads++
}

func (c *captureEngine) snapshot() []audioengine.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]audioengine.Command, len(c.commands))
	copy(out, c.commands)
	return out
}

func loadTestCompositor(t *testing.T) *compositor.Compositor {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "triad.json"), []byte(`{
		"time_signature": "4/4",
		"hands": [[
			{"frequency": 261.63, "duration": 1},
			{"frequency": 329.63, "duration": 1},
			{"frequency": 392.0, "duration": 1}
		]]
	}`), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	c, err := compositor.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func waitForCommand(t *testing.T, eng *captureEngine, timeout time.Duration) []audioengine.Command {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cmds := eng.snapshot(); len(cmds) > 0 {
			return cmds
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("timed out waiting for the zone loop to enqueue a command")
	return nil
}

func TestPartitionKindsSplitsMelodicAndStatic(t *testing.T) {
	m := New(presetregistry.NewDefault(), &captureEngine{})
	melodic, static := m.partitionKinds(map[string]bool{"melodic_voice": true, "two_freq_drone": true})
	if len(melodic) != 1 || melodic[0] != "melodic_voice" {
		t.Fatalf("expected [melodic_voice], got %v", melodic)
	}
	if len(static) != 1 || static[0] != "two_freq_drone" {
		t.Fatalf("expected [two_freq_drone], got %v", static)
	}
}

func TestPartitionKindsDropsUnknownKind(t *testing.T) {
	m := New(presetregistry.NewDefault(), &captureEngine{})
	melodic, static := m.partitionKinds(map[string]bool{"not_a_real_kind": true})
	if len(melodic) != 0 || len(static) != 0 {
		t.Fatalf("expected an unregistered kind to be dropped, got melodic=%v static=%v", melodic, static)
	}
}

func TestStepParamFloatStaysWithinWindow(t *testing.T) {
	m := New(presetregistry.NewDefault(), &captureEngine{}, WithRand(rand.New(rand.NewSource(7))))
	meta := preset.ParamMeta{Name: "detune", Kind: preset.ParamFloat, Default: 4.0}
	lo, hi := paramWindow(meta)

	v := meta.Default
	for i := 0; i < 500; i++ {
		v = m.stepParam(meta, v)
		if v < lo || v > hi {
			t.Fatalf("stepParam produced %v outside [%v,%v] after %d steps", v, lo, hi, i)
		}
	}
}

func TestStepParamIntMovesByExactlyOne(t *testing.T) {
	m := New(presetregistry.NewDefault(), &captureEngine{}, WithRand(rand.New(rand.NewSource(3))))
	meta := preset.ParamMeta{Name: "voices", Kind: preset.ParamInt, Default: 4, Min: 1, Max: 8}
	next := m.stepParam(meta, 4)
	if delta := next - 4; delta != 1 && delta != -1 {
		t.Fatalf("expected the int param to move by exactly +/-1, got delta %v", delta)
	}
}

func TestStepParamBoolFlips(t *testing.T) {
	m := New(presetregistry.NewDefault(), &captureEngine{})
	meta := preset.ParamMeta{Name: "wide", Kind: preset.ParamBool, Default: 0}
	if got := m.stepParam(meta, 0); got != 1 {
		t.Fatalf("expected a bool param at 0 to flip to 1, got %v", got)
	}
	if got := m.stepParam(meta, 1); got != 0 {
		t.Fatalf("expected a bool param at 1 to flip to 0, got %v", got)
	}
}

func TestParamWindowZeroDefaultFallsBackToUnitRange(t *testing.T) {
	lo, hi := paramWindow(preset.ParamMeta{Default: 0})
	if lo != 0 || hi != 1 {
		t.Fatalf("expected [0,1] for a zero default, got [%v,%v]", lo, hi)
	}
}

func TestEnterZoneEnqueuesStaticPresetCommands(t *testing.T) {
	eng := &captureEngine{}
	m := New(presetregistry.NewDefault(), eng, WithBlockBeats(0.01), WithRand(rand.New(rand.NewSource(9))))
	c := loadTestCompositor(t)

	m.EnterZone("ambient", []string{"two_freq_drone"}, c, "pop", 0.5, -14, 8000)
	defer m.LeaveZone("ambient")

	cmds := waitForCommand(t, eng, 2*time.Second)
	play, ok := cmds[0].(audioengine.PlayPreset)
	if !ok || play.Preset != "two_freq_drone" {
		t.Fatalf("expected the first command to play two_freq_drone, got %#v", cmds[0])
	}
}

func TestEnterZoneReplacesExistingZone(t *testing.T) {
	eng := &captureEngine{}
	m := New(presetregistry.NewDefault(), eng, WithBlockBeats(0.01))
	c := loadTestCompositor(t)

	m.EnterZone("ambient", []string{"two_freq_drone"}, c, "pop", 0.5, -14, 8000)
	m.EnterZone("ambient", []string{"noise_bed"}, c, "pop", 0.5, -14, 8000)

	if len(m.ZoneNames()) != 1 {
		t.Fatalf("expected exactly one zone named 'ambient', got %v", m.ZoneNames())
	}
	m.LeaveZone("ambient")
}

func TestSetMutedFadesOutActiveZones(t *testing.T) {
	eng := &captureEngine{}
	m := New(presetregistry.NewDefault(), eng, WithBlockBeats(1000))
	c := loadTestCompositor(t)

	m.EnterZone("ambient", []string{"two_freq_drone"}, c, "", 0, -14, 8000)
	m.SetMuted(true)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, cmd := range eng.snapshot() {
			if stop, ok := cmd.(audioengine.StopPreset); ok && stop.Preset == "two_freq_drone" {
				m.LeaveZone("ambient")
				return
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("expected SetMuted to enqueue a StopPreset for the zone's preset kind")
}

func TestQueueEffectIsDrainedOnce(t *testing.T) {
	m := New(presetregistry.NewDefault(), &captureEngine{})
	m.QueueEffect("gong", 0, map[string]any{"vel": 1.0})

	first := m.drainSFX()
	if len(first) != 1 || first[0].Preset != "gong" {
		t.Fatalf("expected one queued sfx event, got %v", first)
	}
	if second := m.drainSFX(); len(second) != 0 {
		t.Fatalf("expected the queue to be empty after draining, got %v", second)
	}
}
