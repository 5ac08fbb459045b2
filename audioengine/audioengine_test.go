package audioengine

import "testing"

func TestEnqueueDropsOnFullQueue(t *testing.T) {
	q := NewQueue(2)
	if !q.Enqueue(PlayPreset{Preset: "drone"}) {
		t.Fatal("expected first enqueue to succeed")
	}
	if !q.Enqueue(PlayPreset{Preset: "swarm"}) {
		t.Fatal("expected second enqueue to succeed")
	}
	if q.Enqueue(PlayPreset{Preset: "pad"}) {
		t.Fatal("expected third enqueue to report backpressure (queue full)")
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 queued commands, got %d", q.Len())
	}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	q := NewQueue(1)
	q.Enqueue(SetEQGain{BandHz: 1000, Gain: 0.9})
	done := make(chan bool, 1)
	go func() {
		done <- q.Enqueue(StopPreset{Preset: "drone", FadeMS: 50})
	}()
	if ok := <-done; ok {
		t.Fatal("expected the second enqueue on a full queue to report false, not block")
	}
}

func TestReloadRegistryCoalesces(t *testing.T) {
	q := NewQueue(4)
	q.ReloadRegistry()
	q.ReloadRegistry()
	select {
	case <-q.Reloads():
	default:
		t.Fatal("expected a pending reload signal")
	}
	select {
	case <-q.Reloads():
		t.Fatal("expected the second reload to coalesce, not queue a second signal")
	default:
	}
}

func TestCommandsChannelDeliversInOrder(t *testing.T) {
	q := NewQueue(4)
	q.Enqueue(PlayPreset{Preset: "a"})
	q.Enqueue(PlayPreset{Preset: "b"})

	first := <-q.Commands()
	second := <-q.Commands()
	if first.(PlayPreset).Preset != "a" || second.(PlayPreset).Preset != "b" {
		t.Fatalf("expected FIFO order, got %v then %v", first, second)
	}
}
