package orchestrate

import (
	"math"
	"testing"

	"github.com/cwbudde/maestro-core/internal/pitch"
	"github.com/cwbudde/maestro-core/notes"
)

func TestVoiceBassAndPianoRanges(t *testing.T) {
	o := New()
	chords := []notes.Chord{
		{Root: notes.C, Quality: notes.Major},
		{Root: notes.G, Quality: notes.Major},
	}
	durs := []float64{4, 4}

	parts := o.Voice(chords, durs)
	bass, ok := parts["bass"]
	if !ok || !bass.Valid() {
		t.Fatalf("expected a valid bass part, got %+v", bass)
	}
	piano, ok := parts["piano"]
	if !ok || !piano.Valid() {
		t.Fatalf("expected a valid piano part, got %+v", piano)
	}

	if len(bass.Notes) != 2 {
		t.Fatalf("expected 1 bass note per chord, got %d", len(bass.Notes))
	}
	if len(piano.Notes) != 6 {
		t.Fatalf("expected 3 piano notes per triad chord, got %d", len(piano.Notes))
	}

	for _, f := range bass.Notes {
		midi := int(math.Round(pitch.FrequencyToMIDI(f)))
		if midi < 28 || midi > 48 {
			t.Errorf("bass note %v (midi %d) out of register", f, midi)
		}
	}
	for _, f := range piano.Notes {
		midi := int(math.Round(pitch.FrequencyToMIDI(f)))
		if midi < 50 || midi > 96 {
			t.Errorf("piano note %v (midi %d) out of register", f, midi)
		}
	}
}

func TestVoicePianoDurationSplitEvenly(t *testing.T) {
	o := New()
	chords := []notes.Chord{{Root: notes.C, Quality: notes.Major}}
	parts := o.Voice(chords, []float64{6})
	piano := parts["piano"]
	for _, d := range piano.Durations {
		if d != 2 {
			t.Errorf("expected each of 3 chord tones to get 2 beats of a 6-beat chord, got %v", d)
		}
	}
}

func TestVoiceTracksOccupancy(t *testing.T) {
	o := New()
	chords := []notes.Chord{{Root: notes.C, Quality: notes.Minor}}
	o.Voice(chords, []float64{1})
	if o.Occupancy("bass") != 1 {
		t.Errorf("expected 1 bass assignment, got %d", o.Occupancy("bass"))
	}
	if o.Occupancy("piano") != 3 {
		t.Errorf("expected 3 piano assignments, got %d", o.Occupancy("piano"))
	}
}
