package preset

import "testing"

func TestOptionsApply(t *testing.T) {
	opts, err := Apply(WithPan(0.5), WithStereoWidth(0.2), WithReverb(true))
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if opts.PanPos != 0.5 || opts.StereoWidth != 0.2 || !opts.EnableReverb {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestOptionsApplyValidation(t *testing.T) {
	if _, err := Apply(WithPan(2)); err == nil {
		t.Fatal("expected error for out-of-range pan")
	}
	if _, err := Apply(WithStereoWidth(-1)); err == nil {
		t.Fatal("expected error for out-of-range stereo width")
	}
}

func TestDescriptorParamDefaults(t *testing.T) {
	defaults := TwoFreqDroneKind.ParamDefaults()
	if defaults["base_freq"] != 65.4 {
		t.Fatalf("expected default base_freq 65.4, got %v", defaults["base_freq"])
	}
}

func TestAllKindsBuildAndRender(t *testing.T) {
	ctx := Context{SampleRate: 8000}
	for _, kind := range AllKinds() {
		if kind.IsMelodic {
			continue // melodic voices are silent until Enqueue is called
		}
		inst, err := kind.Factory(ctx, DefaultOptions(), kind.ParamDefaults())
		if err != nil {
			t.Fatalf("%s: factory error: %v", kind.Kind, err)
		}
		left, right := inst.Render(64)
		if len(left) != 64 || len(right) != 64 {
			t.Fatalf("%s: expected 64-sample stereo render, got %d/%d", kind.Kind, len(left), len(right))
		}
		inst.RequestStop()
	}
}

func TestMelodicVoiceEnqueueAndRender(t *testing.T) {
	ctx := Context{SampleRate: 8000}
	inst, err := MelodicVoiceKind.Factory(ctx, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("factory error: %v", err)
	}
	mv := inst.(*melodicVoice)
	mv.Enqueue(440, 0.01, 0.5)

	left, _ := inst.Render(32)
	silent := true
	for _, s := range left {
		if s != 0 {
			silent = false
			break
		}
	}
	if silent {
		t.Fatal("expected non-silent output while a note is queued")
	}
}
