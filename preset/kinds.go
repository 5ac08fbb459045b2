package preset

// AllKinds returns the descriptors for every built-in preset kind, in the
// order the preset registry registers them by default.
func AllKinds() []Descriptor {
	return []Descriptor{
		TwoFreqDroneKind,
		HarmonicSwarmKind,
		NoiseBedKind,
		FMChorusPadKind,
		GatedHitKind,
		ClippedLeadKind,
		MelodicVoiceKind,
	}
}
