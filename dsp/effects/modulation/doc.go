// Package modulation provides reusable non-I/O modulation effects.
//
// Included processors:
//   - AutoWah: Envelope follower driving a band-pass filter sweep.
//   - Chorus: Multi-voice modulated delay.
//   - Flanger: Short modulated delay with feedback.
//   - FrequencyShifter: Bode-style upshift/downshift single-sideband shifter.
//   - Phaser: Allpass-cascade modulation effect.
//   - RingModulator: Carrier multiply and dry/wet blend.
//   - Tremolo: LFO amplitude modulation.
package modulation
