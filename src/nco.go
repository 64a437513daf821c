package framesync

import (
	"math"
	"math/cmplx"
)

// Nco is a numerically-controlled oscillator: a phase accumulator driven at
// a fixed frequency (radians/sample), used to mix an estimated carrier
// frequency/phase offset out of a complex baseband signal.
//
// Ported from liquid-dsp's nco_crcf object as used by framesync64.c
// (nco_crcf_mix_down / _step / _set_frequency / _set_phase / _get_frequency
// / _reset, see _examples/original_source/src/framing/src/framesync64.c).
type Nco struct {
	frequency float64 // radians/sample
	phase     float64 // radians
}

// NewNco creates an Nco with zero frequency and phase.
func NewNco() *Nco {
	return &Nco{}
}

// SetFrequency programs the oscillator's per-sample phase increment.
func (n *Nco) SetFrequency(freq float64) {
	n.frequency = freq
}

// SetPhase programs the oscillator's current phase.
func (n *Nco) SetPhase(phase float64) {
	n.phase = wrapPhase(phase)
}

// CurrentFrequency returns the oscillator's programmed frequency.
func (n *Nco) CurrentFrequency() float64 {
	return n.frequency
}

// MixDown multiplies x by exp(-j*phase), removing the oscillator's current
// carrier estimate from the sample.
func (n *Nco) MixDown(x complex128) complex128 {
	return x * cmplx.Exp(complex(0, -n.phase))
}

// Advance steps the phase accumulator by one sample's worth of frequency.
func (n *Nco) Advance() {
	n.phase = wrapPhase(n.phase + n.frequency)
}

// Reset clears accumulated phase and frequency.
func (n *Nco) Reset() {
	n.frequency = 0
	n.phase = 0
}

func wrapPhase(phase float64) float64 {
	const twoPi = 2 * math.Pi
	phase = math.Mod(phase, twoPi)
	if phase > math.Pi {
		phase -= twoPi
	} else if phase < -math.Pi {
		phase += twoPi
	}
	return phase
}
