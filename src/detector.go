package framesync

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Detector looks for the known p/n preamble in a stream of complex baseband
// samples by normalized cross-correlation, and on a threshold crossing
// estimates fractional timing offset, channel gain, carrier frequency
// offset, and carrier phase offset, per the contract framesync64.c expects
// of qdetector_cccf (_examples/original_source/src/framing/src/framesync64.c
// calls qdetector_cccf_execute/_get_tau/_get_gamma/_get_dphi/_get_phi
// /_get_buf_len/_reset). The correlation/estimation algorithm itself is
// this module's own (liquid's internal qdetector_cccf implementation was
// not retrieved in this pack): normalized cross-correlation against a
// zero-order-hold upsampled preamble replica for detection, split-window
// phase-slope for the frequency estimate, and parabolic interpolation of
// the correlation magnitude for the timing estimate.
const (
	detectorThreshold   = 0.65 // normalized correlation magnitude to declare detection
	detectorExtraBuffer = pfbTapsPerBranch // samples buffered past the peak before firing (models qdetector's internal refinement window)
)

type Detector struct {
	template []complex128 // p/n sequence, zero-order-hold upsampled at k samples/symbol
	energy   float64      // sum |template[i]|^2

	window []complex128 // ring buffer, most recent len(template) samples, oldest first

	armed        bool // a correlation peak has crossed threshold, accumulating extra buffer
	extra        []complex128
	windowAtPeak []complex128 // copy of window contents at the peak, for dphi/phi estimation

	tauHat, gammaHat, dphiHat, phiHat float64
	bufferedLen                       int
}

// NewDetector builds a p/n correlation detector for the given 64-symbol p/n
// sequence, with k=2 samples/symbol (the only sample rate this waveform
// uses). The filterType/m/beta parameters of the collaborator contract in
// spec.md §6.2 are not taken: the template is a zero-order-hold replica
// that only k shapes.
func NewDetector(pn [64]complex64, k int) (*Detector, error) {
	if k <= 0 {
		return nil, fmt.Errorf("framesync: detector samples/symbol must be positive, got %d", k)
	}
	template := make([]complex128, len(pn)*k)
	for i, sym := range pn {
		for j := 0; j < k; j++ {
			template[i*k+j] = complex(float64(real(sym)), float64(imag(sym)))
		}
	}
	var energy float64
	for _, v := range template {
		energy += real(v)*real(v) + imag(v)*imag(v)
	}
	d := &Detector{
		template: template,
		energy:   energy,
	}
	d.window = make([]complex128, len(template))
	return d, nil
}

// Execute pushes one sample through the detector. It returns a non-nil
// (possibly empty) slice of buffered samples and true exactly when
// detection fires; the returned slice must be replayed through the
// pipeline before further input is read (spec.md §4.1).
func (d *Detector) Execute(x complex128) ([]complex128, bool) {
	// shift window
	copy(d.window, d.window[1:])
	d.window[len(d.window)-1] = x

	if d.armed {
		d.extra = append(d.extra, x)
		if len(d.extra) >= detectorExtraBuffer {
			d.finalizeEstimates()
			tail := d.extra
			d.armed = false
			d.extra = nil
			d.bufferedLen = len(tail)
			return tail, true
		}
		return nil, false
	}

	mag := d.correlationMagnitudeFor(d.window)
	if mag >= detectorThreshold {
		d.armed = true
		d.extra = make([]complex128, 0, detectorExtraBuffer)
		d.windowAtPeak = append([]complex128(nil), d.window...)
	}
	return nil, false
}

func (d *Detector) correlate(window []complex128) complex128 {
	var acc complex128
	for i, t := range d.template {
		acc += cmplx.Conj(t) * window[i]
	}
	return acc
}

// finalizeEstimates computes tau/gamma/dphi/phi from the window captured at
// the correlation peak.
func (d *Detector) finalizeEstimates() {
	w := d.windowAtPeak
	if w == nil {
		w = d.window
	}
	corr := d.correlate(w)
	d.gammaHat = cmplx.Abs(corr) / d.energy
	if d.gammaHat <= 0 {
		d.gammaHat = 1e-6
	}
	d.phiHat = cmplx.Phase(corr)

	half := len(w) / 2
	corr1 := d.correlateRange(w, 0, half)
	corr2 := d.correlateRange(w, half, len(w))
	if cmplx.Abs(corr1) > 1e-12 && cmplx.Abs(corr2) > 1e-12 {
		dphi := cmplx.Phase(corr2) - cmplx.Phase(corr1)
		dphi = wrapPhase(dphi)
		d.dphiHat = dphi / float64(half)
	} else {
		d.dphiHat = 0
	}

	// Parabolic interpolation of correlation magnitude around the peak
	// sample to refine the fractional timing estimate. Since the window was
	// already above threshold when armed, use the neighboring windows one
	// sample before/after (within the buffered extra samples accumulated so
	// far) if available; otherwise report zero offset.
	d.tauHat = 0
	if len(d.extra) >= 2 {
		mPrev := d.magnitudeAt(-1)
		mHere := d.magnitudeAt(0)
		mNext := d.magnitudeAt(1)
		denom := mPrev - 2*mHere + mNext
		if math.Abs(denom) > 1e-12 {
			d.tauHat = 0.5 * (mPrev - mNext) / denom
			if d.tauHat > 0.5 {
				d.tauHat = 0.5
			}
			if d.tauHat < -0.5 {
				d.tauHat = -0.5
			}
		}
	}
}

// magnitudeAt recomputes the correlation magnitude offset by delta samples
// from the recorded peak window, by shifting in already-buffered extra
// samples. Used only for the parabolic timing refinement.
func (d *Detector) magnitudeAt(delta int) float64 {
	base := d.windowAtPeak
	if base == nil {
		return d.correlationMagnitudeFor(d.window)
	}
	shifted := make([]complex128, len(base))
	copy(shifted, base)
	if delta > 0 {
		for s := 0; s < delta && s < len(d.extra); s++ {
			copy(shifted, shifted[1:])
			shifted[len(shifted)-1] = d.extra[s]
		}
	}
	return d.correlationMagnitudeFor(shifted)
}

func (d *Detector) correlationMagnitudeFor(window []complex128) float64 {
	corr := d.correlate(window)
	var windowEnergy float64
	for _, v := range window {
		windowEnergy += real(v)*real(v) + imag(v)*imag(v)
	}
	denom := math.Sqrt(d.energy * windowEnergy)
	if denom < 1e-12 {
		return 0
	}
	return cmplx.Abs(corr) / denom
}

func (d *Detector) correlateRange(window []complex128, lo, hi int) complex128 {
	var acc complex128
	for i := lo; i < hi; i++ {
		acc += cmplx.Conj(d.template[i]) * window[i]
	}
	return acc
}

// GetTau returns the fractional sample-timing offset estimate.
func (d *Detector) GetTau() float64 { return d.tauHat }

// GetGamma returns the linear channel-gain estimate.
func (d *Detector) GetGamma() float64 { return d.gammaHat }

// GetDphi returns the carrier frequency offset estimate (radians/sample).
func (d *Detector) GetDphi() float64 { return d.dphiHat }

// GetPhi returns the carrier phase offset estimate (radians).
func (d *Detector) GetPhi() float64 { return d.phiHat }

// GetBufferedLen returns the number of samples returned on the most recent
// detection.
func (d *Detector) GetBufferedLen() int { return d.bufferedLen }

// Reset clears all correlator state, returning the detector to its initial
// (un-armed) condition.
func (d *Detector) Reset() {
	for i := range d.window {
		d.window[i] = 0
	}
	d.armed = false
	d.extra = nil
	d.windowAtPeak = nil
	d.tauHat, d.gammaHat, d.dphiHat, d.phiHat = 0, 0, 0, 0
	d.bufferedLen = 0
}
