package framesync

import (
	"fmt"
	"math/cmplx"
)

// PilotSync recovers the 600 data symbols from a 630-symbol payload block
// that interleaves them with 30 known pilot symbols at spacing 21, and uses
// the pilots to estimate and remove residual carrier phase/frequency and
// gain left over after the one-shot detection-time estimates (spec.md §4.5
// / §9: "all residual correction falls to the pilot synchronizer").
//
// Ported conceptually from liquid-dsp's qpilotsync_create(600, 21) /
// qpilotsync_execute contract (_examples/original_source/src/framing/src
// /framesync64.c). The pilot-extraction algorithm itself — per-pilot
// phase/gain estimate, linearly interpolated across the intervening data
// symbols — is this module's own, since qpilotsync's internals were not
// retrieved in this pack.
const (
	pilotFrameLen   = 630
	pilotPayloadLen = 600
	pilotSpacing    = 21
	pilotCount      = 30
)

// PilotSync is not safe for concurrent use.
type PilotSync struct {
	pilotValues  [pilotCount]complex128
	pilotIndices [pilotCount]int
}

// NewPilotSync builds a pilot synchronizer for the fixed 600-data/21-spacing
// frame layout this waveform uses. payloadLen and spacing are accepted to
// mirror the collaborator contract in spec.md §6.2 but only the values this
// waveform actually uses (600, 21) are supported.
func NewPilotSync(payloadLen, spacing int) (*PilotSync, error) {
	if payloadLen != pilotPayloadLen || spacing != pilotSpacing {
		return nil, fmt.Errorf("framesync: pilot sync only supports payloadLen=%d spacing=%d, got (%d,%d)",
			pilotPayloadLen, pilotSpacing, payloadLen, spacing)
	}
	p := &PilotSync{}
	gen, err := NewPnGenerator(5, 0x25, 1)
	if err != nil {
		return nil, err
	}
	for i := 0; i < pilotCount; i++ {
		if gen.Advance() {
			p.pilotValues[i] = complex(1, 0)
		} else {
			p.pilotValues[i] = complex(-1, 0)
		}
		p.pilotIndices[i] = spacing*i + (spacing - 1)
	}
	return p, nil
}

// FrameLen returns the total symbol count this synchronizer consumes (data
// + pilots).
func (p *PilotSync) FrameLen() int { return pilotFrameLen }

// Execute extracts the 600 data symbols from a 630-symbol frame, derotating
// and rescaling them using pilot-estimated residual phase/gain.
func (p *PilotSync) Execute(frame [pilotFrameLen]complex64) [pilotPayloadLen]complex64 {
	var phase, gain [pilotCount]float64
	for i := 0; i < pilotCount; i++ {
		rx := complex(float64(real(frame[p.pilotIndices[i]])), float64(imag(frame[p.pilotIndices[i]])))
		residual := rx / p.pilotValues[i]
		phase[i] = cmplx.Phase(residual)
		gain[i] = cmplx.Abs(residual)
		if gain[i] < 1e-6 {
			gain[i] = 1e-6
		}
	}

	var out [pilotPayloadLen]complex64
	dataIdx := 0
	for i := 0; i <= pilotCount; i++ {
		segStart := 0
		if i > 0 {
			segStart = p.pilotIndices[i-1] + 1
		}
		segEnd := pilotFrameLen
		if i < pilotCount {
			segEnd = p.pilotIndices[i]
		}
		for sym := segStart; sym < segEnd; sym++ {
			ph, g := p.interpolate(phase, gain, i, sym)
			rx := complex(float64(real(frame[sym])), float64(imag(frame[sym])))
			corrected := rx * cmplx.Rect(1.0/g, -ph)
			out[dataIdx] = complex64(corrected)
			dataIdx++
		}
	}
	return out
}

// interpolate linearly blends the phase/gain estimates of the pilots
// bracketing segment i (the segment before pilot i, or after the last pilot
// when i==pilotCount), holding the nearest estimate constant past the ends.
func (p *PilotSync) interpolate(phase, gain [pilotCount]float64, segment, symbolIndex int) (float64, float64) {
	switch {
	case segment == 0:
		return phase[0], gain[0]
	case segment == pilotCount:
		return phase[pilotCount-1], gain[pilotCount-1]
	default:
		lo, hi := segment-1, segment
		loIdx, hiIdx := p.pilotIndices[lo], p.pilotIndices[hi]
		frac := float64(symbolIndex-loIdx) / float64(hiIdx-loIdx)
		ph := phase[lo] + frac*(phase[hi]-phase[lo])
		g := gain[lo] + frac*(gain[hi]-gain[lo])
		return ph, g
	}
}
