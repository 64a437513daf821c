package framesync

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPilotFrame(t *testing.T, p *PilotSync, data [pilotPayloadLen]complex64, phase, gain float64) [pilotFrameLen]complex64 {
	t.Helper()
	var frame [pilotFrameLen]complex64
	pilotSet := make(map[int]int)
	for i, idx := range p.pilotIndices {
		pilotSet[idx] = i
	}

	dataIdx := 0
	rot := cmplx.Rect(gain, phase)
	for i := 0; i < pilotFrameLen; i++ {
		if pi, isPilot := pilotSet[i]; isPilot {
			frame[i] = complex64(complex128(p.pilotValues[pi]) * rot)
			continue
		}
		frame[i] = complex64(complex128(data[dataIdx]) * rot)
		dataIdx++
	}
	return frame
}

func TestNewPilotSyncRejectsUnsupportedShape(t *testing.T) {
	_, err := NewPilotSync(500, 10)
	assert.Error(t, err)
}

func TestPilotSyncFrameLen(t *testing.T) {
	p, err := NewPilotSync(pilotPayloadLen, pilotSpacing)
	require.NoError(t, err)
	assert.Equal(t, pilotFrameLen, p.FrameLen())
}

func TestPilotSyncRemovesUniformPhaseAndGain(t *testing.T) {
	p, err := NewPilotSync(pilotPayloadLen, pilotSpacing)
	require.NoError(t, err)

	var data [pilotPayloadLen]complex64
	for i := range data {
		if i%2 == 0 {
			data[i] = complex(1, 1)
		} else {
			data[i] = complex(-1, -1)
		}
	}

	const phaseOffset = 0.4
	const gainOffset = 1.7
	frame := buildPilotFrame(t, p, data, phaseOffset, gainOffset)

	recovered := p.Execute(frame)
	for i := range data {
		assert.InDeltaf(t, real(data[i]), real(recovered[i]), 1e-6, "symbol %d real", i)
		assert.InDeltaf(t, imag(data[i]), imag(recovered[i]), 1e-6, "symbol %d imag", i)
	}
}
