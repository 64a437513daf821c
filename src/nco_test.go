package framesync

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNcoZeroFrequencyLeavesSignalUnchanged(t *testing.T) {
	n := NewNco()
	x := complex(0.6, -0.8)
	y := n.MixDown(x)
	assert.InDelta(t, real(x), real(y), 1e-12)
	assert.InDelta(t, imag(x), imag(y), 1e-12)
}

func TestNcoResetClearsFrequencyAndPhase(t *testing.T) {
	n := NewNco()
	n.SetFrequency(0.3)
	n.SetPhase(1.0)
	n.Advance()
	n.Reset()

	assert.Zero(t, n.CurrentFrequency())
	y := n.MixDown(complex(1, 0))
	assert.InDelta(t, 1.0, real(y), 1e-12)
	assert.InDelta(t, 0.0, imag(y), 1e-12)
}

func TestNcoMixDownRemovesKnownCarrier(t *testing.T) {
	n := NewNco()
	n.SetFrequency(0.1)
	n.SetPhase(0)

	for i := 0; i < 10; i++ {
		// Synthesize a sample carrying exactly the carrier the NCO is tracking.
		carrier := cmplx.Exp(complex(0, float64(i)*0.1))
		y := n.MixDown(complex(1, 0) * carrier)
		assert.InDelta(t, 1.0, real(y), 1e-9, "sample %d", i)
		assert.InDelta(t, 0.0, imag(y), 1e-9, "sample %d", i)
		n.Advance()
	}
}

func TestWrapPhaseStaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		phase := rapid.Float64Range(-1000, 1000).Draw(t, "phase")
		w := wrapPhase(phase)
		assert.GreaterOrEqual(t, w, -math.Pi-1e-9)
		assert.LessOrEqual(t, w, math.Pi+1e-9)
	})
}
