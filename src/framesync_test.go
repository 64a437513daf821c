package framesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameSynchronizerStartsInDetect(t *testing.T) {
	fs, err := NewFrameSynchronizer(nil)
	require.NoError(t, err)
	assert.Equal(t, "DETECT", fs.State())
	assert.Equal(t, fs.preamblePN, fs.PreamblePN())
}

func TestFrameSynchronizerResetReturnsToDetectWithZeroedCounters(t *testing.T) {
	fs, err := NewFrameSynchronizer(nil)
	require.NoError(t, err)

	fs.preambleCounter = 40
	fs.payloadCounter = 200
	fs.state = stateRxPayload

	fs.Reset()

	assert.Equal(t, "DETECT", fs.State())
	assert.Zero(t, fs.preambleCounter)
	assert.Zero(t, fs.payloadCounter)
	assert.Zero(t, fs.mfCounter)
}

func TestFrameSynchronizerStateGuardHoldsInDetect(t *testing.T) {
	fs, err := NewFrameSynchronizer(nil)
	require.NoError(t, err)

	assert.Equal(t, "DETECT", fs.State())
	assert.Zero(t, fs.preambleCounter)
	assert.Zero(t, fs.payloadCounter)

	// Feeding samples that never cross the detection threshold must never
	// advance either counter while the synchronizer stays in DETECT.
	samples := make([]complex64, 5000)
	for i := range samples {
		samples[i] = complex64(complex(0.01, -0.01))
	}
	fs.Execute(samples)

	assert.Equal(t, "DETECT", fs.State())
	assert.Zero(t, fs.preambleCounter)
	assert.Zero(t, fs.payloadCounter)
}

func TestTwoFreshResetSynchronizersProduceIdenticalOutputOnIdenticalInput(t *testing.T) {
	// Two independently constructed, then reset, synchronizers must be
	// indistinguishable: same preamble template and same state evolution
	// when driven by the same samples.
	a, err := NewFrameSynchronizer(nil)
	require.NoError(t, err)
	b, err := NewFrameSynchronizer(nil)
	require.NoError(t, err)

	a.Reset()
	b.Reset()

	assert.Equal(t, a.PreamblePN(), b.PreamblePN())

	samples := make([]complex64, 0, 20+64*2+32)
	for i := 0; i < 20; i++ {
		samples = append(samples, 0)
	}
	for _, sym := range a.preamblePN {
		samples = append(samples, sym, sym)
	}
	for i := 0; i < 32; i++ {
		samples = append(samples, 0)
	}

	a.Execute(samples)
	b.Execute(samples)

	assert.Equal(t, a.State(), b.State())
	assert.Equal(t, a.preambleCounter, b.preambleCounter)
	assert.Equal(t, a.payloadCounter, b.payloadCounter)
	assert.Equal(t, a.tauHat, b.tauHat)
	assert.Equal(t, a.dphiHat, b.dphiHat)
	assert.Equal(t, a.phiHat, b.phiHat)
	assert.Equal(t, a.gammaHat, b.gammaHat)
}

func TestFrameSynchronizerIgnoresPureNoise(t *testing.T) {
	var fired int
	sink := FrameSinkFunc(func(header []byte, headerValid bool, payload []byte, payloadValid bool, stats FramestatsView) {
		fired++
	})
	fs, err := NewFrameSynchronizer(sink)
	require.NoError(t, err)

	samples := make([]complex64, 20000)
	for i := range samples {
		v := 0.02
		if i%3 == 0 {
			v = -v
		}
		samples[i] = complex64(complex(v, -v))
	}
	fs.Execute(samples)

	assert.Zero(t, fired, "low-amplitude non-preamble noise must never cross the detection threshold")
	assert.Equal(t, "DETECT", fs.State())
}

func TestFrameSynchronizerDetectsCleanPreambleBurst(t *testing.T) {
	fs, err := NewFrameSynchronizer(nil)
	require.NoError(t, err)
	require.Equal(t, "DETECT", fs.State())

	// A clean, noiseless zero-order-hold upsampled p/n burst (same
	// construction NewDetector itself uses to build its template) reliably
	// crosses the detection threshold, per TestDetectorFiresOnCleanBurst.
	// This exercises Execute's DETECT -> RX_PREAMBLE transition and the
	// iterative buffered-tail replay without needing a fully pulse-shaped,
	// timing-synchronized payload waveform (see DESIGN.md on the scope of
	// these end-to-end tests).
	burst := make([]complex64, 0, 20+64*2+32)
	for i := 0; i < 20; i++ {
		burst = append(burst, 0)
	}
	for _, sym := range fs.preamblePN {
		burst = append(burst, sym, sym)
	}
	for i := 0; i < 32; i++ {
		burst = append(burst, 0)
	}

	fs.Execute(burst)

	assert.NotEqual(t, "DETECT", fs.State(), "a clean preamble burst should move the synchronizer out of DETECT")
}

func TestFrameSynchronizerDoesNotReenterExecuteRecursively(t *testing.T) {
	// A regression guard for the queue-draining approach in Execute: many
	// back-to-back detections in a single call must not grow the call
	// stack. Feed several repeated bursts in one Execute call.
	fs, err := NewFrameSynchronizer(nil)
	require.NoError(t, err)

	var samples []complex64
	for rep := 0; rep < 5; rep++ {
		for i := 0; i < 10; i++ {
			samples = append(samples, 0)
		}
		for _, sym := range fs.preamblePN {
			samples = append(samples, sym, sym)
		}
		// Enough samples for the preamble (70 symbols) and payload (630
		// symbols) at 2 samples/symbol, so each burst's frame completes and
		// the synchronizer is back in DETECT before the next burst.
		for i := 0; i < 1500; i++ {
			samples = append(samples, 0)
		}
	}

	assert.NotPanics(t, func() {
		fs.Execute(samples)
	})
}
