package framesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upsample(pn [64]complex64, k int) []complex128 {
	out := make([]complex128, 0, len(pn)*k)
	for _, s := range pn {
		for i := 0; i < k; i++ {
			out = append(out, complex128(s))
		}
	}
	return out
}

func TestDetectorFiresOnCleanBurst(t *testing.T) {
	pn, err := PreamblePN()
	require.NoError(t, err)

	d, err := NewDetector(pn, 2)
	require.NoError(t, err)

	burst := upsample(pn, 2)
	samples := append(make([]complex128, 20), burst...)
	samples = append(samples, make([]complex128, detectorExtraBuffer+5)...)

	fired := false
	for _, x := range samples {
		_, detected := d.Execute(x)
		if detected {
			fired = true
			break
		}
	}
	assert.True(t, fired, "detector should fire on a clean, noiseless p/n burst")
}

func TestDetectorDoesNotFireOnNoise(t *testing.T) {
	pn, err := PreamblePN()
	require.NoError(t, err)

	d, err := NewDetector(pn, 2)
	require.NoError(t, err)

	// Alternating small values, nothing resembling the p/n sequence.
	for i := 0; i < 500; i++ {
		x := complex(0.01, -0.01)
		if i%2 == 0 {
			x = -x
		}
		_, detected := d.Execute(x)
		assert.False(t, detected)
	}
}

func TestDetectorGammaHatTracksGain(t *testing.T) {
	pn, err := PreamblePN()
	require.NoError(t, err)

	d, err := NewDetector(pn, 2)
	require.NoError(t, err)

	const gain = 0.4
	burst := upsample(pn, 2)
	for i := range burst {
		burst[i] *= gain
	}
	samples := append(make([]complex128, 10), burst...)
	samples = append(samples, make([]complex128, detectorExtraBuffer+5)...)

	for _, x := range samples {
		if _, detected := d.Execute(x); detected {
			assert.InDelta(t, gain, d.GetGamma(), 0.1)
			return
		}
	}
	t.Fatal("detector never fired")
}

func TestDetectorResetClearsArmedState(t *testing.T) {
	pn, err := PreamblePN()
	require.NoError(t, err)

	d, err := NewDetector(pn, 2)
	require.NoError(t, err)

	burst := upsample(pn, 2)
	for _, x := range burst {
		d.Execute(x)
	}
	d.Reset()

	assert.False(t, d.armed)
	assert.Zero(t, d.GetTau())
	assert.Zero(t, d.GetGamma())
}

func TestNewDetectorRejectsNonPositiveK(t *testing.T) {
	pn, err := PreamblePN()
	require.NoError(t, err)

	_, err = NewDetector(pn, 0)
	assert.Error(t, err)
}
