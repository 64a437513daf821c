package framesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCrc24EmptyInput(t *testing.T) {
	assert.Equal(t, uint32(crc24Init&crc24Mask), crc24(nil))
}

func TestCrc24DetectsSingleBitFlip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 72, 72).Draw(t, "data")
		original := crc24(data)

		byteIdx := rapid.IntRange(0, len(data)-1).Draw(t, "byteIdx")
		bit := rapid.IntRange(0, 7).Draw(t, "bit")
		corrupted := append([]byte(nil), data...)
		corrupted[byteIdx] ^= 1 << uint(bit)

		assert.NotEqual(t, original, crc24(corrupted))
	})
}

func TestCrc24Deterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	assert.Equal(t, crc24(data), crc24(data))
}
