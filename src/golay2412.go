package framesync

import "math/bits"

// Extended binary Golay(24,12,8) code: 12 message bits -> 24 coded bits,
// correcting up to 3 bit errors per codeword. This is the inner FEC named
// by framesync64.c's qpacketmodem_configure(..., LIQUID_FEC_GOLAY2412, ...)
// (see _examples/original_source/src/framing/src/framesync64.c).
//
// Systematic form: codeword = (message[12] | parity[12]), parity = message*B
// for a 12x12 matrix B built from the quadratic residues mod 11 (the
// standard bordered-circulant construction of the extended Golay code's
// generator matrix). The resulting (24,12) code has minimum distance 8, so
// every syndrome for a weight-0..3 error pattern is distinct; golayDecode
// exploits that by building a syndrome -> error-pattern table once at
// package init instead of hand-deriving the classical matrix-trick decoder.

// golayB holds the 12 rows of B, each packed into the low 12 bits of a
// uint16 (bit j = column j).
var golayB = [12]uint16{
	0xFFE, 0x477, 0x8ED, 0x1DB, 0x3B5, 0x769,
	0xED1, 0xDA3, 0xB47, 0x68F, 0xD1D, 0xA3B,
}

// golaySyndromeTable maps a 12-bit syndrome to the 24-bit error pattern
// (low 12 bits: message-half error, high 12 bits: parity-half error) that
// produced it, for every correctable (weight <= 3) error pattern. Built
// once at init.
var golaySyndromeTable map[uint16]uint32

func init() {
	golaySyndromeTable = make(map[uint16]uint32, 2325)
	var patterns func(start, remaining int, acc uint32)
	patterns = func(start, remaining int, acc uint32) {
		s := golaySyndrome(acc)
		if _, exists := golaySyndromeTable[s]; !exists {
			golaySyndromeTable[s] = acc
		}
		if remaining == 0 {
			return
		}
		for i := start; i < 24; i++ {
			patterns(i+1, remaining-1, acc|(1<<uint(i)))
		}
	}
	patterns(0, 3, 0)
}

// golayMulB computes v*B for a 12-bit row vector v: the XOR of rows of B
// selected by the set bits of v.
func golayMulB(v uint16) uint16 {
	var out uint16
	for i := 0; i < 12; i++ {
		if v&(1<<uint(i)) != 0 {
			out ^= golayB[i]
		}
	}
	return out
}

// golaySyndrome computes the 12-bit syndrome of a 24-bit word (low 12 bits
// message-half, high 12 bits parity-half).
func golaySyndrome(word uint32) uint16 {
	left := uint16(word & 0x0FFF)
	right := uint16((word >> 12) & 0x0FFF)
	return golayMulB(left) ^ right
}

// golayEncode returns the 12-bit parity for a 12-bit message.
func golayEncode(message uint16) uint16 {
	return golayMulB(message & 0x0FFF)
}

// golayDecode corrects a received (message, parity) half-pair if the total
// error weight is 3 or fewer, returning the corrected 12-bit message and
// whether correction succeeded.
func golayDecode(receivedMessage, receivedParity uint16) (message uint16, ok bool) {
	receivedMessage &= 0x0FFF
	receivedParity &= 0x0FFF

	received := uint32(receivedMessage) | uint32(receivedParity)<<12
	syndrome := golaySyndrome(received)

	if syndrome == 0 {
		return receivedMessage, true
	}

	errPattern, found := golaySyndromeTable[syndrome]
	if !found {
		return receivedMessage, false
	}

	corrected := received ^ errPattern
	return uint16(corrected & 0x0FFF), true
}

// golayWeight is exposed for tests that want to sanity-check the code's
// minimum distance without re-deriving the construction.
func golayWeight(v uint32) int {
	return bits.OnesCount32(v)
}
