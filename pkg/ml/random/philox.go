// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package random

import "math/bits"

// Philox-4x32 constants, from Salmon et al., "Parallel Random Numbers: As Easy as 1, 2, 3".
const (
	philoxM0 = 0xD2511F53
	philoxM1 = 0xCD9E8D57
	philoxW0 = 0x9E3779B9
	philoxW1 = 0xBB67AE85

	philoxRounds = 10
)

func philoxRound(counter [4]uint32, key [2]uint32) [4]uint32 {
	hi0, lo0 := bits.Mul32(philoxM0, counter[0])
	hi1, lo1 := bits.Mul32(philoxM1, counter[2])
	return [4]uint32{
		hi1 ^ counter[1] ^ key[0],
		lo1,
		hi0 ^ counter[3] ^ key[1],
		lo0,
	}
}

// philox4x32x10 maps a counter to 128 random bits under the given key.
func philox4x32x10(counter [4]uint32, key [2]uint32) [4]uint32 {
	for round := range philoxRounds {
		if round > 0 {
			key[0] += philoxW0
			key[1] += philoxW1
		}
		counter = philoxRound(counter, key)
	}
	return counter
}
