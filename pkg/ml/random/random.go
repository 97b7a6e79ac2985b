// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package random implements explicit, splittable random keys.
//
// There is no global or hidden random state in stagednet: every function that needs randomness
// takes a Key, and derives independent sub-keys with Key.Split or Key.Fold. The same key always
// produces the same values, which makes every model step reproducible.
//
// Key derivation uses the Philox-4x32-10 counter-based generator; sampling from a key seeds a
// PCG generator with the key's 128 bits.
package random

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stagednet/pkg/core/shapes"
	"github.com/gomlx/stagednet/pkg/core/tensors"
)

// Key is an immutable random key. The zero value is a valid key.
type Key struct {
	hi, lo uint64
}

// NewKey returns a key derived from the given seed.
func NewKey(seed int64) Key {
	hi := splitMix64(uint64(seed))
	return Key{hi: hi, lo: splitMix64(hi)}
}

// NewKeyFromClock returns a key seeded from the system clock, for non-reproducible runs.
func NewKeyFromClock() Key {
	return NewKey(time.Now().UnixNano())
}

// String implements fmt.Stringer.
func (k Key) String() string { return fmt.Sprintf("Key(%016x%016x)", k.hi, k.lo) }

// Split returns n new independent keys derived from k. k itself should not be used afterwards
// for sampling, only its children.
func (k Key) Split(n int) []Key {
	if n < 0 {
		exceptions.Panicf("random.Key.Split(%d): n must be >= 0", n)
	}
	keys := make([]Key, n)
	for ii := range keys {
		keys[ii] = k.derive(uint64(ii), 0)
	}
	return keys
}

// Split2 is a shortcut to Split(2).
func (k Key) Split2() (Key, Key) {
	return k.derive(0, 0), k.derive(1, 0)
}

// Fold returns a key derived from k and the given data, e.g. a time-step index. Different data
// values give independent keys, also independent of the keys returned by Split.
func (k Key) Fold(data uint64) Key {
	return k.derive(data, 1)
}

func (k Key) derive(counter, domain uint64) Key {
	out := philox4x32x10(
		[4]uint32{uint32(k.lo), uint32(k.lo >> 32), uint32(counter), uint32(counter>>32) ^ uint32(domain)<<31},
		[2]uint32{uint32(k.hi), uint32(k.hi >> 32)},
	)
	return Key{
		hi: uint64(out[0]) | uint64(out[1])<<32,
		lo: uint64(out[2]) | uint64(out[3])<<32,
	}
}

// rng returns a sampler seeded by the key.
func (k Key) rng() *rand.Rand {
	return rand.New(rand.NewPCG(k.hi, k.lo))
}

// Normal returns a tensor of the given shape with values sampled from N(0, 1).
func (k Key) Normal(shape shapes.Shape) *tensors.Tensor {
	r := k.rng()
	values := make([]float64, shape.Size())
	for ii := range values {
		values[ii] = r.NormFloat64()
	}
	return tensors.FromFlatDataAndDimensions(values, shape.Dimensions...)
}

// Uniform returns a tensor of the given shape with values sampled uniformly from [minValue, maxValue).
func (k Key) Uniform(shape shapes.Shape, minValue, maxValue float64) *tensors.Tensor {
	r := k.rng()
	values := make([]float64, shape.Size())
	for ii := range values {
		values[ii] = minValue + (maxValue-minValue)*r.Float64()
	}
	return tensors.FromFlatDataAndDimensions(values, shape.Dimensions...)
}

// Permutation returns a random permutation of the integers [0, n).
func (k Key) Permutation(n int) []int {
	return k.rng().Perm(n)
}

// IntN returns a random integer in [0, n).
func (k Key) IntN(n int) int {
	return k.rng().IntN(n)
}

func splitMix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}
