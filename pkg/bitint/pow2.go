// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-2 helpers used for FFT and buffer
sizing. All functions are O(1), allocation free and safe to call from the
audio callback.

The FFT size is configured as an order (exponent) rather than a raw size so
that an invalid size cannot be expressed:

	size := bitint.FromOrder(11)    // 2048
	order, ok := bitint.Order(size) // 11, true

NextPowerOfTwo relies on the (size-1) subtraction so that exact powers of 2
are preserved:

	size=8: bits.Len(7) = 3, 1<<3 = 8
	without the subtraction: bits.Len(8) = 4, 1<<4 = 16 (doubled)
*/
package bitint

import "math/bits"

// MaxOrder is the largest order accepted by FromOrder.
const MaxOrder = 30

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of 2
// have a single bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// FromOrder returns 1<<order, or 0 when the order is outside [0, MaxOrder].
func FromOrder(order int) int {
	if order < 0 || order > MaxOrder {
		return 0
	}
	return 1 << order
}

// Order returns log2(n) for a power of 2. The second result is false when n
// is not a power of 2.
func Order(n int) (int, bool) {
	if !IsPowerOfTwo(n) {
		return 0, false
	}
	return bits.TrailingZeros(uint(n)), true
}
