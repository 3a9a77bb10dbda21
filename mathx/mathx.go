// Package mathx holds the small integer and float helpers used to size DMA transfers.
package mathx

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
func Round(x, unit float64) float64 {
	return float64(int64(x/unit+0.5)) * unit
}

// CeilMultiple rounds n up to the nearest multiple of m.
// n <= 0 returns 0, m <= 0 returns n unchanged.
func CeilMultiple(n, m int) int {
	if n <= 0 {
		return 0
	}
	if m <= 0 {
		return n
	}
	return ((n + m - 1) / m) * m
}

// LargestDivisorAtMost returns the largest divisor of n that is <= limit.
// It is always at least 1 for n >= 1.
func LargestDivisorAtMost(n, limit int) int {
	if limit >= n {
		return n
	}
	for d := limit; d > 1; d-- {
		if n%d == 0 {
			return d
		}
	}
	return 1
}

// PopCount counts the set bits in a 32 bit mask
func PopCount(mask uint32) int {
	n := 0
	for mask != 0 {
		mask &= mask - 1
		n++
	}
	return n
}
