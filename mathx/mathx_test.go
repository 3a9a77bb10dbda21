package mathx_test

import (
	"fmt"
	"testing"

	"github.com/nasa-jpl/golaborate-ats/mathx"
	"github.com/stretchr/testify/assert"
)

func ExampleCeilMultiple() {
	fmt.Println(mathx.CeilMultiple(1000, 128))
	// Output: 1024
}

func TestCeilMultiple(t *testing.T) {
	cases := []struct {
		n, m, want int
	}{
		{0, 128, 0},
		{1, 128, 128},
		{128, 128, 128},
		{129, 128, 256},
		{5000, 4096, 8192},
		{7, 0, 7},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mathx.CeilMultiple(c.n, c.m), "CeilMultiple(%d, %d)", c.n, c.m)
	}
}

func TestLargestDivisorAtMost(t *testing.T) {
	assert.Equal(t, 4, mathx.LargestDivisorAtMost(12, 4))
	assert.Equal(t, 12, mathx.LargestDivisorAtMost(12, 100))
	assert.Equal(t, 1, mathx.LargestDivisorAtMost(13, 12))
	assert.Equal(t, 50, mathx.LargestDivisorAtMost(250, 100))
}

func TestPopCount(t *testing.T) {
	assert.Equal(t, 0, mathx.PopCount(0))
	assert.Equal(t, 2, mathx.PopCount(3))
	assert.Equal(t, 1, mathx.PopCount(2))
	assert.Equal(t, 16, mathx.PopCount(0xFFFF))
}

func TestRound(t *testing.T) {
	assert.InDelta(t, 1.2, mathx.Round(1.23, 0.1), 1e-12)
}
