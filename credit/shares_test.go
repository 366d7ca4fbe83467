package credit_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/solar-credits/credit"
)

func TestShareOf(t *testing.T) {
	tests := []struct {
		total int64
		pct   int
		want  int64
	}{
		{100000, 25, 25000},
		{100000, 0, 0},
		{100000, 100, 100000},
		{100, 33, 33},
		{1, 50, 0},
		{999, 10, 99},
		{math.MaxInt64, 100, math.MaxInt64},
		{math.MaxInt64, 50, 4611686018427387903},
		{math.MaxInt64, 1, 92233720368547758},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, credit.ShareOf(tt.total, tt.pct), "%d × %d%%", tt.total, tt.pct)
	}
}

func TestShareOf_SumNeverExceedsTotal(t *testing.T) {
	// Every split of 100 into parts floors each part, so the sum can only
	// fall short of the total.
	totals := []int64{0, 1, 7, 99, 100, 101, 12345, 999999937, math.MaxInt64}
	splits := [][]int{
		{100},
		{50, 50},
		{33, 33, 34},
		{1, 1, 98},
		{10, 20, 30, 40},
		{7, 13, 17, 19, 23, 21},
	}
	for _, total := range totals {
		for _, split := range splits {
			var sum int64
			for _, pct := range split {
				sum += credit.ShareOf(total, pct)
			}
			assert.LessOrEqual(t, sum, total, "total %d split %v", total, split)
		}
	}
}
