package safemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckedOps(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(a, b uint64) (uint64, bool)
		a, b   uint64
		want   uint64
		wantOk bool
	}{
		{"add", Add64, 2, 3, 5, true},
		{"add at boundary", Add64, math.MaxUint64 - 1, 1, math.MaxUint64, true},
		{"add overflow", Add64, math.MaxUint64, 1, 0, false},
		{"sub", Sub64, 5, 3, 2, true},
		{"sub to zero", Sub64, 5, 5, 0, true},
		{"sub underflow", Sub64, 3, 5, math.MaxUint64 - 1, false},
		{"mul", Mul64, 6, 7, 42, true},
		{"mul overflow", Mul64, math.MaxUint64/2 + 1, 2, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.fn(tc.a, tc.b)
			assert.Equal(t, tc.wantOk, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSaturating(t *testing.T) {
	assert.Equal(t, uint64(30), SaturatingAdd64(10, 20))
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAdd64(math.MaxUint64, 20))
	assert.Equal(t, uint64(0), SaturatingSub64(10, 20))
	assert.Equal(t, uint64(5), SaturatingSub64(25, 20))
	assert.Equal(t, uint64(math.MaxUint64), SaturatingMul64(math.MaxUint64, 3))
	assert.Equal(t, uint64(30), SaturatingMul64(10, 3))
	assert.Equal(t, uint32(math.MaxUint32), SaturatingAdd32(math.MaxUint32, 1))

	v, ok := Sub32(1, 2)
	assert.False(t, ok)
	assert.Equal(t, uint32(math.MaxUint32), v)
}
