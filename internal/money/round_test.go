package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name   string
		in     float64
		places int32
		want   float64
	}{
		{"cents", 12.345, 2, 12.35},
		{"negative", -4.125, 2, -4.13},
		{"mills", 0.12345, 3, 0.123},
		{"integer", 180.0, 2, 180.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Round(tt.in, tt.places))
		})
	}
}

func TestPtrNonFinite(t *testing.T) {
	assert.Nil(t, Ptr(math.Inf(1), 2))
	assert.Nil(t, Ptr(math.NaN(), 2))

	p := Ptr(1.005, 2)
	if assert.NotNil(t, p) {
		assert.InDelta(t, 1.01, *p, 1e-9)
	}
}
