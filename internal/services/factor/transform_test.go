package factor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBand(t *testing.T) {
	b := ComputeBand([]float64{1, 2, 3, 4, 5, math.NaN()})
	assert.InDelta(t, 3, b.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), b.Std, 1e-12)
	assert.InDelta(t, 3+math.Sqrt(2.5), b.Upper(), 1e-12)
	assert.InDelta(t, 3-math.Sqrt(2.5), b.Lower(), 1e-12)

	one := ComputeBand([]float64{42})
	assert.Equal(t, 42.0, one.Mean)
	assert.True(t, math.IsNaN(one.Std))

	assert.True(t, math.IsNaN(ComputeBand(nil).Mean))
}

func TestReflect(t *testing.T) {
	b := Band{Mean: 50, Std: 10}

	for _, v := range []float64{40, 45, 50, 55, 60} {
		assert.Equal(t, v, b.Reflect(v), "inside the band is identity")
	}
	assert.InDelta(t, 55, b.Reflect(65), 1e-12)
	assert.InDelta(t, 45, b.Reflect(35), 1e-12)
	// folding more than 2 std past an edge crosses the opposite edge
	assert.InDelta(t, 30, b.Reflect(90), 1e-12)

	assert.True(t, math.IsNaN(b.Reflect(math.NaN())))
	assert.Equal(t, 99.0, Band{Mean: 50, Std: math.NaN()}.Reflect(99))
}

func TestReflect_BoundedByBand(t *testing.T) {
	b := Band{Mean: 50, Std: 10}
	for v := 0.0; v <= 100; v += 2.5 {
		got := b.Reflect(v)
		if math.Abs(v-b.Mean) <= 2*b.Std {
			assert.LessOrEqual(t, math.Abs(got-b.Mean), b.Std+1e-12, "v=%v", v)
		}
	}
}
