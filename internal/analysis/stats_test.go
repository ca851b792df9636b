package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNearestRank(t *testing.T) {
	sorted := []float64{1, 2, 2, 2, 3, 100}
	assert.Equal(t, 2.0, nearestRank(sorted, 0.25))
	assert.Equal(t, 2.0, nearestRank(sorted, 0.5))
	assert.Equal(t, 3.0, nearestRank(sorted, 0.75))
	assert.Equal(t, 1.0, nearestRank(sorted, 0))
	assert.Equal(t, 100.0, nearestRank(sorted, 1))
	assert.Zero(t, nearestRank(nil, 0.5))
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.Equal(t, 2.5, quantile(sorted, 0.5))
	assert.Equal(t, 1.75, quantile(sorted, 0.25))
	assert.Equal(t, 1.0, quantile(sorted, -1))
	assert.Equal(t, 4.0, quantile(sorted, 2))
}

func TestMedianMAD(t *testing.T) {
	median, mad := medianMAD([]float64{1, 2, 2, 3, 2, 100})
	assert.Equal(t, 2.0, median)
	assert.Equal(t, 0.5, mad)
}

func TestWelford(t *testing.T) {
	var w welford
	_, ok := w.std()
	assert.False(t, ok)
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.add(x)
	}
	assert.InDelta(t, 5.0, w.mean, 1e-12)
	s, ok := w.std()
	assert.True(t, ok)
	assert.InDelta(t, math.Sqrt(32.0/7), s, 1e-12)
}

func TestFinite(t *testing.T) {
	assert.Nil(t, finite(math.NaN()))
	assert.Nil(t, finite(math.Inf(1)))
	assert.Equal(t, ptr(1.5), finite(1.5))
}

func TestUniqueName(t *testing.T) {
	used := map[string]bool{"a": true, "a_2": true}
	assert.Equal(t, "a_3", uniqueName("a", used))
	assert.Equal(t, "b", uniqueName("b", used))
	assert.True(t, used["a_3"])
}
