package stonk

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameSeedSameSeries(t *testing.T) {
	a, b := New("ABC"), New("ABC")
	assert.Equal(t, a.Data, b.Data)
	assert.NotEqual(t, a.Data, New("XYZ").Data)
}

func TestSeriesShape(t *testing.T) {
	for _, seed := range []string{"AB", "BOOM", "", "ZZZZ"} {
		s := New(seed)
		require.Len(t, s.Data, numPoints, seed)
		for _, v := range s.Data {
			assert.GreaterOrEqual(t, v, 0.0, seed)
			assert.GreaterOrEqual(t, v, s.Min, seed)
			assert.LessOrEqual(t, v, s.Max, seed)
		}
		assert.Contains(t, s.Data, s.Min, seed)
		assert.Contains(t, s.Data, s.Max, seed)
	}
}

func TestSparkline(t *testing.T) {
	s := New("ABC")
	for _, w := range []int{1, 10, 100, 250} {
		line := s.Sparkline(w)
		assert.Equal(t, w, utf8.RuneCountInString(line))
	}
	assert.Equal(t, "", s.Sparkline(0))

	flat := &Stonk{Data: []float64{5, 5, 5}, Min: 5, Max: 5}
	assert.Equal(t, "▁▁▁", flat.Sparkline(3))

	ramp := &Stonk{Data: []float64{0, 7}, Min: 0, Max: 7}
	assert.Equal(t, "▁█", ramp.Sparkline(2))
}
