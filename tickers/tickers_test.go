package tickers

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/boomberg/models"
	"github.com/wfunc/boomberg/persistence"
)

func draws(values ...uint32) *bytes.Reader {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(buf[4*i:], v)
	}
	return bytes.NewReader(buf)
}

type countingMetrics struct {
	rejections, collisions, failures int
}

func (m *countingMetrics) IncTickerRejections()         { m.rejections++ }
func (m *countingMetrics) IncTickerCollisions()         { m.collisions++ }
func (m *countingMetrics) IncTickerAllocationFailures() { m.failures++ }

func TestDefaultDictionary(t *testing.T) {
	dict := Default()
	require.NotEmpty(t, dict)

	seen := make(map[string]bool)
	for _, s := range dict {
		assert.NotEmpty(t, s.Ticker)
		assert.NotEmpty(t, s.Company)
		assert.False(t, seen[s.Ticker], "duplicate ticker %s", s.Ticker)
		seen[s.Ticker] = true
	}

	sym, ok := dict.Lookup("AB")
	require.True(t, ok)
	assert.Equal(t, "Aardvark Bancorp", sym.Company)
}

func TestParseDictionaryRejectsMalformedPairs(t *testing.T) {
	_, err := ParseDictionary([]byte(`[["AB"]]`))
	assert.Error(t, err)

	_, err = ParseDictionary([]byte(`[]`))
	assert.ErrorIs(t, err, ErrEmptyDictionary)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, uint64(1)<<32, Limit(4), "powers of two never reject")
	assert.Equal(t, uint64(4294967295), Limit(3))
	assert.Equal(t, uint64(0), Limit(69)%69)
}

func TestSamplerRejectsTail(t *testing.T) {
	metrics := &countingMetrics{}
	limit := Limit(69)
	s := NewSampler(draws(uint32(limit), uint32(limit+1), 70), 15, metrics)

	i, err := s.Index(69)
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.Equal(t, 2, metrics.rejections)
}

func TestSamplerAcceptsLastValueBelowLimit(t *testing.T) {
	limit := Limit(69)
	s := NewSampler(draws(uint32(limit-1)), 1, nil)

	i, err := s.Index(69)
	require.NoError(t, err)
	assert.Equal(t, 68, i)
}

func TestSamplerExhaustion(t *testing.T) {
	tail := uint32(Limit(3))
	s := NewSampler(draws(tail, tail, tail, 0), 3, nil)

	_, err := s.Index(3)
	assert.ErrorIs(t, err, ErrSamplingExhausted)
}

func TestSamplerReadError(t *testing.T) {
	s := NewSampler(bytes.NewReader([]byte{1, 2}), 3, nil)
	_, err := s.Index(5)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSamplingExhausted))
}

func TestSamplerEmptyDictionary(t *testing.T) {
	_, err := NewSampler(nil, 3, nil).Draw(nil)
	assert.ErrorIs(t, err, ErrEmptyDictionary)
}

func TestSamplerIndexInRange(t *testing.T) {
	s := NewSampler(nil, 15, nil)
	for n := 1; n <= 300; n++ {
		for k := 0; k < 20; k++ {
			i, err := s.Index(n)
			require.NoError(t, err)
			require.True(t, i >= 0 && i < n, "index %d out of range for n=%d", i, n)
		}
	}
}

func TestSamplerDistributionIsUniform(t *testing.T) {
	const (
		n     = 7
		total = 70000
	)
	s := NewSampler(nil, 15, nil)
	counts := make([]int, n)
	for k := 0; k < total; k++ {
		i, err := s.Index(n)
		require.NoError(t, err)
		counts[i]++
	}

	expected := float64(total) / n
	chi := 0.0
	for _, c := range counts {
		d := float64(c) - expected
		chi += d * d / expected
	}
	// 6 degrees of freedom; 40 is far beyond the 0.9999 quantile (~27.9).
	assert.Less(t, chi, 40.0, "counts %v", counts)
}

func seededStore(t *testing.T, now time.Time, tickers ...string) *persistence.Memory {
	t.Helper()
	store := persistence.NewMemory()
	for _, tk := range tickers {
		store.InsertGame(models.Game{Ticker: tk, Status: models.StatusPending, CreatedAt: now.Add(-time.Hour)})
	}
	return store
}

func TestAllocatorSkipsActiveTickers(t *testing.T) {
	dict := Dictionary{{"AA", "a"}, {"BB", "b"}, {"CC", "c"}, {"DD", "d"}, {"EE", "e"}}
	now := time.Now()
	store := seededStore(t, now, "AA", "BB", "CC", "DD")
	// Stale and completed games do not block their ticker.
	store.InsertGame(models.Game{Ticker: "EE", Status: models.StatusCompleted, CreatedAt: now})
	store.InsertGame(models.Game{Ticker: "EE", Status: models.StatusPending, CreatedAt: now.Add(-25 * time.Hour)})

	a := NewAllocator(dict, NewSampler(nil, 15, nil), store, 500, 24*time.Hour)
	a.now = func() time.Time { return now }

	for k := 0; k < 50; k++ {
		sym, err := a.Allocate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "EE", sym.Ticker)
	}
}

func TestAllocatorExhaustion(t *testing.T) {
	dict := Dictionary{{"AA", "a"}, {"BB", "b"}}
	now := time.Now()
	metrics := &countingMetrics{}
	a := NewAllocator(dict, NewSampler(nil, 15, metrics), seededStore(t, now, "AA", "BB"), 10, 24*time.Hour)
	a.now = func() time.Time { return now }

	_, err := a.Allocate(context.Background())
	assert.ErrorIs(t, err, ErrNoTickerAvailable)
	assert.Equal(t, 10, metrics.collisions)
	assert.Equal(t, 1, metrics.failures)
}

func TestAllocatorSamplingFailureIsFatal(t *testing.T) {
	tail := uint32(Limit(3))
	dict := Dictionary{{"AA", "a"}, {"BB", "b"}, {"CC", "c"}}
	a := NewAllocator(dict, NewSampler(draws(tail, tail), 2, nil), persistence.NewMemory(), 10, 24*time.Hour)

	_, err := a.Allocate(context.Background())
	assert.ErrorIs(t, err, ErrSamplingExhausted)
}
