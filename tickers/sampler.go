package tickers

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const space = uint64(1) << 32

var ErrSamplingExhausted = errors.New("rejection sampling exhausted")

// Metrics receives allocator counters. monitor.Monitor implements it.
type Metrics interface {
	IncTickerRejections()
	IncTickerCollisions()
	IncTickerAllocationFailures()
}

type noopMetrics struct{}

func (noopMetrics) IncTickerRejections()         {}
func (noopMetrics) IncTickerCollisions()         {}
func (noopMetrics) IncTickerAllocationFailures() {}

// Sampler draws uniform indices by rejection sampling 32-bit values.
type Sampler struct {
	rand        io.Reader
	maxAttempts int
	metrics     Metrics
}

// NewSampler reads from src (crypto/rand when nil) and gives up after
// maxAttempts rejected draws.
func NewSampler(src io.Reader, maxAttempts int, metrics Metrics) *Sampler {
	if src == nil {
		src = rand.Reader
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Sampler{rand: src, maxAttempts: maxAttempts, metrics: metrics}
}

// Limit is the exclusive upper bound of accepted draws for a dictionary of
// size n. Values in [Limit, 2^32) would favour low indices after the modulo.
func Limit(n int) uint64 {
	return space - space%uint64(n)
}

// Index returns a uniformly distributed index in [0, n).
func (s *Sampler) Index(n int) (int, error) {
	if n <= 0 {
		return 0, ErrEmptyDictionary
	}
	limit := Limit(n)

	var buf [4]byte
	for i := 0; i < s.maxAttempts; i++ {
		if _, err := io.ReadFull(s.rand, buf[:]); err != nil {
			return 0, fmt.Errorf("read random bytes: %w", err)
		}
		v := uint64(binary.BigEndian.Uint32(buf[:]))
		if v < limit {
			return int(v % uint64(n)), nil
		}
		s.metrics.IncTickerRejections()
	}
	return 0, fmt.Errorf("%w: %d draws in a row at or above %d", ErrSamplingExhausted, s.maxAttempts, limit)
}

// Draw picks a symbol from dict.
func (s *Sampler) Draw(dict Dictionary) (Symbol, error) {
	i, err := s.Index(len(dict))
	if err != nil {
		return Symbol{}, err
	}
	return dict[i], nil
}
