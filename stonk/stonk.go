// Package stonk generates the deterministic price history shown for a ticker.
package stonk

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
)

const (
	numWinds        = 20
	numVolatilities = 20
	numPoints       = 100
)

// Stonk is a price series fully determined by its seed.
type Stonk struct {
	Data []float64
	Min  float64
	Max  float64

	rng          *rand.Rand
	winds        []float64
	volatilities []float64
	overall      float64
	initialValue float64
}

func seedSource(seed string) rand.Source {
	h := fnv.New128a()
	h.Write([]byte(seed))
	sum := h.Sum(nil)
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(sum[i])
		lo = lo<<8 | uint64(sum[8+i])
	}
	return rand.NewPCG(hi, lo)
}

func New(seed string) *Stonk {
	s := &Stonk{rng: rand.New(seedSource(seed))}

	s.winds = make([]float64, numWinds)
	for i := range s.winds {
		s.winds[i] = (s.rng.Float64() - 0.5) / 50
	}
	s.volatilities = make([]float64, numVolatilities)
	for i := range s.volatilities {
		s.volatilities[i] = s.rng.Float64() / 50
	}
	// biased positive, most stonks gain value over time
	s.overall = s.rng.Float64() - 0.25
	s.initialValue = s.rng.Float64() * s.rng.Float64() * 1000

	s.initPoints()
	return s
}

func (s *Stonk) initPoints() {
	var (
		trajectory float64
		previous   = s.initialValue
	)
	next := func(wind, jitter, volatility float64) float64 {
		if previous == 0 {
			return 0
		}
		value := math.Max(previous*(1+trajectory)+jitter*previous*volatility, 0)
		previous = value
		trajectory += wind + s.overall/100
		// decays towards zero
		trajectory *= 0.9
		return value
	}

	s.Data = make([]float64, 0, numPoints)
	s.Min, s.Max = math.MaxFloat64, -math.MaxFloat64
	for i := 0; i < numPoints; i++ {
		wind := s.winds[i/numWinds]
		volatility := s.volatilities[i/numVolatilities]
		jitter := (s.rng.Float64()*10 - 5) * (s.rng.Float64()*10 - 5)
		v := next(wind, jitter, volatility)
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		s.Data = append(s.Data, v)
	}
}

// Last is the most recent price.
func (s *Stonk) Last() float64 {
	return s.Data[len(s.Data)-1]
}

// Change is the relative move over the whole series, 0 when it started at 0.
func (s *Stonk) Change() float64 {
	if s.Data[0] == 0 {
		return 0
	}
	return s.Last()/s.Data[0] - 1
}

var bars = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the series resampled to width cells.
func (s *Stonk) Sparkline(width int) string {
	if width <= 0 {
		return ""
	}
	span := s.Max - s.Min
	var b strings.Builder
	for i := 0; i < width; i++ {
		v := s.Data[i*len(s.Data)/width]
		level := 0
		if span > 0 {
			level = int((v - s.Min) / span * float64(len(bars)-1))
		}
		b.WriteRune(bars[level])
	}
	return b.String()
}
