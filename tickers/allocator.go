package tickers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/models"
)

var ErrNoTickerAvailable = errors.New("no ticker available")

// ActiveStore answers whether a ticker is held by an active game.
type ActiveStore interface {
	ActiveGamesByTicker(ctx context.Context, ticker string, since time.Time) ([]models.Game, error)
}

// Allocator hands out tickers that are unused at check time. It does not
// reserve them: the caller must still guard the insert.
type Allocator struct {
	dict     Dictionary
	sampler  *Sampler
	store    ActiveStore
	attempts int
	window   time.Duration
	now      func() time.Time
	metrics  Metrics
}

func NewAllocator(dict Dictionary, sampler *Sampler, store ActiveStore, attempts int, window time.Duration) *Allocator {
	return &Allocator{
		dict:     dict,
		sampler:  sampler,
		store:    store,
		attempts: attempts,
		window:   window,
		now:      time.Now,
		metrics:  sampler.metrics,
	}
}

// Dictionary exposes the symbol list the allocator draws from.
func (a *Allocator) Dictionary() Dictionary { return a.dict }

// Since is the start of the rolling window in which games count as active.
func (a *Allocator) Since() time.Time {
	return a.now().Add(-a.window)
}

// Allocate draws candidates until one has no active game, up to the
// configured attempt budget.
func (a *Allocator) Allocate(ctx context.Context) (Symbol, error) {
	for i := 0; i < a.attempts; i++ {
		sym, err := a.sampler.Draw(a.dict)
		if err != nil {
			a.metrics.IncTickerAllocationFailures()
			return Symbol{}, err
		}

		games, err := a.store.ActiveGamesByTicker(ctx, sym.Ticker, a.Since())
		if err != nil {
			return Symbol{}, fmt.Errorf("check ticker %s: %w", sym.Ticker, err)
		}
		if len(games) == 0 {
			return sym, nil
		}

		a.metrics.IncTickerCollisions()
		logger.Log.Debugw("ticker collision", "ticker", sym.Ticker, "attempt", i+1)
	}

	a.metrics.IncTickerAllocationFailures()
	return Symbol{}, fmt.Errorf("%w after %d attempts", ErrNoTickerAvailable, a.attempts)
}
