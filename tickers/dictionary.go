// Package tickers allocates game ticker symbols: an unbiased draw over a fixed
// dictionary followed by a uniqueness check against active games.
package tickers

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Symbol is one dictionary entry.
type Symbol struct {
	Ticker  string `json:"ticker"`
	Company string `json:"company"`
}

// Dictionary is the fixed list tickers are drawn from.
type Dictionary []Symbol

//go:embed ticker_pairs.json
var tickerPairs []byte

var ErrEmptyDictionary = errors.New("ticker dictionary is empty")

// ParseDictionary reads a JSON array of [ticker, company] pairs.
func ParseDictionary(data []byte) (Dictionary, error) {
	var pairs [][]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("decode ticker pairs: %w", err)
	}
	if len(pairs) == 0 {
		return nil, ErrEmptyDictionary
	}
	dict := make(Dictionary, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("ticker pair %d: expected two entries, got %d", i, len(p))
		}
		dict = append(dict, Symbol{Ticker: p[0], Company: p[1]})
	}
	return dict, nil
}

// Default returns the embedded dictionary.
func Default() Dictionary {
	dict, err := ParseDictionary(tickerPairs)
	if err != nil {
		panic("embedded ticker dictionary: " + err.Error())
	}
	return dict
}

// Lookup finds the entry for ticker.
func (d Dictionary) Lookup(ticker string) (Symbol, bool) {
	for _, s := range d {
		if s.Ticker == ticker {
			return s, true
		}
	}
	return Symbol{}, false
}
