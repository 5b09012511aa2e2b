package contracts

import (
	"fmt"
	"regexp"
	"strings"
)

// Symbol is a normalized ticker.
//
// Ticker is what providers are queried with ("btc-usd"); Key is the
// storage identity of the cache entry ("btc_usd").
type Symbol struct {
	Ticker string `json:"ticker"`
	Key    string `json:"key"`
}

var tickerPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.=^-]{0,19}$`)

// ParseSymbol normalizes raw user input into a Symbol.
// Matching is case-insensitive; hyphens map to underscores in the key.
func ParseSymbol(raw string) (Symbol, error) {
	ticker := strings.ToLower(strings.TrimSpace(raw))
	if ticker == "" {
		return Symbol{}, NewError(KindInput, "parse symbol", fmt.Errorf("symbol is required"))
	}
	if !tickerPattern.MatchString(ticker) {
		return Symbol{}, NewError(KindInput, "parse symbol", fmt.Errorf("invalid symbol %q", raw))
	}

	return Symbol{
		Ticker: ticker,
		Key:    strings.ReplaceAll(ticker, "-", "_"),
	}, nil
}

func (s Symbol) String() string {
	return s.Ticker
}
