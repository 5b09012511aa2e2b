package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SymbolLists holds the symbol sets that drive refresh policy.
//
// Major symbols bypass the freshness gate. Popular symbols are refreshed
// by the background job, in order.
type SymbolLists struct {
	Major   []string `yaml:"major" default:"[\"aapl\",\"googl\",\"amzn\",\"nvda\",\"tsla\",\"msft\",\"meta\",\"spot\"]" validate:"dive,required,max=20"`
	Popular []string `yaml:"popular" default:"[\"btc-usd\",\"eth-usd\",\"aapl\",\"googl\",\"amzn\",\"nvda\",\"tsla\",\"msft\",\"meta\",\"spot\",\"nflx\",\"dis\",\"ko\",\"mcd\",\"v\",\"jnj\",\"wmt\",\"intc\",\"adbe\",\"crm\"]" validate:"dive,required,max=20"`
}

var symbolValidator = validator.New()

// LoadSymbols reads the symbol lists from a YAML file.
// An empty path yields the built-in lists; lists missing from the file
// fall back to the built-in ones.
func LoadSymbols(path string) (*SymbolLists, error) {
	lists := &SymbolLists{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read symbols file: %w", err)
		}
		if err := yaml.Unmarshal(data, lists); err != nil {
			return nil, fmt.Errorf("parse symbols file: %w", err)
		}
	}

	if err := defaults.Set(lists); err != nil {
		return nil, fmt.Errorf("apply symbol defaults: %w", err)
	}

	lists.Major = normalizeList(lists.Major)
	lists.Popular = normalizeList(lists.Popular)

	if err := symbolValidator.Struct(lists); err != nil {
		return nil, fmt.Errorf("invalid symbols file: %w", err)
	}

	return lists, nil
}

// IsMajor reports whether the normalized ticker is on the major list.
func (s *SymbolLists) IsMajor(ticker string) bool {
	for _, m := range s.Major {
		if m == ticker {
			return true
		}
	}
	return false
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
