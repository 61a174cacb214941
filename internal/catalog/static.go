package catalog

import (
	"context"
	"math/rand"
	"sort"
)

// Static is a fixed in-memory catalog. Used for testing.
type Static struct {
	stocks []Stock
	rng    *rand.Rand
}

// NewStatic builds a catalog from a code -> name map.
func NewStatic(stocks map[string]string, rng *rand.Rand) *Static {
	s := &Static{rng: rng}
	for code, name := range stocks {
		s.stocks = append(s.stocks, Stock{Code: code, Name: name})
	}
	sort.Slice(s.stocks, func(i, j int) bool { return s.stocks[i].Code < s.stocks[j].Code })
	return s
}

func (s *Static) Lookup(_ context.Context, identifier string) (Stock, error) {
	for _, stk := range s.stocks {
		if stk.Code == identifier {
			return stk, nil
		}
	}
	for _, stk := range s.stocks {
		if stk.Name == identifier {
			return stk, nil
		}
	}
	return Stock{}, ErrStockNotFound
}

func (s *Static) Random(_ context.Context) (Stock, error) {
	if len(s.stocks) == 0 {
		return Stock{}, ErrCatalogEmpty
	}
	return s.stocks[s.rng.Intn(len(s.stocks))], nil
}
