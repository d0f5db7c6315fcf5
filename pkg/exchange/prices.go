package exchange

import (
	"sort"
	"sync"
)

// PriceTable holds the current market price per pair. Seeded at
// construction; mutated only through Ledger.UpdatePrice.
type PriceTable struct {
	mu     sync.RWMutex
	prices map[string]int64
}

func NewPriceTable(seed map[string]int64) *PriceTable {
	prices := make(map[string]int64, len(seed))
	for pair, p := range seed {
		if p > 0 {
			prices[pair] = p
		}
	}
	return &PriceTable{prices: prices}
}

// Get returns the current price for a pair, 0 if unknown.
func (pt *PriceTable) Get(pair string) int64 {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.prices[pair]
}

func (pt *PriceTable) Set(pair string, price int64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.prices[pair] = price
}

// Pairs returns all known pair names in sorted order.
func (pt *PriceTable) Pairs() []string {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	pairs := make([]string, 0, len(pt.prices))
	for pair := range pt.prices {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	return pairs
}

func (pt *PriceTable) Count() int {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return len(pt.prices)
}
