package exchange

import "github.com/ethereum/go-ethereum/common"

// Sequence names used with SaveSeq.
const (
	SeqOrders  = "orders"
	SeqTrades  = "trades"
	SeqReveals = "reveals"
)

// Store persists ledger state between restarts. The ledger serializes
// all calls; implementations only need to make each call durable.
type Store interface {
	SaveOrder(o *Order) error
	SaveTrade(t *Trade) error
	SaveBalance(trader common.Address, pair string, balance int64) error
	SavePrice(pair string, price int64) error
	SaveSeq(name string, v uint64) error
	SaveReveal(r *RevealRequest) error

	// RecentTrades returns up to limit trades for a pair, newest first.
	RecentTrades(pair string, limit int) ([]*Trade, error)

	// Load reads the full persisted state for startup recovery.
	Load() (*Snapshot, error)

	Close() error
}

// Snapshot is the persisted state handed back at startup.
type Snapshot struct {
	Orders    []*Order
	Balances  map[PortfolioKey]int64
	Prices    map[string]int64
	Reveals   []*RevealRequest
	OrderSeq  uint64
	TradeSeq  uint64
	RevealSeq uint64
}

// NopStore discards all writes and loads nothing. Used by tests and
// memory-only runs.
type NopStore struct{}

func (NopStore) SaveOrder(*Order) error                          { return nil }
func (NopStore) SaveTrade(*Trade) error                          { return nil }
func (NopStore) SaveBalance(common.Address, string, int64) error { return nil }
func (NopStore) SavePrice(string, int64) error                   { return nil }
func (NopStore) SaveSeq(string, uint64) error                    { return nil }
func (NopStore) SaveReveal(*RevealRequest) error                 { return nil }
func (NopStore) RecentTrades(string, int) ([]*Trade, error)      { return nil, nil }
func (NopStore) Load() (*Snapshot, error)                        { return &Snapshot{}, nil }
func (NopStore) Close() error                                    { return nil }

var _ Store = NopStore{}
