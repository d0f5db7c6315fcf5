package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/veildex/veildex/pkg/exchange"
)

// Store is the Pebble-backed persistence layer for the trading ledger.
// Confidential fields (order amount/price, trade volume/price,
// balances, delivered reveal values) are sealed before they reach disk.
type Store struct {
	db   *pebble.DB
	seal *Seal
}

func NewStore(path string, sealKey []byte) (*Store, error) {
	seal, err := NewSeal(sealKey)
	if err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Store{db: db, seal: seal}, nil
}

func (s *Store) Close() error { return s.db.Close() }

var _ exchange.Store = (*Store)(nil)

// storedOrder is the on-disk form of an order.
type storedOrder struct {
	ID        uint64 `json:"id"`
	Trader    string `json:"trader"`
	Pair      string `json:"pair"`
	Direction int8   `json:"direction"`
	Amount    []byte `json:"amount"` // sealed
	Price     []byte `json:"price"`  // sealed
	Status    int8   `json:"status"`
	CreatedAt int64  `json:"createdAt"`
}

func (s *Store) SaveOrder(o *exchange.Order) error {
	amount, err := s.seal.Encrypt(o.Amount)
	if err != nil {
		return fmt.Errorf("seal amount: %w", err)
	}
	price, err := s.seal.Encrypt(o.Price)
	if err != nil {
		return fmt.Errorf("seal price: %w", err)
	}

	data, err := json.Marshal(storedOrder{
		ID:        o.ID,
		Trader:    o.Trader.Hex(),
		Pair:      o.Pair,
		Direction: int8(o.Direction),
		Amount:    amount,
		Price:     price,
		Status:    int8(o.Status),
		CreatedAt: o.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	if err := s.db.Set(orderKey(o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

func (s *Store) decodeOrder(data []byte) (*exchange.Order, error) {
	var so storedOrder
	if err := json.Unmarshal(data, &so); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	amount, err := s.seal.Decrypt(so.Amount)
	if err != nil {
		return nil, fmt.Errorf("unseal amount: %w", err)
	}
	price, err := s.seal.Decrypt(so.Price)
	if err != nil {
		return nil, fmt.Errorf("unseal price: %w", err)
	}
	return &exchange.Order{
		ID:        so.ID,
		Trader:    common.HexToAddress(so.Trader),
		Pair:      so.Pair,
		Direction: exchange.Direction(so.Direction),
		Amount:    amount,
		Price:     price,
		Status:    exchange.OrderStatus(so.Status),
		CreatedAt: so.CreatedAt,
	}, nil
}

// storedTrade is the on-disk form of a trade.
type storedTrade struct {
	ID        uint64 `json:"id"`
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Pair      string `json:"pair"`
	Volume    []byte `json:"volume"` // sealed
	Price     []byte `json:"price"`  // sealed
	Confirmed bool   `json:"confirmed"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Store) SaveTrade(t *exchange.Trade) error {
	volume, err := s.seal.Encrypt(t.Volume)
	if err != nil {
		return fmt.Errorf("seal volume: %w", err)
	}
	price, err := s.seal.Encrypt(t.Price)
	if err != nil {
		return fmt.Errorf("seal price: %w", err)
	}

	data, err := json.Marshal(storedTrade{
		ID:        t.ID,
		Buyer:     t.Buyer.Hex(),
		Seller:    t.Seller.Hex(),
		Pair:      t.Pair,
		Volume:    volume,
		Price:     price,
		Confirmed: t.Confirmed,
		Timestamp: t.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	if err := s.db.Set(tradeKey(t.Pair, t.Timestamp, t.ID), data, pebble.NoSync); err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

func (s *Store) decodeTrade(data []byte) (*exchange.Trade, error) {
	var st storedTrade
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal trade: %w", err)
	}
	volume, err := s.seal.Decrypt(st.Volume)
	if err != nil {
		return nil, fmt.Errorf("unseal volume: %w", err)
	}
	price, err := s.seal.Decrypt(st.Price)
	if err != nil {
		return nil, fmt.Errorf("unseal price: %w", err)
	}
	return &exchange.Trade{
		ID:        st.ID,
		Buyer:     common.HexToAddress(st.Buyer),
		Seller:    common.HexToAddress(st.Seller),
		Pair:      st.Pair,
		Volume:    volume,
		Price:     price,
		Confirmed: st.Confirmed,
		Timestamp: st.Timestamp,
	}, nil
}

// RecentTrades returns up to limit trades for a pair, newest first.
func (s *Store) RecentTrades(pair string, limit int) ([]*exchange.Trade, error) {
	prefix := tradePrefix(pair)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("trade iter: %w", err)
	}
	defer iter.Close()

	var trades []*exchange.Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		t, err := s.decodeTrade(iter.Value())
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func (s *Store) SaveBalance(trader common.Address, pair string, balance int64) error {
	sealed, err := s.seal.Encrypt(balance)
	if err != nil {
		return fmt.Errorf("seal balance: %w", err)
	}
	if err := s.db.Set(balanceKey(trader, pair), sealed, pebble.Sync); err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}

func (s *Store) SavePrice(pair string, price int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(price))
	if err := s.db.Set(priceKey(pair), buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("save price: %w", err)
	}
	return nil
}

func (s *Store) SaveSeq(name string, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	if err := s.db.Set(seqKey(name), buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("save seq %s: %w", name, err)
	}
	return nil
}

// storedReveal is the on-disk form of a reveal request.
type storedReveal struct {
	ID        uint64 `json:"id"`
	OrderID   uint64 `json:"orderId"`
	Field     string `json:"field"`
	Requester string `json:"requester"`
	Delivered bool   `json:"delivered"`
	Value     []byte `json:"value,omitempty"` // sealed, present once delivered
	CreatedAt int64  `json:"createdAt"`
}

func (s *Store) SaveReveal(r *exchange.RevealRequest) error {
	sr := storedReveal{
		ID:        r.ID,
		OrderID:   r.OrderID,
		Field:     r.Field,
		Requester: r.Requester.Hex(),
		Delivered: r.Delivered,
		CreatedAt: r.CreatedAt,
	}
	if r.Delivered {
		sealed, err := s.seal.Encrypt(r.Value)
		if err != nil {
			return fmt.Errorf("seal reveal value: %w", err)
		}
		sr.Value = sealed
	}

	data, err := json.Marshal(sr)
	if err != nil {
		return fmt.Errorf("marshal reveal: %w", err)
	}
	if err := s.db.Set(revealKey(r.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("save reveal: %w", err)
	}
	return nil
}

func (s *Store) decodeReveal(data []byte) (*exchange.RevealRequest, error) {
	var sr storedReveal
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("unmarshal reveal: %w", err)
	}
	r := &exchange.RevealRequest{
		ID:        sr.ID,
		OrderID:   sr.OrderID,
		Field:     sr.Field,
		Requester: common.HexToAddress(sr.Requester),
		Delivered: sr.Delivered,
		CreatedAt: sr.CreatedAt,
	}
	if sr.Delivered && len(sr.Value) > 0 {
		v, err := s.seal.Decrypt(sr.Value)
		if err != nil {
			return nil, fmt.Errorf("unseal reveal value: %w", err)
		}
		r.Value = v
	}
	return r, nil
}

// Load reads the full persisted state for startup recovery.
func (s *Store) Load() (*exchange.Snapshot, error) {
	snap := &exchange.Snapshot{
		Balances: make(map[exchange.PortfolioKey]int64),
		Prices:   make(map[string]int64),
	}

	if err := s.scan(prefixOrder, func(_, val []byte) error {
		o, err := s.decodeOrder(val)
		if err != nil {
			return err
		}
		snap.Orders = append(snap.Orders, o)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scan(prefixBalance, func(key, val []byte) error {
		rest := strings.TrimPrefix(string(key), prefixBalance)
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 || !common.IsHexAddress(parts[0]) {
			return fmt.Errorf("malformed balance key %q", key)
		}
		bal, err := s.seal.Decrypt(val)
		if err != nil {
			return fmt.Errorf("unseal balance %q: %w", key, err)
		}
		k := exchange.PortfolioKey{Trader: common.HexToAddress(parts[0]), Pair: parts[1]}
		snap.Balances[k] = bal
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scan(prefixPrice, func(key, val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("malformed price value for %q", key)
		}
		pair := strings.TrimPrefix(string(key), prefixPrice)
		snap.Prices[pair] = int64(binary.BigEndian.Uint64(val))
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scan(prefixReveal, func(_, val []byte) error {
		r, err := s.decodeReveal(val)
		if err != nil {
			return err
		}
		snap.Reveals = append(snap.Reveals, r)
		return nil
	}); err != nil {
		return nil, err
	}

	var err error
	if snap.OrderSeq, err = s.loadSeq(exchange.SeqOrders); err != nil {
		return nil, err
	}
	if snap.TradeSeq, err = s.loadSeq(exchange.SeqTrades); err != nil {
		return nil, err
	}
	if snap.RevealSeq, err = s.loadSeq(exchange.SeqReveals); err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *Store) loadSeq(name string) (uint64, error) {
	val, closer, err := s.db.Get(seqKey(name))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load seq %s: %w", name, err)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("malformed seq %s", name)
	}
	return binary.BigEndian.Uint64(val), nil
}

func (s *Store) scan(prefix string, fn func(key, val []byte) error) error {
	p := []byte(prefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: p,
		UpperBound: keyUpperBound(p),
	})
	if err != nil {
		return fmt.Errorf("iter %s: %w", prefix, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}
