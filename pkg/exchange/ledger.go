package exchange

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/veildex/veildex/pkg/util"
)

// Params configures a Ledger. Zero-value fields fall back to defaults:
// ImmediateOrQueue policy, real clock, no-op logger.
type Params struct {
	Admin      common.Address
	SeedPrices map[string]int64
	Policy     ExecutionPolicy
	Clock      util.Clock
	Logger     *zap.SugaredLogger
}

// Ledger is the serialized submission path over the three ledgers
// (orders, trades, portfolio) and the price table. One mutex covers
// each full submission: no overlapping execution, no partial apply.
type Ledger struct {
	mu     sync.RWMutex
	log    *zap.SugaredLogger
	clock  util.Clock
	store  Store
	policy ExecutionPolicy
	admin  common.Address
	prices *PriceTable

	orders    map[uint64]*Order
	resting   map[string][]uint64 // pair → active limit order ids, ascending
	portfolio map[PortfolioKey]int64
	reveals   map[uint64]*RevealRequest

	orderSeq  uint64
	tradeSeq  uint64
	revealSeq uint64

	// OnEvent, when set, receives every emitted notification. Called
	// after the submission's lock is released; must not block for long.
	OnEvent func(Event)
}

// NewLedger builds a ledger on top of a store, recovering persisted
// state. The price table is seeded from Params only when the store
// holds no prices, so privileged updates survive restarts.
func NewLedger(store Store, p Params) (*Ledger, error) {
	if store == nil {
		store = NopStore{}
	}
	if p.Policy == nil {
		p.Policy = ImmediateOrQueue{}
	}
	if p.Clock == nil {
		p.Clock = util.RealClock{}
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop().Sugar()
	}

	snap, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	l := &Ledger{
		log:       p.Logger,
		clock:     p.Clock,
		store:     store,
		policy:    p.Policy,
		admin:     p.Admin,
		orders:    make(map[uint64]*Order),
		resting:   make(map[string][]uint64),
		portfolio: make(map[PortfolioKey]int64),
		reveals:   make(map[uint64]*RevealRequest),
		orderSeq:  snap.OrderSeq,
		tradeSeq:  snap.TradeSeq,
		revealSeq: snap.RevealSeq,
	}

	for _, o := range snap.Orders {
		l.orders[o.ID] = o
		if o.IsActive() {
			l.resting[o.Pair] = append(l.resting[o.Pair], o.ID)
		}
	}
	for pair := range l.resting {
		ids := l.resting[pair]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	for k, bal := range snap.Balances {
		l.portfolio[k] = bal
	}
	for _, r := range snap.Reveals {
		l.reveals[r.ID] = r
	}

	if len(snap.Prices) > 0 {
		l.prices = NewPriceTable(snap.Prices)
	} else {
		l.prices = NewPriceTable(p.SeedPrices)
		for _, pair := range l.prices.Pairs() {
			if err := store.SavePrice(pair, l.prices.Get(pair)); err != nil {
				return nil, fmt.Errorf("persist seed price %s: %w", pair, err)
			}
		}
	}

	l.log.Infow("ledger_ready",
		"orders", len(l.orders),
		"balances", len(l.portfolio),
		"pairs", l.prices.Count(),
		"order_seq", l.orderSeq,
		"trade_seq", l.tradeSeq)
	return l, nil
}

func (l *Ledger) emit(events []Event) {
	if l.OnEvent == nil {
		return
	}
	for _, e := range events {
		l.OnEvent(e)
	}
}

// PlaceOrder submits a limit order. Validation rejects non-positive
// amount or price and empty pair names before any state changes. The
// emitted notification carries (id, trader, pair, direction) only.
func (l *Ledger) PlaceOrder(caller common.Address, pair string, dir Direction, amount, price int64) (uint64, error) {
	l.mu.Lock()
	id, events, err := l.placeOrderLocked(caller, pair, dir, amount, price)
	l.mu.Unlock()
	l.emit(events)
	return id, err
}

func (l *Ledger) placeOrderLocked(caller common.Address, pair string, dir Direction, amount, price int64) (uint64, []Event, error) {
	if err := validateSubmission(pair, dir, amount); err != nil {
		return 0, nil, err
	}
	if price <= 0 {
		return 0, nil, fmt.Errorf("%w: limit price must be positive, got %d", ErrValidation, price)
	}

	now := l.clock.Now().UnixMilli()
	l.orderSeq++
	o := &Order{
		ID:        l.orderSeq,
		Trader:    caller,
		Pair:      pair,
		Direction: dir,
		Amount:    amount,
		Price:     price,
		Status:    OrderActive,
		CreatedAt: now,
	}
	l.orders[o.ID] = o

	events := []Event{{
		Type:      EventOrderPlaced,
		Timestamp: now,
		OrderID:   o.ID,
		Trader:    caller.Hex(),
		Pair:      pair,
		Direction: dir.String(),
	}}

	market := l.prices.Get(pair)
	if l.policy.ShouldFill(o, market) {
		t := l.executeLocked(o, market, now)
		events = append(events, tradeEvent(t))
	} else {
		l.resting[pair] = append(l.resting[pair], o.ID)
	}

	if err := l.store.SaveOrder(o); err != nil {
		return o.ID, events, fmt.Errorf("persist order: %w", err)
	}
	if err := l.store.SaveSeq(SeqOrders, l.orderSeq); err != nil {
		return o.ID, events, fmt.Errorf("persist order seq: %w", err)
	}

	l.log.Infow("order_placed", "order_id", o.ID, "pair", pair, "direction", dir.String(), "status", o.Status.String())
	return o.ID, events, nil
}

// QuickTrade executes unconditionally at the current market price
// against the MarketMaker sentinel. Produces exactly one trade and no
// order record. Fails with a validation error if the pair is unknown.
func (l *Ledger) QuickTrade(caller common.Address, pair string, dir Direction, amount int64) (uint64, error) {
	l.mu.Lock()
	id, events, err := l.quickTradeLocked(caller, pair, dir, amount)
	l.mu.Unlock()
	l.emit(events)
	return id, err
}

func (l *Ledger) quickTradeLocked(caller common.Address, pair string, dir Direction, amount int64) (uint64, []Event, error) {
	if err := validateSubmission(pair, dir, amount); err != nil {
		return 0, nil, err
	}
	market := l.prices.Get(pair)
	if market <= 0 {
		return 0, nil, fmt.Errorf("%w: no market price for pair %q", ErrValidation, pair)
	}

	now := l.clock.Now().UnixMilli()
	t := l.recordTradeLocked(caller, pair, dir, amount, market, now)

	events := []Event{{
		Type:      EventQuickTrade,
		Timestamp: now,
		TradeID:   t.ID,
		Trader:    caller.Hex(),
		Pair:      pair,
		Direction: dir.String(),
	}}

	l.log.Infow("quick_trade", "trade_id", t.ID, "pair", pair, "direction", dir.String())
	return t.ID, events, nil
}

// CancelOrder flips an active order to cancelled. Owner only.
func (l *Ledger) CancelOrder(caller common.Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if o.Trader != caller {
		return fmt.Errorf("%w: account %s does not own order %d", ErrUnauthorized, caller.Hex(), id)
	}
	if !o.IsActive() {
		return fmt.Errorf("%w: order %d is %s", ErrNotActive, id, o.Status)
	}

	o.Status = OrderCancelled
	l.removeRestingLocked(o.Pair, id)

	if err := l.store.SaveOrder(o); err != nil {
		return fmt.Errorf("persist order: %w", err)
	}

	l.log.Infow("order_cancelled", "order_id", id)
	return nil
}

// UpdatePrice sets a pair's market price. Privileged account only.
// Resting limit orders for the pair are re-evaluated in id order, and
// any that now cross fill at the new price.
func (l *Ledger) UpdatePrice(caller common.Address, pair string, price int64) error {
	l.mu.Lock()
	events, err := l.updatePriceLocked(caller, pair, price)
	l.mu.Unlock()
	l.emit(events)
	return err
}

func (l *Ledger) updatePriceLocked(caller common.Address, pair string, price int64) ([]Event, error) {
	if caller != l.admin {
		return nil, fmt.Errorf("%w: account %s cannot update prices", ErrUnauthorized, caller.Hex())
	}
	if strings.TrimSpace(pair) == "" {
		return nil, fmt.Errorf("%w: empty pair", ErrValidation)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive, got %d", ErrValidation, price)
	}

	now := l.clock.Now().UnixMilli()
	l.prices.Set(pair, price)
	if err := l.store.SavePrice(pair, price); err != nil {
		return nil, fmt.Errorf("persist price: %w", err)
	}

	events := []Event{{
		Type:      EventPriceUpdated,
		Timestamp: now,
		Pair:      pair,
	}}

	// Fill resting orders that cross at the new price, oldest first.
	var still []uint64
	for _, id := range l.resting[pair] {
		o := l.orders[id]
		if o == nil || !o.IsActive() {
			continue
		}
		if !l.policy.ShouldFill(o, price) {
			still = append(still, id)
			continue
		}
		t := l.executeLocked(o, price, now)
		events = append(events, tradeEvent(t))
		if err := l.store.SaveOrder(o); err != nil {
			l.log.Errorw("persist_filled_order_failed", "order_id", o.ID, "err", err)
		}
	}
	if len(still) > 0 {
		l.resting[pair] = still
	} else {
		delete(l.resting, pair)
	}

	l.log.Infow("price_updated", "pair", pair, "price", price, "fills", len(events)-1)
	return events, nil
}

// executeLocked fills an active order at the given market price:
// records the trade, adjusts the portfolio, flips status to executed.
// Caller persists the order afterwards.
func (l *Ledger) executeLocked(o *Order, price int64, now int64) *Trade {
	t := l.recordTradeLocked(o.Trader, o.Pair, o.Direction, o.Amount, price, now)
	o.Status = OrderExecuted
	return t
}

// recordTradeLocked appends a trade and applies its signed amount to
// the (trader, pair) balance: add for long fills, subtract for short.
// Balances are signed and may go negative; there is no floor.
func (l *Ledger) recordTradeLocked(trader common.Address, pair string, dir Direction, amount, price, now int64) *Trade {
	l.tradeSeq++
	t := &Trade{
		ID:        l.tradeSeq,
		Pair:      pair,
		Volume:    amount,
		Price:     price,
		Confirmed: true,
		Timestamp: now,
	}
	if dir == Long {
		t.Buyer, t.Seller = trader, MarketMaker
	} else {
		t.Buyer, t.Seller = MarketMaker, trader
	}

	key := PortfolioKey{Trader: trader, Pair: pair}
	l.portfolio[key] += int64(dir) * amount

	if err := l.store.SaveTrade(t); err != nil {
		l.log.Errorw("persist_trade_failed", "trade_id", t.ID, "err", err)
	}
	if err := l.store.SaveSeq(SeqTrades, l.tradeSeq); err != nil {
		l.log.Errorw("persist_trade_seq_failed", "err", err)
	}
	if err := l.store.SaveBalance(trader, pair, l.portfolio[key]); err != nil {
		l.log.Errorw("persist_balance_failed", "key", key.String(), "err", err)
	}

	return t
}

func (l *Ledger) removeRestingLocked(pair string, id uint64) {
	ids := l.resting[pair]
	for i, rid := range ids {
		if rid == id {
			l.resting[pair] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func tradeEvent(t *Trade) Event {
	return Event{
		Type:      EventTradeExecuted,
		Timestamp: t.Timestamp,
		TradeID:   t.ID,
		Buyer:     t.Buyer.Hex(),
		Seller:    t.Seller.Hex(),
		Pair:      t.Pair,
	}
}

func validateSubmission(pair string, dir Direction, amount int64) error {
	if strings.TrimSpace(pair) == "" {
		return fmt.Errorf("%w: empty pair", ErrValidation)
	}
	if dir != Long && dir != Short {
		return fmt.Errorf("%w: invalid direction", ErrValidation)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrValidation, amount)
	}
	return nil
}

// ==============================
// Query surface (read-only)
// ==============================

// GetOrder returns the public summary of an order. Amount and price
// are disclosed only to the owner or the privileged account.
func (l *Ledger) GetOrder(caller common.Address, id uint64) (OrderInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[id]
	if !ok {
		return OrderInfo{}, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return l.orderInfoLocked(caller, o), nil
}

func (l *Ledger) orderInfoLocked(caller common.Address, o *Order) OrderInfo {
	info := OrderInfo{
		ID:        o.ID,
		Trader:    o.Trader,
		Pair:      o.Pair,
		Direction: o.Direction,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
	}
	if caller == o.Trader || caller == l.admin {
		info.Amount = o.Amount
		info.Price = o.Price
		info.Disclosed = true
	}
	return info
}

// ListOrders returns all orders for a trader, ascending by id. Only
// the trader themselves or the privileged account may list them.
func (l *Ledger) ListOrders(caller, trader common.Address) ([]OrderInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if caller != trader && caller != l.admin {
		return nil, fmt.Errorf("%w: account %s cannot list orders of %s", ErrUnauthorized, caller.Hex(), trader.Hex())
	}

	var out []OrderInfo
	for _, o := range l.orders {
		if o.Trader == trader {
			out = append(out, l.orderInfoLocked(caller, o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetBalance returns the running balance for (trader, pair), 0 if no
// entry exists. Restricted to the trader themselves or the privileged
// account.
func (l *Ledger) GetBalance(caller, trader common.Address, pair string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if caller != trader && caller != l.admin {
		return 0, fmt.Errorf("%w: account %s cannot read balance of %s", ErrUnauthorized, caller.Hex(), trader.Hex())
	}
	return l.portfolio[PortfolioKey{Trader: trader, Pair: pair}], nil
}

// IsPrivileged reports whether addr is the privileged account.
func (l *Ledger) IsPrivileged(addr common.Address) bool {
	return addr == l.admin
}

// GetPrice returns the market price for a pair, 0 if unknown. Public.
func (l *Ledger) GetPrice(pair string) int64 {
	return l.prices.Get(pair)
}

// Pairs returns all known pairs. Public.
func (l *Ledger) Pairs() []string {
	return l.prices.Pairs()
}

// Counts returns the total number of orders and trades ever recorded.
// Public.
func (l *Ledger) Counts() (orders, trades uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.orderSeq, l.tradeSeq
}

// RecentTrades returns up to limit trades for a pair, newest first.
// Volume and price are disclosed per trade only to its counterparties
// or the privileged account.
func (l *Ledger) RecentTrades(caller common.Address, pair string, limit int) ([]TradeInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	trades, err := l.store.RecentTrades(pair, limit)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}

	l.mu.RLock()
	admin := l.admin
	l.mu.RUnlock()

	out := make([]TradeInfo, 0, len(trades))
	for _, t := range trades {
		info := TradeInfo{
			ID:        t.ID,
			Buyer:     t.Buyer,
			Seller:    t.Seller,
			Pair:      t.Pair,
			Timestamp: t.Timestamp,
		}
		if caller == t.Buyer || caller == t.Seller || caller == admin {
			info.Volume = t.Volume
			info.Price = t.Price
			info.Disclosed = true
		}
		out = append(out, info)
	}
	return out, nil
}
