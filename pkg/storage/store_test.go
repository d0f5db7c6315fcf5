package storage_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veildex/veildex/pkg/exchange"
	"github.com/veildex/veildex/pkg/storage"
)

var (
	testKey = bytes.Repeat([]byte{0x42}, 32)
	alice   = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob     = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewStore(filepath.Join(t.TempDir(), "ledger.db"), testKey)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRecoverState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := storage.NewStore(path, testKey)
	require.NoError(t, err)

	order := &exchange.Order{
		ID:        1,
		Trader:    alice,
		Pair:      "BTC/ETH",
		Direction: exchange.Short,
		Amount:    4,
		Price:     16,
		Status:    exchange.OrderActive,
		CreatedAt: 1700000000000,
	}
	require.NoError(t, s.SaveOrder(order))

	trade := &exchange.Trade{
		ID:        1,
		Buyer:     alice,
		Seller:    exchange.MarketMaker,
		Pair:      "BTC/ETH",
		Volume:    10,
		Price:     15,
		Confirmed: true,
		Timestamp: 1700000000001,
	}
	require.NoError(t, s.SaveTrade(trade))

	require.NoError(t, s.SaveBalance(alice, "BTC/ETH", 10))
	require.NoError(t, s.SaveBalance(bob, "ETH/USDT", -3))
	require.NoError(t, s.SavePrice("BTC/ETH", 15))
	require.NoError(t, s.SaveSeq(exchange.SeqOrders, 1))
	require.NoError(t, s.SaveSeq(exchange.SeqTrades, 1))

	reveal := &exchange.RevealRequest{
		ID:        1,
		OrderID:   1,
		Field:     exchange.FieldAmount,
		Requester: alice,
		Delivered: true,
		Value:     4,
		CreatedAt: 1700000000002,
	}
	require.NoError(t, s.SaveReveal(reveal))
	require.NoError(t, s.SaveSeq(exchange.SeqReveals, 1))

	// Reopen and recover.
	require.NoError(t, s.Close())
	reopened, err := storage.NewStore(path, testKey)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Load()
	require.NoError(t, err)

	require.Len(t, snap.Orders, 1)
	assert.Equal(t, order, snap.Orders[0])

	assert.Equal(t, int64(10), snap.Balances[exchange.PortfolioKey{Trader: alice, Pair: "BTC/ETH"}])
	assert.Equal(t, int64(-3), snap.Balances[exchange.PortfolioKey{Trader: bob, Pair: "ETH/USDT"}])
	assert.Equal(t, int64(15), snap.Prices["BTC/ETH"])
	assert.Equal(t, uint64(1), snap.OrderSeq)
	assert.Equal(t, uint64(1), snap.TradeSeq)
	assert.Equal(t, uint64(1), snap.RevealSeq)

	require.Len(t, snap.Reveals, 1)
	assert.Equal(t, reveal, snap.Reveals[0])

	trades, err := reopened.RecentTrades("BTC/ETH", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, trade, trades[0])
}

func TestStoreEmptyLoad(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Orders)
	assert.Empty(t, snap.Balances)
	assert.Empty(t, snap.Prices)
	assert.Zero(t, snap.OrderSeq)
	assert.Zero(t, snap.TradeSeq)
}

func TestStoreOrderOverwrite(t *testing.T) {
	s := newTestStore(t)

	order := &exchange.Order{ID: 7, Trader: alice, Pair: "BTC/ETH", Direction: exchange.Long, Amount: 2, Price: 15, Status: exchange.OrderActive}
	require.NoError(t, s.SaveOrder(order))

	order.Status = exchange.OrderCancelled
	require.NoError(t, s.SaveOrder(order))

	snap, err := s.Load()
	require.NoError(t, err)
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, exchange.OrderCancelled, snap.Orders[0].Status)
}

func TestRecentTradesOrderAndLimit(t *testing.T) {
	s := newTestStore(t)

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.SaveTrade(&exchange.Trade{
			ID:        uint64(i),
			Buyer:     alice,
			Seller:    exchange.MarketMaker,
			Pair:      "ETH/USDT",
			Volume:    i,
			Price:     3500,
			Confirmed: true,
			Timestamp: 1700000000000 + i,
		}))
	}
	// A trade on another pair must not leak into the scan.
	require.NoError(t, s.SaveTrade(&exchange.Trade{
		ID: 6, Buyer: bob, Seller: exchange.MarketMaker, Pair: "BTC/ETH",
		Volume: 1, Price: 15, Confirmed: true, Timestamp: 1700000000010,
	}))

	trades, err := s.RecentTrades("ETH/USDT", 3)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, uint64(5), trades[0].ID, "newest first")
	assert.Equal(t, uint64(4), trades[1].ID)
	assert.Equal(t, uint64(3), trades[2].ID)
}

func TestStoreRejectsBadKey(t *testing.T) {
	_, err := storage.NewStore(filepath.Join(t.TempDir(), "db"), []byte("too-short"))
	assert.Error(t, err)
}
