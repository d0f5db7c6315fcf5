package exchange

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// MarketMaker is the sentinel counterparty recorded on quick trades and
// policy fills. No real account holds this address.
var MarketMaker = common.HexToAddress("0x0000000000000000000000000000000000000001")

// Direction of an order: Long buys the pair, Short sells it.
type Direction int8

const (
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}

// ParseDirection accepts the wire spellings used by the API.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	default:
		return 0, fmt.Errorf("%w: direction %q", ErrValidation, s)
	}
}

// OrderStatus is the lifecycle state of an order. Transitions are
// active → executed or active → cancelled only, never backward.
type OrderStatus int8

const (
	OrderActive OrderStatus = iota
	OrderExecuted
	OrderCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderActive:
		return "active"
	case OrderExecuted:
		return "executed"
	case OrderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is a submitted limit order. Amount and Price are confidential:
// they are sealed at rest and disclosed only to the owner or the
// privileged account.
type Order struct {
	ID        uint64
	Trader    common.Address
	Pair      string
	Direction Direction
	Amount    int64
	Price     int64
	Status    OrderStatus
	CreatedAt int64 // Unix milliseconds
}

func (o *Order) IsActive() bool { return o.Status == OrderActive }

// Trade is an executed fill. Immutable once recorded. One counterparty
// may be the MarketMaker sentinel.
type Trade struct {
	ID        uint64
	Buyer     common.Address
	Seller    common.Address
	Pair      string
	Volume    int64
	Price     int64
	Confirmed bool
	Timestamp int64 // Unix milliseconds
}

// PortfolioKey identifies one (trader, pair) running balance.
type PortfolioKey struct {
	Trader common.Address
	Pair   string
}

func (k PortfolioKey) String() string {
	return fmt.Sprintf("%s/%s", k.Trader.Hex(), k.Pair)
}

// OrderInfo is the disclosure-filtered view of an order returned by
// queries. Amount and Price are zero and Disclosed is false unless the
// caller is the order's owner or the privileged account.
type OrderInfo struct {
	ID        uint64
	Trader    common.Address
	Pair      string
	Direction Direction
	Status    OrderStatus
	CreatedAt int64
	Amount    int64
	Price     int64
	Disclosed bool
}

// TradeInfo is the disclosure-filtered view of a trade. Volume and
// Price are zero unless the caller is a counterparty or privileged.
type TradeInfo struct {
	ID        uint64
	Buyer     common.Address
	Seller    common.Address
	Pair      string
	Timestamp int64
	Volume    int64
	Price     int64
	Disclosed bool
}
