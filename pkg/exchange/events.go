package exchange

// EventType identifies an emitted notification.
type EventType string

const (
	EventOrderPlaced   EventType = "order_placed"
	EventTradeExecuted EventType = "trade_executed"
	EventQuickTrade    EventType = "quick_trade_executed"
	EventPriceUpdated  EventType = "price_updated"
)

// Event is an externally observable notification. It carries
// non-sensitive fields only: never amounts, prices or balances.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	OrderID   uint64    `json:"orderId,omitempty"`
	TradeID   uint64    `json:"tradeId,omitempty"`
	Trader    string    `json:"trader,omitempty"`
	Buyer     string    `json:"buyer,omitempty"`
	Seller    string    `json:"seller,omitempty"`
	Pair      string    `json:"pair,omitempty"`
	Direction string    `json:"direction,omitempty"`
}
