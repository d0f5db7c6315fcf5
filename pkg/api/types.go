package api

// Request and response types for REST endpoints and WebSocket messages.
// Confidential fields use pointers: absent means not disclosed to the
// caller.

// ==============================
// Requests
// ==============================

type PlaceOrderRequest struct {
	Pair      string `json:"pair"`
	Direction string `json:"direction"` // "long" or "short"
	Amount    int64  `json:"amount"`
	Price     int64  `json:"price"`
}

type QuickTradeRequest struct {
	Pair      string `json:"pair"`
	Direction string `json:"direction"`
	Amount    int64  `json:"amount"`
}

type CancelOrderRequest struct {
	OrderID uint64 `json:"orderId"`
}

type UpdatePriceRequest struct {
	Pair  string `json:"pair"`
	Price int64  `json:"price"`
}

type RevealRequestBody struct {
	OrderID uint64 `json:"orderId"`
	Field   string `json:"field"` // "amount" or "price"
}

type OracleCallbackRequest struct {
	RequestID uint64 `json:"requestId"`
	Value     int64  `json:"value"`
}

// ==============================
// Responses
// ==============================

type PlaceOrderResponse struct {
	OrderID uint64 `json:"orderId"`
	Status  string `json:"status"`
}

type QuickTradeResponse struct {
	TradeID uint64 `json:"tradeId"`
	Status  string `json:"status"`
}

type OrderResponse struct {
	ID        uint64 `json:"id"`
	Trader    string `json:"trader"`
	Pair      string `json:"pair"`
	Direction string `json:"direction"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
	Amount    *int64 `json:"amount,omitempty"`
	Price     *int64 `json:"price,omitempty"`
}

type TradeResponse struct {
	ID        uint64 `json:"id"`
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Pair      string `json:"pair"`
	Timestamp int64  `json:"timestamp"`
	Volume    *int64 `json:"volume,omitempty"`
	Price     *int64 `json:"price,omitempty"`
}

type BalanceResponse struct {
	Trader  string `json:"trader"`
	Pair    string `json:"pair"`
	Balance int64  `json:"balance"`
}

type PriceResponse struct {
	Pair  string `json:"pair"`
	Price int64  `json:"price"`
}

type StatsResponse struct {
	OrderCount uint64 `json:"orderCount"`
	TradeCount uint64 `json:"tradeCount"`
}

type RevealResponse struct {
	RequestID uint64 `json:"requestId"`
	OrderID   uint64 `json:"orderId"`
	Field     string `json:"field"`
	Delivered bool   `json:"delivered"`
	Value     *int64 `json:"value,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket
// ==============================

// WSSubscribeRequest subscribes or unsubscribes channels. Channels:
// "orders", "trades", "trades:<pair>", "prices".
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}
