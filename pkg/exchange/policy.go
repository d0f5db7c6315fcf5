package exchange

// ExecutionPolicy decides whether a limit order fills at the current
// market price. Quick trades bypass the policy and always execute.
type ExecutionPolicy interface {
	ShouldFill(o *Order, marketPrice int64) bool
}

// ImmediateOrQueue fills a limit order iff it crosses the market price:
// a buy at or above market, a sell at or below. Non-crossing orders
// rest and are re-evaluated whenever the pair's price is updated.
type ImmediateOrQueue struct{}

func (ImmediateOrQueue) ShouldFill(o *Order, marketPrice int64) bool {
	if marketPrice <= 0 {
		return false
	}
	if o.Direction == Long {
		return o.Price >= marketPrice
	}
	return o.Price <= marketPrice
}

// AlwaysFill executes every limit order on submission at the market
// price, ignoring its limit. Requires a known price for the pair.
type AlwaysFill struct{}

func (AlwaysFill) ShouldFill(_ *Order, marketPrice int64) bool {
	return marketPrice > 0
}
