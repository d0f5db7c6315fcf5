package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Fields a reveal request may target.
const (
	FieldAmount = "amount"
	FieldPrice  = "price"
)

// RevealRequest tracks a one-shot disclosure of a sealed order field
// through the external decryption oracle. The oracle is trusted to
// deliver each result exactly once, for the request that asked for it.
type RevealRequest struct {
	ID        uint64
	OrderID   uint64
	Field     string
	Requester common.Address
	Delivered bool
	Value     int64
	CreatedAt int64 // Unix milliseconds
}

// RequestReveal registers a disclosure request for an order's sealed
// amount or price. Only the order's owner or the privileged account
// may request one. Returns the request id the oracle will answer to.
func (l *Ledger) RequestReveal(caller common.Address, orderID uint64, field string) (uint64, error) {
	if field != FieldAmount && field != FieldPrice {
		return 0, fmt.Errorf("%w: reveal field %q", ErrValidation, field)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[orderID]
	if !ok {
		return 0, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if caller != o.Trader && caller != l.admin {
		return 0, fmt.Errorf("%w: account %s cannot reveal order %d", ErrUnauthorized, caller.Hex(), orderID)
	}

	l.revealSeq++
	r := &RevealRequest{
		ID:        l.revealSeq,
		OrderID:   orderID,
		Field:     field,
		Requester: caller,
		CreatedAt: l.clock.Now().UnixMilli(),
	}
	l.reveals[r.ID] = r

	if err := l.store.SaveReveal(r); err != nil {
		return 0, fmt.Errorf("persist reveal: %w", err)
	}
	if err := l.store.SaveSeq(SeqReveals, l.revealSeq); err != nil {
		return 0, fmt.Errorf("persist reveal seq: %w", err)
	}

	l.log.Infow("reveal_requested", "request_id", r.ID, "order_id", orderID, "field", field)
	return r.ID, nil
}

// DeliverReveal is the oracle callback. It may arrive at any time and
// is applied without re-validating ordering against submissions; the
// oracle is trusted, so delivery is accepted exactly once per request.
func (l *Ledger) DeliverReveal(requestID uint64, value int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.reveals[requestID]
	if !ok {
		return fmt.Errorf("%w: reveal request %d", ErrNotFound, requestID)
	}
	if r.Delivered {
		return fmt.Errorf("%w: reveal request %d already delivered", ErrValidation, requestID)
	}

	r.Delivered = true
	r.Value = value

	if err := l.store.SaveReveal(r); err != nil {
		return fmt.Errorf("persist reveal: %w", err)
	}

	l.log.Infow("reveal_delivered", "request_id", requestID)
	return nil
}

// GetReveal returns a reveal request to its requester or the
// privileged account.
func (l *Ledger) GetReveal(caller common.Address, requestID uint64) (RevealRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.reveals[requestID]
	if !ok {
		return RevealRequest{}, fmt.Errorf("%w: reveal request %d", ErrNotFound, requestID)
	}
	if caller != r.Requester && caller != l.admin {
		return RevealRequest{}, fmt.Errorf("%w: account %s cannot read reveal %d", ErrUnauthorized, caller.Hex(), requestID)
	}
	return *r, nil
}
