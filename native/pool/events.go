package pool

import (
	"math/big"

	"credora/core/types"
	"credora/crypto"
)

const (
	// EventTypeDeposit is emitted when a lender deposit completes the full
	// convert-and-mint cycle.
	EventTypeDeposit = "pool.deposit"
	// EventTypePaymentReceived is emitted when an advance or repayment is
	// routed into the yield pipeline.
	EventTypePaymentReceived = "pool.payment_received"
)

type poolEvent struct {
	evt *types.Event
}

func (e poolEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e poolEvent) Event() *types.Event { return e.evt }

// NewDepositEvent returns the canonical payload for a completed deposit.
func NewDepositEvent(depositor crypto.Address, value, converted, minted *big.Int) poolEvent {
	attrs := map[string]string{
		"depositor": depositor.String(),
	}
	if value != nil {
		attrs["amount"] = value.String()
	}
	if converted != nil {
		attrs["converted"] = converted.String()
	}
	if minted != nil {
		attrs["sharesMinted"] = minted.String()
	}
	return poolEvent{evt: &types.Event{Type: EventTypeDeposit, Attributes: attrs}}
}

// NewPaymentReceivedEvent returns the canonical payload for a routed payment.
func NewPaymentReceivedEvent(from crypto.Address, amount, converted *big.Int) poolEvent {
	attrs := map[string]string{
		"from": from.String(),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	if converted != nil {
		attrs["converted"] = converted.String()
	}
	return poolEvent{evt: &types.Event{Type: EventTypePaymentReceived, Attributes: attrs}}
}
