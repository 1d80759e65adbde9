package shares

import (
	"math/big"

	"credora/core/types"
	"credora/crypto"
)

const (
	// EventTypeSharesMinted is emitted every time the pool mints shares.
	EventTypeSharesMinted = "shares.minted"
)

type sharesEvent struct {
	evt *types.Event
}

func (e sharesEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e sharesEvent) Event() *types.Event { return e.evt }

// NewMintedEvent returns the canonical event payload for a share mint. The
// priceBasis attribute records the share price computed before the mint.
func NewMintedEvent(to crypto.Address, amount, priceBasis *big.Int) sharesEvent {
	attrs := map[string]string{
		"to": to.String(),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	if priceBasis != nil {
		attrs["priceBasis"] = priceBasis.String()
	}
	return sharesEvent{evt: &types.Event{Type: EventTypeSharesMinted, Attributes: attrs}}
}
