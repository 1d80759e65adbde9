package note

import (
	"math/big"
	"strconv"

	"credora/core/types"
	"credora/crypto"
)

const (
	EventTypeNoteMinted      = "note.minted"
	EventTypeNoteDeposit     = "note.deposit"
	EventTypePaymentRecorded = "note.payment_recorded"
	EventTypeStatusUpdated   = "note.status_updated"
)

type noteEvent struct {
	evt *types.Event
}

func (e noteEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e noteEvent) Event() *types.Event { return e.evt }

// NewMintedEvent returns the canonical payload for a freshly minted note.
func NewMintedEvent(tokenID uint64, to crypto.Address, amount *big.Int, data *CreditNoteData) noteEvent {
	attrs := map[string]string{
		"tokenId": strconv.FormatUint(tokenID, 10),
		"to":      to.String(),
	}
	if amount != nil {
		attrs["crdAmount"] = amount.String()
	}
	if data != nil {
		attrs["borrower"] = data.Borrower.String()
		if data.Principal != nil {
			attrs["principal"] = data.Principal.String()
		}
		if data.Advance != nil {
			attrs["advance"] = data.Advance.String()
		}
		attrs["interestRateBps"] = strconv.FormatUint(data.InterestRateBps, 10)
		attrs["maturity"] = strconv.FormatInt(data.Maturity, 10)
		attrs["createdAt"] = strconv.FormatInt(data.CreatedAt, 10)
	}
	return noteEvent{evt: &types.Event{Type: EventTypeNoteMinted, Attributes: attrs}}
}

// NewDepositEvent returns the payload for an escrow top-up.
func NewDepositEvent(tokenID uint64, amount, balance *big.Int) noteEvent {
	attrs := map[string]string{
		"tokenId": strconv.FormatUint(tokenID, 10),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	if balance != nil {
		attrs["balance"] = balance.String()
	}
	return noteEvent{evt: &types.Event{Type: EventTypeNoteDeposit, Attributes: attrs}}
}

// NewPaymentRecordedEvent returns the payload for a recorded payment.
func NewPaymentRecordedEvent(tokenID uint64, amount *big.Int, data *CreditNoteData) noteEvent {
	attrs := map[string]string{
		"tokenId": strconv.FormatUint(tokenID, 10),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	if data != nil {
		if data.TotalPaid != nil {
			attrs["totalPaid"] = data.TotalPaid.String()
		}
		attrs["status"] = data.Status.String()
	}
	return noteEvent{evt: &types.Event{Type: EventTypePaymentRecorded, Attributes: attrs}}
}

// NewStatusUpdatedEvent returns the payload for a direct status overwrite.
func NewStatusUpdatedEvent(tokenID uint64, status Status) noteEvent {
	attrs := map[string]string{
		"tokenId": strconv.FormatUint(tokenID, 10),
		"status":  status.String(),
	}
	return noteEvent{evt: &types.Event{Type: EventTypeStatusUpdated, Attributes: attrs}}
}
