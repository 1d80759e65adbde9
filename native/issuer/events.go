package issuer

import (
	"math/big"
	"strconv"

	"credora/core/types"
	"credora/crypto"
)

const (
	EventTypeNoteCreated     = "issuer.note_created"
	EventTypePaymentMade     = "issuer.payment_made"
	EventTypeNoteFullyRepaid = "issuer.note_fully_repaid"
)

type issuerEvent struct {
	evt *types.Event
}

func (e issuerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e issuerEvent) Event() *types.Event { return e.evt }

// NewNoteCreatedEvent returns the canonical payload for a completed issuance.
func NewNoteCreatedEvent(noteID, tokenID uint64, creditor crypto.Address, record *Note, backing *big.Int) issuerEvent {
	attrs := map[string]string{
		"noteId":   strconv.FormatUint(noteID, 10),
		"tokenId":  strconv.FormatUint(tokenID, 10),
		"creditor": creditor.String(),
	}
	if record != nil {
		attrs["borrower"] = record.Borrower.String()
		if record.PrincipalAmount != nil {
			attrs["principal"] = record.PrincipalAmount.String()
		}
		if record.AdvanceAmount != nil {
			attrs["advance"] = record.AdvanceAmount.String()
		}
		attrs["interestRateBps"] = strconv.FormatUint(record.InterestRateBps, 10)
		attrs["maturity"] = strconv.FormatInt(record.Maturity, 10)
	}
	if backing != nil {
		attrs["crdBacking"] = backing.String()
	}
	return issuerEvent{evt: &types.Event{Type: EventTypeNoteCreated, Attributes: attrs}}
}

// NewPaymentMadeEvent returns the payload emitted on every repayment,
// carrying the actually charged amount and the debt left afterwards.
func NewPaymentMadeEvent(noteID uint64, actual, remaining *big.Int) issuerEvent {
	attrs := map[string]string{
		"noteId": strconv.FormatUint(noteID, 10),
	}
	if actual != nil {
		attrs["amount"] = actual.String()
	}
	if remaining != nil {
		attrs["remainingDebt"] = remaining.String()
	}
	return issuerEvent{evt: &types.Event{Type: EventTypePaymentMade, Attributes: attrs}}
}

// NewNoteFullyRepaidEvent returns the payload for a note reaching zero debt.
func NewNoteFullyRepaidEvent(noteID uint64, record *Note) issuerEvent {
	attrs := map[string]string{
		"noteId": strconv.FormatUint(noteID, 10),
	}
	if record != nil {
		attrs["borrower"] = record.Borrower.String()
		if record.TotalPaid != nil {
			attrs["totalPaid"] = record.TotalPaid.String()
		}
	}
	return issuerEvent{evt: &types.Event{Type: EventTypeNoteFullyRepaid, Attributes: attrs}}
}
