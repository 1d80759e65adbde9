package vault

import (
	"math/big"
	"strconv"

	"credora/core/types"
	"credora/crypto"
)

const (
	EventTypeMintCRD        = "vault.crd_minted"
	EventTypeBurnCRD        = "vault.crd_burned"
	EventTypeTransferToNote = "vault.transfer_to_note"
	EventTypeReturnFromNote = "vault.return_from_note"
	EventTypeIssuerApproved = "vault.issuer_approved"
)

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// NewMintCRDEvent records a CRD mint intent against the vault.
func NewMintCRDEvent(to crypto.Address, amount *big.Int) vaultEvent {
	attrs := map[string]string{"to": to.String()}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return vaultEvent{evt: &types.Event{Type: EventTypeMintCRD, Attributes: attrs}}
}

// NewBurnCRDEvent records a CRD burn intent against the vault.
func NewBurnCRDEvent(from crypto.Address, amount *big.Int) vaultEvent {
	attrs := map[string]string{"from": from.String()}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return vaultEvent{evt: &types.Event{Type: EventTypeBurnCRD, Attributes: attrs}}
}

// NewTransferToNoteEvent records escrow backing moving into a note.
func NewTransferToNoteEvent(recipient crypto.Address, noteID uint64, amount *big.Int) vaultEvent {
	attrs := map[string]string{
		"recipient": recipient.String(),
		"noteId":    strconv.FormatUint(noteID, 10),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return vaultEvent{evt: &types.Event{Type: EventTypeTransferToNote, Attributes: attrs}}
}

// NewReturnFromNoteEvent records escrow backing flowing back out of a note.
func NewReturnFromNoteEvent(from crypto.Address, noteID uint64, amount *big.Int) vaultEvent {
	attrs := map[string]string{
		"from":   from.String(),
		"noteId": strconv.FormatUint(noteID, 10),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return vaultEvent{evt: &types.Event{Type: EventTypeReturnFromNote, Attributes: attrs}}
}

// NewIssuerApprovedEvent records the owner granting the issuer allowance
// intent.
func NewIssuerApprovedEvent(issuer crypto.Address) vaultEvent {
	attrs := map[string]string{"issuer": issuer.String()}
	return vaultEvent{evt: &types.Event{Type: EventTypeIssuerApproved, Attributes: attrs}}
}
