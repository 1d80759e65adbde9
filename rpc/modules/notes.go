package modules

import (
	"encoding/json"
	"errors"
	"net/http"

	"credora/core"
	"credora/native/note"
)

// NotesModule exposes the credit note token ledger over RPC.
type NotesModule struct {
	node *core.Node
}

// NewNotesModule constructs a credit note RPC helper module.
func NewNotesModule(node *core.Node) *NotesModule {
	return &NotesModule{node: node}
}

type tokenIDParams struct {
	TokenID uint64 `json:"tokenId"`
}

// CreditNoteResult describes a credit note token and its loan terms.
type CreditNoteResult struct {
	TokenID         uint64 `json:"tokenId"`
	Owner           string `json:"owner"`
	Borrower        string `json:"borrower"`
	Principal       string `json:"principal"`
	Advance         string `json:"advance"`
	InterestRateBps uint64 `json:"interestRateBps"`
	Maturity        int64  `json:"maturity"`
	CreatedAt       int64  `json:"createdAt"`
	TotalPaid       string `json:"totalPaid"`
	RemainingDebt   string `json:"remainingDebt"`
	Status          string `json:"status"`
	CRDBalance      string `json:"crdBalance"`
	Mature          bool   `json:"mature"`
}

// Get returns the full on-ledger view of a credit note token.
func (m *NotesModule) Get(raw json.RawMessage) (*CreditNoteResult, *ModuleError) {
	var params tokenIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid token parameters", err.Error())
	}
	data, err := m.node.GetCreditNote(params.TokenID)
	if err != nil {
		return nil, mapNoteError(err)
	}
	owner, err := m.node.NoteOwner(params.TokenID)
	if err != nil {
		return nil, mapNoteError(err)
	}
	balance, err := m.node.NoteCRDBalance(params.TokenID)
	if err != nil {
		return nil, serverError("failed to load note balance", err.Error())
	}
	mature, err := m.node.NoteIsMature(params.TokenID)
	if err != nil {
		return nil, serverError("failed to load maturity", err.Error())
	}
	return &CreditNoteResult{
		TokenID:         params.TokenID,
		Owner:           owner.String(),
		Borrower:        data.Borrower.String(),
		Principal:       bigString(data.Principal),
		Advance:         bigString(data.Advance),
		InterestRateBps: data.InterestRateBps,
		Maturity:        data.Maturity,
		CreatedAt:       data.CreatedAt,
		TotalPaid:       bigString(data.TotalPaid),
		RemainingDebt:   bigString(data.RemainingDebt()),
		Status:          data.Status.String(),
		CRDBalance:      bigString(balance),
		Mature:          mature,
	}, nil
}

// TokenURIResult carries the generated metadata data URI for a token.
type TokenURIResult struct {
	TokenID  uint64 `json:"tokenId"`
	TokenURI string `json:"tokenURI"`
}

// TokenURI generates the base64 metadata document for a token.
func (m *NotesModule) TokenURI(raw json.RawMessage) (*TokenURIResult, *ModuleError) {
	var params tokenIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid token parameters", err.Error())
	}
	uri, err := m.node.NoteTokenURI(params.TokenID)
	if err != nil {
		return nil, mapNoteError(err)
	}
	return &TokenURIResult{TokenID: params.TokenID, TokenURI: uri}, nil
}

type noteDepositParams struct {
	TokenID uint64 `json:"tokenId"`
	Amount  string `json:"amount"`
}

// Deposit credits additional CRD to a note's internal balance.
func (m *NotesModule) Deposit(raw json.RawMessage) (*TokenURIResult, *ModuleError) {
	var params noteDepositParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid deposit parameters", err.Error())
	}
	amount, modErr := parseAmount("amount", params.Amount)
	if modErr != nil {
		return nil, modErr
	}
	if err := m.node.NoteDeposit(params.TokenID, amount); err != nil {
		return nil, mapNoteError(err)
	}
	uri, err := m.node.NoteTokenURI(params.TokenID)
	if err != nil {
		return nil, mapNoteError(err)
	}
	return &TokenURIResult{TokenID: params.TokenID, TokenURI: uri}, nil
}

func mapNoteError(err error) *ModuleError {
	switch {
	case errors.Is(err, note.ErrNoteNotFound):
		return &ModuleError{HTTPStatus: http.StatusNotFound, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, note.ErrInvalidAmount),
		errors.Is(err, note.ErrInvalidStatus),
		errors.Is(err, note.ErrZeroAddress):
		return invalidParams(err.Error(), nil)
	case errors.Is(err, note.ErrNotTrusted):
		return &ModuleError{HTTPStatus: http.StatusForbidden, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, note.ErrNotImplemented):
		return &ModuleError{HTTPStatus: http.StatusNotImplemented, Code: codeServerError, Message: err.Error()}
	default:
		return serverError("note operation failed", err.Error())
	}
}
