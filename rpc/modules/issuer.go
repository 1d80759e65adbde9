package modules

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"credora/core"
	"credora/crypto"
	"credora/native/issuer"
)

// IssuerModule exposes credit note origination and repayment over RPC.
type IssuerModule struct {
	node *core.Node
}

// NewIssuerModule constructs an issuer RPC helper module.
func NewIssuerModule(node *core.Node) *IssuerModule {
	return &IssuerModule{node: node}
}

// proofParams carries the groth16 proof limbs as decimal strings.
type proofParams struct {
	A             [2]string    `json:"a"`
	B             [2][2]string `json:"b"`
	C             [2]string    `json:"c"`
	PublicSignals [5]string    `json:"publicSignals"`
}

type createNoteParams struct {
	Borrower  string       `json:"borrower"`
	Principal string       `json:"principal"`
	Advance   string       `json:"advance"`
	Creditor  string       `json:"creditor,omitempty"`
	Proof     *proofParams `json:"proof"`
}

// CreateNoteResult reports the identifiers assigned to a freshly issued note.
type CreateNoteResult struct {
	NoteID  uint64 `json:"noteId"`
	TokenID uint64 `json:"tokenId"`
}

// CreateNote verifies the credit proof, collects the borrower advance and
// issues the collateralized credit note.
func (m *IssuerModule) CreateNote(raw json.RawMessage) (*CreateNoteResult, *ModuleError) {
	var params createNoteParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid createNote parameters", err.Error())
	}
	borrower, modErr := parseAddress("borrower", params.Borrower)
	if modErr != nil {
		return nil, modErr
	}
	principal, modErr := parseAmount("principal", params.Principal)
	if modErr != nil {
		return nil, modErr
	}
	advance, modErr := parseAmount("advance", params.Advance)
	if modErr != nil {
		return nil, modErr
	}
	var creditor crypto.Address
	if params.Creditor != "" {
		creditor, modErr = parseAddress("creditor", params.Creditor)
		if modErr != nil {
			return nil, modErr
		}
	}
	proof, modErr := decodeProof(params.Proof)
	if modErr != nil {
		return nil, modErr
	}

	noteID, tokenID, err := m.node.CreateNote(borrower, principal, advance, proof, creditor, advance)
	if err != nil {
		return nil, mapIssuerError(err)
	}
	return &CreateNoteResult{NoteID: noteID, TokenID: tokenID}, nil
}

type repayParams struct {
	Caller string `json:"caller"`
	NoteID uint64 `json:"noteId"`
	Amount string `json:"amount"`
}

// RepayResult reports how much of a repayment was applied to the debt.
type RepayResult struct {
	NoteID        uint64 `json:"noteId"`
	AmountApplied string `json:"amountApplied"`
	RemainingDebt string `json:"remainingDebt"`
}

// Repay applies a borrower payment against a note's outstanding debt.
func (m *IssuerModule) Repay(raw json.RawMessage) (*RepayResult, *ModuleError) {
	var params repayParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid repay parameters", err.Error())
	}
	caller, modErr := parseAddress("caller", params.Caller)
	if modErr != nil {
		return nil, modErr
	}
	amount, modErr := parseAmount("amount", params.Amount)
	if modErr != nil {
		return nil, modErr
	}

	actual, err := m.node.Repay(caller, params.NoteID, amount, amount)
	if err != nil {
		return nil, mapIssuerError(err)
	}
	remaining, err := m.node.IssuerNoteRemainingDebt(params.NoteID)
	if err != nil {
		return nil, serverError("failed to load remaining debt", err.Error())
	}
	return &RepayResult{
		NoteID:        params.NoteID,
		AmountApplied: bigString(actual),
		RemainingDebt: bigString(remaining),
	}, nil
}

type noteIDParams struct {
	NoteID uint64 `json:"noteId"`
}

// IssuerNoteResult describes a note as recorded by the issuer ledger.
type IssuerNoteResult struct {
	NoteID          uint64 `json:"noteId"`
	TokenID         uint64 `json:"tokenId"`
	Borrower        string `json:"borrower"`
	PrincipalAmount string `json:"principalAmount"`
	AdvanceAmount   string `json:"advanceAmount"`
	InterestRateBps uint64 `json:"interestRateBps"`
	Maturity        int64  `json:"maturity"`
	CreatedAt       int64  `json:"createdAt"`
	TotalPaid       string `json:"totalPaid"`
	RemainingDebt   string `json:"remainingDebt"`
	Status          string `json:"status"`
	DebtPaid        bool   `json:"debtPaid"`
}

// GetNote returns the issuer-side record for a note.
func (m *IssuerModule) GetNote(raw json.RawMessage) (*IssuerNoteResult, *ModuleError) {
	var params noteIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid note parameters", err.Error())
	}
	record, err := m.node.GetIssuerNote(params.NoteID)
	if err != nil {
		return nil, mapIssuerError(err)
	}
	tokenID, err := m.node.IssuerNoteTokenID(params.NoteID)
	if err != nil {
		return nil, serverError("failed to load token mapping", err.Error())
	}
	paid, err := m.node.IsNoteDebtPaid(params.NoteID)
	if err != nil {
		return nil, serverError("failed to load debt status", err.Error())
	}
	return &IssuerNoteResult{
		NoteID:          params.NoteID,
		TokenID:         tokenID,
		Borrower:        record.Borrower.String(),
		PrincipalAmount: bigString(record.PrincipalAmount),
		AdvanceAmount:   bigString(record.AdvanceAmount),
		InterestRateBps: record.InterestRateBps,
		Maturity:        record.Maturity,
		CreatedAt:       record.CreatedAt,
		TotalPaid:       bigString(record.TotalPaid),
		RemainingDebt:   bigString(record.RemainingDebt()),
		Status:          record.Status.String(),
		DebtPaid:        paid,
	}, nil
}

type requiredAdvanceParams struct {
	Principal string `json:"principal"`
}

// RequiredAdvanceResult reports the advance owed for a requested principal.
type RequiredAdvanceResult struct {
	Principal       string `json:"principal"`
	RequiredAdvance string `json:"requiredAdvance"`
}

// RequiredAdvance computes the up-front advance for a principal at the
// configured advance rate.
func (m *IssuerModule) RequiredAdvance(raw json.RawMessage) (*RequiredAdvanceResult, *ModuleError) {
	var params requiredAdvanceParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid advance parameters", err.Error())
	}
	principal, modErr := parseAmount("principal", params.Principal)
	if modErr != nil {
		return nil, modErr
	}
	required := m.node.CalculateRequiredAdvance(principal)
	return &RequiredAdvanceResult{
		Principal:       principal.String(),
		RequiredAdvance: bigString(required),
	}, nil
}

func decodeProof(params *proofParams) (*issuer.Proof, *ModuleError) {
	if params == nil {
		return nil, invalidParams("proof required", nil)
	}
	proof := &issuer.Proof{}
	var modErr *ModuleError
	parse := func(field, raw string) *big.Int {
		if modErr != nil {
			return nil
		}
		value, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			modErr = invalidParams("invalid proof element", field)
			return nil
		}
		return value
	}
	for i := 0; i < 2; i++ {
		proof.A[i] = parse("a", params.A[i])
		proof.C[i] = parse("c", params.C[i])
		for j := 0; j < 2; j++ {
			proof.B[i][j] = parse("b", params.B[i][j])
		}
	}
	for i := 0; i < 5; i++ {
		proof.PublicSignals[i] = parse("publicSignals", params.PublicSignals[i])
	}
	if modErr != nil {
		return nil, modErr
	}
	return proof, nil
}

func mapIssuerError(err error) *ModuleError {
	switch {
	case errors.Is(err, issuer.ErrInvalidProof),
		errors.Is(err, issuer.ErrPrincipalTooLarge),
		errors.Is(err, issuer.ErrInsufficientAdvance),
		errors.Is(err, issuer.ErrPaymentMismatch),
		errors.Is(err, issuer.ErrInvalidAmount):
		return invalidParams(err.Error(), nil)
	case errors.Is(err, issuer.ErrNoteNotFound):
		return &ModuleError{HTTPStatus: http.StatusNotFound, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, issuer.ErrNoteNotActive),
		errors.Is(err, issuer.ErrNotBorrower),
		errors.Is(err, issuer.ErrInsufficientFunds):
		return &ModuleError{HTTPStatus: http.StatusUnprocessableEntity, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, issuer.ErrRedeemNotImplemented),
		errors.Is(err, issuer.ErrTransferNotSupported):
		return &ModuleError{HTTPStatus: http.StatusNotImplemented, Code: codeServerError, Message: err.Error()}
	default:
		return serverError("issuer operation failed", err.Error())
	}
}
