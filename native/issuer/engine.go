package issuer

import (
	"errors"
	"math/big"
	"time"

	"credora/core/events"
	"credora/core/types"
	"credora/crypto"
	nativecommon "credora/native/common"
)

var (
	errNilState             = errors.New("note issuer: state not configured")
	errNotWired             = errors.New("note issuer: collaborators not wired")
	ErrInvalidProof         = errors.New("note issuer: invalid proof")
	ErrPrincipalTooLarge    = errors.New("note issuer: principal exceeds maximum")
	ErrInsufficientAdvance  = errors.New("note issuer: insufficient advance")
	ErrPaymentMismatch      = errors.New("note issuer: attached value must equal declared amount")
	ErrInvalidAmount        = errors.New("note issuer: amount must be positive")
	ErrInsufficientFunds    = errors.New("note issuer: insufficient balance")
	ErrNoteNotFound         = errors.New("note issuer: note not found")
	ErrNoteNotActive        = errors.New("note issuer: note not active")
	ErrNotBorrower          = errors.New("note issuer: caller is not the borrower")
	ErrRedeemNotImplemented = errors.New("note issuer: redeem not implemented")
	ErrTransferNotSupported = errors.New("note issuer: transfer the underlying NFT instead")
)

const moduleName = "issuer"

// Basis-points denominator shared by the advance and interest arithmetic.
var basisPoints = big.NewInt(10_000)

type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	IssuerNoteGet(noteID uint64) (*Note, bool, error)
	IssuerNotePut(noteID uint64, record *Note) error
	IssuerNoteCounter() (uint64, error)
	IssuerSetNoteCounter(counter uint64) error
	IssuerTokenID(noteID uint64) (uint64, bool, error)
	IssuerSetTokenID(noteID, tokenID uint64) error
}

// PoolRouter is the slice of the pool the issuer needs: routing payments into
// the yield pipeline and sizing CRD backing.
type PoolRouter interface {
	ReceivePayment(from crypto.Address, amount, value *big.Int) (*big.Int, error)
	CalculateCRDShares(amount *big.Int) (*big.Int, error)
}

// VaultRouter records escrow backing moving into a note.
type VaultRouter interface {
	TransferCRDToNote(caller, recipient crypto.Address, noteID uint64, amount *big.Int) error
}

// NoteMinter mints the NFT and its debt record.
type NoteMinter interface {
	MintWithDeposit(caller, to crypto.Address, amount *big.Int, borrower crypto.Address, principal, advance *big.Int, interestRateBps uint64, maturity int64) (uint64, error)
}

// Params groups the issuance policy knobs. The reference protocol hard-codes
// them; they are configurable here but default to the reference values.
type Params struct {
	// MaxPrincipalWei caps the principal of a single note.
	MaxPrincipalWei *big.Int
	// AdvanceRateBps sizes the required upfront advance relative to the
	// principal.
	AdvanceRateBps uint64
	// InterestRateBps is the fixed rate stamped on every note.
	InterestRateBps uint64
	// TermSeconds is the fixed span from creation to maturity.
	TermSeconds int64
}

// DefaultParams returns the reference policy: 5e18 principal ceiling, 20%
// advance, 5% interest, 365-day term.
func DefaultParams() Params {
	return Params{
		MaxPrincipalWei: mustBigInt("5000000000000000000"),
		AdvanceRateBps:  2_000,
		InterestRateBps: 500,
		TermSeconds:     365 * 24 * 60 * 60,
	}
}

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// Engine orchestrates note issuance and repayment. It is the only component
// that mutates the credit note contract and the escrow vault during issuance.
type Engine struct {
	state         engineState
	moduleAddress crypto.Address
	noteCustody   crypto.Address
	verifier      ProofVerifier
	pool          PoolRouter
	vault         VaultRouter
	notes         NoteMinter
	params        Params
	emitter       events.Emitter
	nowFn         func() int64
	pauses        nativecommon.PauseView
}

// NewEngine constructs a note issuer engine bound to its module account.
func NewEngine(moduleAddr crypto.Address, params Params) *Engine {
	if params.MaxPrincipalWei == nil {
		params = DefaultParams()
	}
	return &Engine{
		moduleAddress: moduleAddr,
		params:        params,
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVerifier configures the proof oracle.
func (e *Engine) SetVerifier(v ProofVerifier) {
	if e == nil {
		return
	}
	e.verifier = v
}

// Wire connects the issuer to the pool, vault and note engines along with the
// note custody address. Part of the two-phase construction: the three
// components reference each other and none can hold the others at build time.
func (e *Engine) Wire(pool PoolRouter, vault VaultRouter, notes NoteMinter, noteCustody crypto.Address) {
	if e == nil {
		return
	}
	e.pool = pool
	e.vault = vault
	e.notes = notes
	e.noteCustody = noteCustody
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// ModuleAddress returns the issuer's module account address.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.moduleAddress
}

// CalculateRequiredAdvance returns the minimum advance for a principal:
// principal * advanceRateBps / 10000 with floor division.
func (e *Engine) CalculateRequiredAdvance(principal *big.Int) *big.Int {
	if principal == nil || principal.Sign() <= 0 {
		return big.NewInt(0)
	}
	rate := new(big.Int).SetUint64(e.params.AdvanceRateBps)
	required := new(big.Int).Mul(principal, rate)
	return required.Quo(required, basisPoints)
}

// CreateNote validates the proof and the advance, routes the advance into the
// pool, escrows the CRD backing and mints the credit note. The creditor
// receives the NFT; a zero creditor defaults to the borrower. Returns the
// issuer's note identifier and the underlying NFT token identifier.
func (e *Engine) CreateNote(borrower crypto.Address, principal, advance *big.Int, proof *Proof, creditor crypto.Address, value *big.Int) (uint64, uint64, error) {
	if e == nil || e.state == nil {
		return 0, 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, 0, err
	}
	if e.pool == nil || e.vault == nil || e.notes == nil || e.verifier == nil {
		return 0, 0, errNotWired
	}
	if principal == nil || principal.Sign() <= 0 || advance == nil || advance.Sign() <= 0 {
		return 0, 0, ErrInvalidAmount
	}

	if err := proof.WellFormed(); err != nil {
		return 0, 0, ErrInvalidProof
	}
	valid, err := e.verifier.Verify(proof)
	if err != nil {
		return 0, 0, err
	}
	if !valid {
		return 0, 0, ErrInvalidProof
	}

	if principal.Cmp(e.params.MaxPrincipalWei) > 0 {
		return 0, 0, ErrPrincipalTooLarge
	}
	required := e.CalculateRequiredAdvance(principal)
	if advance.Cmp(required) < 0 {
		return 0, 0, ErrInsufficientAdvance
	}
	if value == nil || value.Cmp(advance) != 0 {
		return 0, 0, ErrPaymentMismatch
	}

	// The note is over-collateralized in share terms: backing covers the
	// principal plus the advance, sized at the price in effect before the
	// advance itself enters the yield pipeline.
	backing, err := e.pool.CalculateCRDShares(new(big.Int).Add(principal, advance))
	if err != nil {
		return 0, 0, err
	}

	if _, err := e.pool.ReceivePayment(borrower, advance, value); err != nil {
		return 0, 0, err
	}

	counter, err := e.state.IssuerNoteCounter()
	if err != nil {
		return 0, 0, err
	}
	noteID := counter + 1

	if err := e.vault.TransferCRDToNote(e.moduleAddress, e.noteCustody, noteID, backing); err != nil {
		return 0, 0, err
	}

	recipient := creditor
	if recipient.IsZero() {
		recipient = borrower
	}
	createdAt := e.now()
	maturity := createdAt + e.params.TermSeconds

	tokenID, err := e.notes.MintWithDeposit(e.moduleAddress, recipient, backing, borrower, principal, advance, e.params.InterestRateBps, maturity)
	if err != nil {
		return 0, 0, err
	}

	record := &Note{
		Borrower:        borrower,
		PrincipalAmount: new(big.Int).Set(principal),
		AdvanceAmount:   new(big.Int).Set(advance),
		InterestRateBps: e.params.InterestRateBps,
		Maturity:        maturity,
		CreatedAt:       createdAt,
		TotalPaid:       big.NewInt(0),
		Status:          noteStatusActive,
	}

	if err := e.state.IssuerSetNoteCounter(noteID); err != nil {
		return 0, 0, err
	}
	if err := e.state.IssuerNotePut(noteID, record); err != nil {
		return 0, 0, err
	}
	if err := e.state.IssuerSetTokenID(noteID, tokenID); err != nil {
		return 0, 0, err
	}

	e.emit(NewNoteCreatedEvent(noteID, tokenID, recipient, record, backing))
	return noteID, tokenID, nil
}

// Repay charges the borrower against the note's remaining debt. The attached
// value must exactly equal the declared amount; when the amount exceeds the
// remaining debt only the debt is charged and the excess is retained by the
// issuer, not refunded. The actual charged amount is returned.
func (e *Engine) Repay(caller crypto.Address, noteID uint64, amount, value *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.pool == nil {
		return nil, errNotWired
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	record, ok, err := e.state.IssuerNoteGet(noteID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoteNotFound
	}
	if record.Status != noteStatusActive {
		return nil, ErrNoteNotActive
	}
	if !caller.Equal(record.Borrower) {
		return nil, ErrNotBorrower
	}
	if value == nil || value.Cmp(amount) != 0 {
		return nil, ErrPaymentMismatch
	}

	remaining := record.RemainingDebt()
	actual := new(big.Int).Set(amount)
	if actual.Cmp(remaining) > 0 {
		actual = new(big.Int).Set(remaining)
	}

	// Take custody of the full attached value, then forward only the
	// charged amount to the pool. Any excess stays on the issuer account.
	if err := e.collect(caller, value); err != nil {
		return nil, err
	}
	if actual.Sign() > 0 {
		if _, err := e.pool.ReceivePayment(e.moduleAddress, actual, actual); err != nil {
			return nil, err
		}
	}

	record.TotalPaid = new(big.Int).Add(copyOrZero(record.TotalPaid), actual)
	newRemaining := record.RemainingDebt()
	if newRemaining.Sign() == 0 {
		record.Status = noteStatusRepaid
	}
	if err := e.state.IssuerNotePut(noteID, record); err != nil {
		return nil, err
	}

	if newRemaining.Sign() == 0 {
		e.emit(NewNoteFullyRepaidEvent(noteID, record))
	}
	e.emit(NewPaymentMadeEvent(noteID, actual, newRemaining))
	return actual, nil
}

// RedeemNote is a deliberate stub for the deferred redemption feature.
func (e *Engine) RedeemNote(uint64) error {
	return ErrRedeemNotImplemented
}

// TransferNote always fails: ownership changes happen by transferring the
// underlying NFT, not through the issuer.
func (e *Engine) TransferNote(uint64, crypto.Address) error {
	return ErrTransferNotSupported
}

// GetNote returns the issuer's bookkeeping record for a note.
func (e *Engine) GetNote(noteID uint64) (*Note, error) {
	record, err := e.load(noteID)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// NoteTokenID resolves the issuer's note identifier to the NFT token
// identifier. The two identifier spaces are distinct and explicitly mapped.
func (e *Engine) NoteTokenID(noteID uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	tokenID, ok, err := e.state.IssuerTokenID(noteID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNoteNotFound
	}
	return tokenID, nil
}

// IsNoteDebtPaid reports whether the issuer's ledger shows zero remaining
// debt.
func (e *Engine) IsNoteDebtPaid(noteID uint64) (bool, error) {
	record, err := e.load(noteID)
	if err != nil {
		return false, err
	}
	return record.RemainingDebt().Sign() == 0, nil
}

// NoteRemainingDebt returns the remaining debt against the issuer's ledger.
func (e *Engine) NoteRemainingDebt(noteID uint64) (*big.Int, error) {
	record, err := e.load(noteID)
	if err != nil {
		return nil, err
	}
	return record.RemainingDebt(), nil
}

func (e *Engine) load(noteID uint64) (*Note, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok, err := e.state.IssuerNoteGet(noteID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoteNotFound
	}
	return record, nil
}

func (e *Engine) collect(from crypto.Address, amount *big.Int) error {
	payer, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	if payer == nil || payer.BalanceWei == nil || payer.BalanceWei.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	custody, err := e.state.GetAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	if custody == nil {
		custody = &types.Account{BalanceWei: big.NewInt(0)}
	}

	payer.BalanceWei = new(big.Int).Sub(payer.BalanceWei, amount)
	custody.BalanceWei = new(big.Int).Add(custody.BalanceWei, amount)

	if err := e.state.PutAccount(from, payer); err != nil {
		return err
	}
	return e.state.PutAccount(e.moduleAddress, custody)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
