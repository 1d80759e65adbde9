package note

import (
	"errors"
	"math/big"
	"time"

	"credora/core/events"
	"credora/crypto"
)

var (
	errNilState       = errors.New("credit note: state not configured")
	ErrNotTrusted     = errors.New("credit note: caller is not the trusted issuer")
	ErrZeroAddress    = errors.New("credit note: zero address")
	ErrInvalidAmount  = errors.New("credit note: amount must be positive")
	ErrInvalidStatus  = errors.New("credit note: invalid status")
	ErrNoteNotFound   = errors.New("credit note: note not found")
	ErrReentrantCall  = errors.New("credit note: reentrant call")
	ErrNotImplemented = errors.New("credit note: redeem not implemented")
)

type engineState interface {
	NoteGet(tokenID uint64) (*CreditNoteData, bool, error)
	NotePut(tokenID uint64, data *CreditNoteData) error
	NoteOwner(tokenID uint64) (crypto.Address, bool, error)
	NoteSetOwner(tokenID uint64, owner crypto.Address) error
	NoteBalance(tokenID uint64) (*big.Int, error)
	NoteSetBalance(tokenID uint64, balance *big.Int) error
	NoteCounter() (uint64, error)
	NoteSetCounter(counter uint64) error
}

// Engine manages the non-fungible credit notes: NFT ownership, the per-note
// CRD escrow balance, the structured debt record, and on-demand metadata.
//
// RecordPayment and UpdateNoteStatus require a trusted-caller capability: the
// reference behavior left them open but documented them as authorized-only,
// and this implementation enforces the documented intent.
type Engine struct {
	state         engineState
	trustedCaller crypto.Address
	imageBaseURL  string
	emitter       events.Emitter
	nowFn         func() int64
	entered       bool
}

// NewEngine constructs a credit note engine with a no-op emitter and the
// wall clock as its time source.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTrustedCaller designates the note issuer permitted to mint notes and
// mutate debt records. Set during the post-construction wiring step.
func (e *Engine) SetTrustedCaller(addr crypto.Address) {
	if e == nil {
		return
	}
	e.trustedCaller = addr
}

// SetImageBaseURL configures the template root for metadata image links.
func (e *Engine) SetImageBaseURL(base string) {
	if e == nil {
		return
	}
	e.imageBaseURL = base
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

// MintWithDeposit creates a new note: assigns the next token identifier
// (monotonic, starting at 1, never reused), mints the NFT to the recipient,
// records the supplied amount as the note's escrowed CRD balance — the tokens
// are assumed already in this component's custody — and stores the debt
// record with status Active. Returns the new token identifier.
func (e *Engine) MintWithDeposit(caller, to crypto.Address, amount *big.Int, borrower crypto.Address, principal, advance *big.Int, interestRateBps uint64, maturity int64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.entered {
		return 0, ErrReentrantCall
	}
	e.entered = true
	defer func() { e.entered = false }()

	if e.trustedCaller.IsZero() || !caller.Equal(e.trustedCaller) {
		return 0, ErrNotTrusted
	}
	if to.IsZero() || borrower.IsZero() {
		return 0, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}

	counter, err := e.state.NoteCounter()
	if err != nil {
		return 0, err
	}
	tokenID := counter + 1

	data := &CreditNoteData{
		Borrower:        borrower,
		Principal:       copyOrZero(principal),
		Advance:         copyOrZero(advance),
		InterestRateBps: interestRateBps,
		Maturity:        maturity,
		CreatedAt:       e.now(),
		TotalPaid:       big.NewInt(0),
		Status:          StatusActive,
	}

	if err := e.state.NoteSetCounter(tokenID); err != nil {
		return 0, err
	}
	if err := e.state.NoteSetOwner(tokenID, to); err != nil {
		return 0, err
	}
	if err := e.state.NoteSetBalance(tokenID, new(big.Int).Set(amount)); err != nil {
		return 0, err
	}
	if err := e.state.NotePut(tokenID, data); err != nil {
		return 0, err
	}

	e.emit(NewMintedEvent(tokenID, to, amount, data))
	return tokenID, nil
}

// Deposit tops up an existing note's escrow balance. Anyone may deposit; the
// share tokens are assumed transferred into custody by the caller.
func (e *Engine) Deposit(tokenID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.entered {
		return ErrReentrantCall
	}
	e.entered = true
	defer func() { e.entered = false }()

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, ok, err := e.state.NoteGet(tokenID); err != nil {
		return err
	} else if !ok {
		return ErrNoteNotFound
	}

	balance, err := e.state.NoteBalance(tokenID)
	if err != nil {
		return err
	}
	balance = new(big.Int).Add(balance, amount)
	if err := e.state.NoteSetBalance(tokenID, balance); err != nil {
		return err
	}

	e.emit(NewDepositEvent(tokenID, amount, balance))
	return nil
}

// RecordPayment increases the note's cumulative paid amount. The Active to
// Repaid transition fires once totalPaid reaches the principal and is
// one-way: a note already Repaid or Defaulted keeps its status.
func (e *Engine) RecordPayment(caller crypto.Address, tokenID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.trustedCaller.IsZero() || !caller.Equal(e.trustedCaller) {
		return ErrNotTrusted
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	data, ok, err := e.state.NoteGet(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoteNotFound
	}

	data.TotalPaid = new(big.Int).Add(copyOrZero(data.TotalPaid), amount)
	if data.Status == StatusActive && data.TotalPaid.Cmp(copyOrZero(data.Principal)) >= 0 {
		data.Status = StatusRepaid
	}
	if err := e.state.NotePut(tokenID, data); err != nil {
		return err
	}

	e.emit(NewPaymentRecordedEvent(tokenID, amount, data))
	return nil
}

// UpdateNoteStatus overwrites the note's status. Used for default
// declarations; the trusted caller decides which transitions are sensible.
func (e *Engine) UpdateNoteStatus(caller crypto.Address, tokenID uint64, status Status) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.trustedCaller.IsZero() || !caller.Equal(e.trustedCaller) {
		return ErrNotTrusted
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}

	data, ok, err := e.state.NoteGet(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoteNotFound
	}

	data.Status = status
	if err := e.state.NotePut(tokenID, data); err != nil {
		return err
	}

	e.emit(NewStatusUpdatedEvent(tokenID, status))
	return nil
}

// Redeem is a deliberate stub for the deferred redemption feature. It fails
// unconditionally and must keep failing until redemption ships; callers rely
// on the note's escrow balance and ownership surviving the failed call.
func (e *Engine) Redeem(tokenID uint64) error {
	return ErrNotImplemented
}

// Get returns the note's debt record.
func (e *Engine) Get(tokenID uint64) (*CreditNoteData, error) {
	data, err := e.load(tokenID)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// OwnerOf returns the current NFT holder, which may differ from the borrower.
func (e *Engine) OwnerOf(tokenID uint64) (crypto.Address, error) {
	if e == nil || e.state == nil {
		return crypto.Address{}, errNilState
	}
	owner, ok, err := e.state.NoteOwner(tokenID)
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, ErrNoteNotFound
	}
	return owner, nil
}

// BalanceOfNote returns the note's escrowed CRD balance.
func (e *Engine) BalanceOfNote(tokenID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, ok, err := e.state.NoteGet(tokenID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNoteNotFound
	}
	return e.state.NoteBalance(tokenID)
}

// IsMature reports whether the note has reached its maturity timestamp.
// Maturity is informational: nothing transitions the note automatically.
func (e *Engine) IsMature(tokenID uint64) (bool, error) {
	data, err := e.load(tokenID)
	if err != nil {
		return false, err
	}
	return e.now() >= data.Maturity, nil
}

// RemainingDebt returns principal minus totalPaid, floored at zero.
func (e *Engine) RemainingDebt(tokenID uint64) (*big.Int, error) {
	data, err := e.load(tokenID)
	if err != nil {
		return nil, err
	}
	return data.RemainingDebt(), nil
}

func (e *Engine) load(tokenID uint64) (*CreditNoteData, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	data, ok, err := e.state.NoteGet(tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoteNotFound
	}
	return data, nil
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
