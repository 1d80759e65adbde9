package vault

import (
	"errors"
	"math/big"

	"credora/core/events"
	"credora/crypto"
)

var (
	errNilState      = errors.New("escrow vault: state not configured")
	ErrNotAuthorized = errors.New("escrow vault: caller not authorized")
	ErrNotIssuer     = errors.New("escrow vault: caller is not the note issuer")
	ErrNotOwner      = errors.New("escrow vault: caller is not the owner")
	ErrZeroAddress   = errors.New("escrow vault: zero address")
	ErrInvalidAmount = errors.New("escrow vault: amount must be positive")
)

type engineState interface {
	VaultIsAuthorized(addr crypto.Address) (bool, error)
	VaultSetAuthorized(addr crypto.Address, authorized bool) error
}

// Engine is the custody and authorization layer for CRD share tokens moved
// between the pool and individual credit notes. Movement functions are
// record-keeping only in this MVP: they authenticate the caller and emit the
// canonical event; actual token custody transfer is performed by the caller
// through its own pre-authorized path.
type Engine struct {
	state         engineState
	owner         crypto.Address
	issuerAddress crypto.Address
	emitter       events.Emitter
}

// NewEngine constructs an escrow vault engine owned by the given address.
func NewEngine(owner crypto.Address) *Engine {
	return &Engine{owner: owner, emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Bootstrap seeds the authorization set with the pool, the designated note
// issuer and the owner. Called once during the post-construction wiring step;
// the vault, note and issuer reference each other, so none of these addresses
// are known at construction time.
func (e *Engine) Bootstrap(pool, issuer crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if pool.IsZero() || issuer.IsZero() {
		return ErrZeroAddress
	}
	e.issuerAddress = issuer
	for _, addr := range []crypto.Address{pool, issuer, e.owner} {
		if err := e.state.VaultSetAuthorized(addr, true); err != nil {
			return err
		}
	}
	return nil
}

// MintCRD records a CRD mint intent. Authorization-gated; event emission only
// in this MVP, no token movement occurs.
func (e *Engine) MintCRD(caller, to crypto.Address, amount *big.Int) error {
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.emit(NewMintCRDEvent(to, amount))
	return nil
}

// BurnCRD records a CRD burn intent. Authorization-gated; event emission only
// in this MVP.
func (e *Engine) BurnCRD(caller, from crypto.Address, amount *big.Int) error {
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if from.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.emit(NewBurnCRDEvent(from, amount))
	return nil
}

// TransferCRDToNote records the movement of escrow backing into a note.
// Callable only by the designated note issuer.
func (e *Engine) TransferCRDToNote(caller, recipient crypto.Address, noteID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.issuerAddress.IsZero() || !caller.Equal(e.issuerAddress) {
		return ErrNotIssuer
	}
	if recipient.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.emit(NewTransferToNoteEvent(recipient, noteID, amount))
	return nil
}

// ReturnCRDFromNote records escrow backing flowing back out of a note.
// Deliberately permissive: any caller may record a return to support varied
// redemption flows.
func (e *Engine) ReturnCRDFromNote(from crypto.Address, noteID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if from.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	e.emit(NewReturnFromNoteEvent(from, noteID, amount))
	return nil
}

// ApproveNoteIssuer grants the issuer unlimited-allowance-equivalent
// authorization. Owner-only; allowance intent is recorded by event in this
// MVP rather than set against an underlying token contract.
func (e *Engine) ApproveNoteIssuer(caller, issuer crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !caller.Equal(e.owner) || e.owner.IsZero() {
		return ErrNotOwner
	}
	if issuer.IsZero() {
		return ErrZeroAddress
	}
	if err := e.state.VaultSetAuthorized(issuer, true); err != nil {
		return err
	}
	e.emit(NewIssuerApprovedEvent(issuer))
	return nil
}

// IsAuthorized reports membership in the authorization set.
func (e *Engine) IsAuthorized(addr crypto.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.VaultIsAuthorized(addr)
}

func (e *Engine) requireAuthorized(caller crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	ok, err := e.state.VaultIsAuthorized(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}
