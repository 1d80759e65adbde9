package shares

import (
	"errors"
	"math/big"

	"credora/core/events"
	"credora/crypto"
)

var (
	errNilState       = errors.New("share ledger: state not configured")
	errNoYieldSource  = errors.New("share ledger: yield balance source not configured")
	ErrNotPool        = errors.New("share ledger: caller is not the pool")
	ErrZeroAddress    = errors.New("share ledger: zero address")
	ErrInvalidAmount  = errors.New("share ledger: amount must be positive")
	ErrInvalidDeposit = errors.New("share ledger: deposit amount must be positive")
)

type engineState interface {
	SharesBalance(addr crypto.Address) (*big.Int, error)
	SharesSetBalance(addr crypto.Address, balance *big.Int) error
	SharesTotalSupply() (*big.Int, error)
	SharesSetTotalSupply(total *big.Int) error
}

// YieldBalanceSource reports the pool's current yield-bearing balance, the
// sole pricing input besides total supply.
type YieldBalanceSource interface {
	YieldBalance() (*big.Int, error)
}

// Engine implements the fungible share ledger and the share-price oracle. It
// mints shares on behalf of the pool and derives the price from the pool's
// live yield-source balance; the price is never stored.
type Engine struct {
	state       engineState
	poolAddress crypto.Address
	yield       YieldBalanceSource
	emitter     events.Emitter
}

// NewEngine constructs a share ledger engine with a no-op event emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPoolAddress configures the only address permitted to mint shares.
func (e *Engine) SetPoolAddress(addr crypto.Address) {
	if e == nil {
		return
	}
	e.poolAddress = addr
}

// SetYieldBalanceSource wires the pool's yield balance query used for pricing.
// Set during the post-construction wiring step because the pool and the share
// ledger reference each other.
func (e *Engine) SetYieldBalanceSource(src YieldBalanceSource) {
	if e == nil {
		return
	}
	e.yield = src
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Mint credits newly issued shares to the recipient. Only the pool may call
// this; the pool is responsible for having sized the amount fairly via
// CalculateSharesForDeposit. The emitted event carries the share price as it
// stood before the mint, i.e. the basis that justified the amount.
func (e *Engine) Mint(caller, to crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !caller.Equal(e.poolAddress) || e.poolAddress.IsZero() {
		return ErrNotPool
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	priceBasis, err := e.SharePrice()
	if err != nil {
		return err
	}

	balance, err := e.state.SharesBalance(to)
	if err != nil {
		return err
	}
	supply, err := e.state.SharesTotalSupply()
	if err != nil {
		return err
	}

	balance = new(big.Int).Add(balance, amount)
	supply = new(big.Int).Add(supply, amount)

	if err := e.state.SharesSetBalance(to, balance); err != nil {
		return err
	}
	if err := e.state.SharesSetTotalSupply(supply); err != nil {
		return err
	}

	e.emit(NewMintedEvent(to, amount, priceBasis))
	return nil
}

// SharePrice returns the current share price derived from the pool's live
// yield-source balance and the total share supply.
func (e *Engine) SharePrice() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.yield == nil {
		return nil, errNoYieldSource
	}
	yieldBalance, err := e.yield.YieldBalance()
	if err != nil {
		return nil, err
	}
	supply, err := e.state.SharesTotalSupply()
	if err != nil {
		return nil, err
	}
	return CalculatePrice(yieldBalance, supply), nil
}

// CalculatePrice is the price formula in isolation: yieldBalance * 1e18 /
// supply, floored to exactly 1e18 when either operand is zero. Deterministic
// and free of side effects so callers can project prices without a live
// balance query.
func CalculatePrice(yieldBalance, supply *big.Int) *big.Int {
	if yieldBalance == nil || yieldBalance.Sign() == 0 {
		return new(big.Int).Set(priceScale)
	}
	if supply == nil || supply.Sign() == 0 {
		return new(big.Int).Set(priceScale)
	}
	price := new(big.Int).Mul(yieldBalance, priceScale)
	return price.Quo(price, supply)
}

// CalculateSharesForDeposit returns the share amount a deposit is worth at the
// current price: depositAmount * 1e18 / sharePrice.
func (e *Engine) CalculateSharesForDeposit(depositAmount *big.Int) (*big.Int, error) {
	if depositAmount == nil || depositAmount.Sign() <= 0 {
		return nil, ErrInvalidDeposit
	}
	price, err := e.SharePrice()
	if err != nil {
		return nil, err
	}
	if price.Sign() == 0 {
		// Unreachable given the price floor; fall back to 1:1 rather
		// than divide by zero.
		return new(big.Int).Set(depositAmount), nil
	}
	minted := new(big.Int).Mul(depositAmount, priceScale)
	return minted.Quo(minted, price), nil
}

// BalanceOf returns the share balance held by the address.
func (e *Engine) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.SharesBalance(addr)
}

// TotalSupply returns the outstanding share supply.
func (e *Engine) TotalSupply() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.SharesTotalSupply()
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}
