package pool

import (
	"errors"
	"math/big"

	"credora/core/events"
	"credora/core/types"
	"credora/crypto"
	nativecommon "credora/native/common"
)

var (
	errNilState          = errors.New("pool: state not configured")
	errNilYieldSource    = errors.New("pool: yield source not configured")
	errNilShareLedger    = errors.New("pool: share ledger not configured")
	ErrZeroDeposit       = errors.New("pool: deposit value must be positive")
	ErrInvalidAmount     = errors.New("pool: amount must be positive")
	ErrPaymentMismatch   = errors.New("pool: attached value must equal declared amount")
	ErrInsufficientFunds = errors.New("pool: insufficient balance")
	ErrConversionFailed  = errors.New("pool: conversion failed")
	ErrDepositFailed     = errors.New("pool: deposit failed")
	ErrNoSharesMinted    = errors.New("pool: no shares minted")
)

const moduleName = "pool"

type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	PoolTotalConverted() (*big.Int, error)
	PoolSetTotalConverted(total *big.Int) error
}

// ShareLedger is the slice of the share-ledger engine the pool needs: sizing
// proportional mints and executing them.
type ShareLedger interface {
	Mint(caller, to crypto.Address, amount *big.Int) error
	CalculateSharesForDeposit(depositAmount *big.Int) (*big.Int, error)
	SharePrice() (*big.Int, error)
}

// Engine accepts base-asset deposits and routes them through the external
// yield pipeline, minting proportional shares for depositors. Advance
// payments and loan repayments flow through the same pipeline without
// minting.
type Engine struct {
	state         engineState
	moduleAddress crypto.Address
	yield         YieldSource
	ledger        ShareLedger
	emitter       events.Emitter
	pauses        nativecommon.PauseView
}

// NewEngine constructs a pool engine bound to its module treasury address.
func NewEngine(moduleAddr crypto.Address) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		emitter:       events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetYieldSource configures the external staking pipeline.
func (e *Engine) SetYieldSource(src YieldSource) {
	if e == nil {
		return
	}
	e.yield = src
}

// SetShareLedger wires the share ledger. Set during the post-construction
// wiring step because the ledger prices against this pool's yield balance.
func (e *Engine) SetShareLedger(ledger ShareLedger) {
	if e == nil {
		return
	}
	e.ledger = ledger
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// ModuleAddress returns the pool treasury address.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.moduleAddress
}

// Deposit accepts a base-asset payment from the depositor, converts it
// through the yield pipeline and mints proportional shares. The converted
// amount and the minted share amount are returned.
func (e *Engine) Deposit(depositor crypto.Address, value *big.Int) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if e.ledger == nil {
		return nil, nil, errNilShareLedger
	}
	if value == nil || value.Sign() <= 0 {
		return nil, nil, ErrZeroDeposit
	}

	if err := e.collect(depositor, value); err != nil {
		return nil, nil, err
	}

	converted, err := e.convert(value)
	if err != nil {
		return nil, nil, err
	}

	minted, err := e.ledger.CalculateSharesForDeposit(converted)
	if err != nil {
		return nil, nil, err
	}
	if minted.Sign() == 0 {
		return nil, nil, ErrNoSharesMinted
	}
	if err := e.ledger.Mint(e.moduleAddress, depositor, minted); err != nil {
		return nil, nil, err
	}

	e.emit(NewDepositEvent(depositor, value, converted, minted))
	return converted, minted, nil
}

// ReceivePayment routes an advance payment or loan repayment into the yield
// pipeline without minting shares. The attached value must exactly equal the
// declared amount.
func (e *Engine) ReceivePayment(from crypto.Address, amount, value *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if value == nil || value.Cmp(amount) != 0 {
		return nil, ErrPaymentMismatch
	}

	if err := e.collect(from, amount); err != nil {
		return nil, err
	}

	converted, err := e.convert(amount)
	if err != nil {
		return nil, err
	}

	e.emit(NewPaymentReceivedEvent(from, amount, converted))
	return converted, nil
}

// YieldBalance reports the pool's current balance inside the external
// restaking vault. This is the sole source of truth for share pricing; the
// advisory totalConverted counter must never substitute for it.
func (e *Engine) YieldBalance() (*big.Int, error) {
	if e == nil || e.yield == nil {
		return nil, errNilYieldSource
	}
	return e.yield.Balance()
}

// TotalConverted returns the advisory running total of converted amounts.
func (e *Engine) TotalConverted() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.PoolTotalConverted()
}

// CalculateCRDShares forwards to the share ledger's proportional sizing.
func (e *Engine) CalculateCRDShares(amount *big.Int) (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilShareLedger
	}
	return e.ledger.CalculateSharesForDeposit(amount)
}

// CRDPrice forwards to the share ledger's live price.
func (e *Engine) CRDPrice() (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilShareLedger
	}
	return e.ledger.SharePrice()
}

// collect debits the payer and credits the pool treasury, the in-ledger
// representation of attaching value to the call.
func (e *Engine) collect(from crypto.Address, amount *big.Int) error {
	payer, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	if payer == nil || payer.BalanceWei == nil || payer.BalanceWei.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	treasury, err := e.state.GetAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	if treasury == nil {
		treasury = &types.Account{BalanceWei: big.NewInt(0)}
	}

	payer.BalanceWei = new(big.Int).Sub(payer.BalanceWei, amount)
	treasury.BalanceWei = new(big.Int).Add(treasury.BalanceWei, amount)

	if err := e.state.PutAccount(from, payer); err != nil {
		return err
	}
	return e.state.PutAccount(e.moduleAddress, treasury)
}

// convert runs the three-stage pipeline and returns the authoritative
// converted amount. The wrap return value wins; the wrapped-balance delta is
// only consulted when a non-standard wrapper reports zero.
func (e *Engine) convert(amount *big.Int) (*big.Int, error) {
	if e.yield == nil {
		return nil, errNilYieldSource
	}

	staked, err := e.yield.Submit(amount)
	if err != nil {
		return nil, err
	}
	if staked == nil || staked.Sign() == 0 {
		return nil, ErrConversionFailed
	}

	wrappedBefore, err := e.yield.WrappedBalance()
	if err != nil {
		return nil, err
	}
	wrapped, err := e.yield.Wrap(staked)
	if err != nil {
		return nil, err
	}
	if wrapped == nil || wrapped.Sign() == 0 {
		wrappedAfter, balErr := e.yield.WrappedBalance()
		if balErr != nil {
			return nil, balErr
		}
		delta := new(big.Int).Sub(wrappedAfter, wrappedBefore)
		if delta.Sign() <= 0 {
			return nil, ErrConversionFailed
		}
		wrapped = delta
	}

	deposited, externalShares, err := e.yield.Restake(wrapped)
	if err != nil {
		return nil, err
	}
	if deposited == nil || deposited.Sign() == 0 || externalShares == nil || externalShares.Sign() == 0 {
		return nil, ErrDepositFailed
	}

	total, err := e.state.PoolTotalConverted()
	if err != nil {
		return nil, err
	}
	total = new(big.Int).Add(total, wrapped)
	if err := e.state.PoolSetTotalConverted(total); err != nil {
		return nil, err
	}

	return wrapped, nil
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}
