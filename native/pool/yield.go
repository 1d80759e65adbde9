package pool

import (
	"errors"
	"math/big"
	"sync"
)

// YieldSource models the external staking pipeline the pool routes deposits
// through. The three conversion stages run sequentially: Submit stakes the
// base asset for a receipt token, Wrap converts the receipt into the
// rebasing-resistant wrapped token, and Restake deposits the wrapped token
// into the external restaking vault.
//
// Balance reports the pool's current wrapped balance inside the restaking
// vault and is the sole source of truth for share pricing. WrappedBalance
// reports the intermediate wrapped-token holdings and only serves as the
// secondary balance-delta signal around Wrap.
type YieldSource interface {
	Submit(amount *big.Int) (*big.Int, error)
	Wrap(amount *big.Int) (*big.Int, error)
	Restake(amount *big.Int) (deposited *big.Int, mintedShares *big.Int, err error)
	Balance() (*big.Int, error)
	WrappedBalance() (*big.Int, error)
}

var errDevYieldAmount = errors.New("dev yield source: amount must be positive")

// DevYieldSource is a deterministic in-process pipeline used by tests and the
// daemon's dev mode. Every stage converts 1:1 and restaked funds accumulate in
// a single balance.
type DevYieldSource struct {
	mu       sync.Mutex
	wrapped  *big.Int
	restaked *big.Int
}

func NewDevYieldSource() *DevYieldSource {
	return &DevYieldSource{wrapped: big.NewInt(0), restaked: big.NewInt(0)}
}

func (d *DevYieldSource) Submit(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errDevYieldAmount
	}
	return new(big.Int).Set(amount), nil
}

func (d *DevYieldSource) Wrap(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errDevYieldAmount
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wrapped = new(big.Int).Add(d.wrapped, amount)
	return new(big.Int).Set(amount), nil
}

func (d *DevYieldSource) Restake(amount *big.Int) (*big.Int, *big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, errDevYieldAmount
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.wrapped.Cmp(amount) < 0 {
		return nil, nil, errDevYieldAmount
	}
	d.wrapped = new(big.Int).Sub(d.wrapped, amount)
	d.restaked = new(big.Int).Add(d.restaked, amount)
	return new(big.Int).Set(amount), new(big.Int).Set(amount), nil
}

func (d *DevYieldSource) Balance() (*big.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return new(big.Int).Set(d.restaked), nil
}

func (d *DevYieldSource) WrappedBalance() (*big.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return new(big.Int).Set(d.wrapped), nil
}

// AddRewards simulates staking rewards accruing to the restaked balance. Only
// meaningful in dev mode and tests; the live pipeline appreciates on its own.
func (d *DevYieldSource) AddRewards(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restaked = new(big.Int).Add(d.restaked, amount)
}
