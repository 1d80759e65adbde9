package types

import "math/big"

// Account tracks the base-asset balance held by a protocol participant.
// Amounts are denominated in wei (18-decimal fixed point) and expressed as
// big integers to preserve on-chain precision.
type Account struct {
	BalanceWei *big.Int
	Nonce      uint64
}

// Clone returns a deep copy of the account so callers can safely mutate the
// copy without affecting the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce}
	if a.BalanceWei != nil {
		clone.BalanceWei = new(big.Int).Set(a.BalanceWei)
	} else {
		clone.BalanceWei = big.NewInt(0)
	}
	return clone
}
