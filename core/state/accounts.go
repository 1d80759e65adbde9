package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"credora/core/types"
	"credora/crypto"
)

type storedAccount struct {
	BalanceWei *big.Int
	Nonce      uint64
}

// GetAccount loads a participant account. Unknown addresses resolve to a
// zero-balance account so callers never see nil.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	data, err := m.get(addrKey(accountPrefix, addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &types.Account{BalanceWei: big.NewInt(0)}, nil
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	balance := stored.BalanceWei
	if balance == nil {
		balance = big.NewInt(0)
	}
	return &types.Account{BalanceWei: balance, Nonce: stored.Nonce}, nil
}

// PutAccount stores a participant account.
func (m *Manager) PutAccount(addr crypto.Address, account *types.Account) error {
	if account == nil {
		account = &types.Account{}
	}
	balance := account.BalanceWei
	if balance == nil {
		balance = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{BalanceWei: balance, Nonce: account.Nonce})
	if err != nil {
		return err
	}
	return m.put(addrKey(accountPrefix, addr), encoded)
}
