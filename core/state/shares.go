package state

import (
	"math/big"

	"credora/crypto"
)

// SharesBalance returns the share balance held by the address.
func (m *Manager) SharesBalance(addr crypto.Address) (*big.Int, error) {
	return m.readBig(addrKey(shareBalancePrefix, addr))
}

// SharesSetBalance stores the share balance for the address. The ledger
// engine keeps the supply-conservation invariant by always adjusting supply
// in the same operation.
func (m *Manager) SharesSetBalance(addr crypto.Address, balance *big.Int) error {
	return m.writeBig(addrKey(shareBalancePrefix, addr), balance)
}

// SharesTotalSupply returns the outstanding share supply.
func (m *Manager) SharesTotalSupply() (*big.Int, error) {
	return m.readBig(shareSupplyKey)
}

// SharesSetTotalSupply stores the outstanding share supply.
func (m *Manager) SharesSetTotalSupply(total *big.Int) error {
	return m.writeBig(shareSupplyKey, total)
}

// PoolTotalConverted returns the advisory running total of converted
// deposits. Informational only; pricing always re-queries the live yield
// balance.
func (m *Manager) PoolTotalConverted() (*big.Int, error) {
	return m.readBig(poolConvertedKey)
}

// PoolSetTotalConverted stores the advisory conversion total.
func (m *Manager) PoolSetTotalConverted(total *big.Int) error {
	return m.writeBig(poolConvertedKey, total)
}

// VaultIsAuthorized reports membership in the vault authorization set.
func (m *Manager) VaultIsAuthorized(addr crypto.Address) (bool, error) {
	value, err := m.readUint(addrKey(vaultAuthPrefix, addr))
	if err != nil {
		return false, err
	}
	return value == 1, nil
}

// VaultSetAuthorized adds or removes an address from the authorization set.
func (m *Manager) VaultSetAuthorized(addr crypto.Address, authorized bool) error {
	var value uint64
	if authorized {
		value = 1
	}
	return m.writeUint(addrKey(vaultAuthPrefix, addr), value)
}
