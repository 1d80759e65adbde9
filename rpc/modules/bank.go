package modules

import (
	"encoding/json"
	"net/http"

	"credora/core"
)

// BankModule exposes protocol token account queries and the dev-mode faucet.
type BankModule struct {
	node    *core.Node
	devMode bool
}

// NewBankModule constructs a bank RPC helper module. The faucet is only
// reachable when devMode is set.
func NewBankModule(node *core.Node, devMode bool) *BankModule {
	return &BankModule{node: node, devMode: devMode}
}

type accountParams struct {
	Address string `json:"address"`
}

// AccountResult reports a protocol token account.
type AccountResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// GetAccount returns the balance and nonce for an address. Unknown addresses
// resolve to a zero balance.
func (m *BankModule) GetAccount(raw json.RawMessage) (*AccountResult, *ModuleError) {
	var params accountParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid account parameters", err.Error())
	}
	addr, modErr := parseAddress("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	account, err := m.node.GetAccount(addr)
	if err != nil {
		return nil, serverError("failed to load account", err.Error())
	}
	return &AccountResult{
		Address: addr.String(),
		Balance: bigString(account.BalanceWei),
		Nonce:   account.Nonce,
	}, nil
}

type faucetParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// Fund credits protocol token to an account. Dev mode only.
func (m *BankModule) Fund(raw json.RawMessage) (*AccountResult, *ModuleError) {
	if !m.devMode {
		return nil, &ModuleError{HTTPStatus: http.StatusForbidden, Code: codeServerError, Message: "faucet disabled outside dev mode"}
	}
	var params faucetParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid faucet parameters", err.Error())
	}
	addr, modErr := parseAddress("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	amount, modErr := parseAmount("amount", params.Amount)
	if modErr != nil {
		return nil, modErr
	}
	if err := m.node.FundAccount(addr, amount); err != nil {
		return nil, serverError("faucet funding failed", err.Error())
	}
	account, err := m.node.GetAccount(addr)
	if err != nil {
		return nil, serverError("failed to load account", err.Error())
	}
	return &AccountResult{
		Address: addr.String(),
		Balance: bigString(account.BalanceWei),
		Nonce:   account.Nonce,
	}, nil
}
