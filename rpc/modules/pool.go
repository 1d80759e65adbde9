package modules

import (
	"encoding/json"
	"errors"
	"net/http"

	"credora/core"
	"credora/native/common"
	"credora/native/pool"
)

// PoolModule exposes the liquidity pool and share ledger over RPC.
type PoolModule struct {
	node *core.Node
}

// NewPoolModule constructs a pool RPC helper module.
func NewPoolModule(node *core.Node) *PoolModule {
	return &PoolModule{node: node}
}

type depositParams struct {
	Depositor string `json:"depositor"`
	Amount    string `json:"amount"`
}

// DepositResult reports a completed pool deposit.
type DepositResult struct {
	Depositor    string `json:"depositor"`
	Amount       string `json:"amount"`
	Converted    string `json:"converted"`
	SharesMinted string `json:"sharesMinted"`
}

// Deposit moves protocol token from the depositor into the pool and mints CRD
// shares for the converted amount.
func (m *PoolModule) Deposit(raw json.RawMessage) (*DepositResult, *ModuleError) {
	var params depositParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid deposit parameters", err.Error())
	}
	depositor, modErr := parseAddress("depositor", params.Depositor)
	if modErr != nil {
		return nil, modErr
	}
	amount, modErr := parseAmount("amount", params.Amount)
	if modErr != nil {
		return nil, modErr
	}

	converted, minted, err := m.node.Deposit(depositor, amount)
	if err != nil {
		return nil, mapPoolError(err)
	}
	return &DepositResult{
		Depositor:    depositor.String(),
		Amount:       amount.String(),
		Converted:    bigString(converted),
		SharesMinted: bigString(minted),
	}, nil
}

type poolAddressParams struct {
	Address string `json:"address"`
}

// BalanceResult reports a CRD share balance.
type BalanceResult struct {
	Address string `json:"address"`
	Shares  string `json:"shares"`
}

// SharesBalance returns the CRD share balance for an address.
func (m *PoolModule) SharesBalance(raw json.RawMessage) (*BalanceResult, *ModuleError) {
	var params poolAddressParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid balance parameters", err.Error())
	}
	addr, modErr := parseAddress("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	balance, err := m.node.SharesBalanceOf(addr)
	if err != nil {
		return nil, serverError("failed to load share balance", err.Error())
	}
	return &BalanceResult{Address: addr.String(), Shares: bigString(balance)}, nil
}

// PoolStatusResult summarises the pool-wide accounting values.
type PoolStatusResult struct {
	SharePrice     string `json:"sharePrice"`
	TotalSupply    string `json:"totalSupply"`
	YieldBalance   string `json:"yieldBalance"`
	TotalConverted string `json:"totalConverted"`
}

// Status returns the current share price alongside supply and yield totals.
func (m *PoolModule) Status() (*PoolStatusResult, *ModuleError) {
	price, err := m.node.SharePrice()
	if err != nil {
		return nil, serverError("failed to compute share price", err.Error())
	}
	supply, err := m.node.SharesTotalSupply()
	if err != nil {
		return nil, serverError("failed to load share supply", err.Error())
	}
	yield, err := m.node.YieldBalance()
	if err != nil {
		return nil, serverError("failed to load yield balance", err.Error())
	}
	converted, err := m.node.PoolTotalConverted()
	if err != nil {
		return nil, serverError("failed to load converted total", err.Error())
	}
	return &PoolStatusResult{
		SharePrice:     bigString(price),
		TotalSupply:    bigString(supply),
		YieldBalance:   bigString(yield),
		TotalConverted: bigString(converted),
	}, nil
}

type previewSharesParams struct {
	Amount string `json:"amount"`
}

// PreviewSharesResult reports the share amount a deposit would mint.
type PreviewSharesResult struct {
	Amount string `json:"amount"`
	Shares string `json:"shares"`
}

// PreviewShares converts a deposit amount into shares at the current price
// without mutating state.
func (m *PoolModule) PreviewShares(raw json.RawMessage) (*PreviewSharesResult, *ModuleError) {
	var params previewSharesParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid preview parameters", err.Error())
	}
	amount, modErr := parseAmount("amount", params.Amount)
	if modErr != nil {
		return nil, modErr
	}
	shares, err := m.node.CalculateSharesForDeposit(amount)
	if err != nil {
		return nil, mapPoolError(err)
	}
	return &PreviewSharesResult{Amount: amount.String(), Shares: bigString(shares)}, nil
}

func mapPoolError(err error) *ModuleError {
	switch {
	case errors.Is(err, pool.ErrZeroDeposit),
		errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, pool.ErrPaymentMismatch):
		return invalidParams(err.Error(), nil)
	case errors.Is(err, pool.ErrInsufficientFunds):
		return &ModuleError{HTTPStatus: http.StatusUnprocessableEntity, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, common.ErrModulePaused):
		return &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeServerError, Message: err.Error()}
	default:
		return serverError("pool operation failed", err.Error())
	}
}
