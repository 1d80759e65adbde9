package modules

import (
	"encoding/json"
	"errors"
	"net/http"

	"credora/core"
	"credora/native/vault"
)

// VaultModule exposes the escrow vault authorization surface over RPC.
type VaultModule struct {
	node *core.Node
}

// NewVaultModule constructs a vault RPC helper module.
func NewVaultModule(node *core.Node) *VaultModule {
	return &VaultModule{node: node}
}

type vaultAddressParams struct {
	Address string `json:"address"`
}

// AuthorizationResult reports whether an address may direct vault funds.
type AuthorizationResult struct {
	Address    string `json:"address"`
	Authorized bool   `json:"authorized"`
}

// IsAuthorized reports whether the address is in the vault authorization set.
func (m *VaultModule) IsAuthorized(raw json.RawMessage) (*AuthorizationResult, *ModuleError) {
	var params vaultAddressParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid vault parameters", err.Error())
	}
	addr, modErr := parseAddress("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	authorized, err := m.node.VaultIsAuthorized(addr)
	if err != nil {
		return nil, serverError("failed to load authorization", err.Error())
	}
	return &AuthorizationResult{Address: addr.String(), Authorized: authorized}, nil
}

type approveIssuerParams struct {
	Caller string `json:"caller"`
	Issuer string `json:"issuer"`
}

// ApproveIssuer adds an issuer address to the vault authorization set. The
// caller must be the vault owner.
func (m *VaultModule) ApproveIssuer(raw json.RawMessage) (*AuthorizationResult, *ModuleError) {
	var params approveIssuerParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid approval parameters", err.Error())
	}
	caller, modErr := parseAddress("caller", params.Caller)
	if modErr != nil {
		return nil, modErr
	}
	issuerAddr, modErr := parseAddress("issuer", params.Issuer)
	if modErr != nil {
		return nil, modErr
	}
	if err := m.node.ApproveNoteIssuer(caller, issuerAddr); err != nil {
		return nil, mapVaultError(err)
	}
	return &AuthorizationResult{Address: issuerAddr.String(), Authorized: true}, nil
}

func mapVaultError(err error) *ModuleError {
	switch {
	case errors.Is(err, vault.ErrNotOwner),
		errors.Is(err, vault.ErrNotAuthorized),
		errors.Is(err, vault.ErrNotIssuer):
		return &ModuleError{HTTPStatus: http.StatusForbidden, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, vault.ErrZeroAddress),
		errors.Is(err, vault.ErrInvalidAmount):
		return invalidParams(err.Error(), nil)
	default:
		return serverError("vault operation failed", err.Error())
	}
}
