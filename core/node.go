package core

import (
	"math/big"
	"sync"

	"credora/core/events"
	"credora/core/state"
	"credora/core/types"
	"credora/crypto"
	nativecommon "credora/native/common"
	"credora/native/issuer"
	"credora/native/note"
	"credora/native/pool"
	"credora/native/shares"
	"credora/native/vault"
	"credora/storage"
)

// NodeConfig carries the construction-time knobs for a protocol node.
type NodeConfig struct {
	// Owner controls the escrow vault's authorization set.
	Owner crypto.Address
	// IssuerParams configures the issuance policy; zero value selects the
	// reference defaults.
	IssuerParams issuer.Params
	// ImageBaseURL templates note metadata image links.
	ImageBaseURL string
}

// Node hosts the five protocol engines over a shared state manager and
// serializes every operation. The platform model is serially ordered
// transactions: each operation runs to completion under the node mutex and
// its state writes are committed atomically or discarded entirely.
type Node struct {
	mu sync.Mutex

	db    storage.Database
	state *state.Manager

	shares *shares.Engine
	pool   *pool.Engine
	vault  *vault.Engine
	notes  *note.Engine
	issuer *issuer.Engine

	poolAddress   crypto.Address
	issuerAddress crypto.Address
	noteCustody   crypto.Address
}

// NewNode constructs and wires a protocol node. Engine cross-references are
// circular (pool prices against the ledger that mints for it; the vault,
// note and issuer each need the others' addresses), so construction is
// two-phase: bare engines first, then a single wiring pass before the node
// accepts traffic.
func NewNode(db storage.Database, yield pool.YieldSource, verifier issuer.ProofVerifier, cfg NodeConfig) (*Node, error) {
	n := &Node{
		db:            db,
		state:         state.NewManager(db),
		poolAddress:   crypto.ModuleAddress("pool"),
		issuerAddress: crypto.ModuleAddress("issuer"),
		noteCustody:   crypto.ModuleAddress("note-custody"),
	}

	n.shares = shares.NewEngine()
	n.pool = pool.NewEngine(n.poolAddress)
	n.vault = vault.NewEngine(cfg.Owner)
	n.notes = note.NewEngine()
	n.issuer = issuer.NewEngine(n.issuerAddress, cfg.IssuerParams)

	n.shares.SetState(n.state)
	n.pool.SetState(n.state)
	n.vault.SetState(n.state)
	n.notes.SetState(n.state)
	n.issuer.SetState(n.state)

	// Wiring pass: set every cross-reference exactly once.
	n.shares.SetPoolAddress(n.poolAddress)
	n.shares.SetYieldBalanceSource(n.pool)
	n.pool.SetYieldSource(yield)
	n.pool.SetShareLedger(n.shares)
	n.notes.SetTrustedCaller(n.issuerAddress)
	n.notes.SetImageBaseURL(cfg.ImageBaseURL)
	n.issuer.SetVerifier(verifier)
	n.issuer.Wire(n.pool, n.vault, n.notes, n.noteCustody)

	if err := n.vault.Bootstrap(n.poolAddress, n.issuerAddress); err != nil {
		n.state.Discard()
		return nil, err
	}
	if err := n.state.Commit(); err != nil {
		return nil, err
	}
	return n, nil
}

// SetEmitter propagates an event emitter to every engine.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.shares.SetEmitter(emitter)
	n.pool.SetEmitter(emitter)
	n.vault.SetEmitter(emitter)
	n.notes.SetEmitter(emitter)
	n.issuer.SetEmitter(emitter)
}

// SetPauses installs the administrative pause view on the guarded engines.
func (n *Node) SetPauses(p nativecommon.PauseView) {
	n.pool.SetPauses(p)
	n.issuer.SetPauses(p)
}

// SetNowFunc overrides the time source on the time-aware engines. Intended
// for tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.notes.SetNowFunc(now)
	n.issuer.SetNowFunc(now)
}

// execute runs a mutating operation atomically: state writes commit only when
// the operation succeeds and are discarded wholesale otherwise.
func (n *Node) execute(op func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := op(); err != nil {
		n.state.Discard()
		return err
	}
	return n.state.Commit()
}

// --- pool operations ---

// Deposit routes a lender deposit through the yield pipeline and mints
// proportional shares.
func (n *Node) Deposit(depositor crypto.Address, value *big.Int) (converted, minted *big.Int, err error) {
	err = n.execute(func() error {
		converted, minted, err = n.pool.Deposit(depositor, value)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return converted, minted, nil
}

// ReceivePayment routes a payment into the pool without minting shares.
func (n *Node) ReceivePayment(from crypto.Address, amount, value *big.Int) (converted *big.Int, err error) {
	err = n.execute(func() error {
		converted, err = n.pool.ReceivePayment(from, amount, value)
		return err
	})
	if err != nil {
		return nil, err
	}
	return converted, nil
}

// --- issuer operations ---

// CreateNote runs the full issuance flow and returns the issuer note
// identifier and the NFT token identifier.
func (n *Node) CreateNote(borrower crypto.Address, principal, advance *big.Int, proof *issuer.Proof, creditor crypto.Address, value *big.Int) (noteID, tokenID uint64, err error) {
	err = n.execute(func() error {
		noteID, tokenID, err = n.issuer.CreateNote(borrower, principal, advance, proof, creditor, value)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return noteID, tokenID, nil
}

// Repay charges a repayment against a note and returns the actually charged
// amount.
func (n *Node) Repay(caller crypto.Address, noteID uint64, amount, value *big.Int) (actual *big.Int, err error) {
	err = n.execute(func() error {
		actual, err = n.issuer.Repay(caller, noteID, amount, value)
		return err
	})
	if err != nil {
		return nil, err
	}
	return actual, nil
}

// RedeemNote surfaces the issuer's deliberate not-implemented failure.
func (n *Node) RedeemNote(noteID uint64) error {
	return n.issuer.RedeemNote(noteID)
}

// TransferNote surfaces the issuer's deliberate not-implemented failure.
func (n *Node) TransferNote(noteID uint64, to crypto.Address) error {
	return n.issuer.TransferNote(noteID, to)
}

// --- note operations ---

// NoteDeposit tops up a note's escrow balance.
func (n *Node) NoteDeposit(tokenID uint64, amount *big.Int) error {
	return n.execute(func() error {
		return n.notes.Deposit(tokenID, amount)
	})
}

// UpdateNoteStatus overwrites a note's status under the trusted issuer
// capability. Exposed for default declarations; the RPC layer gates access.
func (n *Node) UpdateNoteStatus(tokenID uint64, status note.Status) error {
	return n.execute(func() error {
		return n.notes.UpdateNoteStatus(n.issuerAddress, tokenID, status)
	})
}

// RedeemCreditNote surfaces the credit note contract's deliberate
// not-implemented failure.
func (n *Node) RedeemCreditNote(tokenID uint64) error {
	return n.notes.Redeem(tokenID)
}

// --- vault operations ---

// ApproveNoteIssuer grants issuer authorization; only the configured owner
// may call.
func (n *Node) ApproveNoteIssuer(caller, issuerAddr crypto.Address) error {
	return n.execute(func() error {
		return n.vault.ApproveNoteIssuer(caller, issuerAddr)
	})
}

// ReturnCRDFromNote records escrow backing flowing out of a note.
func (n *Node) ReturnCRDFromNote(from crypto.Address, noteID uint64, amount *big.Int) error {
	return n.execute(func() error {
		return n.vault.ReturnCRDFromNote(from, noteID, amount)
	})
}

// VaultIsAuthorized reports authorization-set membership.
func (n *Node) VaultIsAuthorized(addr crypto.Address) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.IsAuthorized(addr)
}

// --- views ---

// SharePrice returns the live share price.
func (n *Node) SharePrice() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shares.SharePrice()
}

// CalculateSharesForDeposit projects a deposit's share value at the current
// price.
func (n *Node) CalculateSharesForDeposit(amount *big.Int) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shares.CalculateSharesForDeposit(amount)
}

// SharesBalanceOf returns the share balance for an address.
func (n *Node) SharesBalanceOf(addr crypto.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shares.BalanceOf(addr)
}

// SharesTotalSupply returns the outstanding share supply.
func (n *Node) SharesTotalSupply() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shares.TotalSupply()
}

// YieldBalance returns the pool's live restaked balance.
func (n *Node) YieldBalance() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.YieldBalance()
}

// PoolTotalConverted returns the pool's advisory conversion total.
func (n *Node) PoolTotalConverted() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.TotalConverted()
}

// GetCreditNote returns a note's debt record.
func (n *Node) GetCreditNote(tokenID uint64) (*note.CreditNoteData, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notes.Get(tokenID)
}

// NoteOwner returns the NFT holder of a note.
func (n *Node) NoteOwner(tokenID uint64) (crypto.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notes.OwnerOf(tokenID)
}

// NoteCRDBalance returns a note's escrowed CRD balance.
func (n *Node) NoteCRDBalance(tokenID uint64) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notes.BalanceOfNote(tokenID)
}

// NoteTokenURI returns the metadata data URI for a note.
func (n *Node) NoteTokenURI(tokenID uint64) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notes.TokenURI(tokenID)
}

// NoteIsMature reports whether a note passed its maturity timestamp.
func (n *Node) NoteIsMature(tokenID uint64) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notes.IsMature(tokenID)
}

// NoteRemainingDebt returns the remaining debt from the credit note ledger.
func (n *Node) NoteRemainingDebt(tokenID uint64) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notes.RemainingDebt(tokenID)
}

// GetIssuerNote returns the issuer's bookkeeping record for a note.
func (n *Node) GetIssuerNote(noteID uint64) (*issuer.Note, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.issuer.GetNote(noteID)
}

// IssuerNoteTokenID maps an issuer note identifier to its NFT token
// identifier.
func (n *Node) IssuerNoteTokenID(noteID uint64) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.issuer.NoteTokenID(noteID)
}

// IssuerNoteRemainingDebt returns remaining debt from the issuer ledger.
func (n *Node) IssuerNoteRemainingDebt(noteID uint64) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.issuer.NoteRemainingDebt(noteID)
}

// IsNoteDebtPaid reports whether the issuer ledger shows zero debt.
func (n *Node) IsNoteDebtPaid(noteID uint64) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.issuer.IsNoteDebtPaid(noteID)
}

// CalculateRequiredAdvance sizes the minimum advance for a principal.
func (n *Node) CalculateRequiredAdvance(principal *big.Int) *big.Int {
	return n.issuer.CalculateRequiredAdvance(principal)
}

// GetAccount returns a participant's base-asset account.
func (n *Node) GetAccount(addr crypto.Address) (*types.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.GetAccount(addr)
}

// FundAccount credits a base-asset balance. Dev-mode faucet only; the live
// deployment receives balances from the settlement layer.
func (n *Node) FundAccount(addr crypto.Address, amount *big.Int) error {
	return n.execute(func() error {
		account, err := n.state.GetAccount(addr)
		if err != nil {
			return err
		}
		account.BalanceWei = new(big.Int).Add(account.BalanceWei, amount)
		return n.state.PutAccount(addr, account)
	})
}
