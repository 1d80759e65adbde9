package core

import (
	"errors"
	"math/big"
	"testing"

	"credora/crypto"
	"credora/native/issuer"
	"credora/native/note"
	"credora/native/pool"
	"credora/storage"
)

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.CRDPrefix, raw)
}

// milli converts thousandths of the base unit to wei: milli(100) = 0.1e18.
func milli(n int64) *big.Int {
	scale, _ := new(big.Int).SetString("1000000000000000", 10)
	return new(big.Int).Mul(big.NewInt(n), scale)
}

func validProof() *issuer.Proof {
	proof := &issuer.Proof{}
	for i := 0; i < 2; i++ {
		proof.A[i] = big.NewInt(0)
		proof.C[i] = big.NewInt(0)
		for j := 0; j < 2; j++ {
			proof.B[i][j] = big.NewInt(0)
		}
	}
	for i := 0; i < 5; i++ {
		proof.PublicSignals[i] = big.NewInt(0)
	}
	return proof
}

func newTestNode(t *testing.T) (*Node, *pool.DevYieldSource) {
	t.Helper()
	yield := pool.NewDevYieldSource()
	node, err := NewNode(storage.NewMemDB(), yield, issuer.StaticVerifier{Valid: true}, NodeConfig{
		Owner: makeAddress(0x01),
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	node.SetNowFunc(func() int64 { return 1_700_000_000 })
	return node, yield
}

func TestNodeBootstrapAuthorizations(t *testing.T) {
	node, _ := newTestNode(t)

	for _, label := range []string{"pool", "issuer"} {
		ok, err := node.VaultIsAuthorized(crypto.ModuleAddress(label))
		if err != nil {
			t.Fatalf("authorized %s: %v", label, err)
		}
		if !ok {
			t.Fatalf("module %s not authorized after bootstrap", label)
		}
	}
	ok, err := node.VaultIsAuthorized(makeAddress(0x01))
	if err != nil {
		t.Fatalf("authorized owner: %v", err)
	}
	if !ok {
		t.Fatalf("owner not authorized after bootstrap")
	}
}

func TestEndToEndLendingScenario(t *testing.T) {
	node, _ := newTestNode(t)

	depositor := makeAddress(0x10)
	borrower := makeAddress(0x20)
	creditor := makeAddress(0x30)

	if err := node.FundAccount(depositor, milli(10_000)); err != nil {
		t.Fatalf("fund depositor: %v", err)
	}
	if err := node.FundAccount(borrower, milli(1_000)); err != nil {
		t.Fatalf("fund borrower: %v", err)
	}

	// Genesis deposit converts 1:1 at the price floor.
	converted, minted, err := node.Deposit(depositor, milli(10_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if converted.Cmp(milli(10_000)) != 0 {
		t.Fatalf("converted = %s, want %s", converted, milli(10_000))
	}
	if minted.Cmp(milli(10_000)) != 0 {
		t.Fatalf("minted = %s, want %s", minted, milli(10_000))
	}
	shares, err := node.SharesBalanceOf(depositor)
	if err != nil {
		t.Fatalf("shares: %v", err)
	}
	if shares.Cmp(milli(10_000)) != 0 {
		t.Fatalf("depositor shares = %s, want %s", shares, milli(10_000))
	}

	// Borrow 0.1 with the exact 20% advance; the note goes to a third-party
	// creditor while the borrower stays the debtor.
	noteID, tokenID, err := node.CreateNote(borrower, milli(100), milli(20), validProof(), creditor, milli(20))
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if noteID != 1 || tokenID != 1 {
		t.Fatalf("ids = (%d, %d), want (1, 1)", noteID, tokenID)
	}

	owner, err := node.NoteOwner(tokenID)
	if err != nil {
		t.Fatalf("note owner: %v", err)
	}
	if !owner.Equal(creditor) {
		t.Fatalf("note owner = %s, want creditor", owner)
	}

	// Backing was sized before the advance entered the pipeline: 0.12 at
	// the 1:1 price.
	backing, err := node.NoteCRDBalance(tokenID)
	if err != nil {
		t.Fatalf("note balance: %v", err)
	}
	if backing.Cmp(milli(120)) != 0 {
		t.Fatalf("backing = %s, want %s", backing, milli(120))
	}

	// Repay in three installments and watch the debt step down.
	installments := []struct {
		pay       *big.Int
		remaining *big.Int
	}{
		{milli(30), milli(70)},
		{milli(40), milli(30)},
		{milli(30), big.NewInt(0)},
	}
	for i, inst := range installments {
		actual, err := node.Repay(borrower, noteID, inst.pay, inst.pay)
		if err != nil {
			t.Fatalf("repay %d: %v", i, err)
		}
		if actual.Cmp(inst.pay) != 0 {
			t.Fatalf("repay %d actual = %s, want %s", i, actual, inst.pay)
		}
		remaining, err := node.IssuerNoteRemainingDebt(noteID)
		if err != nil {
			t.Fatalf("remaining %d: %v", i, err)
		}
		if remaining.Cmp(inst.remaining) != 0 {
			t.Fatalf("repay %d remaining = %s, want %s", i, remaining, inst.remaining)
		}
	}

	record, err := node.GetIssuerNote(noteID)
	if err != nil {
		t.Fatalf("issuer note: %v", err)
	}
	if record.Status != note.StatusRepaid {
		t.Fatalf("status = %v, want Repaid", record.Status)
	}
	paid, err := node.IsNoteDebtPaid(noteID)
	if err != nil {
		t.Fatalf("debt paid: %v", err)
	}
	if !paid {
		t.Fatalf("expected debt paid")
	}

	// Redemption stays unimplemented and leaves ownership and escrow alone.
	if err := node.RedeemCreditNote(tokenID); !errors.Is(err, note.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
	if err := node.RedeemNote(noteID); !errors.Is(err, issuer.ErrRedeemNotImplemented) {
		t.Fatalf("expected ErrRedeemNotImplemented, got %v", err)
	}
	owner, _ = node.NoteOwner(tokenID)
	if !owner.Equal(creditor) {
		t.Fatalf("owner changed by failed redeem")
	}
	backing, _ = node.NoteCRDBalance(tokenID)
	if backing.Cmp(milli(120)) != 0 {
		t.Fatalf("backing changed by failed redeem: %s", backing)
	}
}

func TestFailedOperationRollsBack(t *testing.T) {
	node, _ := newTestNode(t)
	borrower := makeAddress(0x20)

	// No funding: the advance payment fails mid-issuance and the whole
	// operation must roll back, leaving identifiers unassigned.
	_, _, err := node.CreateNote(borrower, milli(100), milli(20), validProof(), crypto.Address{}, milli(20))
	if err == nil {
		t.Fatalf("expected create failure")
	}

	if _, err := node.GetIssuerNote(1); !errors.Is(err, issuer.ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
	if _, err := node.GetCreditNote(1); !errors.Is(err, note.ErrNoteNotFound) {
		t.Fatalf("expected note ErrNoteNotFound, got %v", err)
	}

	// The advisory conversion total must also be untouched.
	total, err := node.PoolTotalConverted()
	if err != nil {
		t.Fatalf("total converted: %v", err)
	}
	if total.Sign() != 0 {
		t.Fatalf("total converted = %s, want 0", total)
	}

	// After funding, the identifiers start at 1 as if the failure never
	// happened.
	if err := node.FundAccount(borrower, milli(1_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	noteID, tokenID, err := node.CreateNote(borrower, milli(100), milli(20), validProof(), crypto.Address{}, milli(20))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if noteID != 1 || tokenID != 1 {
		t.Fatalf("ids = (%d, %d), want (1, 1)", noteID, tokenID)
	}
}

func TestSharePriceAppreciatesWithRewards(t *testing.T) {
	node, yield := newTestNode(t)
	depositor := makeAddress(0x10)

	if err := node.FundAccount(depositor, milli(1_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, _, err := node.Deposit(depositor, milli(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	price, err := node.SharePrice()
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Cmp(milli(1_000)) != 0 {
		t.Fatalf("price = %s, want %s", price, milli(1_000))
	}

	// Rewards accrue outside the ledger; the price follows the live yield
	// balance without any share supply change.
	yield.AddRewards(milli(500))

	price, err = node.SharePrice()
	if err != nil {
		t.Fatalf("price after rewards: %v", err)
	}
	if price.Cmp(milli(1_500)) != 0 {
		t.Fatalf("price = %s, want %s", price, milli(1_500))
	}
	supply, err := node.SharesTotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Cmp(milli(1_000)) != 0 {
		t.Fatalf("supply = %s, want %s", supply, milli(1_000))
	}
}

func TestUpdateNoteStatusDeclaresDefault(t *testing.T) {
	node, _ := newTestNode(t)
	borrower := makeAddress(0x20)
	if err := node.FundAccount(borrower, milli(1_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	_, tokenID, err := node.CreateNote(borrower, milli(100), milli(20), validProof(), crypto.Address{}, milli(20))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := node.UpdateNoteStatus(tokenID, note.StatusDefaulted); err != nil {
		t.Fatalf("update status: %v", err)
	}
	data, err := node.GetCreditNote(tokenID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if data.Status != note.StatusDefaulted {
		t.Fatalf("status = %v, want Defaulted", data.Status)
	}
}

func TestNoteTokenURIThroughNode(t *testing.T) {
	node, _ := newTestNode(t)
	borrower := makeAddress(0x20)
	if err := node.FundAccount(borrower, milli(1_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	_, tokenID, err := node.CreateNote(borrower, milli(100), milli(20), validProof(), crypto.Address{}, milli(20))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	uri, err := node.NoteTokenURI(tokenID)
	if err != nil {
		t.Fatalf("token uri: %v", err)
	}
	if len(uri) == 0 || uri[:29] != "data:application/json;base64," {
		t.Fatalf("unexpected token uri prefix: %.40s", uri)
	}
}
