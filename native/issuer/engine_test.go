package issuer

import (
	"errors"
	"math/big"
	"testing"

	"credora/core/types"
	"credora/crypto"
	"credora/native/note"
)

type mockEngineState struct {
	accounts map[string]*types.Account
	notes    map[uint64]*Note
	tokens   map[uint64]uint64
	counter  uint64
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		accounts: make(map[string]*types.Account),
		notes:    make(map[uint64]*Note),
		tokens:   make(map[uint64]uint64),
	}
}

func (m *mockEngineState) key(addr crypto.Address) string {
	return string(addr.Bytes())
}

func (m *mockEngineState) GetAccount(addr crypto.Address) (*types.Account, error) {
	if acc, ok := m.accounts[m.key(addr)]; ok {
		return acc.Clone(), nil
	}
	return &types.Account{BalanceWei: big.NewInt(0)}, nil
}

func (m *mockEngineState) PutAccount(addr crypto.Address, account *types.Account) error {
	m.accounts[m.key(addr)] = account.Clone()
	return nil
}

func (m *mockEngineState) IssuerNoteGet(noteID uint64) (*Note, bool, error) {
	record, ok := m.notes[noteID]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (m *mockEngineState) IssuerNotePut(noteID uint64, record *Note) error {
	m.notes[noteID] = record.Clone()
	return nil
}

func (m *mockEngineState) IssuerNoteCounter() (uint64, error) {
	return m.counter, nil
}

func (m *mockEngineState) IssuerSetNoteCounter(counter uint64) error {
	m.counter = counter
	return nil
}

func (m *mockEngineState) IssuerTokenID(noteID uint64) (uint64, bool, error) {
	tokenID, ok := m.tokens[noteID]
	return tokenID, ok, nil
}

func (m *mockEngineState) IssuerSetTokenID(noteID, tokenID uint64) error {
	m.tokens[noteID] = tokenID
	return nil
}

// mockPool records routed payments, debits the payer like the real pool and
// prices shares 1:1.
type mockPool struct {
	state    *mockEngineState
	payments []*big.Int
	failNext bool
}

func (m *mockPool) ReceivePayment(from crypto.Address, amount, value *big.Int) (*big.Int, error) {
	if m.failNext {
		m.failNext = false
		return nil, errors.New("pipeline down")
	}
	if value == nil || value.Cmp(amount) != 0 {
		return nil, errors.New("value mismatch")
	}
	if m.state != nil {
		payer, _ := m.state.GetAccount(from)
		if payer.BalanceWei.Cmp(amount) < 0 {
			return nil, errors.New("insufficient balance")
		}
		payer.BalanceWei = new(big.Int).Sub(payer.BalanceWei, amount)
		_ = m.state.PutAccount(from, payer)
	}
	m.payments = append(m.payments, new(big.Int).Set(amount))
	return new(big.Int).Set(amount), nil
}

func (m *mockPool) CalculateCRDShares(amount *big.Int) (*big.Int, error) {
	return new(big.Int).Set(amount), nil
}

type mockVault struct {
	transfers map[uint64]*big.Int
	failNext  bool
}

func (m *mockVault) TransferCRDToNote(_, _ crypto.Address, noteID uint64, amount *big.Int) error {
	if m.failNext {
		m.failNext = false
		return errors.New("vault rejected transfer")
	}
	if m.transfers == nil {
		m.transfers = make(map[uint64]*big.Int)
	}
	m.transfers[noteID] = new(big.Int).Set(amount)
	return nil
}

type mockMinter struct {
	nextToken uint64
	minted    []uint64
}

func (m *mockMinter) MintWithDeposit(_, _ crypto.Address, _ *big.Int, _ crypto.Address, _, _ *big.Int, _ uint64, _ int64) (uint64, error) {
	m.nextToken++
	m.minted = append(m.minted, m.nextToken)
	return m.nextToken, nil
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.CRDPrefix, raw)
}

func wei(milli int64) *big.Int {
	scale, _ := new(big.Int).SetString("1000000000000000", 10)
	return new(big.Int).Mul(big.NewInt(milli), scale)
}

// validProof returns a structurally valid proof: all-zero limbs decode as the
// bn256 point at infinity.
func validProof() *Proof {
	proof := &Proof{}
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

type testRig struct {
	engine *Engine
	state  *mockEngineState
	pool   *mockPool
	vault  *mockVault
	minter *mockMinter
}

func newTestRig() *testRig {
	state := newMockEngineState()
	rig := &testRig{
		state:  state,
		pool:   &mockPool{state: state},
		vault:  &mockVault{},
		minter: &mockMinter{},
	}
	rig.engine = NewEngine(crypto.ModuleAddress("issuer"), Params{})
	rig.engine.SetState(rig.state)
	rig.engine.SetVerifier(StaticVerifier{Valid: true})
	rig.engine.Wire(rig.pool, rig.vault, rig.minter, crypto.ModuleAddress("note-custody"))
	rig.engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return rig
}

func (r *testRig) fund(addr crypto.Address, amount *big.Int) {
	r.state.accounts[string(addr.Bytes())] = &types.Account{BalanceWei: new(big.Int).Set(amount)}
}

func TestCalculateRequiredAdvance(t *testing.T) {
	rig := newTestRig()

	// 20% of 1e18 is 0.2e18.
	required := rig.engine.CalculateRequiredAdvance(wei(1000))
	if required.Cmp(wei(200)) != 0 {
		t.Fatalf("required = %s, want %s", required, wei(200))
	}

	if got := rig.engine.CalculateRequiredAdvance(nil); got.Sign() != 0 {
		t.Fatalf("required for nil = %s, want 0", got)
	}
	if got := rig.engine.CalculateRequiredAdvance(big.NewInt(-1)); got.Sign() != 0 {
		t.Fatalf("required for negative = %s, want 0", got)
	}

	// Floor division: 20% of 3 wei is 0.
	if got := rig.engine.CalculateRequiredAdvance(big.NewInt(3)); got.Sign() != 0 {
		t.Fatalf("required for 3 wei = %s, want 0", got)
	}
}

func TestCreateNoteHappyPath(t *testing.T) {
	rig := newTestRig()
	borrower := makeAddress(0x0b)
	rig.fund(borrower, wei(1000))

	principal := wei(100)
	advance := wei(20)

	noteID, tokenID, err := rig.engine.CreateNote(borrower, principal, advance, validProof(), crypto.Address{}, advance)
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if noteID != 1 || tokenID != 1 {
		t.Fatalf("ids = (%d, %d), want (1, 1)", noteID, tokenID)
	}

	// Backing escrows principal plus advance at the 1:1 mock price.
	backing := rig.vault.transfers[noteID]
	if backing == nil || backing.Cmp(wei(120)) != 0 {
		t.Fatalf("backing = %s, want %s", backing, wei(120))
	}

	record, err := rig.engine.GetNote(noteID)
	if err != nil {
		t.Fatalf("get note: %v", err)
	}
	if record.Status != note.StatusActive {
		t.Fatalf("status = %v, want Active", record.Status)
	}
	if record.PrincipalAmount.Cmp(principal) != 0 {
		t.Fatalf("principal = %s, want %s", record.PrincipalAmount, principal)
	}
	if record.Maturity != 1_700_000_000+rig.engine.params.TermSeconds {
		t.Fatalf("maturity = %d", record.Maturity)
	}
	if record.RemainingDebt().Cmp(principal) != 0 {
		t.Fatalf("remaining = %s, want %s", record.RemainingDebt(), principal)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	rig := newTestRig()
	borrower := makeAddress(0x0b)
	rig.fund(borrower, wei(100000))

	if _, _, err := rig.engine.CreateNote(borrower, wei(100), wei(20), &Proof{}, crypto.Address{}, wei(20)); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof for malformed proof, got %v", err)
	}

	rig.engine.SetVerifier(StaticVerifier{Valid: false})
	if _, _, err := rig.engine.CreateNote(borrower, wei(100), wei(20), validProof(), crypto.Address{}, wei(20)); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof for rejected proof, got %v", err)
	}
	rig.engine.SetVerifier(StaticVerifier{Valid: true})

	// Principal above the 5e18 ceiling.
	if _, _, err := rig.engine.CreateNote(borrower, wei(6000), wei(1200), validProof(), crypto.Address{}, wei(1200)); !errors.Is(err, ErrPrincipalTooLarge) {
		t.Fatalf("expected ErrPrincipalTooLarge, got %v", err)
	}

	// Advance below 20% of principal.
	if _, _, err := rig.engine.CreateNote(borrower, wei(100), wei(19), validProof(), crypto.Address{}, wei(19)); !errors.Is(err, ErrInsufficientAdvance) {
		t.Fatalf("expected ErrInsufficientAdvance, got %v", err)
	}

	// Attached value must equal the advance exactly.
	if _, _, err := rig.engine.CreateNote(borrower, wei(100), wei(20), validProof(), crypto.Address{}, wei(21)); !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("expected ErrPaymentMismatch, got %v", err)
	}

	if _, _, err := rig.engine.CreateNote(borrower, big.NewInt(0), wei(20), validProof(), crypto.Address{}, wei(20)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero principal, got %v", err)
	}
}

func TestCreateNoteMintsToCreditor(t *testing.T) {
	rig := newTestRig()
	borrower := makeAddress(0x0b)
	creditor := makeAddress(0x0c)
	rig.fund(borrower, wei(1000))

	noteID, _, err := rig.engine.CreateNote(borrower, wei(100), wei(20), validProof(), creditor, wei(20))
	if err != nil {
		t.Fatalf("create note: %v", err)
	}

	record, err := rig.engine.GetNote(noteID)
	if err != nil {
		t.Fatalf("get note: %v", err)
	}
	// The borrower field stays with the debtor even when the NFT goes to a
	// third-party creditor.
	if !record.Borrower.Equal(borrower) {
		t.Fatalf("borrower = %s, want %s", record.Borrower, borrower)
	}
}

func TestNoteIDsSurviveFailedCreates(t *testing.T) {
	rig := newTestRig()
	borrower := makeAddress(0x0b)
	rig.fund(borrower, wei(10000))

	if _, _, err := rig.engine.CreateNote(borrower, wei(100), wei(20), validProof(), crypto.Address{}, wei(20)); err != nil {
		t.Fatalf("first create: %v", err)
	}

	rig.vault.failNext = true
	if _, _, err := rig.engine.CreateNote(borrower, wei(100), wei(20), validProof(), crypto.Address{}, wei(20)); err == nil {
		t.Fatalf("expected vault failure")
	}

	noteID, _, err := rig.engine.CreateNote(borrower, wei(100), wei(20), validProof(), crypto.Address{}, wei(20))
	if err != nil {
		t.Fatalf("third create: %v", err)
	}
	// The failed attempt never persisted its counter bump, so identifiers
	// stay dense.
	if noteID != 2 {
		t.Fatalf("noteID = %d, want 2", noteID)
	}
}

func repaymentRig(t *testing.T) (*testRig, crypto.Address, uint64) {
	t.Helper()
	rig := newTestRig()
	borrower := makeAddress(0x0b)
	rig.fund(borrower, wei(1000))

	noteID, _, err := rig.engine.CreateNote(borrower, wei(100), wei(20), validProof(), crypto.Address{}, wei(20))
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	return rig, borrower, noteID
}

func TestRepayReducesDebtMonotonically(t *testing.T) {
	rig, borrower, noteID := repaymentRig(t)

	steps := []struct {
		pay       *big.Int
		remaining *big.Int
		status    note.Status
	}{
		{wei(30), wei(70), note.StatusActive},
		{wei(40), wei(30), note.StatusActive},
		{wei(30), big.NewInt(0), note.StatusRepaid},
	}
	for i, step := range steps {
		actual, err := rig.engine.Repay(borrower, noteID, step.pay, step.pay)
		if err != nil {
			t.Fatalf("repay %d: %v", i, err)
		}
		if actual.Cmp(step.pay) != 0 {
			t.Fatalf("repay %d actual = %s, want %s", i, actual, step.pay)
		}
		remaining, err := rig.engine.NoteRemainingDebt(noteID)
		if err != nil {
			t.Fatalf("remaining %d: %v", i, err)
		}
		if remaining.Cmp(step.remaining) != 0 {
			t.Fatalf("repay %d remaining = %s, want %s", i, remaining, step.remaining)
		}
		record, err := rig.engine.GetNote(noteID)
		if err != nil {
			t.Fatalf("get note %d: %v", i, err)
		}
		if record.Status != step.status {
			t.Fatalf("repay %d status = %v, want %v", i, record.Status, step.status)
		}
	}

	paid, err := rig.engine.IsNoteDebtPaid(noteID)
	if err != nil {
		t.Fatalf("debt paid: %v", err)
	}
	if !paid {
		t.Fatalf("expected debt paid")
	}
}

func TestRepayCapsOverpayment(t *testing.T) {
	rig, borrower, noteID := repaymentRig(t)

	// Pay 150 against a 100 debt: only 100 is charged to the debt, the
	// excess stays with the issuer and is not refunded.
	actual, err := rig.engine.Repay(borrower, noteID, wei(150), wei(150))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if actual.Cmp(wei(100)) != 0 {
		t.Fatalf("actual = %s, want %s", actual, wei(100))
	}

	record, err := rig.engine.GetNote(noteID)
	if err != nil {
		t.Fatalf("get note: %v", err)
	}
	if record.TotalPaid.Cmp(wei(100)) != 0 {
		t.Fatalf("totalPaid = %s, want %s", record.TotalPaid, wei(100))
	}
	if record.Status != note.StatusRepaid {
		t.Fatalf("status = %v, want Repaid", record.Status)
	}

	// The issuer retained the full attached value minus the forwarded debt.
	issuerAcc, _ := rig.state.GetAccount(rig.engine.ModuleAddress())
	if issuerAcc.BalanceWei.Cmp(wei(50)) != 0 {
		t.Fatalf("issuer balance = %s, want %s", issuerAcc.BalanceWei, wei(50))
	}
}

func TestRepayGuards(t *testing.T) {
	rig, borrower, noteID := repaymentRig(t)
	stranger := makeAddress(0x0d)
	rig.fund(stranger, wei(1000))

	if _, err := rig.engine.Repay(borrower, noteID+5, wei(10), wei(10)); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
	if _, err := rig.engine.Repay(stranger, noteID, wei(10), wei(10)); !errors.Is(err, ErrNotBorrower) {
		t.Fatalf("expected ErrNotBorrower, got %v", err)
	}
	if _, err := rig.engine.Repay(borrower, noteID, wei(10), wei(9)); !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("expected ErrPaymentMismatch, got %v", err)
	}
	if _, err := rig.engine.Repay(borrower, noteID, big.NewInt(0), big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	// Settle the note, then confirm a repaid note rejects further payments.
	if _, err := rig.engine.Repay(borrower, noteID, wei(100), wei(100)); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if _, err := rig.engine.Repay(borrower, noteID, wei(10), wei(10)); !errors.Is(err, ErrNoteNotActive) {
		t.Fatalf("expected ErrNoteNotActive, got %v", err)
	}
}

func TestRedeemAndTransferStubs(t *testing.T) {
	rig := newTestRig()

	if err := rig.engine.RedeemNote(1); !errors.Is(err, ErrRedeemNotImplemented) {
		t.Fatalf("expected ErrRedeemNotImplemented, got %v", err)
	}
	if err := rig.engine.TransferNote(1, makeAddress(0x0c)); !errors.Is(err, ErrTransferNotSupported) {
		t.Fatalf("expected ErrTransferNotSupported, got %v", err)
	}
}

func TestNoteTokenIDMapping(t *testing.T) {
	rig, _, noteID := repaymentRig(t)

	tokenID, err := rig.engine.NoteTokenID(noteID)
	if err != nil {
		t.Fatalf("token id: %v", err)
	}
	if tokenID != 1 {
		t.Fatalf("tokenID = %d, want 1", tokenID)
	}
	if _, err := rig.engine.NoteTokenID(noteID + 7); !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
}
