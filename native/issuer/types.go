package issuer

import (
	"math/big"

	"credora/crypto"
	"credora/native/note"
)

// Issuer records reuse the credit note status space.
const (
	noteStatusActive = note.StatusActive
	noteStatusRepaid = note.StatusRepaid
)

// Note is the issuer's own bookkeeping record for a loan. It deliberately
// parallels the credit note contract's record: the reference protocol keeps
// two independently mutated ledgers, and this implementation preserves that
// separation rather than silently merging them (see DESIGN.md).
type Note struct {
	Borrower        crypto.Address
	PrincipalAmount *big.Int
	AdvanceAmount   *big.Int
	InterestRateBps uint64
	Maturity        int64
	CreatedAt       int64
	TotalPaid       *big.Int
	Status          note.Status
}

// Clone returns a deep copy so callers can safely mutate the copy without
// affecting the stored instance.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	clone := *n
	if n.PrincipalAmount != nil {
		clone.PrincipalAmount = new(big.Int).Set(n.PrincipalAmount)
	} else {
		clone.PrincipalAmount = big.NewInt(0)
	}
	if n.AdvanceAmount != nil {
		clone.AdvanceAmount = new(big.Int).Set(n.AdvanceAmount)
	} else {
		clone.AdvanceAmount = big.NewInt(0)
	}
	if n.TotalPaid != nil {
		clone.TotalPaid = new(big.Int).Set(n.TotalPaid)
	} else {
		clone.TotalPaid = big.NewInt(0)
	}
	return &clone
}

// RemainingDebt returns principal minus totalPaid against the issuer's own
// ledger, floored at zero.
func (n *Note) RemainingDebt() *big.Int {
	if n == nil || n.PrincipalAmount == nil {
		return big.NewInt(0)
	}
	paid := n.TotalPaid
	if paid == nil {
		paid = big.NewInt(0)
	}
	remaining := new(big.Int).Sub(n.PrincipalAmount, paid)
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}
