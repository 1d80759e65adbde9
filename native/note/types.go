package note

import (
	"fmt"
	"math/big"

	"credora/crypto"
)

// Status represents the lifecycle state of a credit note. Active is the only
// initial state; Repaid and Defaulted are terminal under the payment path.
type Status uint8

const (
	StatusActive Status = iota
	StatusRepaid
	StatusDefaulted
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRepaid, StatusDefaulted:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusRepaid:
		return "Repaid"
	case StatusDefaulted:
		return "Defaulted"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// CreditNoteData captures the debt record of a single note. The borrower is
// fixed at creation and owes the debt regardless of who currently holds the
// NFT; the two identities can diverge immediately.
type CreditNoteData struct {
	Borrower        crypto.Address
	Principal       *big.Int
	Advance         *big.Int
	InterestRateBps uint64
	Maturity        int64
	CreatedAt       int64
	TotalPaid       *big.Int
	Status          Status
}

// Clone returns a deep copy so callers can safely mutate the copy without
// affecting the stored instance.
func (d *CreditNoteData) Clone() *CreditNoteData {
	if d == nil {
		return nil
	}
	clone := *d
	if d.Principal != nil {
		clone.Principal = new(big.Int).Set(d.Principal)
	} else {
		clone.Principal = big.NewInt(0)
	}
	if d.Advance != nil {
		clone.Advance = new(big.Int).Set(d.Advance)
	} else {
		clone.Advance = big.NewInt(0)
	}
	if d.TotalPaid != nil {
		clone.TotalPaid = new(big.Int).Set(d.TotalPaid)
	} else {
		clone.TotalPaid = big.NewInt(0)
	}
	return &clone
}

// RemainingDebt returns principal minus totalPaid, floored at zero.
func (d *CreditNoteData) RemainingDebt() *big.Int {
	if d == nil || d.Principal == nil {
		return big.NewInt(0)
	}
	paid := d.TotalPaid
	if paid == nil {
		paid = big.NewInt(0)
	}
	remaining := new(big.Int).Sub(d.Principal, paid)
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}
