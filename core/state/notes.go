package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"credora/crypto"
	"credora/native/issuer"
	"credora/native/note"
)

// storedNote flattens the credit note record into RLP-friendly fields: RLP
// has no signed integers, so the unix timestamps are stored unsigned.
type storedNote struct {
	Borrower        []byte
	Principal       *big.Int
	Advance         *big.Int
	InterestRateBps uint64
	Maturity        uint64
	CreatedAt       uint64
	TotalPaid       *big.Int
	Status          uint8
}

// NoteGet loads a credit note's debt record.
func (m *Manager) NoteGet(tokenID uint64) (*note.CreditNoteData, bool, error) {
	data, err := m.get(idKey(noteRecordPrefix, tokenID))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	stored := new(storedNote)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	return &note.CreditNoteData{
		Borrower:        crypto.NewAddress(crypto.CRDPrefix, stored.Borrower),
		Principal:       bigOrZero(stored.Principal),
		Advance:         bigOrZero(stored.Advance),
		InterestRateBps: stored.InterestRateBps,
		Maturity:        int64(stored.Maturity),
		CreatedAt:       int64(stored.CreatedAt),
		TotalPaid:       bigOrZero(stored.TotalPaid),
		Status:          note.Status(stored.Status),
	}, true, nil
}

// NotePut stores a credit note's debt record.
func (m *Manager) NotePut(tokenID uint64, data *note.CreditNoteData) error {
	record := data.Clone()
	encoded, err := rlp.EncodeToBytes(&storedNote{
		Borrower:        record.Borrower.Bytes(),
		Principal:       record.Principal,
		Advance:         record.Advance,
		InterestRateBps: record.InterestRateBps,
		Maturity:        uint64(record.Maturity),
		CreatedAt:       uint64(record.CreatedAt),
		TotalPaid:       record.TotalPaid,
		Status:          uint8(record.Status),
	})
	if err != nil {
		return err
	}
	return m.put(idKey(noteRecordPrefix, tokenID), encoded)
}

// NoteOwner returns the current NFT holder of the note.
func (m *Manager) NoteOwner(tokenID uint64) (crypto.Address, bool, error) {
	data, err := m.get(idKey(noteOwnerPrefix, tokenID))
	if err != nil {
		return crypto.Address{}, false, err
	}
	if len(data) == 0 {
		return crypto.Address{}, false, nil
	}
	var raw []byte
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return crypto.Address{}, false, err
	}
	return crypto.NewAddress(crypto.CRDPrefix, raw), true, nil
}

// NoteSetOwner stores the NFT holder of the note.
func (m *Manager) NoteSetOwner(tokenID uint64, owner crypto.Address) error {
	encoded, err := rlp.EncodeToBytes(owner.Bytes())
	if err != nil {
		return err
	}
	return m.put(idKey(noteOwnerPrefix, tokenID), encoded)
}

// NoteBalance returns the note's escrowed CRD balance.
func (m *Manager) NoteBalance(tokenID uint64) (*big.Int, error) {
	return m.readBig(idKey(noteBalancePrefix, tokenID))
}

// NoteSetBalance stores the note's escrowed CRD balance.
func (m *Manager) NoteSetBalance(tokenID uint64, balance *big.Int) error {
	return m.writeBig(idKey(noteBalancePrefix, tokenID), balance)
}

// NoteCounter returns the last assigned NFT token identifier.
func (m *Manager) NoteCounter() (uint64, error) {
	return m.readUint(noteCounterKey)
}

// NoteSetCounter stores the last assigned NFT token identifier.
func (m *Manager) NoteSetCounter(counter uint64) error {
	return m.writeUint(noteCounterKey, counter)
}

// IssuerNoteGet loads the issuer's bookkeeping record for a note.
func (m *Manager) IssuerNoteGet(noteID uint64) (*issuer.Note, bool, error) {
	data, err := m.get(idKey(issuerNotePrefix, noteID))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	stored := new(storedNote)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	return &issuer.Note{
		Borrower:        crypto.NewAddress(crypto.CRDPrefix, stored.Borrower),
		PrincipalAmount: bigOrZero(stored.Principal),
		AdvanceAmount:   bigOrZero(stored.Advance),
		InterestRateBps: stored.InterestRateBps,
		Maturity:        int64(stored.Maturity),
		CreatedAt:       int64(stored.CreatedAt),
		TotalPaid:       bigOrZero(stored.TotalPaid),
		Status:          note.Status(stored.Status),
	}, true, nil
}

// IssuerNotePut stores the issuer's bookkeeping record for a note.
func (m *Manager) IssuerNotePut(noteID uint64, record *issuer.Note) error {
	clone := record.Clone()
	encoded, err := rlp.EncodeToBytes(&storedNote{
		Borrower:        clone.Borrower.Bytes(),
		Principal:       clone.PrincipalAmount,
		Advance:         clone.AdvanceAmount,
		InterestRateBps: clone.InterestRateBps,
		Maturity:        uint64(clone.Maturity),
		CreatedAt:       uint64(clone.CreatedAt),
		TotalPaid:       clone.TotalPaid,
		Status:          uint8(clone.Status),
	})
	if err != nil {
		return err
	}
	return m.put(idKey(issuerNotePrefix, noteID), encoded)
}

// IssuerNoteCounter returns the last assigned issuer note identifier.
func (m *Manager) IssuerNoteCounter() (uint64, error) {
	return m.readUint(issuerCounterKey)
}

// IssuerSetNoteCounter stores the last assigned issuer note identifier.
func (m *Manager) IssuerSetNoteCounter(counter uint64) error {
	return m.writeUint(issuerCounterKey, counter)
}

// IssuerTokenID resolves an issuer note identifier to the NFT token
// identifier minted for it.
func (m *Manager) IssuerTokenID(noteID uint64) (uint64, bool, error) {
	data, err := m.get(idKey(issuerTokenPrefix, noteID))
	if err != nil {
		return 0, false, err
	}
	if len(data) == 0 {
		return 0, false, nil
	}
	var tokenID uint64
	if err := rlp.DecodeBytes(data, &tokenID); err != nil {
		return 0, false, err
	}
	return tokenID, true, nil
}

// IssuerSetTokenID stores the note-to-token identifier mapping.
func (m *Manager) IssuerSetTokenID(noteID, tokenID uint64) error {
	return m.writeUint(idKey(issuerTokenPrefix, noteID), tokenID)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
