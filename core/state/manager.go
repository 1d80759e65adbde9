package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"credora/crypto"
	"credora/storage"
)

// Manager provides keyed reads and writes over the protocol's key-value
// store. Writes are buffered in an overlay until Commit so a failed operation
// can be rolled back with Discard, giving each protocol operation
// all-or-nothing semantics.
type Manager struct {
	db      storage.Database
	pending map[string][]byte
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, pending: make(map[string][]byte)}
}

// Commit flushes all buffered writes to the underlying database.
func (m *Manager) Commit() error {
	for key, value := range m.pending {
		if err := m.db.Put([]byte(key), value); err != nil {
			return fmt.Errorf("state commit: %w", err)
		}
	}
	m.pending = make(map[string][]byte)
	return nil
}

// Discard drops all buffered writes, restoring the last committed state.
func (m *Manager) Discard() {
	m.pending = make(map[string][]byte)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if value, ok := m.pending[string(key)]; ok {
		return value, nil
	}
	return m.db.Get(key)
}

func (m *Manager) put(key, value []byte) error {
	m.pending[string(key)] = value
	return nil
}

// --- key derivation ---

var (
	accountPrefix      = []byte("account/")
	shareBalancePrefix = []byte("shares/balance/")
	shareSupplyKey     = ethcrypto.Keccak256([]byte("shares/total-supply"))
	poolConvertedKey   = ethcrypto.Keccak256([]byte("pool/total-converted"))
	vaultAuthPrefix    = []byte("vault/authorized/")
	noteRecordPrefix   = []byte("note/record/")
	noteOwnerPrefix    = []byte("note/owner/")
	noteBalancePrefix  = []byte("note/crd-balance/")
	noteCounterKey     = ethcrypto.Keccak256([]byte("note/counter"))
	issuerNotePrefix   = []byte("issuer/note/")
	issuerTokenPrefix  = []byte("issuer/token/")
	issuerCounterKey   = ethcrypto.Keccak256([]byte("issuer/counter"))
)

func addrKey(prefix []byte, addr crypto.Address) []byte {
	buf := make([]byte, 0, len(prefix)+len(addr.Bytes()))
	buf = append(buf, prefix...)
	buf = append(buf, addr.Bytes()...)
	return ethcrypto.Keccak256(buf)
}

func idKey(prefix []byte, id uint64) []byte {
	buf := append(append([]byte(nil), prefix...), fmt.Sprintf("%d", id)...)
	return ethcrypto.Keccak256(buf)
}

// --- codec helpers ---

func (m *Manager) readBig(key []byte) (*big.Int, error) {
	data, err := m.get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(data, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Manager) writeBig(key []byte, value *big.Int) error {
	if value == nil {
		value = big.NewInt(0)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("state: negative amount not representable")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(key, encoded)
}

func (m *Manager) readUint(key []byte) (uint64, error) {
	data, err := m.get(key)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var value uint64
	if err := rlp.DecodeBytes(data, &value); err != nil {
		return 0, err
	}
	return value, nil
}

func (m *Manager) writeUint(key []byte, value uint64) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(key, encoded)
}
