package state

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"growspace/core/types"
	"growspace/storage/trie"
)

// Manager reads and writes ledger records on top of the state trie. All
// records are RLP encoded and addressed by keccak256 of their logical key.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

var balancePrefix = []byte("balance")

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func balanceKey(id types.Identity) []byte {
	buf := make([]byte, len(balancePrefix)+len(id))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], id[:])
	return buf
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is automatically hashed with keccak256 to match the requirements of
// the underlying trie implementation.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must point to a slice")
	}
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	}
	return nil
}

// GrowspaceBalance returns the spendable balance of an identity. Identities
// that were never funded hold zero.
func (m *Manager) GrowspaceBalance(id types.Identity) (*uint256.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(balanceKey(id), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("balance %s: stored value exceeds 256 bits", id)
	}
	return out, nil
}

// GrowspaceSetBalance stores the balance of an identity.
func (m *Manager) GrowspaceSetBalance(id types.Identity, amount *uint256.Int) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	return m.KVPut(balanceKey(id), amount.ToBig())
}

// CreditBalance adds amount to the identity's balance.
func (m *Manager) CreditBalance(id types.Identity, amount *uint256.Int) error {
	current, err := m.GrowspaceBalance(id)
	if err != nil {
		return err
	}
	if amount == nil {
		return nil
	}
	sum, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return fmt.Errorf("balance %s: credit overflows", id)
	}
	return m.GrowspaceSetBalance(id, sum)
}
