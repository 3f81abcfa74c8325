package types

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// IdentityLength is the size in bytes of a participant public key.
const IdentityLength = 32

// Identity is the 32-byte public key of a ledger participant. Its text form is
// base58, matching the keys voters sign with.
type Identity [IdentityLength]byte

// ParseIdentity decodes a base58 public key.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return id, fmt.Errorf("identity: empty value")
	}
	decoded := base58.Decode(trimmed)
	if len(decoded) != IdentityLength {
		return id, fmt.Errorf("identity: %q decodes to %d bytes, want %d", trimmed, len(decoded), IdentityLength)
	}
	copy(id[:], decoded)
	return id, nil
}

// MustParseIdentity is ParseIdentity for constants and tests.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String renders the identity in base58.
func (id Identity) String() string {
	return base58.Encode(id[:])
}

// IsZero reports whether the identity is the all-zero key.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// Bytes returns a copy of the raw key.
func (id Identity) Bytes() []byte {
	return append([]byte(nil), id[:]...)
}

// Less orders identities by their raw bytes.
func (id Identity) Less(other Identity) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
