// Package validatorpk defines the public identity of an RRSC authority.
// An authority is known on chain only by its public key, and the same key is
// used to check the VRF proofs attached to its slot claims. Keys carry a type
// byte in front of the scheme-specific encoding, so epoch records can list
// keys of other signature schemes later without a schema migration. The ID
// form gives every key a comparable value for use as a map key.

package validatorpk

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// secp256k1PubLen is the length of an uncompressed secp256k1 point:
// the 0x04 marker followed by the 32-byte X and Y coordinates.
const secp256k1PubLen = 65

var (
	// ErrEmptyPubKey is returned when decoding zero bytes. A key always has
	// at least its type byte.
	ErrEmptyPubKey = errors.New("empty pubkey")
	// ErrUnknownKeyType is returned for a type byte no scheme is registered
	// for in Types.
	ErrUnknownKeyType = errors.New("unknown pubkey type")
)

// PubKey is an authority public key tagged with its scheme.
// The type byte and the raw encoding are kept apart so that code handling
// identities never has to know the curve behind them.
type PubKey struct {
	// Type identifies the signature scheme the key belongs to (see Types).
	Type uint8
	// Raw holds the scheme-specific encoding of the key. For Secp256k1 it is
	// the 65-byte uncompressed point.
	Raw []byte
}

// ID is the comparable form of a PubKey. It is the 0x-prefixed hex of
// Bytes(), the same text a key marshals to, and is used as the key of
// per-authority result maps and lookups.
type ID string

// Types lists the supported key schemes.
var Types = struct {
	Secp256k1 uint8
}{
	// Secp256k1 is the Ethereum curve. 0xc0 keeps the type byte apart from
	// the 0x02/0x03/0x04 point markers that start raw encodings.
	Secp256k1: 0xc0,
}

// FromECDSA wraps a secp256k1 public key in its uncompressed encoding.
func FromECDSA(pub *ecdsa.PublicKey) PubKey {
	return PubKey{
		Type: Types.Secp256k1,
		Raw:  crypto.FromECDSAPub(pub),
	}
}

// Empty reports whether the key is the zero value, i.e. both the type byte and
// the raw encoding are unset.
func (pk PubKey) Empty() bool {
	return len(pk.Raw) == 0 && pk.Type == 0
}

// Bytes returns the flat encoding of the key: the type byte followed by Raw.
func (pk PubKey) Bytes() []byte {
	return append([]byte{pk.Type}, pk.Raw...)
}

// String returns the 0x-prefixed hex of Bytes(). FromString parses it back.
func (pk PubKey) String() string {
	return "0x" + common.Bytes2Hex(pk.Bytes())
}

// ID returns the comparable identity of the key.
func (pk PubKey) ID() ID {
	return ID(pk.String())
}

// Equal reports whether both keys have the same scheme and encoding.
func (pk PubKey) Equal(other PubKey) bool {
	return pk.ID() == other.ID()
}

// Copy returns a deep copy of the key. Raw is a slice, so a plain assignment
// would share its backing array with pk.
func (pk PubKey) Copy() PubKey {
	return PubKey{
		Type: pk.Type,
		Raw:  common.CopyBytes(pk.Raw),
	}
}

// ECDSA decodes a Secp256k1 key into its curve point.
func (pk PubKey) ECDSA() (*ecdsa.PublicKey, error) {
	if pk.Type != Types.Secp256k1 {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnknownKeyType, pk.Type)
	}
	return crypto.UnmarshalPubkey(pk.Raw)
}

// Validate checks that Raw is well formed for Type.
func (pk PubKey) Validate() error {
	switch pk.Type {
	case Types.Secp256k1:
		if len(pk.Raw) != secp256k1PubLen {
			return fmt.Errorf("secp256k1 pubkey must be %d bytes, got %d", secp256k1PubLen, len(pk.Raw))
		}
		_, err := crypto.UnmarshalPubkey(pk.Raw)
		return err
	default:
		return fmt.Errorf("%w: 0x%x", ErrUnknownKeyType, pk.Type)
	}
}

// FromString parses the hex form produced by String. The 0x prefix is optional.
func FromString(str string) (PubKey, error) {
	return FromBytes(common.FromHex(str))
}

// FromBytes is the inverse of Bytes: the first byte is the type and the rest
// the raw encoding. Raw does not alias b.
func FromBytes(b []byte) (PubKey, error) {
	if len(b) == 0 {
		return PubKey{}, ErrEmptyPubKey
	}
	return PubKey{Type: b[0], Raw: common.CopyBytes(b[1:])}, nil
}

// MarshalText implements encoding.TextMarshaler, so keys are written to JSON
// as their hex string.
func (pk PubKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting the String form.
func (pk *PubKey) UnmarshalText(input []byte) error {
	res, err := FromString(string(input))
	if err != nil {
		return err
	}
	*pk = res
	return nil
}
