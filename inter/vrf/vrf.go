// Package vrf defines the pseudorandom output attached to every slot claim
// and a signature-based construction producing it from a secp256k1 key.
//
// The construction signs the transcript digest with a deterministic (RFC6979)
// ECDSA signature; the output is the Keccak-256 of the signature and the
// signature itself is the proof. Anyone holding the public key can check a
// proof, but unlike a unique VRF a dishonest signer could grind nonces, so it
// is meant for local key stores and tests. Production key stores plug their
// own scheme in behind the same Output and Proof types.
package vrf

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-rrsc/inter/validatorpk"
)

const (
	// OutputLength is the size of a VRF output in bytes.
	OutputLength = 32
	// ProofLength is the size of a secp256k1 recoverable signature.
	ProofLength = 65

	// ThresholdBits is the width of the prefix of an output compared against
	// primary thresholds.
	ThresholdBits = 128
)

// transcriptLabel domain-separates slot claim transcripts from other signatures.
var transcriptLabel = []byte("RRSC-slot-claim")

var (
	// ErrBadProof is returned when a proof does not verify against the key.
	ErrBadProof = errors.New("vrf proof does not verify")
	// ErrOutputMismatch is returned when the output was not derived from the proof.
	ErrOutputMismatch = errors.New("vrf output does not match proof")
)

// Transcript is the VRF input for one slot of one epoch.
type Transcript struct {
	Randomness hash.Hash
	Slot       uint64
}

// Digest returns the 32-byte message that is signed for this transcript.
func (t Transcript) Digest() hash.Hash {
	var slot [8]byte
	binary.BigEndian.PutUint64(slot[:], t.Slot)
	return hash.Of(transcriptLabel, t.Randomness.Bytes(), slot[:])
}

// Output is a VRF output.
type Output [OutputLength]byte

// Proof accompanies an Output and lets holders of the public key check it.
type Proof []byte

// Uint128 interprets the first 16 bytes of the output as a big-endian integer,
// i.e. as the fraction v/2^128 of the unit interval.
func (o Output) Uint128() *big.Int {
	return new(big.Int).SetBytes(o[:ThresholdBits/8])
}

// Less reports whether the output, read as Uint128, is below threshold.
func (o Output) Less(threshold *big.Int) bool {
	return o.Uint128().Cmp(threshold) < 0
}

func (o Output) String() string {
	return hexutil.Encode(o[:])
}

// MarshalText implements encoding.TextMarshaler.
func (o Output) MarshalText() ([]byte, error) {
	return hexutil.Bytes(o[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Output) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Output", input, o[:])
}

// Sign evaluates the VRF for the transcript under key.
func Sign(key *ecdsa.PrivateKey, t Transcript) (Output, Proof, error) {
	digest := t.Digest()
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return Output{}, nil, fmt.Errorf("sign transcript for slot %d: %w", t.Slot, err)
	}
	return outputOf(sig), sig, nil
}

// Verify checks that proof was produced by pub over t and that out is its output.
func Verify(pub validatorpk.PubKey, t Transcript, out Output, proof Proof) error {
	if len(proof) != ProofLength {
		return fmt.Errorf("%w: proof is %d bytes, want %d", ErrBadProof, len(proof), ProofLength)
	}
	if _, err := pub.ECDSA(); err != nil {
		return fmt.Errorf("verify slot %d: %w", t.Slot, err)
	}
	digest := t.Digest()
	if !crypto.VerifySignature(pub.Raw, digest.Bytes(), proof[:ProofLength-1]) {
		return ErrBadProof
	}
	if outputOf(proof) != out {
		return ErrOutputMismatch
	}
	return nil
}

// outputOf hashes the signature without its recovery byte.
func outputOf(sig []byte) Output {
	var out Output
	copy(out[:], crypto.Keccak256(sig[:ProofLength-1]))
	return out
}
