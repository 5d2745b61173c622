// Package drivertype defines how authorities and their weights are represented
// inside an epoch, and how a node refers to the authorities it holds keys for.
// The authority list doubles as the weight table of the epoch: its order fixes
// authority indexes, and the running sums of its weights drive the secondary
// slot round-robin.

package drivertype

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/hashicorp/go-multierror"

	"github.com/rony4d/go-rrsc/inter/validatorpk"
)

// Weight is the relative weight of an authority. It scales the authority's
// chance to win primary slots and its share of secondary slots, and must be
// positive.
type Weight uint64

// ErrWeightOverflow is returned when the sum of weights does not fit in 64 bits.
var ErrWeightOverflow = errors.New("total authority weight overflows uint64")

// Authority is one entry of an epoch's authority set.
type Authority struct {
	// PubKey is the identity of the authority. It also verifies the VRF
	// proofs of the authority's slot claims.
	PubKey validatorpk.PubKey

	// Weight is the authority's share of the epoch, relative to the sum of
	// all weights in the set.
	Weight Weight
}

// Authorities is the ordered authority set of an epoch. The position of an
// entry is the authority index used for tie-breaks and secondary slot
// assignment, so the order must never be changed.
type Authorities []Authority

// LocalKey names an authority the local node holds a secret key for,
// together with its index in the epoch's authority set.
type LocalKey struct {
	// PubKey is the identity whose secret key is held.
	PubKey validatorpk.PubKey

	// Index is the position of PubKey in the authority set. It is a hint:
	// Authorities.Resolve falls back to a lookup when it does not match.
	Index int
}

// Copy returns a deep copy; keys do not share memory with the receiver.
func (aa Authorities) Copy() Authorities {
	if aa == nil {
		return nil
	}
	cp := make(Authorities, len(aa))
	for i, a := range aa {
		cp[i] = Authority{PubKey: a.PubKey.Copy(), Weight: a.Weight}
	}
	return cp
}

// TotalWeight sums all weights, failing on overflow.
func (aa Authorities) TotalWeight() (Weight, error) {
	var total uint64
	for _, a := range aa {
		sum, carry := bits.Add64(total, uint64(a.Weight), 0)
		if carry != 0 {
			return 0, ErrWeightOverflow
		}
		total = sum
	}
	return Weight(total), nil
}

// CumulativeWeights returns the running sums of the weight table:
// out[i] = w[0] + ... + w[i]. Callers must have checked TotalWeight first.
func (aa Authorities) CumulativeWeights() []uint64 {
	sums := make([]uint64, 0, len(aa))
	var cumsum uint64
	for _, a := range aa {
		cumsum += uint64(a.Weight)
		sums = append(sums, cumsum)
	}
	return sums
}

// IndexOf returns the position of the authority with the given identity, or -1.
func (aa Authorities) IndexOf(id validatorpk.ID) int {
	for i, a := range aa {
		if a.PubKey.ID() == id {
			return i
		}
	}
	return -1
}

// Resolve maps a local key onto the authority set. The index is trusted when
// it points at the same identity; otherwise the identity is looked up.
// ok is false when the identity is not an authority of this set.
func (aa Authorities) Resolve(k LocalKey) (idx int, ok bool) {
	if k.Index >= 0 && k.Index < len(aa) && aa[k.Index].PubKey.Equal(k.PubKey) {
		return k.Index, true
	}
	idx = aa.IndexOf(k.PubKey.ID())
	return idx, idx >= 0
}

// Validate checks the per-entry invariants: positive weights, distinct
// identities and a total weight that fits in 64 bits. Every violation is
// reported, not only the first one.
func (aa Authorities) Validate() error {
	if len(aa) == 0 {
		return errors.New("authority set is empty")
	}
	var result *multierror.Error
	seen := make(map[validatorpk.ID]int, len(aa))
	for i, a := range aa {
		if a.Weight == 0 {
			result = multierror.Append(result, fmt.Errorf("authority %d (%s) has zero weight", i, a.PubKey))
		}
		if a.PubKey.Empty() {
			result = multierror.Append(result, fmt.Errorf("authority %d has an empty public key", i))
			continue
		}
		if prev, dup := seen[a.PubKey.ID()]; dup {
			result = multierror.Append(result, fmt.Errorf("authority %d duplicates authority %d (%s)", i, prev, a.PubKey))
			continue
		}
		seen[a.PubKey.ID()] = i
	}
	if _, err := aa.TotalWeight(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
