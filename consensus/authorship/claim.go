// Package authorship decides which slots of an epoch the local authorities
// may author and at which priority tier.
//
// A slot claim is primary when the authority's VRF output for the slot falls
// under a threshold derived from its weight share and the epoch parameter c.
// Primary winners are independent per authority, so a slot may have zero,
// one or several primary claimants. When secondary slots are allowed, exactly
// one authority per slot also gets a deterministic fallback claim, chosen by
// weighted round-robin over the epoch's authority list.
package authorship

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/rony4d/go-rrsc/inter/iepoch"
	"github.com/rony4d/go-rrsc/inter/vrf"
)

// Tier is the priority of a slot claim.
type Tier uint8

const (
	// NoClaim means the authority may not author the slot.
	NoClaim Tier = iota
	// Primary claims are won through the VRF threshold test.
	Primary
	// SecondaryPlain is the round-robin fallback without a VRF output.
	SecondaryPlain
	// SecondaryVRF is the round-robin fallback carrying a VRF output.
	SecondaryVRF
)

func (t Tier) String() string {
	switch t {
	case NoClaim:
		return "none"
	case Primary:
		return "primary"
	case SecondaryPlain:
		return "secondary"
	case SecondaryVRF:
		return "secondary_vrf"
	}
	return fmt.Sprintf("Tier(%d)", uint8(t))
}

// InvalidSlotError is returned when a slot outside the epoch is evaluated.
type InvalidSlotError struct {
	slot      iepoch.Slot
	startSlot iepoch.Slot
	endSlot   iepoch.Slot
}

func (err InvalidSlotError) Error() string {
	return fmt.Sprintf("slot %d outside of epoch range [%d-%d)", err.slot, err.startSlot, err.endSlot)
}

// IsInvalidSlotError returns whether err is an InvalidSlotError.
func IsInvalidSlotError(err error) bool {
	return errors.As(err, &InvalidSlotError{})
}

// InvalidAuthorityError is returned for an authority index outside the set.
type InvalidAuthorityError struct {
	index int
	count int
}

func (err InvalidAuthorityError) Error() string {
	return fmt.Sprintf("authority index %d outside of authority set of size %d", err.index, err.count)
}

// IsInvalidAuthorityError returns whether err is an InvalidAuthorityError.
func IsInvalidAuthorityError(err error) bool {
	return errors.As(err, &InvalidAuthorityError{})
}

// Evaluator answers slot claim queries for one epoch. It caches the primary
// thresholds and cumulative weights, and is safe for concurrent use.
type Evaluator struct {
	epoch *iepoch.Epoch

	// thresholds[i] is the primary threshold of authority i
	thresholds []*big.Int
	// cumWeights[i] is the sum of the weights of authorities 0..i
	cumWeights  []uint64
	totalWeight uint64
}

// NewEvaluator validates the epoch and precomputes its selection tables.
// The epoch must not be modified while the evaluator is in use.
func NewEvaluator(epoch *iepoch.Epoch) (*Evaluator, error) {
	if err := epoch.Validate(); err != nil {
		return nil, err
	}
	total, err := epoch.Authorities.TotalWeight()
	if err != nil {
		return nil, err
	}

	thresholds := make([]*big.Int, len(epoch.Authorities))
	for i, a := range epoch.Authorities {
		thresholds[i] = PrimaryThreshold(epoch.Config.C, uint64(a.Weight), uint64(total))
	}
	return &Evaluator{
		epoch:       epoch,
		thresholds:  thresholds,
		cumWeights:  epoch.Authorities.CumulativeWeights(),
		totalWeight: uint64(total),
	}, nil
}

// Epoch returns the epoch the evaluator was built for.
func (ev *Evaluator) Epoch() *iepoch.Epoch {
	return ev.epoch
}

// SecondaryAuthor returns the index of the authority holding the secondary
// claim for slot, regardless of whether the epoch allows secondary slots.
func (ev *Evaluator) SecondaryAuthor(slot iepoch.Slot) int {
	return binarySearchStrictlyBigger(uint64(slot)%ev.totalWeight, ev.cumWeights)
}

// ClaimSlot decides the claim of authority idx on slot given its VRF output
// for that slot. The result is NoClaim when the authority holds no claim.
// Errors are only returned for an index or slot outside the epoch.
func (ev *Evaluator) ClaimSlot(slot iepoch.Slot, idx int, out vrf.Output) (Tier, error) {
	if err := ev.checkAuthority(idx); err != nil {
		return NoClaim, err
	}
	if !ev.epoch.Contains(slot) {
		return NoClaim, InvalidSlotError{slot: slot, startSlot: ev.epoch.StartSlot, endSlot: ev.epoch.EndSlot()}
	}

	if out.Less(ev.thresholds[idx]) {
		return Primary, nil
	}

	allowed := ev.epoch.Config.AllowedSlots
	if !allowed.SecondaryEnabled() || ev.SecondaryAuthor(slot) != idx {
		return NoClaim, nil
	}
	if allowed == iepoch.PrimaryAndSecondaryVRFSlots {
		return SecondaryVRF, nil
	}
	return SecondaryPlain, nil
}

func (ev *Evaluator) checkAuthority(idx int) error {
	if idx < 0 || idx >= len(ev.thresholds) {
		return InvalidAuthorityError{index: idx, count: len(ev.thresholds)}
	}
	return nil
}

// ClaimSlot is the one-shot form of Evaluator.ClaimSlot.
func ClaimSlot(epoch *iepoch.Epoch, idx int, out vrf.Output, slot iepoch.Slot) (Tier, error) {
	ev, err := NewEvaluator(epoch)
	if err != nil {
		return NoClaim, err
	}
	return ev.ClaimSlot(slot, idx, out)
}

// PrimaryThreshold returns T = floor(p * 2^128) with
//
//	p = 1 - (1 - c)^θ,  θ = min(1, weight/total)
//
// An authority wins a primary slot when the 128-bit prefix of its VRF output
// is below T. p grows with both θ and c, and reaches 1 (T = 2^128, every
// output wins) when c = 1. c must be valid.
//
// With θ = 1 the result is exact. Otherwise (1 - c)^θ is evaluated as
// exp(θ·ln(1 - c)) in binary fixed point with 64 guard bits below the
// threshold precision, using integer arithmetic only, so the threshold is
// identical on every platform.
func PrimaryThreshold(c iepoch.Ratio, weight, total uint64) *big.Int {
	if weight >= total {
		t := new(big.Int).SetUint64(c.Num)
		t.Lsh(t, vrf.ThresholdBits)
		return t.Quo(t, new(big.Int).SetUint64(c.Den))
	}
	if c.Num >= c.Den {
		return new(big.Int).Lsh(big.NewInt(1), vrf.ThresholdBits)
	}

	q := new(big.Int).SetUint64(c.Den - c.Num)
	q.Lsh(q, fixedBits)
	q.Quo(q, new(big.Int).SetUint64(c.Den))

	y := negLog(q)
	y.Mul(y, new(big.Int).SetUint64(weight))
	y.Quo(y, new(big.Int).SetUint64(total))

	p := new(big.Int).Sub(fixedOne, expNeg(y))
	return p.Rsh(p, fixedBits-vrf.ThresholdBits)
}

// fixedBits is the number of fractional bits of the fixed-point values below.
const fixedBits = vrf.ThresholdBits + 64

var (
	fixedOne = new(big.Int).Lsh(big.NewInt(1), fixedBits)
	fixedLn2 = negLogReduced(new(big.Int).Rsh(fixedOne, 1))
)

// negLog returns -ln(x) for a fixed-point x in (0, 1).
func negLog(x *big.Int) *big.Int {
	shift := fixedBits - x.BitLen()
	m := new(big.Int).Lsh(x, uint(shift))
	res := new(big.Int).Mul(big.NewInt(int64(shift)), fixedLn2)
	return res.Add(res, negLogReduced(m))
}

// negLogReduced returns -ln(m) for m in [1/2, 1) as 2·atanh((1-m)/(1+m)).
func negLogReduced(m *big.Int) *big.Int {
	z := new(big.Int).Sub(fixedOne, m)
	z.Lsh(z, fixedBits)
	z.Quo(z, new(big.Int).Add(fixedOne, m))
	z2 := new(big.Int).Mul(z, z)
	z2.Rsh(z2, fixedBits)

	sum := new(big.Int)
	term := new(big.Int).Set(z)
	for k := int64(1); term.Sign() > 0; k += 2 {
		sum.Add(sum, new(big.Int).Quo(term, big.NewInt(k)))
		term.Mul(term, z2)
		term.Rsh(term, fixedBits)
	}
	return sum.Lsh(sum, 1)
}

// expNeg returns exp(-y) for a fixed-point y >= 0, splitting y = k·ln2 + r.
func expNeg(y *big.Int) *big.Int {
	k, r := new(big.Int).QuoRem(y, fixedLn2, new(big.Int))
	if !k.IsUint64() || k.Uint64() > fixedBits {
		return new(big.Int)
	}

	// exp(r) by its Taylor series, r in [0, ln2)
	sum := new(big.Int).Set(fixedOne)
	term := new(big.Int).Set(fixedOne)
	for n := int64(1); ; n++ {
		term.Mul(term, r)
		term.Rsh(term, fixedBits)
		term.Quo(term, big.NewInt(n))
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
	}

	res := new(big.Int).Lsh(fixedOne, fixedBits)
	res.Quo(res, sum)
	return res.Rsh(res, uint(k.Uint64()))
}

// binarySearchStrictlyBigger finds the index of the first item in arr that is
// strictly bigger than value. arr must be non-empty and non-decreasing, and
// value must be less than its last item.
func binarySearchStrictlyBigger(value uint64, arr []uint64) int {
	left := 0
	arrayLen := len(arr)
	right := arrayLen - 1
	mid := arrayLen >> 1
	for {
		if arr[mid] <= value {
			left = mid + 1
		} else {
			right = mid
		}

		if left >= right {
			return left
		}

		mid = int(left+right) >> 1
	}
}
