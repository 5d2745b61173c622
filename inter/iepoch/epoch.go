// Package iepoch holds the RRSC epoch model: the authority set, slot range,
// randomness and selection parameters every slot claim is derived from.
//
// Epochs are finalized chain data. They are built once, validated at the
// boundary where they enter the node, and never mutated afterwards. Older
// schema versions are kept (see legacy.go) for as long as historical records
// written in them must remain decodable.
package iepoch

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/hashicorp/go-multierror"

	"github.com/rony4d/go-rrsc/inter/drivertype"
)

// Slot is the smallest schedulable time unit.
type Slot uint64

// Randomness is the per-epoch entropy seed mixed into every VRF transcript.
type Randomness = hash.Hash

// Epoch is the current (V1) schema of an RRSC epoch.
type Epoch struct {
	// EpochIndex is the sequence number of the epoch.
	EpochIndex uint64
	// StartSlot is the first slot of the epoch.
	StartSlot Slot
	// Duration is the number of slots in the epoch.
	Duration uint64
	// Authorities is the ordered, weighted authority set.
	Authorities drivertype.Authorities
	// Randomness seeds the VRF transcripts of this epoch.
	Randomness Randomness
	// Config carries the slot selection parameters.
	Config EpochConfiguration
}

// NextEpochDescriptor announces the authority set and randomness of the
// following epoch. Config is optional; nil keeps the current parameters.
type NextEpochDescriptor struct {
	Authorities drivertype.Authorities
	Randomness  Randomness
	Config      *EpochConfiguration
}

// EndSlot returns the first slot after the epoch.
func (e *Epoch) EndSlot() Slot {
	return e.StartSlot + Slot(e.Duration)
}

// Contains reports whether slot lies in [StartSlot, EndSlot).
func (e *Epoch) Contains(slot Slot) bool {
	return slot >= e.StartSlot && slot < e.EndSlot()
}

// Increment derives the epoch that follows e.
func (e *Epoch) Increment(next NextEpochDescriptor) Epoch {
	cfg := e.Config
	if next.Config != nil {
		cfg = *next.Config
	}
	return Epoch{
		EpochIndex:  e.EpochIndex + 1,
		StartSlot:   e.EndSlot(),
		Duration:    e.Duration,
		Authorities: next.Authorities.Copy(),
		Randomness:  next.Randomness,
		Config:      cfg,
	}
}

// Copy returns a deep copy of the epoch.
func (e *Epoch) Copy() Epoch {
	cp := *e
	cp.Authorities = e.Authorities.Copy()
	return cp
}

// Validate checks all structural invariants of the epoch and reports every
// violation found.
func (e *Epoch) Validate() error {
	var result *multierror.Error
	if err := validateRange(e.StartSlot, e.Duration); err != nil {
		result = multierror.Append(result, err)
	}
	if err := e.Authorities.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := e.Config.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid epoch %d: %w", e.EpochIndex, err)
	}
	return nil
}

func validateRange(start Slot, duration uint64) error {
	if duration == 0 {
		return errors.New("epoch duration is zero")
	}
	if _, carry := bits.Add64(uint64(start), duration, 0); carry != 0 {
		return fmt.Errorf("slot range %d+%d overflows", start, duration)
	}
	return nil
}
