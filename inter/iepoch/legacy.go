package iepoch

import (
	"fmt"

	"github.com/rony4d/go-rrsc/inter/drivertype"
)

// EpochV0 is the epoch schema before selection parameters were recorded per
// epoch. At that version c and the allowed slot kinds lived in the global
// protocol rules, so a V0 record alone cannot be evaluated.
type EpochV0 struct {
	EpochIndex  uint64
	StartSlot   Slot
	Duration    uint64
	Authorities drivertype.Authorities
	Randomness  Randomness
}

// EndSlot returns the first slot after the epoch.
func (e *EpochV0) EndSlot() Slot {
	return e.StartSlot + Slot(e.Duration)
}

// Increment derives the V0 epoch that follows e. Config in next is ignored,
// V0 has nowhere to keep it.
func (e *EpochV0) Increment(next NextEpochDescriptor) EpochV0 {
	return EpochV0{
		EpochIndex:  e.EpochIndex + 1,
		StartSlot:   e.EndSlot(),
		Duration:    e.Duration,
		Authorities: next.Authorities.Copy(),
		Randomness:  next.Randomness,
	}
}

// Validate checks the invariants a V0 record was written under. Migrate does
// not call it; callers reject malformed records before migrating.
func (e *EpochV0) Validate() error {
	if err := validateRange(e.StartSlot, e.Duration); err != nil {
		return fmt.Errorf("invalid legacy epoch %d: %w", e.EpochIndex, err)
	}
	if err := e.Authorities.Validate(); err != nil {
		return fmt.Errorf("invalid legacy epoch %d: %w", e.EpochIndex, err)
	}
	return nil
}

// Migrate upgrades the record to the current schema, taking the selection
// parameters that were out-of-band at V0 from cfg. It is pure and total: the
// result shares no memory with e and the same inputs always produce the same
// epoch.
func (e *EpochV0) Migrate(cfg EpochConfiguration) Epoch {
	return Epoch{
		EpochIndex:  e.EpochIndex,
		StartSlot:   e.StartSlot,
		Duration:    e.Duration,
		Authorities: e.Authorities.Copy(),
		Randomness:  e.Randomness,
		Config:      cfg,
	}
}
