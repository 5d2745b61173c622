package iepoch

import (
	"fmt"
	"strconv"
	"strings"
)

// Ratio is the rational selection parameter c = Num/Den. Together with an
// authority's weight share it sets the probability of winning a primary slot.
type Ratio struct {
	Num uint64
	Den uint64
}

// Valid reports whether c lies in (0, 1].
func (r Ratio) Valid() bool {
	return r.Den != 0 && r.Num != 0 && r.Num <= r.Den
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// ParseRatio parses the "num/den" form produced by String. A bare integer
// n is read as n/1.
func ParseRatio(s string) (Ratio, error) {
	numStr, denStr, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		denStr = "1"
	}
	num, err := strconv.ParseUint(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return Ratio{}, fmt.Errorf("ratio %q: %w", s, err)
	}
	den, err := strconv.ParseUint(strings.TrimSpace(denStr), 10, 64)
	if err != nil {
		return Ratio{}, fmt.Errorf("ratio %q: %w", s, err)
	}
	return Ratio{Num: num, Den: den}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Ratio) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ratio) UnmarshalText(input []byte) error {
	v, err := ParseRatio(string(input))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// AllowedSlots selects which claim tiers an epoch admits besides primary.
type AllowedSlots uint8

const (
	// PrimarySlots admits primary claims only. Slots nobody wins stay empty.
	PrimarySlots AllowedSlots = iota
	// PrimaryAndSecondaryPlainSlots adds the round-robin fallback without a VRF.
	PrimaryAndSecondaryPlainSlots
	// PrimaryAndSecondaryVRFSlots adds the round-robin fallback carrying a VRF.
	PrimaryAndSecondaryVRFSlots
)

var allowedSlotsNames = [...]string{
	PrimarySlots:                  "PrimarySlots",
	PrimaryAndSecondaryPlainSlots: "PrimaryAndSecondaryPlainSlots",
	PrimaryAndSecondaryVRFSlots:   "PrimaryAndSecondaryVRFSlots",
}

// Valid reports whether a is one of the known variants.
func (a AllowedSlots) Valid() bool {
	return int(a) < len(allowedSlotsNames)
}

// SecondaryEnabled reports whether some secondary sub-tier is active.
func (a AllowedSlots) SecondaryEnabled() bool {
	return a == PrimaryAndSecondaryPlainSlots || a == PrimaryAndSecondaryVRFSlots
}

func (a AllowedSlots) String() string {
	if !a.Valid() {
		return fmt.Sprintf("AllowedSlots(%d)", uint8(a))
	}
	return allowedSlotsNames[a]
}

// ParseAllowedSlots accepts the variant name, case-insensitively, or the
// short forms "primary", "plain" and "vrf".
func ParseAllowedSlots(s string) (AllowedSlots, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary", "primaryslots":
		return PrimarySlots, nil
	case "plain", "primaryandsecondaryplainslots":
		return PrimaryAndSecondaryPlainSlots, nil
	case "vrf", "primaryandsecondaryvrfslots":
		return PrimaryAndSecondaryVRFSlots, nil
	}
	return 0, fmt.Errorf("unknown allowed slots %q (valid: primary, plain, vrf)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (a AllowedSlots) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid allowed slots %d", uint8(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AllowedSlots) UnmarshalText(input []byte) error {
	v, err := ParseAllowedSlots(string(input))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// EpochConfiguration holds the slot selection parameters of one epoch.
type EpochConfiguration struct {
	// C is the primary slot probability parameter.
	C Ratio `json:"c"`
	// AllowedSlots chooses the secondary sub-tier, if any.
	AllowedSlots AllowedSlots `json:"allowed_slots"`
}

// Validate checks the parameter ranges.
func (c EpochConfiguration) Validate() error {
	if !c.C.Valid() {
		return fmt.Errorf("selection parameter c=%s is outside (0, 1]", c.C)
	}
	if !c.AllowedSlots.Valid() {
		return fmt.Errorf("invalid allowed slots %d", uint8(c.AllowedSlots))
	}
	return nil
}
