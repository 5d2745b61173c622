package iepoch

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// EpochVersion tags the schema an epoch record was written in.
type EpochVersion uint8

const (
	// EpochVersionV0 records lack the selection parameters.
	EpochVersionV0 EpochVersion = 0
	// EpochVersionV1 is the current schema.
	EpochVersionV1 EpochVersion = 1

	// CurrentEpochVersion is the version new records are written in.
	CurrentEpochVersion = EpochVersionV1
)

var (
	// ErrUnknownEpochVersion is returned when decoding a tag no variant exists for.
	ErrUnknownEpochVersion = errors.New("unknown epoch record version")
	// ErrEmptyVersioned is returned when the variant body matching the tag is missing.
	ErrEmptyVersioned = errors.New("versioned epoch has no body for its version")
)

// Versioned is an epoch record in any known schema. Exactly one of V0 and V1
// is set, matching Version.
type Versioned struct {
	Version EpochVersion
	V0      *EpochV0
	V1      *Epoch
}

// versionedRLP is the wire form: the tag followed by the RLP of the body.
type versionedRLP struct {
	Version EpochVersion
	Body    rlp.RawValue
}

// WrapV0 tags a legacy record.
func WrapV0(e EpochV0) Versioned {
	return Versioned{Version: EpochVersionV0, V0: &e}
}

// WrapCurrent tags a current record.
func WrapCurrent(e Epoch) Versioned {
	return Versioned{Version: EpochVersionV1, V1: &e}
}

// EpochIndex returns the index of the wrapped record.
func (v Versioned) EpochIndex() (uint64, error) {
	switch {
	case v.Version == EpochVersionV0 && v.V0 != nil:
		return v.V0.EpochIndex, nil
	case v.Version == EpochVersionV1 && v.V1 != nil:
		return v.V1.EpochIndex, nil
	}
	return 0, v.bodyError()
}

// Upgrade returns the record in the current schema. V0 records are migrated
// with cfg; current records are returned as a copy and cfg is ignored.
func (v Versioned) Upgrade(cfg EpochConfiguration) (Epoch, error) {
	switch {
	case v.Version == EpochVersionV0 && v.V0 != nil:
		return v.V0.Migrate(cfg), nil
	case v.Version == EpochVersionV1 && v.V1 != nil:
		return v.V1.Copy(), nil
	}
	return Epoch{}, v.bodyError()
}

// Range returns the slot range [start, end) of the wrapped record.
func (v Versioned) Range() (start, end Slot, err error) {
	switch {
	case v.Version == EpochVersionV0 && v.V0 != nil:
		return v.V0.StartSlot, v.V0.EndSlot(), nil
	case v.Version == EpochVersionV1 && v.V1 != nil:
		return v.V1.StartSlot, v.V1.EndSlot(), nil
	}
	return 0, 0, v.bodyError()
}

// Increment derives the record that follows v, in the same schema as v.
func (v Versioned) Increment(next NextEpochDescriptor) (Versioned, error) {
	switch {
	case v.Version == EpochVersionV0 && v.V0 != nil:
		return WrapV0(v.V0.Increment(next)), nil
	case v.Version == EpochVersionV1 && v.V1 != nil:
		return WrapCurrent(v.V1.Increment(next)), nil
	}
	return Versioned{}, v.bodyError()
}

func (v Versioned) bodyError() error {
	if v.Version > CurrentEpochVersion {
		return fmt.Errorf("%w: %d", ErrUnknownEpochVersion, v.Version)
	}
	return fmt.Errorf("%w: %d", ErrEmptyVersioned, v.Version)
}

// MarshalBinary encodes the record as RLP [version, body].
func (v Versioned) MarshalBinary() ([]byte, error) {
	var body interface{}
	switch {
	case v.Version == EpochVersionV0 && v.V0 != nil:
		body = v.V0
	case v.Version == EpochVersionV1 && v.V1 != nil:
		body = v.V1
	default:
		return nil, v.bodyError()
	}
	raw, err := rlp.EncodeToBytes(body)
	if err != nil {
		return nil, fmt.Errorf("encode epoch v%d body: %w", v.Version, err)
	}
	return rlp.EncodeToBytes(&versionedRLP{Version: v.Version, Body: raw})
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (v *Versioned) UnmarshalBinary(data []byte) error {
	var wire versionedRLP
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return fmt.Errorf("decode epoch record: %w", err)
	}
	res := Versioned{Version: wire.Version}
	switch wire.Version {
	case EpochVersionV0:
		res.V0 = new(EpochV0)
		if err := rlp.DecodeBytes(wire.Body, res.V0); err != nil {
			return fmt.Errorf("decode epoch v0 body: %w", err)
		}
	case EpochVersionV1:
		res.V1 = new(Epoch)
		if err := rlp.DecodeBytes(wire.Body, res.V1); err != nil {
			return fmt.Errorf("decode epoch v1 body: %w", err)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownEpochVersion, wire.Version)
	}
	*v = res
	return nil
}
