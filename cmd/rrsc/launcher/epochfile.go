package launcher

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/rony4d/go-rrsc/inter/drivertype"
	"github.com/rony4d/go-rrsc/inter/iepoch"
	"github.com/rony4d/go-rrsc/inter/validatorpk"
)

// epochJSON is the file form of an epoch record. Records without a config
// are legacy (V0) records.
type epochJSON struct {
	EpochIndex  uint64                     `json:"epoch_index"`
	StartSlot   uint64                     `json:"start_slot"`
	Duration    uint64                     `json:"duration"`
	Randomness  hexutil.Bytes              `json:"randomness"`
	Authorities []authorityJSON            `json:"authorities"`
	Config      *iepoch.EpochConfiguration `json:"config,omitempty"`
}

type authorityJSON struct {
	PubKey validatorpk.PubKey `json:"pubkey"`
	Weight uint64             `json:"weight"`
}

func (e *epochJSON) versioned() (iepoch.Versioned, error) {
	if len(e.Randomness) != len(hash.Hash{}) {
		return iepoch.Versioned{}, fmt.Errorf("randomness must be %d bytes, got %d", len(hash.Hash{}), len(e.Randomness))
	}
	authorities := make(drivertype.Authorities, len(e.Authorities))
	for i, a := range e.Authorities {
		authorities[i] = drivertype.Authority{PubKey: a.PubKey, Weight: drivertype.Weight(a.Weight)}
	}
	legacy := iepoch.EpochV0{
		EpochIndex:  e.EpochIndex,
		StartSlot:   iepoch.Slot(e.StartSlot),
		Duration:    e.Duration,
		Authorities: authorities,
		Randomness:  hash.BytesToHash(e.Randomness),
	}
	if e.Config == nil {
		return iepoch.WrapV0(legacy), nil
	}
	return iepoch.WrapCurrent(legacy.Migrate(*e.Config)), nil
}

func toEpochJSON(e *iepoch.Epoch) epochJSON {
	authorities := make([]authorityJSON, len(e.Authorities))
	for i, a := range e.Authorities {
		authorities[i] = authorityJSON{PubKey: a.PubKey, Weight: uint64(a.Weight)}
	}
	cfg := e.Config
	return epochJSON{
		EpochIndex:  e.EpochIndex,
		StartSlot:   uint64(e.StartSlot),
		Duration:    e.Duration,
		Randomness:  e.Randomness.Bytes(),
		Authorities: authorities,
		Config:      &cfg,
	}
}

// readEpochFile decodes an epoch record from a JSON file.
func readEpochFile(path string) (iepoch.Versioned, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return iepoch.Versioned{}, err
	}
	var e epochJSON
	if err := json.Unmarshal(data, &e); err != nil {
		return iepoch.Versioned{}, fmt.Errorf("decode epoch file %s: %w", path, err)
	}
	v, err := e.versioned()
	if err != nil {
		return iepoch.Versioned{}, fmt.Errorf("epoch file %s: %w", path, err)
	}
	return v, nil
}
