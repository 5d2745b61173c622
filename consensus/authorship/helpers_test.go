package authorship

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/rony4d/go-rrsc/inter/drivertype"
	"github.com/rony4d/go-rrsc/inter/iepoch"
	"github.com/rony4d/go-rrsc/inter/validatorpk"
	"github.com/rony4d/go-rrsc/inter/vrf"
)

var errRefused = errors.New("refused")

// winning is below every positive threshold, losing is above every threshold below 2^128.
var (
	winning = vrf.Output{}
	losing  = func() (o vrf.Output) {
		for i := range o {
			o[i] = 0xff
		}
		return o
	}()
)

func fakeKey(b byte) validatorpk.PubKey {
	raw := make([]byte, 65)
	raw[0] = 0x04
	raw[64] = b
	return validatorpk.PubKey{Type: validatorpk.Types.Secp256k1, Raw: raw}
}

func fakeAuthorities(weights ...uint64) drivertype.Authorities {
	aa := make(drivertype.Authorities, len(weights))
	for i, w := range weights {
		aa[i] = drivertype.Authority{PubKey: fakeKey(byte(i + 1)), Weight: drivertype.Weight(w)}
	}
	return aa
}

func testEpoch(allowed iepoch.AllowedSlots, c iepoch.Ratio, start iepoch.Slot, duration uint64, weights ...uint64) *iepoch.Epoch {
	return &iepoch.Epoch{
		EpochIndex:  1,
		StartSlot:   start,
		Duration:    duration,
		Authorities: fakeAuthorities(weights...),
		Randomness:  hash.Of([]byte("randomness")),
		Config:      iepoch.EpochConfiguration{C: c, AllowedSlots: allowed},
	}
}

func allKeys(epoch *iepoch.Epoch) []drivertype.LocalKey {
	keys := make([]drivertype.LocalKey, len(epoch.Authorities))
	for i, a := range epoch.Authorities {
		keys[i] = drivertype.LocalKey{PubKey: a.PubKey, Index: i}
	}
	return keys
}

// scriptedKeyStore answers with losing outputs unless a slot is scripted.
type scriptedKeyStore struct {
	mu      sync.Mutex
	held    map[validatorpk.ID]bool
	wins    map[validatorpk.ID]map[uint64]bool
	refused map[validatorpk.ID]map[uint64]bool
	calls   int
}

func newScriptedKeyStore(held ...validatorpk.PubKey) *scriptedKeyStore {
	ks := &scriptedKeyStore{
		held:    make(map[validatorpk.ID]bool),
		wins:    make(map[validatorpk.ID]map[uint64]bool),
		refused: make(map[validatorpk.ID]map[uint64]bool),
	}
	for _, pk := range held {
		ks.held[pk.ID()] = true
	}
	return ks
}

func (ks *scriptedKeyStore) win(pk validatorpk.PubKey, slots ...uint64) {
	if ks.wins[pk.ID()] == nil {
		ks.wins[pk.ID()] = make(map[uint64]bool)
	}
	for _, s := range slots {
		ks.wins[pk.ID()][s] = true
	}
}

func (ks *scriptedKeyStore) refuse(pk validatorpk.PubKey, slots ...uint64) {
	if ks.refused[pk.ID()] == nil {
		ks.refused[pk.ID()] = make(map[uint64]bool)
	}
	for _, s := range slots {
		ks.refused[pk.ID()][s] = true
	}
}

func (ks *scriptedKeyStore) HasKey(pk validatorpk.PubKey) bool {
	return ks.held[pk.ID()]
}

func (ks *scriptedKeyStore) VRFSign(pk validatorpk.PubKey, t vrf.Transcript) (vrf.Output, vrf.Proof, error) {
	ks.mu.Lock()
	ks.calls++
	ks.mu.Unlock()

	if ks.refused[pk.ID()][t.Slot] {
		return vrf.Output{}, nil, errRefused
	}
	if ks.wins[pk.ID()][t.Slot] {
		return winning, nil, nil
	}
	return losing, nil, nil
}

// hashKeyStore derives outputs from (identity, randomness, slot) so that
// different keys see independent pseudorandom values.
type hashKeyStore struct{}

func (hashKeyStore) HasKey(validatorpk.PubKey) bool { return true }

func (hashKeyStore) VRFSign(pk validatorpk.PubKey, t vrf.Transcript) (vrf.Output, vrf.Proof, error) {
	var slot [8]byte
	binary.BigEndian.PutUint64(slot[:], t.Slot)
	h := sha256.New()
	h.Write(pk.Bytes())
	h.Write(t.Randomness.Bytes())
	h.Write(slot[:])
	var out vrf.Output
	copy(out[:], h.Sum(nil))
	return out, nil, nil
}
