// Package keystore holds the secret keys of the authorities run by this node
// and evaluates slot claim VRFs with them.
package keystore

import (
	"bufio"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-rrsc/inter/validatorpk"
	"github.com/rony4d/go-rrsc/inter/vrf"
)

// ErrNotFound is returned when no secret key is held for a public key.
var ErrNotFound = errors.New("key not found")

// Memory is an in-memory key store of secp256k1 keys. It is safe for
// concurrent use.
type Memory struct {
	mu   sync.RWMutex
	keys map[validatorpk.ID]*ecdsa.PrivateKey
}

// NewMemory returns an empty key store.
func NewMemory() *Memory {
	return &Memory{
		keys: make(map[validatorpk.ID]*ecdsa.PrivateKey),
	}
}

// Add stores key and returns its public identity.
func (m *Memory) Add(key *ecdsa.PrivateKey) validatorpk.PubKey {
	pub := validatorpk.FromECDSA(&key.PublicKey)
	m.mu.Lock()
	m.keys[pub.ID()] = key
	m.mu.Unlock()
	return pub
}

// AddHex parses a hex-encoded secret key (0x prefix optional) and stores it.
func (m *Memory) AddHex(s string) (validatorpk.PubKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return validatorpk.PubKey{}, fmt.Errorf("parse secret key: %w", err)
	}
	return m.Add(key), nil
}

// Load reads one hex secret key per line. Blank lines and lines starting
// with # are skipped.
func (m *Memory) Load(r io.Reader) ([]validatorpk.PubKey, error) {
	var loaded []validatorpk.PubKey
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		pub, err := m.AddHex(text)
		if err != nil {
			return loaded, fmt.Errorf("line %d: %w", line, err)
		}
		loaded = append(loaded, pub)
	}
	return loaded, scanner.Err()
}

// LoadFile is Load over the contents of a file.
func (m *Memory) LoadFile(path string) ([]validatorpk.PubKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return m.Load(f)
}

// HasKey reports whether the secret key of pub is held.
func (m *Memory) HasKey(pub validatorpk.PubKey) bool {
	_, ok := m.get(pub)
	return ok
}

// VRFSign evaluates the slot claim VRF under the secret key of pub.
func (m *Memory) VRFSign(pub validatorpk.PubKey, t vrf.Transcript) (vrf.Output, vrf.Proof, error) {
	key, ok := m.get(pub)
	if !ok {
		return vrf.Output{}, nil, fmt.Errorf("%w: %s", ErrNotFound, pub)
	}
	return vrf.Sign(key, t)
}

func (m *Memory) get(pub validatorpk.PubKey) (*ecdsa.PrivateKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[pub.ID()]
	return key, ok
}
