// Package params defines the network rules of the RRSC networks.
//
// This package provides:
//   - Network identification constants (MainNet, TestNet, FakeNet)
//   - Epoch length and slot timing rules
//   - Slot selection parameters used for epochs that do not record their own
//   - Protocol upgrade flags that decide the epoch record schema
//
// The Rules type is the central configuration structure holding all
// consensus-critical parameters of a network deployment.
package params

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rony4d/go-rrsc/inter/iepoch"
)

// Network identification constants
const (
	// MainNetworkID is the chain ID of the RRSC mainnet
	MainNetworkID uint64 = 0x2c5

	// TestNetworkID is the chain ID of the RRSC testnet
	TestNetworkID uint64 = 0x2c6

	// FakeNetworkID is the chain ID of local networks used in testing
	FakeNetworkID uint64 = 0x2c7
)

// RulesRLP is the RLP-serializable version of Rules. The Upgrades field is
// excluded from RLP encoding.
type RulesRLP struct {
	Name      string // Network name identifier ("main", "test", "fake")
	NetworkID uint64 // Chain ID for network identification

	// Epochs options - epoch length and slot timing
	Epochs EpochsRules

	// Selection options - slot claim parameters of legacy epochs
	Selection iepoch.EpochConfiguration

	// Upgrades - protocol upgrade flags (not RLP-encoded)
	Upgrades Upgrades `rlp:"-"`
}

// Rules describes the complete configuration of an RRSC network.
type Rules RulesRLP

// EpochsRules defines how long epochs and slots last.
type EpochsRules struct {
	// Duration is the number of slots of every epoch
	Duration uint64

	// SlotMillis is the wall-clock length of one slot in milliseconds
	SlotMillis uint64
}

// SlotDuration returns the wall-clock length of one slot.
func (r EpochsRules) SlotDuration() time.Duration {
	return time.Duration(r.SlotMillis) * time.Millisecond
}

// Upgrades tracks which protocol upgrades are enabled for a network.
type Upgrades struct {
	// EpochConfig makes epoch records carry their own selection parameters
	// (epoch record schema V1). Before it, Selection applied to every epoch.
	EpochConfig bool
}

// UpgradeHeight specifies from which epoch an upgrade set is active.
type UpgradeHeight struct {
	Upgrades Upgrades // Which upgrades are activated
	Epoch    uint64   // Epoch index at which upgrades take effect
}

// EpochVersion returns the schema new epoch records are written in.
func (r Rules) EpochVersion() iepoch.EpochVersion {
	if r.Upgrades.EpochConfig {
		return iepoch.EpochVersionV1
	}
	return iepoch.EpochVersionV0
}

// EpochVersionAt returns the record schema in force at the given epoch.
// hh must be ordered by epoch; the last entry not after epoch wins. Without
// a matching entry the rules' own Upgrades apply.
func (r Rules) EpochVersionAt(hh []UpgradeHeight, epoch uint64) iepoch.EpochVersion {
	current := r
	for _, h := range hh {
		if h.Epoch > epoch {
			break
		}
		current.Upgrades = h.Upgrades
	}
	return current.EpochVersion()
}

// Validate checks that the rules can produce valid epochs.
func (r Rules) Validate() error {
	if r.Epochs.Duration == 0 {
		return fmt.Errorf("rules %q: epoch duration is zero", r.Name)
	}
	if err := r.Selection.Validate(); err != nil {
		return fmt.Errorf("rules %q: %w", r.Name, err)
	}
	return nil
}

// MainNetRules returns the configuration rules of the RRSC mainnet.
// Mainnet started before epoch records carried selection parameters, so
// its rules keep the parameters every legacy record is migrated with.
func MainNetRules() Rules {
	return Rules{
		Name:      "main",
		NetworkID: MainNetworkID,
		Epochs:    DefaultEpochsRules(),
		Selection: DefaultSelectionRules(),
	}
}

// TestNetRules returns the configuration rules of the RRSC testnet.
// Testnet uses the same parameters as mainnet with VRF secondary slots.
func TestNetRules() Rules {
	selection := DefaultSelectionRules()
	selection.AllowedSlots = iepoch.PrimaryAndSecondaryVRFSlots
	return Rules{
		Name:      "test",
		NetworkID: TestNetworkID,
		Epochs:    DefaultEpochsRules(),
		Selection: selection,
	}
}

// FakeNetRules returns the configuration rules of fake/local networks.
// Fake networks use accelerated parameters for faster testing:
//   - Short epochs (100 slots of one second)
//   - A higher primary slot probability (c = 1/2)
//   - All upgrades enabled by default
func FakeNetRules() Rules {
	return Rules{
		Name:      "fake",
		NetworkID: FakeNetworkID,
		Epochs:    FakeNetEpochsRules(),
		Selection: iepoch.EpochConfiguration{
			C:            iepoch.Ratio{Num: 1, Den: 2},
			AllowedSlots: iepoch.PrimaryAndSecondaryVRFSlots,
		},
		Upgrades: Upgrades{
			EpochConfig: true,
		},
	}
}

// DefaultEpochsRules returns the mainnet epoch configuration:
// 4 hour epochs of 6 second slots.
func DefaultEpochsRules() EpochsRules {
	return EpochsRules{
		Duration:   2400,
		SlotMillis: 6000,
	}
}

// FakeNetEpochsRules returns accelerated epoch rules for fake networks.
func FakeNetEpochsRules() EpochsRules {
	return EpochsRules{
		Duration:   100,
		SlotMillis: 1000,
	}
}

// DefaultSelectionRules returns the mainnet slot selection parameters:
// one primary slot in four on average, plain secondary fallback.
func DefaultSelectionRules() iepoch.EpochConfiguration {
	return iepoch.EpochConfiguration{
		C:            iepoch.Ratio{Num: 1, Den: 4},
		AllowedSlots: iepoch.PrimaryAndSecondaryPlainSlots,
	}
}

// RulesByName returns the preset rules of a network: main, test or fake.
func RulesByName(name string) (Rules, error) {
	switch strings.ToLower(name) {
	case "main", "mainnet":
		return MainNetRules(), nil
	case "test", "testnet":
		return TestNetRules(), nil
	case "fake", "fakenet":
		return FakeNetRules(), nil
	}
	return Rules{}, fmt.Errorf("unknown network %q", name)
}

// String returns a JSON representation of Rules for debugging and logging.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}
