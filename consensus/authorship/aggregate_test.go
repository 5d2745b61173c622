package authorship

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rony4d/go-rrsc/inter/drivertype"
	"github.com/rony4d/go-rrsc/inter/iepoch"
)

type recordingMetrics struct {
	mu      sync.Mutex
	claimed map[Tier]int
	refused int
	epochs  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{claimed: make(map[Tier]int)}
}

func (m *recordingMetrics) SlotClaimed(tier Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimed[tier]++
}

func (m *recordingMetrics) VRFRefused() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refused++
}

func (m *recordingMetrics) EpochAggregated(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epochs++
}

func slots(ss ...iepoch.Slot) []iepoch.Slot {
	if ss == nil {
		return []iepoch.Slot{}
	}
	return ss
}

// twoAuthorityEpoch has authorities A and B of equal weight over slots [0, 10).
func twoAuthorityEpoch() *iepoch.Epoch {
	return testEpoch(iepoch.PrimaryAndSecondaryPlainSlots, iepoch.Ratio{Num: 1, Den: 4}, 0, 10, 1, 1)
}

func TestAggregateTwoAuthorities(t *testing.T) {
	epoch := twoAuthorityEpoch()
	a, b := epoch.Authorities[0].PubKey, epoch.Authorities[1].PubKey
	ks := newScriptedKeyStore(a, b)
	ks.win(a, 1, 2, 4)

	for _, workers := range []int{1, 3, 16} {
		res, err := NewAggregator(ks, WithWorkers(workers)).Aggregate(context.Background(), epoch, allKeys(epoch))
		require.NoError(t, err)
		require.Equal(t, Authorship{
			a.ID(): {Primary: slots(1, 2, 4), Secondary: slots(0, 6, 8), SecondaryVRF: slots()},
			b.ID(): {Primary: slots(), Secondary: slots(1, 3, 5, 7, 9), SecondaryVRF: slots()},
		}, res, "workers %d", workers)
	}
}

func TestAggregateSecondaryVRF(t *testing.T) {
	epoch := twoAuthorityEpoch()
	epoch.Config.AllowedSlots = iepoch.PrimaryAndSecondaryVRFSlots
	a, b := epoch.Authorities[0].PubKey, epoch.Authorities[1].PubKey
	ks := newScriptedKeyStore(a, b)
	ks.win(a, 1, 2, 4)

	res, err := NewAggregator(ks).Aggregate(context.Background(), epoch, allKeys(epoch))
	require.NoError(t, err)
	require.Equal(t, Authorship{
		a.ID(): {Primary: slots(1, 2, 4), Secondary: slots(), SecondaryVRF: slots(0, 6, 8)},
		b.ID(): {Primary: slots(), Secondary: slots(), SecondaryVRF: slots(1, 3, 5, 7, 9)},
	}, res)
}

func TestAggregatePrimaryOnly(t *testing.T) {
	epoch := twoAuthorityEpoch()
	epoch.Config.AllowedSlots = iepoch.PrimarySlots
	a, b := epoch.Authorities[0].PubKey, epoch.Authorities[1].PubKey
	ks := newScriptedKeyStore(a, b)
	ks.win(a, 1, 2, 4)

	res, err := NewAggregator(ks).Aggregate(context.Background(), epoch, allKeys(epoch))
	require.NoError(t, err)
	// B holds no claim at all and is absent
	require.Equal(t, Authorship{
		a.ID(): {Primary: slots(1, 2, 4), Secondary: slots(), SecondaryVRF: slots()},
	}, res)
}

func TestAggregateJSON(t *testing.T) {
	epoch := twoAuthorityEpoch()
	a := epoch.Authorities[0].PubKey
	ks := newScriptedKeyStore(a)
	ks.win(a, 1, 2, 4)

	res, err := NewAggregator(ks).Aggregate(context.Background(), epoch, LocalKeys(epoch, ks))
	require.NoError(t, err)
	encoded, err := json.Marshal(res[a.ID()])
	require.NoError(t, err)
	require.JSONEq(t, `{"primary":[1,2,4],"secondary":[0,6,8],"secondary_vrf":[]}`, string(encoded))
}

func TestAggregateKeys(t *testing.T) {
	epoch := twoAuthorityEpoch()
	a, b := epoch.Authorities[0].PubKey, epoch.Authorities[1].PubKey
	stranger := fakeKey(99)
	ks := newScriptedKeyStore(a, b, stranger)

	t.Run("no keys", func(t *testing.T) {
		res, err := NewAggregator(ks).Aggregate(context.Background(), epoch, nil)
		require.NoError(t, err)
		require.NotNil(t, res)
		require.Empty(t, res)
	})

	t.Run("unknown identity is skipped", func(t *testing.T) {
		res, err := NewAggregator(ks).Aggregate(context.Background(), epoch, []drivertype.LocalKey{
			{PubKey: stranger, Index: 0},
			{PubKey: b, Index: 1},
		})
		require.NoError(t, err)
		require.Len(t, res, 1)
		require.Contains(t, res, b.ID())
		require.NotContains(t, res, stranger.ID())
	})

	t.Run("stale index is resolved by identity", func(t *testing.T) {
		res, err := NewAggregator(ks).Aggregate(context.Background(), epoch, []drivertype.LocalKey{{PubKey: b, Index: 0}})
		require.NoError(t, err)
		require.Equal(t, slots(1, 3, 5, 7, 9), res[b.ID()].Secondary)
		require.NotContains(t, res, a.ID())
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		once, err := NewAggregator(ks).Aggregate(context.Background(), epoch, []drivertype.LocalKey{{PubKey: a, Index: 0}})
		require.NoError(t, err)
		twice, err := NewAggregator(ks).Aggregate(context.Background(), epoch, []drivertype.LocalKey{{PubKey: a, Index: 0}, {PubKey: a, Index: 0}})
		require.NoError(t, err)
		require.Equal(t, once, twice)
	})

	t.Run("local keys follow authority order", func(t *testing.T) {
		keys := LocalKeys(epoch, newScriptedKeyStore(b, stranger))
		require.Equal(t, []drivertype.LocalKey{{PubKey: b, Index: 1}}, keys)
	})
}

func TestAggregateRefusedVRF(t *testing.T) {
	epoch := twoAuthorityEpoch()
	a, b := epoch.Authorities[0].PubKey, epoch.Authorities[1].PubKey
	ks := newScriptedKeyStore(a, b)
	ks.win(a, 1, 2, 4)
	// slot 1 would be primary, slot 6 secondary
	ks.refuse(a, 1, 6)

	metrics := newRecordingMetrics()
	res, err := NewAggregator(ks, WithMetrics(metrics), WithWorkers(2)).Aggregate(context.Background(), epoch, allKeys(epoch))
	require.NoError(t, err)
	require.Equal(t, slots(2, 4), res[a.ID()].Primary)
	require.Equal(t, slots(0, 8), res[a.ID()].Secondary)
	require.Equal(t, slots(1, 3, 5, 7, 9), res[b.ID()].Secondary)

	require.Equal(t, 2, metrics.refused)
	require.Equal(t, 2, metrics.claimed[Primary])
	require.Equal(t, 7, metrics.claimed[SecondaryPlain])
	require.Equal(t, 1, metrics.epochs)
}

func TestAggregateCancelled(t *testing.T) {
	epoch := twoAuthorityEpoch()
	ks := newScriptedKeyStore(epoch.Authorities[0].PubKey)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewAggregator(ks, WithWorkers(4)).Aggregate(ctx, epoch, allKeys(epoch))
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
	require.Nil(t, res)
	require.Zero(t, ks.calls)
}

func TestAggregateInvalidEpoch(t *testing.T) {
	epoch := twoAuthorityEpoch()
	epoch.Authorities[1].Weight = 0
	_, err := NewAggregator(hashKeyStore{}).Aggregate(context.Background(), epoch, allKeys(epoch))
	require.Error(t, err)
}

func TestAggregateWeightedFairness(t *testing.T) {
	epoch := testEpoch(iepoch.PrimaryAndSecondaryPlainSlots, iepoch.Ratio{Num: 1, Den: 4}, 5000, 10000, 1, 2, 3, 4)
	ks := newScriptedKeyStore()
	for _, a := range epoch.Authorities {
		ks.held[a.PubKey.ID()] = true
	}

	res, err := NewAggregator(ks, WithWorkers(4)).Aggregate(context.Background(), epoch, allKeys(epoch))
	require.NoError(t, err)
	for i, a := range epoch.Authorities {
		claims := res[a.PubKey.ID()]
		require.Empty(t, claims.Primary)
		require.Len(t, claims.Secondary, int(a.Weight)*1000, "authority %d", i)
	}
}

func TestSplitRange(t *testing.T) {
	require.Equal(t, []slotRange{{0, 4}, {4, 7}, {7, 10}}, splitRange(0, 10, 3))
	require.Equal(t, []slotRange{{5, 6}, {6, 7}}, splitRange(5, 7, 8))
	require.Equal(t, []slotRange{{0, 10}}, splitRange(0, 10, 0))
}

func genEpoch(t *rapid.T) *iepoch.Epoch {
	weights := rapid.SliceOfN(rapid.Uint64Range(1, 20), 1, 6).Draw(t, "weights")
	den := rapid.Uint64Range(1, 16).Draw(t, "den")
	num := rapid.Uint64Range(1, den).Draw(t, "num")
	allowed := rapid.SampledFrom([]iepoch.AllowedSlots{
		iepoch.PrimarySlots,
		iepoch.PrimaryAndSecondaryPlainSlots,
		iepoch.PrimaryAndSecondaryVRFSlots,
	}).Draw(t, "allowed")
	start := iepoch.Slot(rapid.Uint64Range(0, 1<<40).Draw(t, "start"))
	duration := rapid.Uint64Range(1, 120).Draw(t, "duration")
	return testEpoch(allowed, iepoch.Ratio{Num: num, Den: den}, start, duration, weights...)
}

func TestAggregateProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		epoch := genEpoch(t)
		workers := rapid.IntRange(1, 8).Draw(t, "workers")
		ctx := context.Background()

		sequential, err := NewAggregator(hashKeyStore{}).Aggregate(ctx, epoch, allKeys(epoch))
		require.NoError(t, err)
		parallel, err := NewAggregator(hashKeyStore{}, WithWorkers(workers)).Aggregate(ctx, epoch, allKeys(epoch))
		require.NoError(t, err)
		require.Equal(t, sequential, parallel)

		secondaryHolders := make(map[iepoch.Slot]int)
		for _, claims := range sequential {
			require.False(t, claims.Empty())
			onSlot := make(map[iepoch.Slot]bool)
			for _, list := range [][]iepoch.Slot{claims.Primary, claims.Secondary, claims.SecondaryVRF} {
				for i, slot := range list {
					require.True(t, epoch.Contains(slot))
					if i > 0 {
						require.Less(t, list[i-1], slot)
					}
					require.False(t, onSlot[slot], "slot %d claimed at two tiers", slot)
					onSlot[slot] = true
				}
			}
			for _, slot := range append(append([]iepoch.Slot{}, claims.Secondary...), claims.SecondaryVRF...) {
				secondaryHolders[slot]++
			}
			switch epoch.Config.AllowedSlots {
			case iepoch.PrimarySlots:
				require.Empty(t, claims.Secondary)
				require.Empty(t, claims.SecondaryVRF)
			case iepoch.PrimaryAndSecondaryPlainSlots:
				require.Empty(t, claims.SecondaryVRF)
			case iepoch.PrimaryAndSecondaryVRFSlots:
				require.Empty(t, claims.Secondary)
			}
		}
		for slot, n := range secondaryHolders {
			require.Equal(t, 1, n, "slot %d has several secondary claims", slot)
		}

		if !epoch.Config.AllowedSlots.SecondaryEnabled() {
			return
		}
		ev, err := NewEvaluator(epoch)
		require.NoError(t, err)
		for slot := epoch.StartSlot; slot < epoch.EndSlot(); slot++ {
			author := epoch.Authorities[ev.SecondaryAuthor(slot)].PubKey.ID()
			claims, ok := sequential[author]
			require.True(t, ok)
			require.True(t, containsSlot(claims.Primary, slot) || containsSlot(claims.Secondary, slot) || containsSlot(claims.SecondaryVRF, slot),
				"secondary author of slot %d holds no claim", slot)
		}
	})
}

func containsSlot(list []iepoch.Slot, slot iepoch.Slot) bool {
	for _, s := range list {
		if s == slot {
			return true
		}
	}
	return false
}
