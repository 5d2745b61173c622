package authorship

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rony4d/go-rrsc/inter/drivertype"
	"github.com/rony4d/go-rrsc/inter/iepoch"
	"github.com/rony4d/go-rrsc/inter/validatorpk"
	"github.com/rony4d/go-rrsc/inter/vrf"
)

// KeyStore is the key-holding capability the aggregator evaluates VRFs with.
type KeyStore interface {
	// HasKey reports whether the secret key for pub is held locally.
	HasKey(pub validatorpk.PubKey) bool
	// VRFSign evaluates the VRF for the transcript under the secret key of
	// pub. An error means the key store refused or could not serve the
	// request; the aggregator then treats the slot as unclaimed.
	VRFSign(pub validatorpk.PubKey, t vrf.Transcript) (vrf.Output, vrf.Proof, error)
}

// Metrics receives aggregation events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	SlotClaimed(tier Tier)
	VRFRefused()
	EpochAggregated(keys int, duration time.Duration)
}

// EpochAuthorship lists the slots one authority can claim, per tier. Every
// list is strictly ascending.
type EpochAuthorship struct {
	Primary      []iepoch.Slot `json:"primary"`
	Secondary    []iepoch.Slot `json:"secondary"`
	SecondaryVRF []iepoch.Slot `json:"secondary_vrf"`
}

// Authorship maps authority identities to their claimable slots. Identities
// without any claim are absent.
type Authorship map[validatorpk.ID]EpochAuthorship

// Empty reports whether no slot is listed.
func (c *EpochAuthorship) Empty() bool {
	return len(c.Primary) == 0 && len(c.Secondary) == 0 && len(c.SecondaryVRF) == 0
}

// Len returns the number of claimed slots over all tiers.
func (c *EpochAuthorship) Len() int {
	return len(c.Primary) + len(c.Secondary) + len(c.SecondaryVRF)
}

func (c *EpochAuthorship) add(slot iepoch.Slot, tier Tier) {
	switch tier {
	case Primary:
		c.Primary = append(c.Primary, slot)
	case SecondaryPlain:
		c.Secondary = append(c.Secondary, slot)
	case SecondaryVRF:
		c.SecondaryVRF = append(c.SecondaryVRF, slot)
	}
}

// appendAll concatenates a later slot range onto c.
func (c *EpochAuthorship) appendAll(later EpochAuthorship) {
	c.Primary = append(c.Primary, later.Primary...)
	c.Secondary = append(c.Secondary, later.Secondary...)
	c.SecondaryVRF = append(c.SecondaryVRF, later.SecondaryVRF...)
}

// normalized replaces nil lists with empty ones so they encode as [].
func (c EpochAuthorship) normalized() EpochAuthorship {
	if c.Primary == nil {
		c.Primary = []iepoch.Slot{}
	}
	if c.Secondary == nil {
		c.Secondary = []iepoch.Slot{}
	}
	if c.SecondaryVRF == nil {
		c.SecondaryVRF = []iepoch.Slot{}
	}
	return c
}

// LocalKeys returns the authorities of the epoch whose secret keys ks holds,
// in authority order.
func LocalKeys(epoch *iepoch.Epoch, ks KeyStore) []drivertype.LocalKey {
	var keys []drivertype.LocalKey
	for i, a := range epoch.Authorities {
		if ks.HasKey(a.PubKey) {
			keys = append(keys, drivertype.LocalKey{PubKey: a.PubKey, Index: i})
		}
	}
	return keys
}

// Aggregator computes the claimable slots of a set of local keys over a whole
// epoch. It keeps no state between calls.
type Aggregator struct {
	keys    KeyStore
	workers int
	log     logrus.FieldLogger
	metrics Metrics
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWorkers bounds the number of concurrent evaluation tasks. Values
// below 1 mean sequential evaluation.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n < 1 {
			n = 1
		}
		a.workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Aggregator) {
		a.log = log
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// NewAggregator creates an aggregator drawing VRF outputs from ks.
func NewAggregator(ks KeyStore, opts ...Option) *Aggregator {
	a := &Aggregator{
		keys:    ks,
		workers: 1,
		log:     logrus.StandardLogger(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate evaluates every slot of the epoch for every key and groups the
// claims per identity. Keys whose identity is not an authority of the epoch
// are skipped, and a VRF the key store refuses counts as no claim for that
// slot. The only errors are an invalid epoch and cancellation of ctx.
func (a *Aggregator) Aggregate(ctx context.Context, epoch *iepoch.Epoch, keys []drivertype.LocalKey) (Authorship, error) {
	started := time.Now()

	ev, err := NewEvaluator(epoch)
	if err != nil {
		return nil, err
	}
	resolved := a.resolveKeys(epoch, keys)
	result := make(Authorship, len(resolved))
	if len(resolved) == 0 {
		return result, nil
	}

	chunks := splitRange(epoch.StartSlot, epoch.EndSlot(), a.workers)
	parts := make([][]EpochAuthorship, len(resolved))
	for k := range parts {
		parts[k] = make([]EpochAuthorship, len(chunks))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for k := range resolved {
		for c := range chunks {
			k, c := k, c
			g.Go(func() error {
				part, err := a.claimRange(gctx, ev, resolved[k], chunks[c])
				if err != nil {
					return err
				}
				parts[k][c] = part
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate epoch %d: %w", epoch.EpochIndex, err)
	}

	// chunks are in slot order, so concatenation keeps every list ascending
	for k, key := range resolved {
		var claims EpochAuthorship
		for _, part := range parts[k] {
			claims.appendAll(part)
		}
		if !claims.Empty() {
			result[key.PubKey.ID()] = claims.normalized()
		}
	}

	a.metrics.EpochAggregated(len(resolved), time.Since(started))
	a.log.WithFields(logrus.Fields{
		"epoch":       epoch.EpochIndex,
		"keys":        len(resolved),
		"authorities": len(result),
		"elapsed":     time.Since(started),
	}).Debug("Epoch authorship computed")
	return result, nil
}

// resolveKeys maps the keys onto authority indexes, dropping unknown and
// duplicate identities.
func (a *Aggregator) resolveKeys(epoch *iepoch.Epoch, keys []drivertype.LocalKey) []drivertype.LocalKey {
	resolved := make([]drivertype.LocalKey, 0, len(keys))
	seen := make(map[validatorpk.ID]struct{}, len(keys))
	for _, k := range keys {
		id := k.PubKey.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		idx, ok := epoch.Authorities.Resolve(k)
		if !ok {
			a.log.WithFields(logrus.Fields{"epoch": epoch.EpochIndex, "key": id}).Debug("Key is not an authority of the epoch, skipping")
			continue
		}
		seen[id] = struct{}{}
		resolved = append(resolved, drivertype.LocalKey{PubKey: epoch.Authorities[idx].PubKey, Index: idx})
	}
	return resolved
}

func (a *Aggregator) claimRange(ctx context.Context, ev *Evaluator, key drivertype.LocalKey, r slotRange) (EpochAuthorship, error) {
	var claims EpochAuthorship
	randomness := ev.Epoch().Randomness
	for slot := r.from; slot < r.to; slot++ {
		if err := ctx.Err(); err != nil {
			return claims, err
		}
		out, _, err := a.keys.VRFSign(key.PubKey, vrf.Transcript{Randomness: randomness, Slot: uint64(slot)})
		if err != nil {
			a.metrics.VRFRefused()
			a.log.WithFields(logrus.Fields{"slot": slot, "key": key.PubKey.ID()}).WithError(err).Debug("VRF evaluation refused, no claim")
			continue
		}
		tier, err := ev.ClaimSlot(slot, key.Index, out)
		if err != nil {
			return claims, err
		}
		if tier != NoClaim {
			claims.add(slot, tier)
			a.metrics.SlotClaimed(tier)
		}
	}
	return claims, nil
}

type slotRange struct {
	from, to iepoch.Slot
}

// splitRange cuts [from, to) into at most n contiguous, ordered ranges.
func splitRange(from, to iepoch.Slot, n int) []slotRange {
	total := uint64(to - from)
	if n < 1 {
		n = 1
	}
	if uint64(n) > total {
		n = int(total)
	}
	size := total / uint64(n)
	rest := total % uint64(n)

	ranges := make([]slotRange, 0, n)
	start := from
	for i := 0; i < n; i++ {
		length := size
		if uint64(i) < rest {
			length++
		}
		ranges = append(ranges, slotRange{from: start, to: start + iepoch.Slot(length)})
		start += iepoch.Slot(length)
	}
	return ranges
}

type noopMetrics struct{}

func (noopMetrics) SlotClaimed(Tier)                   {}
func (noopMetrics) VRFRefused()                        {}
func (noopMetrics) EpochAggregated(int, time.Duration) {}
