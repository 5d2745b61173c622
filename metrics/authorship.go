// Package metrics exposes the authorship aggregator's activity to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rony4d/go-rrsc/consensus/authorship"
)

const (
	namespaceRRSC       = "rrsc"
	subsystemAuthorship = "authorship"
	labelTier           = "tier"
)

// Registerer registers new collectors on the wrapped prometheus.Registerer.
type Registerer struct {
	prometheus.Registerer
}

// NewRegisterer wraps registerer.
func NewRegisterer(registerer prometheus.Registerer) *Registerer {
	return &Registerer{registerer}
}

func (r *Registerer) RegisterNewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	histogram := prometheus.NewHistogram(opts)
	r.MustRegister(histogram)
	return histogram
}

func (r *Registerer) RegisterNewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	counter := prometheus.NewCounter(opts)
	r.MustRegister(counter)
	return counter
}

func (r *Registerer) RegisterNewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(opts, labelNames)
	r.MustRegister(counter)
	return counter
}

// AuthorshipCollector implements authorship.Metrics.
type AuthorshipCollector struct {
	slotsClaimed    *prometheus.CounterVec
	vrfRefused      prometheus.Counter
	epochsComputed  prometheus.Counter
	aggregationTime prometheus.Histogram
	keys            prometheus.Histogram
}

var _ authorship.Metrics = (*AuthorshipCollector)(nil)

func NewAuthorshipCollector(registerer prometheus.Registerer) *AuthorshipCollector {
	r := NewRegisterer(registerer)
	return &AuthorshipCollector{
		slotsClaimed: r.RegisterNewCounterVec(prometheus.CounterOpts{
			Name:      "slots_claimed_total",
			Namespace: namespaceRRSC,
			Subsystem: subsystemAuthorship,
			Help:      "the number of slots the local keys can claim, by tier",
		}, []string{labelTier}),
		vrfRefused: r.RegisterNewCounter(prometheus.CounterOpts{
			Name:      "vrf_refused_total",
			Namespace: namespaceRRSC,
			Subsystem: subsystemAuthorship,
			Help:      "the number of VRF evaluations the key store refused",
		}),
		epochsComputed: r.RegisterNewCounter(prometheus.CounterOpts{
			Name:      "epochs_total",
			Namespace: namespaceRRSC,
			Subsystem: subsystemAuthorship,
			Help:      "the number of epochs authorship was computed for",
		}),
		aggregationTime: r.RegisterNewHistogram(prometheus.HistogramOpts{
			Name:      "aggregation_seconds",
			Namespace: namespaceRRSC,
			Subsystem: subsystemAuthorship,
			Help:      "time spent computing the authorship of one epoch",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		keys: r.RegisterNewHistogram(prometheus.HistogramOpts{
			Name:      "keys",
			Namespace: namespaceRRSC,
			Subsystem: subsystemAuthorship,
			Help:      "the number of local keys evaluated per epoch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32},
		}),
	}
}

func (c *AuthorshipCollector) SlotClaimed(tier authorship.Tier) {
	c.slotsClaimed.WithLabelValues(tier.String()).Inc()
}

func (c *AuthorshipCollector) VRFRefused() {
	c.vrfRefused.Inc()
}

func (c *AuthorshipCollector) EpochAggregated(keys int, duration time.Duration) {
	c.epochsComputed.Inc()
	c.keys.Observe(float64(keys))
	c.aggregationTime.Observe(duration.Seconds())
}
