// Package metrics exposes ledger activity as prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"voting-ledger/log"
)

// Collector implements ledger.Observer and the vote counter used by the
// voting service.
type Collector struct {
	BlocksMined    prometheus.Counter
	HashAttempts   prometheus.Counter
	MiningSeconds  prometheus.Histogram
	MiningFailures prometheus.Counter
	Validations    *prometheus.CounterVec
	VotesCast      prometheus.Counter
}

// NewCollector builds an unregistered set of collectors.
func NewCollector() *Collector {
	return &Collector{
		BlocksMined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "blocks_mined_total",
			Help:      "Blocks mined and appended, genesis included",
		}),
		HashAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "hash_attempts_total",
			Help:      "Canonical hashes computed while searching for nonces",
		}),
		MiningSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "mining_seconds",
			Help:      "Time spent mining a single block",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		MiningFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "mining_failures_total",
			Help:      "Nonce searches aborted by the iteration cap or cancellation",
		}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "validations_total",
			Help:      "Full chain validations by outcome",
		}, []string{"result"}),
		VotesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voting",
			Name:      "votes_cast_total",
			Help:      "Votes recorded on the ledger",
		}),
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.BlocksMined, c.HashAttempts, c.MiningSeconds,
		c.MiningFailures, c.Validations, c.VotesCast,
	}
}

// Register registers every collector on reg, ignoring errors (they are
// only logged), so that building a second ledger in one process is safe.
func (c *Collector) Register(reg prometheus.Registerer) {
	for _, col := range c.collectors() {
		if err := reg.Register(col); err != nil {
			log.Warnf("cannot register metrics: (%s) (%+v)", err, col)
		}
	}
}

func (c *Collector) ObserveMining(index uint64, attempts uint64, elapsed time.Duration, err error) {
	c.HashAttempts.Add(float64(attempts))
	if err != nil {
		c.MiningFailures.Inc()
		return
	}
	c.BlocksMined.Inc()
	c.MiningSeconds.Observe(elapsed.Seconds())
}

func (c *Collector) ObserveValidation(err error) {
	result := "valid"
	if err != nil {
		result = "invalid"
	}
	c.Validations.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveVote() {
	c.VotesCast.Inc()
}
