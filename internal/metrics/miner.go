package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	minerAssembleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "miner",
		Name:      "assemble_total",
		Help:      "Count of block assembly attempts.",
	}, []string{"network", "status"})

	minerAssembleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "miner",
		Name:      "assemble_duration_seconds",
		Help:      "Duration of assembling a candidate block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	minerBlockTransactions = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "miner",
		Name:      "block_transactions",
		Help:      "Number of pool transactions per assembled block.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1..8192
	}, []string{"network"})

	minerBlockWeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blockinsight7000",
		Subsystem: "miner",
		Name:      "block_weight",
		Help:      "Weight of the last assembled block.",
	}, []string{"network"})

	minerSearchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "miner",
		Name:      "search_total",
		Help:      "Count of nonce searches.",
	}, []string{"network", "status"})

	minerSearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "miner",
		Name:      "search_duration_seconds",
		Help:      "Duration of nonce searches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms..~5.5m
	}, []string{"network", "status"})

	minerHashesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "miner",
		Name:      "hashes_total",
		Help:      "Count of header hashes computed.",
	}, []string{"network"})

	minerTimeRollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "miner",
		Name:      "time_rolls_total",
		Help:      "Count of timestamp rolls after the nonce space ran out.",
	}, []string{"network"})
)

// Miner tracks metrics for block assembly and proof of work.
type Miner struct {
	network string
}

// NewMiner constructs a Miner metrics collector.
func NewMiner(network string) *Miner {
	return &Miner{network: labelOrUnknown(network)}
}

// ObserveAssemble records an assembly attempt.
func (m Miner) ObserveAssemble(err error, txCount int, weight int64, started time.Time) {
	status := statusOf(err)
	minerAssembleTotal.WithLabelValues(m.network, status).Inc()
	minerAssembleDuration.WithLabelValues(m.network, status).Observe(time.Since(started).Seconds())
	if err != nil {
		return
	}
	minerBlockTransactions.WithLabelValues(m.network).Observe(float64(txCount))
	minerBlockWeight.WithLabelValues(m.network).Set(float64(weight))
}

// ObserveSearch records a nonce search and the work it did.
func (m Miner) ObserveSearch(err error, hashes uint64, timeRolls int, started time.Time) {
	status := statusOf(err)
	minerSearchTotal.WithLabelValues(m.network, status).Inc()
	minerSearchDuration.WithLabelValues(m.network, status).Observe(time.Since(started).Seconds())
	minerHashesTotal.WithLabelValues(m.network).Add(float64(hashes))
	minerTimeRollsTotal.WithLabelValues(m.network).Add(float64(timeRolls))
}
