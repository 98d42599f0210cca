package metrics

import (
	"time"

	"github.com/goodnatureofminers/blockinsight7000-miner/internal/mempool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mempoolLoadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "mempool_loader",
		Name:      "load_total",
		Help:      "Count of mempool directory loads.",
	}, []string{"network", "status"})

	mempoolLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "mempool_loader",
		Name:      "load_duration_seconds",
		Help:      "Duration of loading a mempool directory.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	mempoolLoadFiles = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "mempool_loader",
		Name:      "load_files",
		Help:      "Number of record files per load.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 16), // 1..32768
	}, []string{"network"})

	mempoolRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "mempool_loader",
		Name:      "records_total",
		Help:      "Count of mempool records by outcome.",
	}, []string{"network", "outcome"})
)

// MempoolLoader tracks metrics for loading the transaction pool.
type MempoolLoader struct {
	network string
}

// NewMempoolLoader constructs a MempoolLoader.
func NewMempoolLoader(network string) *MempoolLoader {
	return &MempoolLoader{network: labelOrUnknown(network)}
}

// ObserveLoad records a directory load outcome, duration and size.
func (m MempoolLoader) ObserveLoad(err error, files int, started time.Time) {
	status := statusOf(err)
	mempoolLoadTotal.WithLabelValues(m.network, status).Inc()
	mempoolLoadDuration.WithLabelValues(m.network, status).Observe(time.Since(started).Seconds())
	mempoolLoadFiles.WithLabelValues(m.network).Observe(float64(files))
}

// ObserveRecord counts one record by outcome.
func (m MempoolLoader) ObserveRecord(outcome mempool.Outcome) {
	mempoolRecordsTotal.WithLabelValues(m.network, string(outcome)).Inc()
}
