package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespaceBlocks = "blocks"
	namespaceQueue  = "priorityqueue"
	namespaceLedger = "ledger"
)

var (
	// BlocksCommitted committed block count
	BlocksCommitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceBlocks,
			Name:      "committed_total",
			Help:      "",
		})

	// BlocksProven proven block count
	BlocksProven = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceBlocks,
			Name:      "proven_total",
			Help:      "",
		})

	// BlocksExecuted executed block count
	BlocksExecuted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceBlocks,
			Name:      "executed_total",
			Help:      "",
		})

	// ExodusLatches count of groups latched into exodus mode
	ExodusLatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceBlocks,
			Name:      "exodus_latches_total",
			Help:      "",
		})

	// OpenPriorityRequests open priority requests per group
	OpenPriorityRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespaceQueue,
			Name:      "open_requests",
			Help:      "",
		}, []string{"group"})

	// EnqueuedRequests priority request enqueue count
	EnqueuedRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceQueue,
			Name:      "enqueued_total",
			Help:      "",
		})

	// Withdrawals pending balance payout count
	Withdrawals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceLedger,
			Name:      "withdrawals_total",
			Help:      "",
		})

	// VerifyProofDuration duration of the verifier round-trips
	VerifyProofDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceBlocks,
			Name:      "verify_proof_duration",
			Help:      "",
		}, []string{"group"})
)

func init() {
	prometheus.MustRegister(BlocksCommitted, BlocksProven, BlocksExecuted,
		ExodusLatches, OpenPriorityRequests, EnqueuedRequests, Withdrawals,
		VerifyProofDuration)
}

// MeasureDuration measure the method execution duration
// and save it into a histogram metric
func MeasureDuration(histogram *prometheus.HistogramVec, start time.Time, lvs ...string) {
	duration := time.Since(start)
	histogram.WithLabelValues(lvs...).Observe(float64(duration.Milliseconds()))
}
