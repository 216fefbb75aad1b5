package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_verifications_total",
			Help: "Total number of proof verification requests by outcome",
		},
		[]string{"outcome"},
	)

	VerificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "membership_verification_duration_seconds",
			Help:    "Duration of proof verification in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
	)

	GroupMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_group_mutations_total",
			Help: "Total number of group mutations by operation and status",
		},
		[]string{"operation", "status"},
	)

	NullifiersConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "membership_nullifiers_consumed_total",
			Help: "Total number of nullifier hashes marked used",
		},
	)

	GroupSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "membership_group_size",
			Help: "Current member count per group",
		},
		[]string{"group_id"},
	)
)

func recordVerification(valid bool, start time.Time) {
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	VerificationsTotal.WithLabelValues(outcome).Inc()
	VerificationDuration.Observe(time.Since(start).Seconds())
}

func recordMutation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	GroupMutationsTotal.WithLabelValues(operation, status).Inc()
}
