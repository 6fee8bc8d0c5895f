package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	voteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_vote_requests_total",
		Help: "Vote submissions received, by outcome",
	}, []string{"status"})

	mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "survey_mutation_duration_seconds",
		Help:    "Time spent in a vote store transaction",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	restoredRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "survey_restored_records_total",
		Help: "Vote records written by bulk restore",
	})
)

func ObserveVoteRequest(status string) {
	voteRequestsTotal.WithLabelValues(status).Inc()
}

func ObserveMutation(operation string, seconds float64) {
	mutationDuration.WithLabelValues(operation).Observe(seconds)
}

func AddRestoredRecords(n int) {
	restoredRecordsTotal.Add(float64(n))
}
