package metrics

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/feral-file/ff-rewards/internal/domain"
)

// Reward engine counters and histograms, partitioned by source (faucet, airdrop, distribution)
// and outcome (the domain error code, "ok" on success).

const (
	SourceFaucet       = "faucet"
	SourceAirdrop      = "airdrop"
	SourceDistribution = "distribution"
)

var (
	ClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards",
		Subsystem: "engine",
		Name:      "claims_total",
		Help:      "Total claim attempts by outcome",
	}, []string{"source", "outcome"})

	ClaimDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rewards",
		Subsystem: "engine",
		Name:      "claim_duration_seconds",
		Help:      "Claim processing duration including retries",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"source"})

	ClaimRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards",
		Subsystem: "engine",
		Name:      "claim_retries_total",
		Help:      "Total claim attempts retried after a uniqueness conflict",
	}, []string{"source"})

	DistributionBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rewards",
		Subsystem: "engine",
		Name:      "distribution_batch_size",
		Help:      "Number of recipients per distribution request",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
	})

	// Ledger
	LedgerEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards",
		Subsystem: "ledger",
		Name:      "entries_total",
		Help:      "Total ledger entries committed",
	}, []string{"kind"})

	// HTTP
	HTTPInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rewards",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Requests currently being served",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rewards",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// ObserveClaim records the outcome and duration of one claim or distribution entry
func ObserveClaim(source string, err error, started time.Time) {
	ClaimsTotal.WithLabelValues(source, domain.ErrorCode(err)).Inc()
	ClaimDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

// ObserveLedgerEntry records a committed ledger entry
func ObserveLedgerEntry(kind domain.TransactionKind) {
	LedgerEntriesTotal.WithLabelValues(string(kind)).Inc()
}

// ObserveHTTPRequest records one served request. route is the matched route template, never the raw path.
func ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RegisterDBStats exports the connection pool statistics of db under the given name.
// Registering the same name twice is not an error.
func RegisterDBStats(db *sql.DB, name string) error {
	err := prometheus.Register(collectors.NewDBStatsCollector(db, name))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
