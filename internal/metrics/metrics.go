package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics holds the Prometheus collectors for the ledger and settlement paths.
type Metrics struct {
	LedgerEntries   *prometheus.CounterVec
	LedgerAmount    *prometheus.CounterVec
	LedgerReversals *prometheus.CounterVec
	LedgerApprovals prometheus.Counter

	BetsPlaced   *prometheus.CounterVec
	BetsRejected *prometheus.CounterVec

	SettlementRuns     *prometheus.CounterVec
	SettlementDuration prometheus.Histogram
	BetsSettled        *prometheus.CounterVec
	BetSettleFailures  prometheus.Counter
	SettlementPayout   *prometheus.CounterVec

	AuditFailures prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics registers every collector with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not panic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		LedgerEntries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betting_ledger_entries_total",
			Help: "Ledger entries committed",
		}, []string{"transaction_type", "status"}),

		LedgerAmount: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betting_ledger_amount_total",
			Help: "Sum of committed ledger entry amounts",
		}, []string{"transaction_type", "currency"}),

		LedgerReversals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betting_ledger_reversals_total",
			Help: "Ledger entries reversed",
		}, []string{"transaction_type"}),

		LedgerApprovals: f.NewCounter(prometheus.CounterOpts{
			Name: "betting_ledger_approvals_total",
			Help: "Pending ledger entries approved",
		}),

		BetsPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betting_bets_placed_total",
			Help: "Bets accepted",
		}, []string{"bet_type", "currency"}),

		BetsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betting_bets_rejected_total",
			Help: "Bet slips rejected by limit checks, by first violated rule",
		}, []string{"rule"}),

		SettlementRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betting_settlement_runs_total",
			Help: "Event settlement runs",
		}, []string{"kind", "result"}),

		SettlementDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "betting_settlement_run_duration_seconds",
			Help:    "Wall time of one event settlement run",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),

		BetsSettled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betting_bets_settled_total",
			Help: "Bets moved to a terminal status",
		}, []string{"status", "settled_by"}),

		BetSettleFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "betting_bet_settle_failures_total",
			Help: "Per-bet settlement transactions that rolled back",
		}),

		SettlementPayout: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betting_settlement_payout_total",
			Help: "Amount credited to players by settlement",
		}, []string{"currency"}),

		AuditFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "betting_audit_publish_failures_total",
			Help: "Audit records that could not be published",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betting_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "betting_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Amount converts a money value for a float counter. Counters are advisory;
// the ledger keeps the exact figures.
func Amount(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
