// Package metrics exposes the service's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WithdrawalsProcessed counts payout attempts by outcome (approved, failed, on_hold)
	WithdrawalsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covest_withdrawals_processed_total",
		Help: "Withdrawal payout attempts by outcome",
	}, []string{"outcome"})

	// WithdrawalAmount observes gross payout amounts in SOL
	WithdrawalAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "covest_withdrawal_amount_sol",
		Help:    "Gross withdrawal amounts in SOL",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	// GainsSwept counts sub-account gain sweeps by sub-account kind
	GainsSwept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covest_gains_swept_total",
		Help: "Sub-account gains swept into the main balance",
	}, []string{"sub_account"})

	// WebhooksReceived counts payment webhook deliveries by resulting status
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covest_payment_webhooks_total",
		Help: "Payment webhook deliveries by resulting status",
	}, []string{"status"})

	// ReferralBonuses counts referral bonus credits
	ReferralBonuses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covest_referral_bonuses_total",
		Help: "Referral bonuses credited",
	})

	// ChainSendDuration observes hot wallet transfer latency
	ChainSendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "covest_chain_send_duration_seconds",
		Help:    "Latency of on-chain transfer submissions",
		Buckets: prometheus.DefBuckets,
	})

	// PriceOracleFailures counts price fetches that fell back to the last known value
	PriceOracleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covest_price_oracle_failures_total",
		Help: "Price fetches that fell back to the last known value",
	})

	// DatabaseConnections tracks the sql pool by connection state
	DatabaseConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "covest_database_connections",
		Help: "Database connection pool state",
	}, []string{"state"})
)
