package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PurchaseOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_outcomes_total",
		Help: "Purchase attempts by terminal outcome and error kind.",
	}, []string{"outcome", "kind"})

	PurchaseRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_rejected_in_flight_total",
		Help: "Purchase requests rejected because another attempt was running.",
	})

	PurchaseStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "purchase_step_duration_seconds",
		Help:    "Duration of each purchase state.",
		Buckets: prometheus.DefBuckets,
	}, []string{"state"})

	TRXRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trx_usd_rate",
		Help: "Current TRX/USD quote.",
	})

	WalletReady = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wallet_ready",
		Help: "1 when the wallet bridge is ready.",
	})

	BridgeBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tron_breaker_state",
		Help: "TronGrid circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})
)
