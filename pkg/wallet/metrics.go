package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// POLBalance tracks the current POL balance for gas fees.
	POLBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_wallet_pol_balance",
		Help: "Current POL balance in wallet (native units)",
	})

	// USDCeBalance tracks the USDC.e collateral available for splits.
	USDCeBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_wallet_usdce_balance",
		Help: "Current USDC.e balance in wallet (USD)",
	})

	// CTFAllowance tracks the USDC.e allowance approved to the CTF contract.
	CTFAllowance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_wallet_ctf_allowance",
		Help: "USDC.e allowance approved to the CTF contract (USD)",
	})

	// ActivePositions tracks the number of outcome token holdings.
	ActivePositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_wallet_active_positions",
		Help: "Number of open positions",
	})

	// TotalPositionValue tracks the sum of all position current values.
	TotalPositionValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_wallet_total_position_value",
		Help: "Sum of all position current values (USD)",
	})

	// TotalPositionCost tracks the sum of all position initial costs.
	TotalPositionCost = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_wallet_total_position_cost",
		Help: "Sum of all position initial costs (USD)",
	})

	// UpdateErrorsTotal tracks the number of failed update attempts.
	UpdateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_wallet_update_errors_total",
		Help: "Total number of failed wallet update attempts",
	})

	// UpdateDuration tracks the time taken to fetch wallet data.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_wallet_update_duration_seconds",
		Help:    "Time taken to fetch wallet data (seconds)",
		Buckets: prometheus.DefBuckets,
	})

	// LastUpdateTimestamp tracks the Unix timestamp of the last successful update.
	LastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_wallet_last_update_timestamp",
		Help: "Unix timestamp of last successful wallet update",
	})
)
