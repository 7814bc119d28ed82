package hedge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ExecutionsTotal counts finished pair executions by status.
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_hedge_executions_total",
		Help: "Total number of hedge pair executions by status",
	}, []string{"status"})

	// PreconditionRejectionsTotal counts requests rejected before any leg ran.
	PreconditionRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_hedge_precondition_rejections_total",
		Help: "Total number of executions rejected by the precondition check",
	}, []string{"reason"})

	// LegStepsTotal counts leg step results.
	LegStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_hedge_leg_steps_total",
		Help: "Total number of leg steps by role, step and result",
	}, []string{"role", "step", "result"})

	// LegDuration tracks time spent executing a single leg.
	LegDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polymarket_hedge_leg_duration_seconds",
		Help:    "Duration of a single leg execution",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 180, 300},
	}, []string{"role"})

	// ExecutionDuration tracks end-to-end pair execution latency.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_hedge_execution_duration_seconds",
		Help:    "Duration of a full pair execution including final balance read",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// CommittedUSDCTotal sums USDC.e committed by successful splits.
	CommittedUSDCTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_hedge_committed_usdc_total",
		Help: "Total USDC.e committed by confirmed splits",
	})

	// WarningsTotal counts warnings attached to trade results.
	WarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_hedge_warnings_total",
		Help: "Total number of trade result warnings by kind",
	}, []string{"kind"})
)
