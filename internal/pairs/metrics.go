package pairs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	PairsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_pairs_loaded",
		Help: "Number of hedge pairs loaded from the portfolios file",
	})

	PortfolioReloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_pairs_reloads_total",
		Help: "Total number of portfolios file reloads triggered by a change",
	})
)
