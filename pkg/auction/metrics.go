package auction

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks auction activity on a prometheus registry.
type Metrics struct {
	auctionsCreated   prometheus.Counter
	auctionsDealt     prometheus.Counter
	dexTakes          prometheus.Counter
	auctionsCancelled prometheus.Counter
	bidsAccepted      prometheus.Counter
	bidsRejected      prometheus.Counter
	sweepSubmissions  prometheus.Counter
	openAuctions      prometheus.Gauge
	targetInAuction   prometheus.Gauge
	collateralGauge   *prometheus.GaugeVec
}

// NewMetrics registers the auction metrics on the given registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		auctionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auctions_created_total",
			Help:      "Total collateral auctions created",
		}),
		auctionsDealt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auctions_dealt_total",
			Help:      "Auctions settled with a winning bidder",
		}),
		dexTakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auctions_dex_taken_total",
			Help:      "Auctions liquidated through the DEX fallback",
		}),
		auctionsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auctions_cancelled_total",
			Help:      "Auctions cancelled during emergency unwind",
		}),
		bidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bids_accepted_total",
			Help:      "Bids accepted by admission",
		}),
		bidsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bids_rejected_total",
			Help:      "Bids rejected by admission",
		}),
		sweepSubmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_submissions_total",
			Help:      "Cancellation requests submitted by the unwind sweeper",
		}),
		openAuctions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_auctions",
			Help:      "Currently open collateral auctions",
		}),
		targetInAuction: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_in_auction",
			Help:      "Outstanding settlement target across all auctions",
		}),
		collateralGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collateral_in_auction",
			Help:      "Collateral under auction per currency",
		}, []string{"currency"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.auctionsCreated, m.auctionsDealt, m.dexTakes,
			m.auctionsCancelled, m.bidsAccepted, m.bidsRejected,
			m.sweepSubmissions, m.openAuctions, m.targetInAuction,
			m.collateralGauge,
		)
	}
	return m
}
