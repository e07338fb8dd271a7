package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	bidsAccepted      *prometheus.CounterVec
	bidsRejected      *prometheus.CounterVec
	fraudAlerts       *prometheus.CounterVec
	escrowTransitions *prometheus.CounterVec
	currentPrice      *prometheus.GaugeVec
	activeAuctions    prometheus.Gauge
	errorsTotal       *prometheus.CounterVec
	latency           *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		bidsAccepted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gavel_bids_accepted_total",
				Help: "Total accepted bids by auction format",
			},
			[]string{"format"},
		),
		bidsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gavel_bids_rejected_total",
				Help: "Total rejected bids by reason",
			},
			[]string{"reason"},
		),
		fraudAlerts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gavel_fraud_alerts_total",
				Help: "Total fraud alerts raised by severity",
			},
			[]string{"severity"},
		),
		escrowTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gavel_escrow_transitions_total",
				Help: "Total escrow state transitions by target state",
			},
			[]string{"to"},
		),
		currentPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gavel_auction_current_price",
				Help: "Current price of an auction in minor units",
			},
			[]string{"format"},
		),
		activeAuctions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gavel_active_auctions",
				Help: "Number of auctions currently accepting bids",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gavel_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gavel_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordBidAccepted records an accepted bid.
func (r *Recorder) RecordBidAccepted(format string) {
	r.bidsAccepted.WithLabelValues(format).Inc()
}

// RecordBidRejected records a rejected bid.
func (r *Recorder) RecordBidRejected(reason string) {
	r.bidsRejected.WithLabelValues(reason).Inc()
}

// RecordFraudAlert records a raised fraud alert.
func (r *Recorder) RecordFraudAlert(severity string) {
	r.fraudAlerts.WithLabelValues(severity).Inc()
}

// RecordEscrowTransition records an escrow state transition.
func (r *Recorder) RecordEscrowTransition(to string) {
	r.escrowTransitions.WithLabelValues(to).Inc()
}

// RecordCurrentPrice records the current price of an auction.
func (r *Recorder) RecordCurrentPrice(format string, price int64) {
	r.currentPrice.WithLabelValues(format).Set(float64(price))
}

// RecordActiveAuctions records the number of live auction machines.
func (r *Recorder) RecordActiveAuctions(n int) {
	r.activeAuctions.Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
