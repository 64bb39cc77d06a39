package quote

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess       = "success"
	outcomeAnalysisError = "analysis_error"
	outcomeTimeout       = "timeout"
)

var (
	quotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printquote_quotes_total",
			Help: "Quotes computed, by outcome.",
		},
		[]string{"outcome"},
	)
	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "printquote_analysis_duration_seconds",
			Help:    "Time spent extracting mesh volumes.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
	analysesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "printquote_analyses_in_flight",
			Help: "Mesh analyses currently running.",
		},
	)
	quotedPrice = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printquote_price",
			Help:    "Distribution of quoted prices.",
			Buckets: []float64{2, 5, 10, 20, 50, 100, 250},
		},
		[]string{"material"},
	)
)

func init() {
	prometheus.MustRegister(
		quotesTotal,
		analysisDurationSeconds,
		analysesInFlight,
		quotedPrice,
	)
}

func observeAnalysis(latency time.Duration) {
	analysisDurationSeconds.Observe(latency.Seconds())
}

func observeFailure(err error) {
	switch {
	case IsTimeout(err):
		quotesTotal.WithLabelValues(outcomeTimeout).Inc()
	default:
		quotesTotal.WithLabelValues(outcomeAnalysisError).Inc()
	}
}

func observeQuote(material string, price float64) {
	quotesTotal.WithLabelValues(outcomeSuccess).Inc()
	quotedPrice.WithLabelValues(material).Observe(price)
}
