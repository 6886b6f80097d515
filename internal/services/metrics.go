package services

import "github.com/prometheus/client_golang/prometheus"

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wish_submissions_total",
			Help: "Wish submissions by outcome.",
		},
		[]string{"outcome"},
	)
	feedSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wish_feed_subscribers",
			Help: "Live feeds currently subscribed.",
		},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal, feedSubscribers)
}
