package service

import "github.com/prometheus/client_golang/prometheus"

var (
	pointDeltaTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homezy_points_delta_total",
			Help: "Committed point deltas by source and direction",
		},
		[]string{"source", "direction"},
	)

	pointAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homezy_points_amount_total",
			Help: "Absolute committed point amount by source",
		},
		[]string{"source"},
	)

	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homezy_points_redemptions_total",
			Help: "Redemption attempts by reward and result",
		},
		[]string{"reward", "result"},
	)

	couponConsumeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homezy_coupon_consume_total",
			Help: "Coupon consumption attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(pointDeltaTotal, pointAmountTotal, redemptionsTotal, couponConsumeTotal)
}

func recordDelta(source string, amount int64) {
	direction := "income"
	abs := amount
	if amount < 0 {
		direction = "expense"
		abs = -amount
	}
	pointDeltaTotal.WithLabelValues(source, direction).Inc()
	pointAmountTotal.WithLabelValues(source).Add(float64(abs))
}
