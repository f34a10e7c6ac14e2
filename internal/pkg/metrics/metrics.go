package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification results recorded by OTPVerifications.
const (
	ResultOK           = "ok"
	ResultInvalid      = "invalid"
	ResultExpired      = "expired"
	ResultLocked       = "locked"
	ResultLostRace     = "already_verified"
	ResultStoreFailure = "store_error"
)

var (
	OTPIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "One-time codes persisted, by purpose.",
		},
		[]string{"purpose"},
	)

	OTPDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_delivery_failures_total",
			Help: "One-time codes persisted but not delivered by the notifier.",
		},
		[]string{"purpose"},
	)

	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "One-time code checks, by purpose and result.",
		},
		[]string{"purpose", "result"},
	)
)
