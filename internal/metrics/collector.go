// Package metrics exposes Prometheus instrumentation for the signing
// engine, credential lifecycle manager, and per-connection authenticator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every metric this module records.
type Collector struct {
	signOperationsTotal *prometheus.CounterVec
	signDuration        *prometheus.HistogramVec

	stsCallsTotal  *prometheus.CounterVec
	stsCallSeconds prometheus.Histogram

	refreshesTotal      *prometheus.CounterVec
	credentialExpirySec prometheus.Gauge
	storeWakeupsTotal   prometheus.Counter

	authAttemptsTotal *prometheus.CounterVec
}

// NewCollector registers and returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		signOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mskiam_sign_operations_total",
				Help: "Total number of SigV4 signing operations, by service.",
			},
			[]string{"service"},
		),
		signDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mskiam_sign_duration_seconds",
				Help:    "Duration of SigV4 signing operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		stsCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mskiam_sts_calls_total",
				Help: "Total AssumeRole calls to STS, by outcome.",
			},
			[]string{"outcome"},
		),
		stsCallSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mskiam_sts_call_duration_seconds",
				Help:    "Duration of AssumeRole HTTPS round trips.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		refreshesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mskiam_credential_refreshes_total",
				Help: "Total credential refresh attempts, by outcome.",
			},
			[]string{"outcome"},
		),
		credentialExpirySec: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mskiam_credential_expiry_seconds",
				Help: "Seconds until the current credential expires, as of the last successful refresh.",
			},
		),
		storeWakeupsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mskiam_store_wakeups_total",
				Help: "Total times the credential store woke blocked connection workers.",
			},
		),
		authAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mskiam_auth_attempts_total",
				Help: "Total per-connection authentication attempts, by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// RecordSign records one signing operation for the given service.
func (c *Collector) RecordSign(service string, d time.Duration) {
	c.signOperationsTotal.WithLabelValues(service).Inc()
	c.signDuration.WithLabelValues(service).Observe(d.Seconds())
}

// RecordSTSCall records the outcome and duration of an AssumeRole call.
func (c *Collector) RecordSTSCall(success bool, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.stsCallsTotal.WithLabelValues(outcome).Inc()
	c.stsCallSeconds.Observe(d.Seconds())
}

// RecordRefresh records one refresh scheduler fire.
func (c *Collector) RecordRefresh(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.refreshesTotal.WithLabelValues(outcome).Inc()
}

// SetCredentialExpiry sets the "seconds until expiry" gauge to d; the
// gauge keeps that value until the next call.
func (c *Collector) SetCredentialExpiry(d time.Duration) {
	c.credentialExpirySec.Set(d.Seconds())
}

// RecordStoreWakeup records one wake-all signal fired by the store.
func (c *Collector) RecordStoreWakeup() {
	c.storeWakeupsTotal.Inc()
}

// RecordAuthAttempt records one completed per-connection authentication.
func (c *Collector) RecordAuthAttempt(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.authAttemptsTotal.WithLabelValues(outcome).Inc()
}
