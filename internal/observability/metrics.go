// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the chatgate application metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	AuthFailures     *prometheus.CounterVec
	HashDuration     *prometheus.HistogramVec
	TokensIssued     prometheus.Counter
	Registrations    prometheus.Counter
	RateLimitedTotal *prometheus.CounterVec
}

// NewMetrics creates the chatgate metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatgate_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatgate_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		AuthFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatgate_auth_failures_total",
				Help: "Total number of failed auth operations by error kind",
			},
			[]string{"kind"},
		),
		HashDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "chatgate_password_hash_seconds",
				Help: "Argon2id hash and verify latency",
				// Argon2id with production parameters sits in the 10ms-1s range.
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"op"},
		),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatgate_tokens_issued_total",
			Help: "Total number of access tokens issued",
		}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatgate_registrations_total",
			Help: "Total number of successful registrations",
		}),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatgate_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.AuthFailures,
		m.HashDuration,
		m.TokensIssued,
		m.Registrations,
		m.RateLimitedTotal,
	)
	return m
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveHash matches auth.HashObserver.
func (m *Metrics) ObserveHash(op string, d time.Duration) {
	m.HashDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordAuthFailure counts a failed operation under its error kind.
func (m *Metrics) RecordAuthFailure(kind string) {
	m.AuthFailures.WithLabelValues(kind).Inc()
}
