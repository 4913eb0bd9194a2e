// Package metrics collects Prometheus metrics for the engagement lifecycle,
// the expiry reconciler, notifications and rating roll-ups.
//
// Metrics:
//
//	craftlink_engagement_transitions_total{action,outcome}
//	craftlink_reconciler_ticks_total{outcome}
//	craftlink_reconciler_records_total{result}      flipped, skipped, failed
//	craftlink_reconciler_tick_duration_seconds
//	craftlink_notifications_total{kind,outcome}     sent, duplicate, failed
//	craftlink_rating_recomputes_total{outcome}
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "craftlink"

// Collector holds the registered metric vectors
type Collector struct {
	transitions       *prometheus.CounterVec
	reconcilerTicks   *prometheus.CounterVec
	reconcilerRecords *prometheus.CounterVec
	reconcilerLatency prometheus.Histogram
	notifications     *prometheus.CounterVec
	ratingRecomputes  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewCollector creates a collector registered with prometheus.DefaultRegisterer
func NewCollector() *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewCollectorWith creates a collector registered with reg and served from g
func NewCollectorWith(reg prometheus.Registerer, g prometheus.Gatherer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engagement_transitions_total",
			Help:      "Lifecycle operations by action and outcome",
		}, []string{"action", "outcome"}),
		reconcilerTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciler_ticks_total",
			Help:      "Expiry reconciler ticks by outcome",
		}, []string{"outcome"}),
		reconcilerRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciler_records_total",
			Help:      "Engagements handled by the expiry reconciler by result",
		}, []string{"result"}),
		reconcilerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconciler_tick_duration_seconds",
			Help:      "Duration of expiry reconciler ticks",
			Buckets:   prometheus.DefBuckets,
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by kind and outcome",
		}, []string{"kind", "outcome"}),
		ratingRecomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_recomputes_total",
			Help:      "Craftsman rating recomputes by outcome",
		}, []string{"outcome"}),
		gatherer: g,
	}

	reg.MustRegister(
		c.transitions,
		c.reconcilerTicks,
		c.reconcilerRecords,
		c.reconcilerLatency,
		c.notifications,
		c.ratingRecomputes,
	)
	return c
}

// RecordTransition counts a lifecycle operation
func (c *Collector) RecordTransition(action, outcome string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(action, outcome).Inc()
}

// RecordReconcileTick records one reconciler pass
func (c *Collector) RecordReconcileTick(d time.Duration, flipped, skipped, failed int, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.reconcilerTicks.WithLabelValues(outcome).Inc()
	c.reconcilerLatency.Observe(d.Seconds())
	c.reconcilerRecords.WithLabelValues("flipped").Add(float64(flipped))
	c.reconcilerRecords.WithLabelValues("skipped").Add(float64(skipped))
	c.reconcilerRecords.WithLabelValues("failed").Add(float64(failed))
}

// RecordNotification counts a notification outcome
func (c *Collector) RecordNotification(kind, outcome string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(kind, outcome).Inc()
}

// RecordRatingRecompute counts a roll-up recompute
func (c *Collector) RecordRatingRecompute(outcome string) {
	if c == nil {
		return
	}
	c.ratingRecomputes.WithLabelValues(outcome).Inc()
}

// Handler serves the collected metrics
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
