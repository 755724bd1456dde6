// Package metrics exposes prometheus collectors for the vendor clients and
// the entity registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hub_sensors"

// Collector groups the counters and gauges the adapters report to. A nil
// *Collector is valid and records nothing.
type Collector struct {
	logins    *prometheus.CounterVec
	failures  *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	entities  *prometheus.GaugeVec
	available *prometheus.GaugeVec
}

// New builds the collectors and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Successful vendor logins.",
		}, []string{"vendor"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_failures_total",
			Help:      "Vendor requests that failed, by stage and status code.",
		}, []string{"vendor", "stage", "code"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Refresh attempts, split by whether the throttle let them through.",
		}, []string{"vendor", "result"}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entity_state",
			Help:      "Numeric state of each sensor entity.",
		}, []string{"unique_id", "device_class"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entity_available",
			Help:      "1 when the entity has a current reading, 0 when unavailable.",
		}, []string{"unique_id"}),
	}

	reg.MustRegister(c.logins, c.failures, c.refreshes, c.entities, c.available)
	return c
}

func (c *Collector) Login(vendor string) {
	if c == nil {
		return
	}
	c.logins.WithLabelValues(vendor).Inc()
}

// Failure counts a failed request. stage is "login", "fetch" or "decode";
// code is the HTTP status or "" for transport errors.
func (c *Collector) Failure(vendor, stage, code string) {
	if c == nil {
		return
	}
	c.failures.WithLabelValues(vendor, stage, code).Inc()
}

func (c *Collector) Refresh(vendor string, ran bool) {
	if c == nil {
		return
	}
	result := "throttled"
	if ran {
		result = "ran"
	}
	c.refreshes.WithLabelValues(vendor, result).Inc()
}

// EntityState records a numeric entity state and marks it available.
func (c *Collector) EntityState(uniqueID, deviceClass string, v float64) {
	if c == nil {
		return
	}
	c.entities.WithLabelValues(uniqueID, deviceClass).Set(v)
	c.available.WithLabelValues(uniqueID).Set(1)
}

// EntityUnavailable drops the last state so it is not served as current.
func (c *Collector) EntityUnavailable(uniqueID string) {
	if c == nil {
		return
	}
	c.entities.DeletePartialMatch(prometheus.Labels{"unique_id": uniqueID})
	c.available.WithLabelValues(uniqueID).Set(0)
}

// EntityRemoved drops every series of a removed entity.
func (c *Collector) EntityRemoved(uniqueID string) {
	if c == nil {
		return
	}
	c.entities.DeletePartialMatch(prometheus.Labels{"unique_id": uniqueID})
	c.available.DeleteLabelValues(uniqueID)
}
