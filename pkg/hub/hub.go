// Package hub runs the poll cycle: it refreshes each vendor, maps the
// readings to sensor records and syncs them into the entity registry.
package hub

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/nimdanitro/hub-sensors-go/pkg/awair"
	"github.com/nimdanitro/hub-sensors-go/pkg/entity"
	"github.com/nimdanitro/hub-sensors-go/pkg/metrics"
	"github.com/nimdanitro/hub-sensors-go/pkg/nest"
)

// NestSource is the part of nest.Client the hub uses.
type NestSource interface {
	RefreshSnapshot(ctx context.Context)
	Snapshot() nest.Snapshot
}

type Hub struct {
	registry *entity.Registry
	nest     NestSource
	awair    awair.Fetcher
	log      *zap.Logger
	metrics  *metrics.Collector
	state    metric.Float64Gauge

	// mu keeps poll cycles from overlapping.
	mu sync.Mutex
}

type Option func(h *Hub)

func WithNest(n NestSource) Option {
	return func(h *Hub) {
		h.nest = n
	}
}

func WithAwair(f awair.Fetcher) Option {
	return func(h *Hub) {
		h.awair = f
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) {
		h.log = l
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithStateGauge records every numeric entity state on g.
func WithStateGauge(g metric.Float64Gauge) Option {
	return func(h *Hub) {
		h.state = g
	}
}

func New(registry *entity.Registry, opts ...Option) *Hub {
	h := &Hub{
		registry: registry,
		log:      zap.L(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Poll runs one cycle. Vendor failures are logged; the affected records keep
// their previous state.
func (h *Hub) Poll(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var keep []string
	complete := true

	if h.nest != nil {
		devices, ok := h.pollNest(ctx)
		keep = append(keep, devices...)
		complete = complete && ok
	}
	if h.awair != nil {
		devices, ok := h.pollAwair(ctx)
		keep = append(keep, devices...)
		complete = complete && ok
	}

	// Only prune when every vendor returned its device list.
	if complete {
		h.report(ctx, h.registry.Prune(keep))
	}
}

func (h *Hub) pollNest(ctx context.Context) ([]string, bool) {
	h.nest.RefreshSnapshot(ctx)
	snap := h.nest.Snapshot()
	if snap == nil {
		h.log.Debug("no nest snapshot yet")
		return nil, false
	}

	var devices []string
	for _, rec := range nest.TemperatureSensors(snap) {
		devices = append(devices, rec.Device)
		h.report(ctx, h.registry.Sync(rec.Device, []entity.Record{rec}))
	}
	return devices, true
}

func (h *Hub) pollAwair(ctx context.Context) ([]string, bool) {
	devices, err := h.awair.Devices(ctx)
	if err != nil {
		h.log.Error("cannot list awair devices", zap.Error(err))
		return nil, false
	}

	uuids := make([]string, 0, len(devices))
	for _, d := range devices {
		uuids = append(uuids, d.UUID())

		readings, err := h.awair.AirData(ctx, d)
		if err != nil {
			h.log.Error("cannot fetch air data",
				zap.String("device", d.UUID()),
				zap.String("name", d.Name),
				zap.Error(err),
			)
			continue
		}

		d.Online = len(readings) > 0
		if !d.Online {
			h.log.Info("awair device is offline", zap.String("device", d.UUID()))
		}
		h.report(ctx, h.registry.Sync(d.UUID(), awair.MapDevice(d, readings)))
	}
	return uuids, true
}

func (h *Hub) report(ctx context.Context, changes []entity.Change) {
	for _, c := range changes {
		rec := c.Record
		switch c.Transition {
		case entity.Created:
			h.log.Info("sensor created", zap.String("uniqueId", rec.UniqueID), zap.String("name", rec.Name))
		case entity.Unavailable:
			h.log.Info("sensor unavailable", zap.String("uniqueId", rec.UniqueID))
			h.metrics.EntityUnavailable(rec.UniqueID)
			continue
		case entity.Removed:
			h.log.Info("sensor removed", zap.String("uniqueId", rec.UniqueID))
			h.metrics.EntityRemoved(rec.UniqueID)
			continue
		}

		if !rec.Available() {
			h.metrics.EntityUnavailable(rec.UniqueID)
			continue
		}
		v, ok := rec.Float()
		if !ok {
			continue
		}
		h.log.Debug("sensor updated",
			zap.String("uniqueId", rec.UniqueID),
			zap.String("state", rec.State),
		)
		h.metrics.EntityState(rec.UniqueID, rec.DeviceClass, v)
		if h.state != nil {
			h.state.Record(ctx, v, metric.WithAttributes(
				attribute.String("sensor.id", rec.UniqueID),
				attribute.String("sensor.class", rec.DeviceClass),
				attribute.String("sensor.device", rec.Device),
			))
		}
	}
}

// Run polls immediately and then on every tick until ctx is done.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.Poll(ctx)

	for {
		select {
		case <-ticker.C:
			h.Poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}
