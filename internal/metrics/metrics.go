// Package metrics exposes the rotation's operational state as Prometheus
// gauges. Gauge names match the persisted-record field names so operators
// can correlate the two directly.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/rotabot/internal/state"
)

// Collector registers and updates the rotation gauges. It implements
// rotation.Observer, so every persisted mutation refreshes the gauges.
type Collector struct {
	registry *prometheus.Registry

	rotationIndex         prometheus.Gauge
	currentAssigneeIndex  prometheus.Gauge
	teamMembersCount      prometheus.Gauge
	nextRotationIndex     prometheus.Gauge
	schedulerStarted      prometheus.Gauge
	lastReminderTimestamp prometheus.Gauge
}

// New builds a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		rotationIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rotation_index",
			Help: "Index of the member whose turn is next to be asked.",
		}),
		currentAssigneeIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "current_assignee_index",
			Help: "Index of the member currently holding the assignment.",
		}),
		teamMembersCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "team_members_count",
			Help: "Number of members in the rotation roster.",
		}),
		nextRotationIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "next_rotation_index",
			Help: "Index that follows rotation_index in rotation order.",
		}),
		schedulerStarted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_started",
			Help: "1 when the reminder trigger is running.",
		}),
		lastReminderTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "last_reminder_timestamp",
			Help: "Unix time of the last reminder tick.",
		}),
	}
	c.registry.MustRegister(
		c.rotationIndex,
		c.currentAssigneeIndex,
		c.teamMembersCount,
		c.nextRotationIndex,
		c.schedulerStarted,
		c.lastReminderTimestamp,
	)
	return c
}

// Handler serves the registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RotationState refreshes the rotation gauges from a persisted record.
func (c *Collector) RotationState(rec state.Record) {
	c.rotationIndex.Set(float64(rec.Cursor))
	c.currentAssigneeIndex.Set(float64(rec.Assignee))
	c.teamMembersCount.Set(float64(len(rec.Members)))
	c.nextRotationIndex.Set(float64(rec.NextIndex()))
}

// SetSchedulerStarted records whether the reminder trigger is running.
func (c *Collector) SetSchedulerStarted(started bool) {
	if started {
		c.schedulerStarted.Set(1)
	} else {
		c.schedulerStarted.Set(0)
	}
}

// SetLastReminder records when the last reminder tick fired.
func (c *Collector) SetLastReminder(t time.Time) {
	c.lastReminderTimestamp.Set(float64(t.Unix()))
}
