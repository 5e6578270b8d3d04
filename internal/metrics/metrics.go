// Package metrics holds the Prometheus collectors exported by the relay.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "relaychat"

// Label values for FramesDropped.
const (
	DropMalformed   = "malformed"
	DropUnknownKind = "unknown_kind"
	DropBadID       = "bad_id"
	DropRateLimited = "rate_limited"
	DropEncode      = "encode"

	DropSelfAddressed = "self_addressed"
)

var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "number of live websocket connections registered in the directory",
		})

	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "sessions issued by login or registration",
		})

	SessionsInvalidated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_invalidated_total",
			Help:      "sessions removed because the same user logged in again",
		})

	EventsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_routed_total",
			Help:      "inbound events routed, by kind",
		}, []string{"kind"})

	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "inbound frames dropped without reaching any recipient, by reason",
		}, []string{"reason"})

	SlowConsumerEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_consumer_evictions_total",
			Help:      "connections closed because their outbound queue was full",
		})

	PresenceEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_events_total",
			Help:      "presence announcements, by status",
		}, []string{"status"})

	registerOnce sync.Once
)

// Register adds every collector to reg. Only the first call has an effect.
// A nil reg means prometheus.DefaultRegisterer.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			ConnectionsActive,
			SessionsCreated,
			SessionsInvalidated,
			EventsRouted,
			FramesDropped,
			SlowConsumerEvictions,
			PresenceEvents,
		)
	})
}
