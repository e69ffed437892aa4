package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics with bounded cardinality; labels never carry player or room ids.
var (
	roomsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sumo_rooms_active",
		Help: "Live rooms by kind",
	}, []string{"kind"}) // "bot" or "human"

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sumo_sessions_active",
		Help: "Currently open WebSocket sessions",
	})

	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sumo_ticks_total",
		Help: "Physics ticks simulated across all rooms",
	})

	matchesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sumo_matches_finished_total",
		Help: "Matches that reached the finished state",
	})

	broadcastDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sumo_broadcast_drops_total",
		Help: "Sessions dropped because their outbound queue overflowed or closed",
	})

	joinsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sumo_joins_rejected_total",
		Help: "Join attempts denied",
	}, []string{"reason"}) // "not_found", "full", "started", "missing_code", "rate_limit"
)
