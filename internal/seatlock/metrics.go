package seatlock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	acquireTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seatlock_acquire_total",
		Help: "Lock acquisition attempts by outcome.",
	}, []string{"status"})

	activeLocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seatlock_active_locks",
		Help: "Number of locks currently held in the table.",
	})

	lockedSeats = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seatlock_locked_seats",
		Help: "Total seat quantity currently held by active locks.",
	})

	removedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seatlock_removed_total",
		Help: "Locks removed from the table by reason.",
	}, []string{"reason"})
)

const (
	removeReasonReleased   = "released"
	removeReasonExpired    = "expired"
	removeReasonDisconnect = "disconnect"
	removeReasonConsumed   = "consumed"
)
