// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckinsAccepted counts accepted check-in submissions.
	CheckinsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_checkins_accepted_total",
		Help: "Accepted check-in submissions.",
	})

	// CheckinsRejected counts rejected submissions by taxonomy kind.
	CheckinsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_checkins_rejected_total",
		Help: "Rejected check-in submissions by reason.",
	}, []string{"reason"})

	// RosterSubscribers tracks live roster stream subscriptions.
	RosterSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rollcall_roster_subscribers",
		Help: "Currently connected roster stream subscribers.",
	})
)
