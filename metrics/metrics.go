package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "botrace"

var (
	Registry = prometheus.NewRegistry()

	RaceCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "race",
			Name:      "commands_total",
			Help:      "Control commands processed by the race controller.",
		},
		[]string{"command", "result"},
	)
	RaceState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "race",
			Name:      "state",
			Help:      "Current race lifecycle state (0 idle, 1 running, 2 paused, 3 ended).",
		},
	)
	BoardAdvances = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "advances_total",
			Help:      "Board advances performed.",
		},
	)
	ObserverFaults = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "observer_faults_total",
			Help:      "Observer notifications that panicked.",
		},
	)
	MembershipEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "membership",
			Name:      "events_total",
			Help:      "Cluster membership events observed.",
		},
		[]string{"event"},
	)
	MembershipDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "membership",
			Name:      "dropped_events_total",
			Help:      "Membership events dropped because a subscriber was not keeping up.",
		},
	)
	MonitorRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "membership",
			Name:      "restarts_total",
			Help:      "Membership monitor restarts after a lost subscription.",
		},
	)
)

func init() {
	Registry.MustRegister(
		RaceCommands, RaceState,
		BoardAdvances, ObserverFaults,
		MembershipEvents, MembershipDropped, MonitorRestarts,
	)
}

// Handler exposes the registry for a /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
