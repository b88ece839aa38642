package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RideOffersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rumbo", Name: "ride_offers_total",
		Help: "Total ride offers broadcast to drivers",
	})
	RidesAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rumbo", Name: "rides_accepted_total",
		Help: "Total rides successfully accepted",
	})
	AcceptConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rumbo", Name: "accept_conflicts_total",
		Help: "Accept attempts that lost the assignment race",
	})
	NoDriverFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rumbo", Name: "no_driver_found_total",
		Help: "Ride requests with no available driver to offer to",
	})
	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rumbo", Name: "websocket_connections",
		Help: "Currently connected live-channel clients",
	})
	BusEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rumbo", Name: "bus_events_total",
			Help: "Events published on the notification bus",
		},
		[]string{"event"},
	)
	ETAFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rumbo", Name: "eta_failures_total",
		Help: "Routing collaborator failures while computing ETAs",
	})
)
