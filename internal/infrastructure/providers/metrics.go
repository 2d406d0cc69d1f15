package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "screening",
		Subsystem: "router",
		Name:      "routes_total",
		Help:      "Routed check outcomes by check type.",
	}, []string{"check_type", "outcome"})

	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "screening",
		Subsystem: "router",
		Name:      "cache_hits_total",
		Help:      "Routes satisfied from the response cache.",
	}, []string{"check_type"})

	failovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "screening",
		Subsystem: "router",
		Name:      "failovers_total",
		Help:      "Failovers from a primary provider to a fallback.",
	}, []string{"provider_id"})
)
