package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// opsExecuted counts operations by type and outcome. Outcome is "ok", a
// stable error kind (NotOwner, OfferExpired, ...), "rejected" for bad
// signatures, or "error" for internal faults.
var opsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "openlot",
	Subsystem: "engine",
	Name:      "operations_total",
	Help:      "Market operations executed, by type and outcome.",
}, []string{"type", "outcome"})
