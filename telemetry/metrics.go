// Package telemetry provides the Prometheus metrics of the orchestrator.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoomsCreated     = promauto.NewCounter(prometheus.CounterOpts{Name: "hubs_rooms_created_total", Help: "Number of dynamic rooms created"})
	RoomsDeleted     = promauto.NewCounter(prometheus.CounterOpts{Name: "hubs_rooms_deleted_total", Help: "Number of dynamic rooms deleted"})
	CapacityRefusals = promauto.NewCounter(prometheus.CounterOpts{Name: "hubs_capacity_refusals_total", Help: "Number of room creations refused because a hub was at max_rooms"})
	PanelFallbacks   = promauto.NewCounter(prometheus.CounterOpts{Name: "hubs_panel_fallbacks_total", Help: "Number of control panels placed somewhere other than the room itself"})
	SweepRuns        = promauto.NewCounter(prometheus.CounterOpts{Name: "hubs_sweep_runs_total", Help: "Number of reconciliation sweeps"})
	SweepCorrections = promauto.NewCounter(prometheus.CounterOpts{Name: "hubs_sweep_corrections_total", Help: "Number of inconsistencies corrected by sweeps"})
)
