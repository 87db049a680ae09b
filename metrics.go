package langclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPulls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "langclient",
		Subsystem: "diagnostics",
		Name:      "pulls_total",
		Help:      "Document diagnostic pulls by outcome.",
	}, []string{"outcome"})

	metricPullsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "langclient",
		Subsystem: "diagnostics",
		Name:      "pulls_coalesced_total",
		Help:      "Pull requests collapsed into an already in-flight request.",
	})

	metricWorkspaceSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "langclient",
		Subsystem: "diagnostics",
		Name:      "workspace_sweeps_total",
		Help:      "Workspace diagnostic sweeps by outcome.",
	}, []string{"outcome"})

	metricBackgroundTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "langclient",
		Subsystem: "diagnostics",
		Name:      "background_ticks_total",
		Help:      "Background revalidation ticks processed.",
	})
)

// Pull outcome labels.
const (
	outcomeFull      = "full"
	outcomeUnchanged = "unchanged"
	outcomeDropped   = "dropped"
	outcomeFailed    = "failed"
)
