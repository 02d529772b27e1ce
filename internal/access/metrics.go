package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taco",
		Subsystem: "access",
		Name:      "refresh_total",
		Help:      "Cache refreshes from the lock store by result.",
	}, []string{"result"})
	autoReleaseTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taco",
		Subsystem: "access",
		Name:      "auto_release_total",
		Help:      "Locks released because their session process exited.",
	})
	launchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taco",
		Subsystem: "access",
		Name:      "launch_total",
		Help:      "Session launches by result.",
	}, []string{"result"})
)
