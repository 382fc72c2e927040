package transaction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loopsBroken = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rpmplan",
		Subsystem: "transaction",
		Name:      "loops_broken_total",
		Help:      "Number of dependency cycles broken while ordering a transaction.",
	})
	packagesOrdered = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rpmplan",
		Subsystem: "transaction",
		Name:      "packages_ordered",
		Help:      "Number of operations produced per ordered transaction.",
	})
)
