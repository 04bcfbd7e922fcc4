package reversal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scheduledCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_reversals_scheduled",
	Help: "Number of reversals scheduled, by kind",
}, []string{"kind"})

var cancelledCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_reversals_cancelled",
	Help: "Number of pending reversals cancelled by opposing manual actions",
}, []string{"kind"})

var firedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_reversals_fired",
	Help: "Number of reversals fired by the loop, by kind and outcome",
}, []string{"kind", "status"})
