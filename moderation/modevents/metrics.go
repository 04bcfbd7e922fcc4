package modevents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var publishedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_modevents_published",
	Help: "Number of domain events published, by kind",
}, []string{"kind"})

var droppedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_modevents_dropped",
	Help: "Number of domain events dropped due to subscriber overflow",
})
