package suppress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var markedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_suppression_marked",
	Help: "Number of suppression markers registered",
}, []string{"kind"})

var consumedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_suppression_consumed",
	Help: "Number of suppression markers consumed by observed events",
}, []string{"kind"})

var sweptCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_suppression_swept",
	Help: "Number of expired suppression markers removed by background sweep",
})
