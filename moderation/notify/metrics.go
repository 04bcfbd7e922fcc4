package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var attemptCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_notify_attempts",
	Help: "Number of user notification delivery attempts, by method and outcome",
}, []string{"method", "status"})
