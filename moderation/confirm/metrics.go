package confirm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolvedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_confirm_resolved",
	Help: "Number of confirmation prompts resolved, by outcome",
}, []string{"outcome"})
