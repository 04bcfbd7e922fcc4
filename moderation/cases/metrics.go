package cases

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var createdCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_cases_created",
	Help: "Number of moderation cases created, by kind",
}, []string{"kind"})
