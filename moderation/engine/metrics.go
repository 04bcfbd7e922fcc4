package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_action_duration_sec",
	Help: "Total duration of moderation action flows",
}, []string{"kind"})

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_actions_processed",
	Help: "Number of moderation action flows processed",
}, []string{"kind", "status"})

var observedEventCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_observed_events",
	Help: "Number of gateway events ingested, by kind and origin",
}, []string{"kind", "origin"})
