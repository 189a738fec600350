package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	proposals *prometheus.CounterVec
	resumes   *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		proposals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polybroker",
			Name:      "proposals_total",
			Help:      "Propose requests by result.",
		}, []string{"result"}),
		resumes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polybroker",
			Name:      "resumes_total",
			Help:      "Resume requests by terminal outcome.",
		}, []string{"outcome"}),
	}
}
