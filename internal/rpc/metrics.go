package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookhive",
		Subsystem: "rpc_client",
		Name:      "calls_total",
		Help:      "RPC calls by destination kind and outcome.",
	}, []string{"destination", "outcome"})

	publishRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookhive",
		Subsystem: "rpc_client",
		Name:      "publish_retries_total",
		Help:      "Transport-level publish retries.",
	})

	discardedRepliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookhive",
		Subsystem: "rpc_client",
		Name:      "discarded_replies_total",
		Help:      "Late or duplicate replies dropped by the dispatcher.",
	})
)
