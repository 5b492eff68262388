package nftkit

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	coalesced     *prometheus.CounterVec
	abandoned     *prometheus.CounterVec
	mutations     *prometheus.CounterVec
	invalidations prometheus.Counter
}

// newMetrics builds the collectors and, when reg is non-nil, registers them.
// Collectors already registered by another client on the same registry are
// shared.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nftkit",
				Subsystem: "query",
				Name:      "cache_hits_total",
				Help:      "Reads served from a fresh cache entry",
			},
			[]string{"operation"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nftkit",
				Subsystem: "query",
				Name:      "cache_misses_total",
				Help:      "Reads that needed a fetch",
			},
			[]string{"operation"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nftkit",
				Subsystem: "query",
				Name:      "fetches_total",
				Help:      "Underlying contract reads by outcome",
			},
			[]string{"operation", "result"},
		),
		coalesced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nftkit",
				Subsystem: "query",
				Name:      "coalesced_total",
				Help:      "Reads that shared another caller's in-flight fetch",
			},
			[]string{"operation"},
		),
		abandoned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nftkit",
				Subsystem: "query",
				Name:      "abandoned_total",
				Help:      "Reads whose caller went away before the result arrived",
			},
			[]string{"operation"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nftkit",
				Subsystem: "mutation",
				Name:      "settled_total",
				Help:      "Writes settled by outcome",
			},
			[]string{"operation", "status"},
		),
		invalidations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "nftkit",
				Subsystem: "cache",
				Name:      "invalidated_keys_total",
				Help:      "Cache keys invalidated",
			},
		),
	}

	if reg == nil {
		return m
	}

	m.cacheHits = register(reg, m.cacheHits)
	m.cacheMisses = register(reg, m.cacheMisses)
	m.fetches = register(reg, m.fetches)
	m.coalesced = register(reg, m.coalesced)
	m.abandoned = register(reg, m.abandoned)
	m.mutations = register(reg, m.mutations)
	m.invalidations = register(reg, m.invalidations)

	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing
		}
	}
	log.Warn().Msgf("failed to register metric collector: %v", err)
	return c
}
