package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fexdroid",
			Subsystem: "launcher",
			Name:      "launches_total",
			Help:      "Number of admitted game launches.",
		}, []string{"game"},
	)
	completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fexdroid",
			Subsystem: "launcher",
			Name:      "completions_total",
			Help:      "Number of games that exited cleanly.",
		}, []string{"game"},
	)
	crashes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fexdroid",
			Subsystem: "launcher",
			Name:      "crashes_total",
			Help:      "Number of games that exited abnormally.",
		}, []string{"game"},
	)
	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fexdroid",
			Subsystem: "launcher",
			Name:      "rejections_total",
			Help:      "Number of launches rejected by admission policy.",
		}, []string{"reason"},
	)
	activeGames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fexdroid",
			Subsystem: "launcher",
			Name:      "active_games",
			Help:      "Number of currently active game processes.",
		},
	)
	launchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fexdroid",
			Subsystem: "launcher",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock runtime of finished games.",
			Buckets:   []float64{1, 10, 60, 300, 900, 3600, 14400},
		}, []string{"game"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{launches, completions, crashes, rejections, activeGames, launchDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncLaunch(game string) {
	if regOK.Load() {
		launches.WithLabelValues(game).Inc()
	}
}

func IncCompletion(game string) {
	if regOK.Load() {
		completions.WithLabelValues(game).Inc()
	}
}

func IncCrash(game string) {
	if regOK.Load() {
		crashes.WithLabelValues(game).Inc()
	}
}

func IncRejection(reason string) {
	if regOK.Load() {
		rejections.WithLabelValues(reason).Inc()
	}
}

func SetActiveGames(n int) {
	if regOK.Load() {
		activeGames.Set(float64(n))
	}
}

func ObserveRunDuration(game string, seconds float64) {
	if regOK.Load() {
		launchDuration.WithLabelValues(game).Observe(seconds)
	}
}
