// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "habitat_http_requests_total",
		Help: "HTTP requests by route pattern and status code",
	}, []string{"route", "code"})
	HTTPDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "habitat_http_request_duration_seconds",
		Help:    "HTTP request duration by route pattern",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"route"})

	EvaluationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "habitat_evaluations_total",
		Help: "Completed habitability evaluations",
	})
	EvaluationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "habitat_evaluation_duration_seconds",
		Help:    "Time spent filtering, resolving and scoring one query",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	})
	ScoreValue = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "habitat_score",
		Help:    "Distribution of computed scores",
		Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})
	ResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "habitat_resolutions_total",
		Help: "Aspect resolutions by aspect and status",
	}, []string{"aspect", "status"})

	ReportCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "habitat_report_cache_total",
		Help: "Report cache lookups by result (hit, miss, error)",
	}, []string{"result"})

	DatasetLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "habitat_dataset_loads_total",
		Help: "Dataset snapshot loads by outcome (ok, error)",
	}, []string{"outcome"})
	DatasetFeatures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "habitat_dataset_features",
		Help: "Normalized features in the current snapshot",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPDurationSeconds,
		EvaluationsTotal,
		EvaluationSeconds,
		ScoreValue,
		ResolutionsTotal,
		ReportCacheTotal,
		DatasetLoadsTotal,
		DatasetFeatures,
	)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
