package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	prometheus.MustRegister(HTTPTotalRequests)
	prometheus.MustRegister(HTTPResponseDuration)
	prometheus.MustRegister(RowsDeleted)
	prometheus.MustRegister(DeletesRefused)
	prometheus.MustRegister(ValidationRejections)
}

const (
	namespace = "cmdb"

	LabelPath      = "path"
	LabelCode      = "code"
	LabelMethod    = "method"
	LabelKind      = "kind"
	LabelReferrer  = "referrer"
	LabelOperation = "operation"
)

var (
	histogramBuckets = []float64{.005, .025, .1, .5, 1, 5}

	// HTTPTotalRequests tracks API requests by path pattern, method and status code.
	HTTPTotalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Number of total requests.",
		},
		[]string{LabelPath, LabelMethod, LabelCode})

	HTTPResponseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_response_time_seconds",
		Help:      "Duration of HTTP response.",
		Buckets:   histogramBuckets,
	}, []string{LabelPath, LabelMethod})

	// RowsDeleted counts rows removed by delete requests, cascaded rows included.
	RowsDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "rows_deleted_total",
			Help:      "Number of rows removed by delete requests.",
		},
		[]string{LabelKind})

	// DeletesRefused counts delete requests refused because the target is still referenced.
	DeletesRefused = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "deletes_refused_total",
			Help:      "Number of delete requests refused by a restrict rule.",
		},
		[]string{LabelKind, LabelReferrer})

	ValidationRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "validation_rejections_total",
			Help:      "Number of writes rejected by validation.",
		},
		[]string{LabelOperation})
)
