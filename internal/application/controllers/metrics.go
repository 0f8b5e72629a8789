package controllers

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_requests_total",
			Help: "The total number of controller executions by name and outcome",
		},
		[]string{"controller", "outcome"},
	)

	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_request_retries_total",
			Help: "The total number of retry attempts by controller name",
		},
		[]string{"controller"},
	)

	uploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "client_upload_bytes_total",
			Help: "The total number of file bytes sent by the upload controller",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, retriesTotal, uploadBytesTotal)
}
