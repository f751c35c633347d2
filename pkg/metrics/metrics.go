package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	mediaPipeline = "media_pipeline"

	jobsDispatchedTotal     = "jobs_dispatched_total"
	webhookEventsTotal      = "webhook_events_total"
	uploadChunksTotal       = "upload_chunks_received_total"
	uploadSessionsSweptName = "upload_sessions_swept_total"

	jobTypeLabel       = "job_type"
	dispatchStateLabel = "state"
	eventTypeLabel     = "event_type"
	eventResultLabel   = "result"
)

var jobsDispatchedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: mediaPipeline,
		Name:      jobsDispatchedTotal,
		Help:      "number of jobs submitted to the compute backend, partitioned by job type and dispatch state",
	},
	[]string{jobTypeLabel, dispatchStateLabel},
)

var webhookEventsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: mediaPipeline,
		Name:      webhookEventsTotal,
		Help:      "number of webhook events received, partitioned by event type and outcome",
	},
	[]string{eventTypeLabel, eventResultLabel},
)

var uploadChunksTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: mediaPipeline,
		Name:      uploadChunksTotal,
		Help:      "number of upload chunks accepted",
	},
)

var uploadSessionsSweptMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: mediaPipeline,
		Name:      uploadSessionsSweptName,
		Help:      "number of upload sessions expired by the sweep",
	},
)

func IncreaseJobsDispatchedMetric(jobType, state string) {
	jobsDispatchedTotalMetric.With(prometheus.Labels{
		jobTypeLabel:       jobType,
		dispatchStateLabel: state,
	}).Inc()
}

func IncreaseWebhookEventsMetric(eventType, result string) {
	webhookEventsTotalMetric.With(prometheus.Labels{
		eventTypeLabel:   eventType,
		eventResultLabel: result,
	}).Inc()
}

func IncreaseUploadChunksMetric() {
	uploadChunksTotalMetric.Inc()
}

func AddUploadSessionsSweptMetric(count int) {
	uploadSessionsSweptMetric.Add(float64(count))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsDispatchedTotalMetric)
	prometheus.MustRegister(webhookEventsTotalMetric)
	prometheus.MustRegister(uploadChunksTotalMetric)
	prometheus.MustRegister(uploadSessionsSweptMetric)
}
