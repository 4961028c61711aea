package metrics

import (
    "net/http"
    "strconv"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    remoteReqs = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bookpipe",
            Name:      "remote_requests_total",
            Help:      "Total remote inference attempts by model, credential slot and result",
        },
        []string{"model", "slot", "result"},
    )

    remoteLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "bookpipe",
            Name:      "remote_request_duration_seconds",
            Help:      "Duration of remote inference attempts by model",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"model"},
    )

    rotationBackoffs = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "bookpipe",
            Name:      "rotation_backoffs_total",
            Help:      "Full-pass exhaustion backoff sleeps in the rotation engine",
        },
    )

    rotationBackoffSeconds = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "bookpipe",
            Name:      "rotation_backoff_seconds_total",
            Help:      "Cumulative seconds scheduled for rotation backoff sleeps",
        },
    )

    documentsProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bookpipe",
            Name:      "documents_processed_total",
            Help:      "Documents processed by final analysis type",
        },
        []string{"analysis_type"},
    )

    classifications = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bookpipe",
            Name:      "classifications_total",
            Help:      "Classification results by assigned level",
        },
        []string{"level"},
    )

    toolInvocations = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bookpipe",
            Name:      "tool_invocations_total",
            Help:      "External PDF tool invocations by tool and result",
        },
        []string{"tool", "result"},
    )

    segmentCommands = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bookpipe",
            Name:      "segment_commands_total",
            Help:      "Segmentation page-range extractions by result",
        },
        []string{"result"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(remoteReqs, remoteLatency, rotationBackoffs, rotationBackoffSeconds,
        documentsProcessed, classifications, toolInvocations, segmentCommands)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveRemote(model string, slot int, result string, dur time.Duration) {
    remoteReqs.WithLabelValues(model, strconv.Itoa(slot), result).Inc()
    if dur > 0 {
        remoteLatency.WithLabelValues(model).Observe(dur.Seconds())
    }
}

func ObserveRotationBackoff(d time.Duration) {
    rotationBackoffs.Inc()
    rotationBackoffSeconds.Add(d.Seconds())
}

func IncDocument(analysisType string) { documentsProcessed.WithLabelValues(analysisType).Inc() }
func IncClassification(level string)  { classifications.WithLabelValues(level).Inc() }

func ObserveTool(tool, result string) { toolInvocations.WithLabelValues(tool, result).Inc() }

func IncSegmentCommand(result string) { segmentCommands.WithLabelValues(result).Inc() }
