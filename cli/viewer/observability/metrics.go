package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viewer_messages_received_total",
		Help: "Telemetry frames read from the stream",
	})
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "viewer_decode_errors_total",
		Help: "Telemetry frames dropped because they could not be decoded",
	}, []string{"reason"})
	ReportsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viewer_reports_applied_total",
		Help: "Reports reconciled into the tracking set",
	})
	MarkersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viewer_markers_created_total",
		Help: "Markers created on the map surface",
	})
	MarkersMoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viewer_markers_moved_total",
		Help: "Marker position updates sent to the map surface",
	})
	TrackedEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "viewer_tracked_entities",
		Help: "Entities currently held in the tracking set",
	})
	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "viewer_connection_state",
		Help: "Stream connection state (0 disconnected, 1 connecting, 2 open, 3 closed, 4 errored)",
	})
	PublishDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viewer_publish_dropped_total",
		Help: "Entity snapshots dropped because the publish queue was full",
	})
)

// NewMetricsServer exposes /metrics and /healthz on addr.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{Addr: addr, Handler: mux}
}
