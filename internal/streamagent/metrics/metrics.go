// Package metrics exposes Prometheus collectors for the streaming agent.
// None of this is wire-protocol-visible; it is a diagnostic collaborator the
// supervisor wires up alongside the frame log.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry groups the agent's collectors behind a single struct so the
// supervisor can construct one set per process and pass it down instead of
// relying on package-level globals.
type Registry struct {
	FramesCaptured   prometheus.Counter
	FramesDropped    prometheus.Counter
	WriteErrors      prometheus.Counter
	FormatChanges    prometheus.Counter
	Streaming        prometheus.Gauge
	ControlMessages  *prometheus.CounterVec
	CaptureFrameSize prometheus.Histogram
}

// NewRegistry constructs and registers all collectors against reg. Passing a
// fresh prometheus.NewRegistry() keeps tests isolated from the default
// global registry.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		FramesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_agent_frames_captured_total",
			Help: "Total number of frames captured from the active capture provider.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_agent_frames_dropped_total",
			Help: "Total number of frames dropped due to a write-path I/O error.",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_agent_write_errors_total",
			Help: "Total number of write errors on the data path that demoted the capture loop to IDLE.",
		}),
		FormatChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_agent_format_changes_total",
			Help: "Total number of Format messages emitted due to stream_start or a dimension change.",
		}),
		Streaming: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_agent_streaming",
			Help: "1 if the capture loop is currently in the CAPTURING state, 0 otherwise.",
		}),
		ControlMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_agent_control_messages_total",
			Help: "Total number of inbound control messages processed, by type.",
		}, []string{"type"}),
		CaptureFrameSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stream_agent_capture_frame_bytes",
			Help:    "Size in bytes of each captured frame buffer.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
	reg.MustRegister(
		r.FramesCaptured,
		r.FramesDropped,
		r.WriteErrors,
		r.FormatChanges,
		r.Streaming,
		r.ControlMessages,
		r.CaptureFrameSize,
	)
	return r
}
