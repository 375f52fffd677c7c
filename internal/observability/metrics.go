package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crosstalk_active_sessions",
		Help: "Number of active translation sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosstalk_sessions_total",
		Help: "Total number of translation sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crosstalk_session_duration_seconds",
		Help:    "Duration of translation sessions in seconds",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
	})

	// Capture metrics
	captureFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosstalk_capture_frames_total",
		Help: "Total number of captured, unmuted audio frames",
	})

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crosstalk_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	inputLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crosstalk_input_level_rms",
		Help: "RMS amplitude of the most recent capture frame",
	})

	// Playback metrics
	playbackSegments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosstalk_playback_segments_total",
		Help: "Total number of playback segments scheduled",
	})

	playbackSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosstalk_playback_audio_seconds_total",
		Help: "Total seconds of translated audio scheduled for playback",
	})

	interruptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosstalk_interruptions_total",
		Help: "Total number of barge-in interruptions",
	})

	decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosstalk_decode_errors_total",
		Help: "Total number of inbound audio chunks dropped as undecodable",
	})

	// Transcript metrics
	transcriptEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crosstalk_transcript_entries_total",
		Help: "Total number of transcript entries sealed",
	}, []string{"role"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crosstalk_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// RecordSessionStart records a session entering the connecting state.
func RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records a session teardown and its duration.
func RecordSessionEnd(seconds float64) {
	activeSessions.Dec()
	sessionDuration.Observe(seconds)
}

// RecordCaptureFrame records one outbound frame and its encoded size.
func RecordCaptureFrame(bytes int64) {
	captureFrames.Inc()
	audioBytes.WithLabelValues("out").Add(float64(bytes))
}

// RecordInboundAudio records received translated audio bytes.
func RecordInboundAudio(bytes int64) {
	audioBytes.WithLabelValues("in").Add(float64(bytes))
}

// SetInputLevel updates the capture level gauge.
func SetInputLevel(rms float64) {
	inputLevel.Set(rms)
}

// RecordPlaybackSegment records one scheduled segment and its length.
func RecordPlaybackSegment(seconds float64) {
	playbackSegments.Inc()
	playbackSeconds.Add(seconds)
}

// RecordInterruption records one barge-in.
func RecordInterruption() {
	interruptions.Inc()
}

// RecordDecodeError records one dropped undecodable audio chunk.
func RecordDecodeError() {
	decodeErrors.Inc()
}

// RecordTranscriptEntry records one sealed transcript entry for a role.
func RecordTranscriptEntry(role string) {
	transcriptEntries.WithLabelValues(role).Inc()
}

// RecordError records an error by type and component.
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
