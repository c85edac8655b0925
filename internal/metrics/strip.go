// Package metrics provides Prometheus metrics for the strip renderer.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ambilight"

var (
	stripMode = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "strip",
		Name:      "mode",
		Help:      "Active strip mode (0 off, 1 manual, 2 audio, 3 monitor)",
	})

	stripZones = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "strip",
		Name:      "zones",
		Help:      "Number of zones in the active zone map",
	})

	stripFaults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "strip",
		Name:      "faults_total",
		Help:      "Render loop runs that ended with a fault",
	})

	framesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "serial",
		Name:      "frames_sent_total",
		Help:      "Protocol frames written to the strip controller",
	}, []string{"kind"})

	bytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "serial",
		Name:      "bytes_sent_total",
		Help:      "Bytes written to the strip controller",
	})

	serialConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "serial",
		Name:      "connected",
		Help:      "1 while the serial link is up",
	})

	serialWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "serial",
		Name:      "write_errors_total",
		Help:      "Failed or timed out serial writes",
	})

	captureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frame_seconds",
		Help:      "Time to capture and reduce one screen frame",
		Buckets:   []float64{0.002, 0.005, 0.01, 0.02, 0.04, 0.08, 0.16},
	})

	captureTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "timeouts_total",
		Help:      "Screen captures skipped because no frame arrived in time",
	})

	audioLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "audio",
		Name:      "bass_level",
		Help:      "Last bass level sent per channel",
	}, []string{"channel"})

	// Local cache for the status endpoint.
	snapshot   Snapshot
	snapshotMu sync.RWMutex
)

// Snapshot holds the current values the status endpoint reports.
type Snapshot struct {
	Connected       bool
	FramesSent      uint64
	BytesSent       uint64
	Faults          uint64
	CaptureTimeouts uint64
	LastCapture     time.Duration
	LastFrameAt     time.Time
}

// SetMode records the active strip mode.
func SetMode(mode uint8) {
	stripMode.Set(float64(mode))
}

// SetZones records the zone count of the active map.
func SetZones(n int) {
	stripZones.Set(float64(n))
}

// IncFaults counts a render loop fault.
func IncFaults() {
	stripFaults.Inc()
	update(func(s *Snapshot) { s.Faults++ })
}

// AddFrames counts frames of the given kind and their bytes.
func AddFrames(kind string, frames, bytes int) {
	framesSent.WithLabelValues(kind).Add(float64(frames))
	bytesSent.Add(float64(bytes))
	update(func(s *Snapshot) {
		s.FramesSent += uint64(frames)
		s.BytesSent += uint64(bytes)
		s.LastFrameAt = time.Now()
	})
}

// SetConnected records the serial link state.
func SetConnected(connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	serialConnected.Set(v)
	update(func(s *Snapshot) { s.Connected = connected })
}

// IncWriteErrors counts a failed serial write.
func IncWriteErrors() {
	serialWriteErrors.Inc()
}

// ObserveCapture records the duration of one capture and reduce pass.
func ObserveCapture(d time.Duration) {
	captureDuration.Observe(d.Seconds())
	update(func(s *Snapshot) { s.LastCapture = d })
}

// IncCaptureTimeouts counts a skipped capture.
func IncCaptureTimeouts() {
	captureTimeouts.Inc()
	update(func(s *Snapshot) { s.CaptureTimeouts++ })
}

// SetAudioLevels records the bass levels sent for each channel.
func SetAudioLevels(left, right uint8) {
	audioLevel.WithLabelValues("left").Set(float64(left))
	audioLevel.WithLabelValues("right").Set(float64(right))
}

// Current returns a copy of the cached values.
func Current() Snapshot {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	return snapshot
}

func update(fn func(*Snapshot)) {
	snapshotMu.Lock()
	defer snapshotMu.Unlock()
	fn(&snapshot)
}
