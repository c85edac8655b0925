package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/ambilight/internal/events"
	"github.com/smazurov/ambilight/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes renderer statistics on the event bus.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher, interval time.Duration) *SSEExporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &SSEExporter{
		eventBus: eventBus,
		interval: interval,
	}
}

// Start begins the export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publish()
		}
	}
}

func (s *SSEExporter) publish() {
	s.eventBus.Publish(StatsEvent())
}

// StatsEvent builds a statistics event from the current metrics snapshot.
func StatsEvent() events.StripStatsEvent {
	snap := metrics.Current()
	return events.StripStatsEvent{
		Connected:       snap.Connected,
		FramesSent:      snap.FramesSent,
		BytesSent:       snap.BytesSent,
		Faults:          snap.Faults,
		CaptureTimeouts: snap.CaptureTimeouts,
		CaptureMillis:   strconv.FormatFloat(float64(snap.LastCapture.Microseconds())/1000, 'f', 2, 64),
		Timestamp:       events.Now(),
	}
}
