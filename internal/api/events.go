package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/ambilight/internal/events"
	"github.com/smazurov/ambilight/internal/metrics/exporters"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for link state, port hotplug, mode changes, faults and renderer statistics",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connection":    events.ConnectionStateChangedEvent{},
		"serial-device": events.SerialDeviceEvent{},
		"mode-changed":  events.ModeChangedEvent{},
		"strip-fault":   events.StripFaultEvent{},
		"strip-stats":   events.StripStatsEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ConnectionStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SerialDeviceEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ModeChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StripFaultEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StripStatsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current statistics double as the connection confirmation.
		if err := send.Data(exporters.StatsEvent()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
