package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/v4l2forward/internal/events"
)

// registerSSERoutes registers the forwarding event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of state changes, forwarded frames and the run summary",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"state-changed":   events.StateChangedEvent{},
		"frame-forwarded": events.FrameForwardedEvent{},
		"run-finished":    events.RunFinishedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.StateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameForwardedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RunFinishedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Late subscribers learn the current state first
		if s.options.Status != nil {
			st := s.options.Status.Status()
			if err := send.Data(events.StateChangedEvent{
				Source: st.Source,
				Sink:   st.Sink,
				From:   string(st.State),
				To:     string(st.State),
			}); err != nil {
				return
			}
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
