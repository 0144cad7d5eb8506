package agentservice

import (
	"time"

	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/hub"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/ids"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/lifecycle"
)

// AgentEventsService subscribes to the lifecycle event bus and bridges
// transitions out to the WebSocket hub. State changes are already
// low-frequency and ordering-sensitive, so they are published
// synchronously within the listener callback rather than coalesced
// through a batcher. The service publishes no output or tool events.
type AgentEventsService struct {
	hub *hub.WebSocketHub
	sub lifecycle.Subscription
}

// NewAgentEventsService wires bus -> hub and subscribes immediately.
// Call Close to unsubscribe.
func NewAgentEventsService(bus *lifecycle.StateEventBus, h *hub.WebSocketHub) *AgentEventsService {
	svc := &AgentEventsService{hub: h}
	svc.sub = bus.Subscribe(svc.onStateChange)
	return svc
}

func (s *AgentEventsService) onStateChange(ev lifecycle.StateChangeEvent) {
	payload := hub.StateChangePayload{
		Type:          hub.EventTypeStateChange,
		AgentID:       ev.AgentID,
		PreviousState: string(ev.Transition.PreviousState),
		NewState:      string(ev.Transition.NewState),
		Reason:        string(ev.Transition.Reason),
		CorrelationID: ev.Transition.CorrelationID,
		Metadata:      ev.Transition.Metadata,
		Timestamp:     ev.Transition.Timestamp.Format(time.RFC3339Nano),
	}
	if ev.Transition.Error != nil {
		payload.Error = &hub.PayloadError{Code: ev.Transition.Error.Code, Message: ev.Transition.Error.Message}
	}

	asMap := map[string]interface{}{
		"agentId":       payload.AgentID,
		"previousState": payload.PreviousState,
		"newState":      payload.NewState,
		"reason":        payload.Reason,
		"correlationId": payload.CorrelationID,
		"timestamp":     payload.Timestamp,
	}
	if payload.Error != nil {
		asMap["error"] = map[string]string{"code": payload.Error.Code, "message": payload.Error.Message}
	}
	if payload.Metadata != nil {
		asMap["metadata"] = payload.Metadata
	}

	channel := hub.AgentStateChannel(payload.AgentID)
	_, _ = s.hub.Publish(channel, hub.EventTypeStateChange, asMap, map[string]interface{}{"eventId": ids.New()})
}

// Close unsubscribes from the bus.
func (s *AgentEventsService) Close(bus *lifecycle.StateEventBus) {
	bus.Unsubscribe(s.sub)
}
